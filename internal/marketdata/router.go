package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Intent distinguishes a historical lookup from a live one; historical
// calls must never reach a live-only slot (§4.3.1).
type Intent int

const (
	IntentHistorical Intent = iota
	IntentLive
)

// ErrAllProvidersFailed is the single structured error emitted when
// every configured slot in the hierarchy is exhausted (§4.3.4).
var ErrAllProvidersFailed = errors.New("marketdata: all providers failed")

// Router implements the §4.3 provider hierarchy: historical-primary,
// live-primary, live-secondary, and a fixed last-resort historical
// source, grounded on the teacher's internal/gateway.Manager
// failure-counting and fallback shape, adapted from a connection pool
// to a fixed ordered slot list.
type Router struct {
	HistoricalPrimary Provider
	LivePrimary       Provider
	LiveSecondary     Provider
	LastResort        Provider // always historical-capable

	Queue *Queue
}

// slotsFor returns the ordered fallback chain for intent.
func (r *Router) slotsFor(intent Intent) []Provider {
	switch intent {
	case IntentHistorical:
		return nonNil(r.HistoricalPrimary, r.LastResort)
	default:
		return nonNil(r.LivePrimary, r.LiveSecondary, r.LastResort)
	}
}

func nonNil(ps ...Provider) []Provider {
	out := make([]Provider, 0, len(ps))
	for _, p := range ps {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// PriceResult carries the answer plus which provider actually served
// it, matching S4's `{price, provider}` shape.
type PriceResult struct {
	Snapshot PriceSnapshot
	Provider string
}

// GetPrice dispatches through the live slots (price is always a live
// concern) with queue-backed caching, rate limiting, and fallback.
func (r *Router) GetPrice(ctx context.Context, symbol string) (PriceResult, error) {
	slots := r.slotsFor(IntentLive)
	var lastErr error
	for _, p := range slots {
		if !p.Capabilities().Has(CapPrice) {
			continue
		}
		data, err := r.Queue.Do(ctx, p.Name(), "get_price", TTLLivePrice, []string{symbol}, func(ctx context.Context) ([]byte, error) {
			snap, err := p.GetPrice(ctx, symbol)
			if err != nil {
				return nil, err
			}
			return json.Marshal(snap)
		})
		if err == nil {
			var snap PriceSnapshot
			if jsonErr := json.Unmarshal(data, &snap); jsonErr == nil {
				return PriceResult{Snapshot: snap, Provider: p.Name()}, nil
			}
		}
		lastErr = err
		if !isRetryable(err) {
			return PriceResult{}, lastErr
		}
	}
	return PriceResult{}, ErrAllProvidersFailed
}

// GetCandles dispatches via intent-aware slot selection. Per §4.3.4,
// backtest/evolution paths must never crash on total failure: callers
// that need that guarantee should treat a non-nil error as "empty
// OHLCV", which this function makes trivial by also returning nil,nil
// semantics are left to the caller — Router itself still reports the
// error so Brain-path callers can surface it.
func (r *Router) GetCandles(ctx context.Context, symbol, interval string, limit int, intent Intent) ([]Candle, error) {
	slots := r.slotsFor(intent)
	var lastErr error
	for _, p := range slots {
		if !p.Capabilities().Has(CapCandles) {
			continue
		}
		ttl := TTLCandles
		if intent == IntentHistorical {
			ttl = TTLHistoricalOHLCV
		}
		data, err := r.Queue.Do(ctx, p.Name(), "get_candles", ttl, []string{symbol, interval}, func(ctx context.Context) ([]byte, error) {
			candles, err := p.GetCandles(ctx, symbol, interval, limit, time.Time{}, time.Time{})
			if err != nil {
				return nil, err
			}
			return json.Marshal(candles)
		})
		if err == nil {
			var candles []Candle
			if jsonErr := json.Unmarshal(data, &candles); jsonErr == nil {
				return candles, nil
			}
		}
		lastErr = err
		if !isRetryable(err) {
			return nil, lastErr
		}
	}
	return nil, ErrAllProvidersFailed
}

// GetCandlesOrEmpty is the backtest/evolution-safe wrapper required by
// §4.3.4: on total provider failure it returns an empty slice rather
// than an error.
func (r *Router) GetCandlesOrEmpty(ctx context.Context, symbol, interval string, limit int, intent Intent) []Candle {
	candles, err := r.GetCandles(ctx, symbol, interval, limit, intent)
	if err != nil {
		return []Candle{}
	}
	return candles
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Retryable()
	}
	// Unclassified errors (e.g. context cancellation) are treated as
	// fallback-worthy so a single slow provider never wedges the chain.
	return true
}
