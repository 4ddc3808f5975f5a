// Package adapters implements the §4.1 Provider Adapters: normalizers
// from vendor-specific wire shapes to the common marketdata.Provider
// capability set, grounded on the teacher's pkg/market/binance REST
// client.
package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"brain-core/internal/marketdata"
)

// Binance adapts the public Binance REST API to marketdata.Provider.
// It exposes price and candle capabilities only; Binance has no
// sentiment/asset-details endpoints worth normalizing here.
type Binance struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewBinance builds a Binance adapter; testnet switches the base URL.
func NewBinance(testnet bool) *Binance {
	base := "https://api.binance.com"
	if testnet {
		base = "https://testnet.binance.vision"
	}
	return &Binance{
		BaseURL:    base,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (b *Binance) Name() string { return "binance" }

func (b *Binance) Capabilities() marketdata.CapabilitySet {
	return marketdata.CapabilitySet(marketdata.CapPrice | marketdata.CapCandles)
}

// NormalizeSymbol strips currency separators and maps common crypto
// shorthand (e.g. "BTC" -> "BTCUSDT") the way a vendor-specific adapter
// must per §4.1.
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.ReplaceAll(symbol, "-", ""))
	s = strings.ReplaceAll(s, "/", "")
	s = strings.ReplaceAll(s, "_", "")
	if !strings.HasSuffix(s, "USDT") && !strings.HasSuffix(s, "BUSD") && !strings.HasSuffix(s, "USD") {
		s += "USDT"
	}
	return s
}

func (b *Binance) GetPrice(ctx context.Context, symbol string) (marketdata.PriceSnapshot, error) {
	sym := NormalizeSymbol(symbol)
	u := fmt.Sprintf("%s/api/v3/ticker/24hr?symbol=%s", b.BaseURL, url.QueryEscape(sym))
	var raw struct {
		LastPrice          string `json:"lastPrice"`
		PriceChangePercent string `json:"priceChangePercent"`
		Volume             string `json:"volume"`
	}
	if err := b.getJSON(ctx, u, &raw); err != nil {
		return marketdata.PriceSnapshot{}, err
	}
	return marketdata.PriceSnapshot{
		Symbol:    symbol,
		Price:     parseFloat(raw.LastPrice),
		ChangePct: parseFloat(raw.PriceChangePercent),
		Volume:    parseFloat(raw.Volume),
		Timestamp: time.Now(),
		Provider:  b.Name(),
	}, nil
}

// intervalMap translates the spec's canonical interval names into
// Binance's kline interval strings. 4h is natively supported; any
// interval Binance lacks must be resampled by the caller (§4.1).
var intervalMap = map[string]string{
	"1m": "1m", "5m": "5m", "15m": "15m",
	"1h": "1h", "4h": "4h", "1d": "1d",
}

func (b *Binance) GetCandles(ctx context.Context, symbol, interval string, limit int, start, end time.Time) ([]marketdata.Candle, error) {
	vendorInterval, ok := intervalMap[interval]
	if !ok {
		vendorInterval = "1h"
	}
	sym := NormalizeSymbol(symbol)
	params := url.Values{}
	params.Set("symbol", sym)
	params.Set("interval", vendorInterval)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if !start.IsZero() {
		params.Set("startTime", strconv.FormatInt(start.UnixMilli(), 10))
	}
	if !end.IsZero() {
		params.Set("endTime", strconv.FormatInt(end.UnixMilli(), 10))
	}
	u := fmt.Sprintf("%s/api/v3/klines?%s", b.BaseURL, params.Encode())

	var raw [][]any
	if err := b.getJSON(ctx, u, &raw); err != nil {
		return nil, err
	}
	candles := make([]marketdata.Candle, 0, len(raw))
	for _, item := range raw {
		if len(item) < 6 {
			continue
		}
		candles = append(candles, marketdata.Candle{
			OpenTime: time.UnixMilli(toInt64(item[0])),
			Open:     toFloat(item[1]),
			High:     toFloat(item[2]),
			Low:      toFloat(item[3]),
			Close:    toFloat(item[4]),
			Volume:   toFloat(item[5]),
		})
	}
	return candles, nil
}

func (b *Binance) GetSentiment(ctx context.Context, symbol string) (marketdata.Sentiment, error) {
	return marketdata.Sentiment{}, marketdata.ErrUnsupported
}

func (b *Binance) GetVolatility(ctx context.Context, symbol string) (marketdata.Volatility, error) {
	return marketdata.Volatility{}, marketdata.ErrUnsupported
}

func (b *Binance) GetAssetDetails(ctx context.Context, symbol string) (marketdata.AssetDetails, error) {
	return marketdata.AssetDetails{}, marketdata.ErrUnsupported
}

func (b *Binance) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	res, err := b.HTTPClient.Do(req)
	if err != nil {
		return marketdata.NewUpstreamError(marketdata.KindTransient, b.Name(), err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500 {
		return marketdata.NewUpstreamError(marketdata.KindRateLimitOrTransient, b.Name(), fmt.Errorf("status %d", res.StatusCode))
	}
	if res.StatusCode >= 400 {
		return marketdata.NewUpstreamError(marketdata.KindFatal, b.Name(), fmt.Errorf("status %d", res.StatusCode))
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	case float64:
		return t
	default:
		return 0
	}
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	default:
		return 0
	}
}
