package adapters

import (
	"context"
	"math"
	"math/rand"
	"time"

	"brain-core/internal/marketdata"
)

// Mock is a synthetic provider for local development and tests,
// grounded on the teacher's internal/market.MockFeed random walk.
type Mock struct {
	Seed       int64
	StartPrice float64
}

func NewMock(seed int64, startPrice float64) *Mock {
	if startPrice == 0 {
		startPrice = 100
	}
	return &Mock{Seed: seed, StartPrice: startPrice}
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Capabilities() marketdata.CapabilitySet {
	return marketdata.CapabilitySet(marketdata.CapPrice | marketdata.CapCandles | marketdata.CapSentiment | marketdata.CapVolatility | marketdata.CapAssetDetails)
}

func (m *Mock) rng(symbol string) *rand.Rand {
	seed := m.Seed
	for _, c := range symbol {
		seed = seed*31 + int64(c)
	}
	return rand.New(rand.NewSource(seed))
}

func (m *Mock) GetPrice(ctx context.Context, symbol string) (marketdata.PriceSnapshot, error) {
	r := m.rng(symbol)
	price := m.StartPrice * (1 + (r.Float64()*0.1 - 0.05))
	return marketdata.PriceSnapshot{
		Symbol:    symbol,
		Price:     price,
		ChangePct: r.Float64()*4 - 2,
		Volume:    r.Float64() * 1_000_000,
		Timestamp: time.Now(),
		Provider:  m.Name(),
	}, nil
}

func (m *Mock) GetCandles(ctx context.Context, symbol, interval string, limit int, start, end time.Time) ([]marketdata.Candle, error) {
	if limit <= 0 {
		limit = 200
	}
	r := m.rng(symbol)
	price := m.StartPrice
	out := make([]marketdata.Candle, 0, limit)
	now := time.Now()
	step := intervalDuration(interval)
	for i := limit - 1; i >= 0; i-- {
		open := price
		delta := (r.Float64()*2 - 1) * price * 0.01
		close := math.Max(open+delta, 0.01)
		high := math.Max(open, close) * (1 + r.Float64()*0.002)
		low := math.Min(open, close) * (1 - r.Float64()*0.002)
		out = append(out, marketdata.Candle{
			OpenTime: now.Add(-time.Duration(i) * step),
			Open:     open,
			High:     high,
			Low:      low,
			Close:    close,
			Volume:   r.Float64() * 10000,
		})
		price = close
	}
	return out, nil
}

func (m *Mock) GetSentiment(ctx context.Context, symbol string) (marketdata.Sentiment, error) {
	r := m.rng(symbol)
	score := r.Float64()*2 - 1
	label := "neutral"
	switch {
	case score > 0.2:
		label = "bullish"
	case score < -0.2:
		label = "bearish"
	}
	return marketdata.Sentiment{Symbol: symbol, Score: score, Label: label}, nil
}

func (m *Mock) GetVolatility(ctx context.Context, symbol string) (marketdata.Volatility, error) {
	r := m.rng(symbol)
	return marketdata.Volatility{Symbol: symbol, Annualized: 10 + r.Float64()*60}, nil
}

func (m *Mock) GetAssetDetails(ctx context.Context, symbol string) (marketdata.AssetDetails, error) {
	return marketdata.AssetDetails{Symbol: symbol, AssetType: "crypto", Exchange: "mock", Name: symbol}, nil
}

func intervalDuration(interval string) time.Duration {
	switch interval {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "1h":
		return time.Hour
	case "4h":
		return 4 * time.Hour
	case "1d":
		return 24 * time.Hour
	default:
		return time.Hour
	}
}
