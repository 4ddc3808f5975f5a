package confirm

import (
	"testing"
	"time"

	"brain-core/internal/db"
	"brain-core/internal/marketdata"
)

func TestAlignmentScoreAllAgree(t *testing.T) {
	readings := []TimeframeReading{
		{Trend: TrendUp}, {Trend: TrendUp}, {Trend: TrendUp},
		{Trend: TrendUp}, {Trend: TrendUp}, {Trend: TrendUp},
	}
	if s := alignmentScore(readings); s != 1.0 {
		t.Errorf("score = %v, want 1.0", s)
	}
}

func TestAlignmentScorePenalizesFlat(t *testing.T) {
	readings := []TimeframeReading{
		{Trend: TrendUp}, {Trend: TrendUp}, {Trend: TrendUp},
		{Trend: TrendFlat}, {Trend: TrendFlat}, {Trend: TrendFlat},
	}
	s := alignmentScore(readings)
	if s <= 0 || s >= 1.0 {
		t.Errorf("score = %v, want between 0 and 1 exclusive", s)
	}
}

func makeCandles(n int, baseVol float64) []marketdata.Candle {
	out := make([]marketdata.Candle, n)
	for i := range out {
		out[i] = marketdata.Candle{Close: 100, Volume: baseVol}
	}
	return out
}

func TestVolumeRequiresFiftyBars(t *testing.T) {
	result := Volume(makeCandles(10, 100))
	if result.Trend != VolumeLow {
		t.Errorf("trend = %s, want low with insufficient data", result.Trend)
	}
}

func TestVolumeIncreasingTriggersConfirm(t *testing.T) {
	candles := makeCandles(50, 100)
	for i := 45; i < 50; i++ {
		candles[i].Volume = 300
	}
	result := Volume(candles)
	if result.Trend != VolumeIncreasing || result.Recommendation != RecommendConfirm {
		t.Errorf("got %+v, want increasing/confirm", result)
	}
}

func TestUserRiskInsufficientData(t *testing.T) {
	result := UserRisk(nil, 10000)
	if !result.InsufficientData || result.Profile != ProfileModerate {
		t.Errorf("got %+v, want insufficient/moderate", result)
	}
}

func tradeFixture(pnl, qty, entry float64, holdingDays float64) *db.Trade {
	opened := time.Now().Add(-time.Duration(holdingDays*24) * time.Hour)
	closed := time.Now()
	return &db.Trade{Status: "CLOSED", RealizedPnL: &pnl, Quantity: qty, EntryPrice: entry, OpenedAt: opened, ClosedAt: &closed}
}

func TestUserRiskClassifiesConservative(t *testing.T) {
	trades := []*db.Trade{
		tradeFixture(50, 1, 100, 10),
		tradeFixture(40, 1, 100, 12),
		tradeFixture(30, 1, 100, 9),
		tradeFixture(-10, 1, 100, 8),
		tradeFixture(20, 1, 100, 11),
	}
	result := UserRisk(trades, 100000)
	if result.Profile != ProfileConservative {
		t.Errorf("profile = %s, want conservative: %+v", result.Profile, result)
	}
}

func TestPortfolioRiskDeniesAtFullExposure(t *testing.T) {
	cfg := DefaultPortfolioRiskConfig()
	trades := []*db.Trade{
		{Status: "OPEN", Symbol: "BTCUSDT", Quantity: 2, EntryPrice: 10000},
	}
	decision := PortfolioRisk(cfg, trades, map[string]string{"BTCUSDT": "crypto"}, "BTCUSDT", 5000, 100000, 1.0, 0)
	if decision.Allowed {
		t.Errorf("expected denial at >20%% symbol exposure, got %+v", decision)
	}
}

func TestPortfolioRiskDampensNearLimit(t *testing.T) {
	cfg := DefaultPortfolioRiskConfig()
	trades := []*db.Trade{
		{Status: "OPEN", Symbol: "BTCUSDT", Quantity: 1, EntryPrice: 17000},
	}
	decision := PortfolioRisk(cfg, trades, map[string]string{"BTCUSDT": "crypto"}, "BTCUSDT", 500, 100000, 1.0, 0)
	if !decision.Allowed || decision.ConfidenceMult >= 1.0 {
		t.Errorf("expected dampened-but-allowed near 20%% limit, got %+v", decision)
	}
}
