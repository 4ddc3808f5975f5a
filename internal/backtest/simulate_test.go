package backtest

import (
	"encoding/json"
	"testing"
	"time"

	"brain-core/internal/marketdata"
	"brain-core/internal/ruleset"
)

func syntheticCandles(n int, start, step float64) []marketdata.Candle {
	candles := make([]marketdata.Candle, n)
	price := start
	now := time.Now().Add(-time.Duration(n) * 24 * time.Hour)
	for i := 0; i < n; i++ {
		open := price
		close := price + step
		high := open
		if close > high {
			high = close
		}
		low := open
		if close < low {
			low = close
		}
		candles[i] = marketdata.Candle{
			OpenTime: now.Add(time.Duration(i) * 24 * time.Hour),
			Open:     open, High: high + 0.5, Low: low - 0.5, Close: close, Volume: 1000,
		}
		price = close
	}
	return candles
}

func TestRunProducesNoTradesWithUnreachableCondition(t *testing.T) {
	raw := json.RawMessage(`{"conditions":[{"indicator":"RSI","relation":"<","value":-1}]}`)
	rs, err := ruleset.Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	candles := syntheticCandles(60, 100, 1)
	result := Run(rs, candles, 20)
	if len(result.Trades) != 0 {
		t.Errorf("expected no trades, got %d", len(result.Trades))
	}
}

func TestRunSplitsTrainTestSeventyThirty(t *testing.T) {
	raw := json.RawMessage(`{
		"conditions":[{"indicator":"SMA","length":5,"relation":">","value":0}],
		"exit":{"stop_loss":0.05,"take_profit":0.05}
	}`)
	rs, err := ruleset.Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	candles := syntheticCandles(120, 100, 0.3)
	result := Run(rs, candles, 20)
	if len(result.Trades) == 0 {
		t.Fatalf("expected at least one trade")
	}
	wantSplit := int(float64(len(result.Trades)) * 0.7)
	if result.SplitIndex != wantSplit {
		t.Errorf("split index = %d, want %d", result.SplitIndex, wantSplit)
	}
}

func TestMetricsSharpeNilUnderTwoTrades(t *testing.T) {
	m := computeMetrics([]TradeRecord{{PnL: 10}})
	if m.Sharpe != nil {
		t.Errorf("expected nil Sharpe with 1 trade")
	}
}

func TestMaxDrawdownTracksPeakToTrough(t *testing.T) {
	equity := []float64{0, 10, 5, 15, 2}
	if got := maxDrawdown(equity); got != 13 {
		t.Errorf("maxDrawdown = %v, want 13", got)
	}
}
