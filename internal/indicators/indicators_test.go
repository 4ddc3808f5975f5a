package indicators

import (
	"testing"

	"brain-core/internal/marketdata"
)

func TestSMAPeriodOneEqualsInput(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	got := SMA(values, 1)
	if len(got) != len(values) {
		t.Fatalf("SMA(period=1) length = %d, want %d", len(got), len(values))
	}
	for i, v := range values {
		if got[i] != v {
			t.Errorf("SMA(period=1)[%d] = %v, want %v", i, got[i], v)
		}
	}
}

func TestEMALength(t *testing.T) {
	values := make([]float64, 30)
	for i := range values {
		values[i] = float64(i + 1)
	}
	period := 10
	got := EMA(values, period)
	want := len(values) - period + 1
	if len(got) != want {
		t.Fatalf("EMA length = %d, want %d", len(got), want)
	}
}

func TestRSIInsufficientData(t *testing.T) {
	if got := RSI([]float64{1, 2, 3}, 14); got != nil {
		t.Fatalf("RSI with insufficient data = %v, want nil", got)
	}
}

func TestVWAPFallsBackToTypicalPriceWithZeroVolume(t *testing.T) {
	candles := []marketdata.Candle{
		{High: 11, Low: 9, Close: 10, Volume: 0},
		{High: 12, Low: 10, Close: 11, Volume: 100},
	}
	got := VWAP(candles)
	if len(got) != len(candles) {
		t.Fatalf("VWAP length = %d, want %d", len(got), len(candles))
	}
	if got[0] != 10 {
		t.Errorf("VWAP[0] with zero volume = %v, want typical price 10", got[0])
	}
}
