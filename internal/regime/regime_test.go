package regime

import (
	"math"
	"testing"
)

func TestClassifyBullTrendLowVol(t *testing.T) {
	sma50 := []float64{100, 101, 102}
	sma200 := []float64{90, 90.2, 90.4}
	vol := 10.0
	result := classify(sma50, sma200, &vol, 5.0)
	if result.Regime != Momentum {
		t.Errorf("regime = %s, want momentum", result.Regime)
	}
	if result.Confidence <= 0.7 {
		t.Errorf("confidence = %v, want boosted bull confidence", result.Confidence)
	}
}

func TestClassifyBearTrendHighVol(t *testing.T) {
	sma50 := []float64{100, 98, 95}
	sma200 := []float64{110, 109.5, 109}
	vol := 35.0
	result := classify(sma50, sma200, &vol, -5.0)
	if result.Regime != RiskOff {
		t.Errorf("regime = %s, want risk_off", result.Regime)
	}
	if result.RiskLevel != RiskHigh {
		t.Errorf("risk level = %s, want high", result.RiskLevel)
	}
}

func TestClassifyRangingOverridesOnLowMomentum(t *testing.T) {
	sma50 := []float64{100, 100.1}
	sma200 := []float64{100.5, 100.6}
	result := classify(sma50, sma200, nil, 0.2)
	if result.Regime != Neutral {
		t.Errorf("regime = %s, want neutral (ranging)", result.Regime)
	}
}

func TestClassifyNoDataIsNeutral(t *testing.T) {
	result := classify(nil, nil, nil, 0)
	if result.Regime != Neutral || result.Confidence != 0.4 {
		t.Errorf("got %+v, want neutral/0.4 fallback", result)
	}
}

func TestAnnualizedVolatilityRequiresEnoughCloses(t *testing.T) {
	if v := annualizedVolatility(make([]float64, 10)); v != nil {
		t.Errorf("expected nil volatility with insufficient closes")
	}
}

func TestMomentumComputesPercentChange(t *testing.T) {
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 100
	}
	closes[len(closes)-1] = 110
	m := momentum(closes)
	if math.Abs(m-10) > 1e-9 {
		t.Errorf("momentum = %v, want 10", m)
	}
}

func TestFallbackIsNeutral03(t *testing.T) {
	f := fallback()
	if f.Regime != Neutral || f.Confidence != 0.3 {
		t.Errorf("fallback = %+v, want neutral/0.3", f)
	}
}
