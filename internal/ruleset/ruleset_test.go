package ruleset

import (
	"encoding/json"
	"testing"
)

func TestParseAndEvaluateRSIBelow30(t *testing.T) {
	raw := json.RawMessage(`{
		"conditions": [{"indicator": "RSI", "length": 14, "relation": "<", "value": 30}],
		"exit": {"stop_loss": 0.02, "take_profit": 0.04}
	}`)
	rs, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	values := IndicatorValues{"rsi": {55, 40, 25}}

	if Evaluate(rs.Conditions, values, 2) != true {
		t.Errorf("expected RSI=25 < 30 to be true")
	}
	if Evaluate(rs.Conditions, values, 0) != false {
		t.Errorf("expected RSI=55 < 30 to be false")
	}
}

func TestEvaluateUnknownIndicatorIsFalseNotError(t *testing.T) {
	raw := json.RawMessage(`{"conditions": [{"indicator": "NOPE", "relation": ">", "value": 1}]}`)
	rs, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if Evaluate(rs.Conditions, IndicatorValues{}, 0) != false {
		t.Errorf("unknown indicator should evaluate false, not panic/error")
	}
}

func TestEvaluateEmptyConditionsIsTrue(t *testing.T) {
	if !Evaluate(nil, IndicatorValues{}, 0) {
		t.Errorf("empty condition list should evaluate true")
	}
}

func TestOrLogic(t *testing.T) {
	raw := json.RawMessage(`{
		"conditions": [
			{"indicator": "RSI", "relation": ">", "value": 100},
			{"logic": "OR"},
			{"indicator": "SMA", "length": 5, "relation": "<", "value": 10}
		]
	}`)
	rs, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	values := IndicatorValues{"rsi": {50}, "sma_5": {5}}
	if !Evaluate(rs.Conditions, values, 0) {
		t.Errorf("OR of (false, true) should be true")
	}
}

func TestCalculateExitPricesPercentBuy(t *testing.T) {
	sl, tp := 0.02, 0.04
	got := CalculateExitPrices(100, "BUY", ExitSpec{StopLossPct: &sl, TakeProfitPct: &tp}, nil)
	if *got.StopLoss != 98 {
		t.Errorf("stop loss = %v, want 98", *got.StopLoss)
	}
	if *got.TakeProfit != 104 {
		t.Errorf("take profit = %v, want 104", *got.TakeProfit)
	}
}
