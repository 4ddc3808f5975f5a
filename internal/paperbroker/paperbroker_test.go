package paperbroker

import "testing"

func TestRealizedPnLBuy(t *testing.T) {
	if pnl := realizedPnL("BUY", 100, 110, 2); pnl != 20 {
		t.Errorf("pnl = %v, want 20", pnl)
	}
}

func TestRealizedPnLSellIsSignFlipped(t *testing.T) {
	if pnl := realizedPnL("SELL", 100, 90, 2); pnl != 20 {
		t.Errorf("pnl = %v, want 20 (short profits when price falls)", pnl)
	}
}

func TestSettlementDeltaBuyCreditsExitNotional(t *testing.T) {
	if d := settlementDelta("BUY", 110, 2, 20); d != 220 {
		t.Errorf("delta = %v, want 220", d)
	}
}

func TestSettlementDeltaSellDebitsExitNotional(t *testing.T) {
	if d := settlementDelta("SELL", 90, 2, 20); d != -180 {
		t.Errorf("delta = %v, want -180", d)
	}
}

func TestRoundTripNetsToRealizedPnL(t *testing.T) {
	balance := 10000.0
	entry, exit, qty := 100.0, 110.0, 2.0

	// BUY open debits entry notional, close credits exit notional.
	balance -= entry * qty
	balance += settlementDelta("BUY", exit, qty, realizedPnL("BUY", entry, exit, qty))
	if want := 10000.0 + realizedPnL("BUY", entry, exit, qty); balance != want {
		t.Errorf("balance = %v, want %v", balance, want)
	}
}
