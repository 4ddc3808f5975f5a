package evolution

import (
	"testing"

	"brain-core/internal/db"
)

func sharpePtr(v float64) *float64 { return &v }

func TestNextStatusPromotesExperimentToCandidate(t *testing.T) {
	w := &Worker{Thresholds: DefaultThresholds()}
	s := &db.Strategy{Status: "experiment", EvolutionAttempts: 0}
	bt := &db.Backtest{TotalTrades: 25, AveragePnL: 1.5}
	status, attempts := w.nextStatus(s, bt)
	if status != "candidate" {
		t.Errorf("status = %s, want candidate", status)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestNextStatusPromotesCandidateToProposable(t *testing.T) {
	w := &Worker{Thresholds: DefaultThresholds()}
	s := &db.Strategy{Status: "candidate", EvolutionAttempts: 3}
	bt := &db.Backtest{
		WinRate: 0.62, Sharpe: sharpePtr(1.6),
		TrainSharpe: sharpePtr(1.6), TestSharpe: sharpePtr(1.2),
	}
	status, _ := w.nextStatus(s, bt)
	if status != "proposable" {
		t.Errorf("status = %s, want proposable", status)
	}
}

func TestNextStatusNeverRegressesFromProposable(t *testing.T) {
	w := &Worker{Thresholds: DefaultThresholds()}
	s := &db.Strategy{Status: "proposable", EvolutionAttempts: 99}
	bt := &db.Backtest{WinRate: 0.1, Sharpe: sharpePtr(-2)}
	status, _ := w.nextStatus(s, bt)
	if status != "proposable" {
		t.Errorf("status regressed to %s, want proposable to stick (invariant 10)", status)
	}
}

func TestNextStatusDiscardsAfterAttemptCap(t *testing.T) {
	w := &Worker{Thresholds: DefaultThresholds()}
	s := &db.Strategy{Status: "candidate", EvolutionAttempts: 10}
	bt := &db.Backtest{WinRate: 0.1}
	status, _ := w.nextStatus(s, bt)
	if status != "discarded" {
		t.Errorf("status = %s, want discarded", status)
	}
}

func TestOverfitDetection(t *testing.T) {
	bt := &db.Backtest{TrainSharpe: sharpePtr(2.0), TestSharpe: sharpePtr(1.0)}
	if !overfit(bt, 0.7) {
		t.Errorf("expected overfit: test/train ratio 0.5 < floor 0.7")
	}
	bt2 := &db.Backtest{TrainSharpe: sharpePtr(2.0), TestSharpe: sharpePtr(1.8)}
	if overfit(bt2, 0.7) {
		t.Errorf("expected no overfit: ratio 0.9 >= floor 0.7")
	}
}
