package royalty

import (
	"testing"

	"brain-core/internal/db"
)

func TestRateForHighSimilarityLowMutations(t *testing.T) {
	if r := RateFor(0.8, 1); r != 0.05 {
		t.Errorf("rate = %v, want 0.05", r)
	}
}

func TestRateForMidSimilarity(t *testing.T) {
	if r := RateFor(0.6, 1); r != 0.03 {
		t.Errorf("rate = %v, want 0.03", r)
	}
}

func TestRateForThreeMutationsCapsRate(t *testing.T) {
	if r := RateFor(0.9, 3); r != 0.015 {
		t.Errorf("rate = %v, want 0.015 (mutations == 3 caps regardless of similarity)", r)
	}
}

func TestRateForLowSimilarityIsZero(t *testing.T) {
	if r := RateFor(0.2, 1); r != 0 {
		t.Errorf("rate = %v, want 0", r)
	}
}

func TestRateForManyMutationsIsZero(t *testing.T) {
	if r := RateFor(0.9, 4); r != 0 {
		t.Errorf("rate = %v, want 0", r)
	}
}

func TestNextLockStateSuccessExtendsStreak(t *testing.T) {
	state := db.BillingState{UserID: "u1", ConsecutiveSuccessfulMonths: 2}
	next := NextLockState(state, 2000, true)
	if next.ConsecutiveSuccessfulMonths != 3 || next.LockState != string(LockNone) {
		t.Errorf("got %+v", next)
	}
}

func TestNextLockStateFailureBelowThresholdNoChange(t *testing.T) {
	state := db.BillingState{UserID: "u1", ConsecutiveSuccessfulMonths: 5}
	next := NextLockState(state, 500, false)
	if next.LockState != state.LockState {
		t.Errorf("expected no lock-state change under threshold, got %+v", next)
	}
}

func TestNextLockStateFailureWithGraceGrantsDelay(t *testing.T) {
	state := db.BillingState{UserID: "u1", ConsecutiveSuccessfulMonths: 4, DelayedMonths: 0}
	next := NextLockState(state, 2000, false)
	if next.LockState != string(LockGrace) || next.DelayedMonths != 1 {
		t.Errorf("got %+v, want grace/1", next)
	}
}

func TestNextLockStateFailureAfterGraceExhaustedHardLocks(t *testing.T) {
	state := db.BillingState{UserID: "u1", ConsecutiveSuccessfulMonths: 4, DelayedMonths: GraceMonthsAllowed}
	next := NextLockState(state, 2000, false)
	if next.LockState != string(LockHard) {
		t.Errorf("got %+v, want hard lock", next)
	}
}

func TestNextLockStateFailureNoGraceHardLocks(t *testing.T) {
	state := db.BillingState{UserID: "u1", ConsecutiveSuccessfulMonths: 0}
	next := NextLockState(state, 2000, false)
	if next.LockState != string(LockHard) {
		t.Errorf("got %+v, want hard lock (no grace earned)", next)
	}
}

// TestNextLockStateSecondConsecutiveDelayedMonthStaysInGrace covers
// §4.14's "up to 2 months of delayed settlement" window: a second
// failed charge immediately after the first delayed month must still
// be covered by grace, even though the streak that earned grace was
// already reset to 0 by the first delayed month.
func TestNextLockStateSecondConsecutiveDelayedMonthStaysInGrace(t *testing.T) {
	state := db.BillingState{UserID: "u1", ConsecutiveSuccessfulMonths: 4}
	first := NextLockState(state, 2000, false)
	if first.LockState != string(LockGrace) || first.DelayedMonths != 1 {
		t.Fatalf("first delayed month: got %+v, want grace/1", first)
	}

	second := NextLockState(*first, 2000, false)
	if second.LockState != string(LockGrace) || second.DelayedMonths != 2 {
		t.Errorf("second delayed month: got %+v, want grace/2", second)
	}

	third := NextLockState(*second, 2000, false)
	if third.LockState != string(LockHard) {
		t.Errorf("third delayed month: got %+v, want hard lock", third)
	}
}
