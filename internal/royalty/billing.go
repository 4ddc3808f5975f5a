package royalty

import (
	"context"
	"log"

	"brain-core/internal/db"
)

// LockThresholdCents is §4.14's outstanding-balance trigger for a
// hard lock on premium endpoints.
const LockThresholdCents = 1000 // $10.00

// GraceMonthsRequired is the consecutive-successful-payment streak
// needed before a creator is granted delayed-settlement grace.
const GraceMonthsRequired = 3

// GraceMonthsAllowed is how many months of delayed settlement grace
// permits before locking regardless of streak.
const GraceMonthsAllowed = 2

// LockState is the billing-driven access state for a creator.
type LockState string

const (
	LockNone LockState = "none"
	LockGrace LockState = "grace"
	LockHard LockState = "hard"
)

// PaymentProvider charges a creator for a billing period; the
// ambient stack's fake/sandbox implementation lives in package
// billing.
type PaymentProvider interface {
	Charge(ctx context.Context, userID string, amountCents int64) (success bool, err error)
}

// BillingCycle runs the §4.14 monthly aggregation: sum each creator's
// unpaid ledger rows, charge via provider, and update lock state.
type BillingCycle struct {
	DB       *db.Database
	Provider PaymentProvider
}

func NewBillingCycle(database *db.Database, provider PaymentProvider) *BillingCycle {
	return &BillingCycle{DB: database, Provider: provider}
}

func (b *BillingCycle) Name() string { return "billing_cycle" }

// Run is the scheduler.Job entrypoint: iterate creators with unpaid
// royalty rows, aggregate, charge, and transition lock state.
func (b *BillingCycle) Run() error {
	ctx := context.Background()
	creators, err := b.DB.ListCreatorsWithUnpaidRoyalties(ctx)
	if err != nil {
		return err
	}
	for _, creatorID := range creators {
		b.cycleOne(ctx, creatorID)
	}
	return nil
}

func (b *BillingCycle) cycleOne(ctx context.Context, creatorID string) {
	rows, err := b.DB.ListUnpaidRoyaltiesForCreator(ctx, creatorID)
	if err != nil {
		log.Printf("billing: creator %s: list unpaid: %v", creatorID, err)
		return
	}
	if len(rows) == 0 {
		return
	}

	var totalNet float64
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		totalNet += r.NetAmount
		ids = append(ids, r.ID)
	}
	amountCents := int64(totalNet * 100)

	state, err := b.DB.GetBillingState(ctx, creatorID)
	if err != nil {
		log.Printf("billing: creator %s: get state: %v", creatorID, err)
		state = &db.BillingState{UserID: creatorID, LockState: string(LockNone)}
	}

	if amountCents <= 0 {
		return
	}

	success, err := b.Provider.Charge(ctx, creatorID, amountCents)
	if err != nil {
		log.Printf("billing: creator %s: charge error: %v", creatorID, err)
		success = false
	}

	next := NextLockState(*state, amountCents, success)
	if success {
		if err := b.DB.MarkRoyaltiesPaid(ctx, ids); err != nil {
			log.Printf("billing: creator %s: mark paid: %v", creatorID, err)
		}
	}
	if err := b.DB.SetBillingState(ctx, next); err != nil {
		log.Printf("billing: creator %s: set state: %v", creatorID, err)
	}
}

// NextLockState applies §4.14's grace/lock transition: a successful
// charge extends the streak and resets delayed months; a failed
// charge with outstanding at or below the threshold leaves the state
// unchanged; above it, the failure consumes a grace month if the
// creator has earned grace and has grace months left, and otherwise
// hard-locks the account.
func NextLockState(state db.BillingState, outstandingCents int64, success bool) *db.BillingState {
	if success {
		return &db.BillingState{
			UserID:                      state.UserID,
			ConsecutiveSuccessfulMonths: state.ConsecutiveSuccessfulMonths + 1,
			DelayedMonths:               0,
			LockState:                   string(LockNone),
		}
	}

	// Grace eligibility is earned by a ≥3-month streak, but the streak
	// itself resets to 0 the moment a delayed month is recorded below —
	// so eligibility must latch via the prior lock state, or a second
	// delayed month would never qualify and §4.14's two-month grace
	// window would collapse to one.
	hasGrace := state.ConsecutiveSuccessfulMonths >= GraceMonthsRequired || LockState(state.LockState) == LockGrace
	if outstandingCents <= LockThresholdCents {
		return &state
	}

	if hasGrace && state.DelayedMonths < GraceMonthsAllowed {
		return &db.BillingState{
			UserID:                      state.UserID,
			ConsecutiveSuccessfulMonths: 0,
			DelayedMonths:               state.DelayedMonths + 1,
			LockState:                   string(LockGrace),
		}
	}

	return &db.BillingState{
		UserID:                      state.UserID,
		ConsecutiveSuccessfulMonths: 0,
		DelayedMonths:               state.DelayedMonths,
		LockState:                   string(LockHard),
	}
}
