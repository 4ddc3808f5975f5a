// Package royalty implements §4.14: on every profitable strategy
// trade close, walk the lineage DAG back to the original ancestor,
// rate the child by structural similarity and mutation count, and
// write a RoyaltyLedger row. Grounded on original_source's
// royalty_service.py (calculate_royalty/record_royalty: recursive
// parent walk, mutation count, rate-table lookup, platform-fee-from-
// plan, net = royalty − fee).
package royalty

import (
	"context"
	"errors"
	"time"

	"brain-core/internal/db"
	"brain-core/internal/mutation"
	"brain-core/internal/ruleset"
)

const DefaultPlatformFeeRate = 0.05

// Lineage is the ancestor-walk result: the original strategy's ID,
// the mutation-step count along the path, and the similarity to that
// ancestor.
type Lineage struct {
	OriginalStrategyID string
	MutationCount       int
	Similarity          float64
}

// WalkLineage follows StrategyLineage.ParentOf backward from
// strategyID to the original (parentless) ancestor, counting steps.
// A strategy with no parent row is its own original with zero
// mutations and similarity 1.
func WalkLineage(ctx context.Context, database *db.Database, strategyID string) (Lineage, error) {
	current := strategyID
	steps := 0
	for {
		parent, err := database.ParentOf(ctx, current)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				break
			}
			return Lineage{}, err
		}
		steps++
		current = parent.ParentID
	}
	if steps == 0 {
		return Lineage{OriginalStrategyID: strategyID, MutationCount: 0, Similarity: 1.0}, nil
	}

	original, err := database.GetStrategy(ctx, current)
	if err != nil {
		return Lineage{}, err
	}
	child, err := database.GetStrategy(ctx, strategyID)
	if err != nil {
		return Lineage{}, err
	}

	similarity := 1.0
	originalRs, errO := ruleset.Parse([]byte(original.Ruleset))
	childRs, errC := ruleset.Parse([]byte(child.Ruleset))
	if errO == nil && errC == nil {
		similarity = mutation.Similarity(originalRs, childRs)
	}

	return Lineage{OriginalStrategyID: current, MutationCount: steps, Similarity: similarity}, nil
}

// RateFor applies §4.14's rate table: rate depends jointly on
// similarity to the original ancestor and mutation-step count.
func RateFor(similarity float64, mutations int) float64 {
	switch {
	case mutations > 3:
		return 0
	case similarity < 0.40:
		return 0
	case mutations == 3:
		return 0.015
	case similarity >= 0.40 && similarity < 0.50:
		return 0.015
	case similarity >= 0.50 && similarity <= 0.70 && mutations < 3:
		return 0.03
	case similarity > 0.70 && mutations < 3:
		return 0.05
	default:
		return 0
	}
}

// RecordForTrade computes and persists a RoyaltyLedger row for a
// just-closed trade, per §4.14's step list. It is a no-op (nil, nil)
// when the trade is not profitable or carries no strategy, matching
// the original's "only calculate royalties for profitable trades with
// a strategy" guard.
func RecordForTrade(ctx context.Context, database *db.Database, trade *db.Trade, newID func() string) (*db.RoyaltyLedger, error) {
	if trade.RealizedPnL == nil || *trade.RealizedPnL <= 0 || trade.StrategyID == nil {
		return nil, nil
	}

	strategy, err := database.GetStrategy(ctx, *trade.StrategyID)
	if err != nil || strategy == nil {
		return nil, err
	}

	lineage, err := WalkLineage(ctx, database, strategy.ID)
	if err != nil {
		return nil, err
	}

	rate := RateFor(lineage.Similarity, lineage.MutationCount)
	// an admin-set royalty percent override on the creator replaces the table rate
	if owner, err := database.GetUserByID(ctx, strategy.OwnerID); err == nil && owner != nil && owner.RoyaltyPercentOverride != nil {
		rate = *owner.RoyaltyPercentOverride / 100.0
	}
	profit := *trade.RealizedPnL
	royaltyAmount := profit * rate

	platformFeeRate := platformFeeRateFor(ctx, database, strategy.OwnerID)
	platformFee := royaltyAmount * platformFeeRate
	net := royaltyAmount - platformFee

	entry := &db.RoyaltyLedger{
		ID:              newID(),
		UserID:          strategy.OwnerID,
		StrategyID:      strategy.ID,
		TradeID:         trade.ID,
		RoyaltyAmount:   royaltyAmount,
		RoyaltyRate:     rate,
		PlatformFee:     platformFee,
		PlatformFeeRate: platformFeeRate,
		NetAmount:       net,
		TradeProfit:     profit,
		Paid:            false,
		CreatedAt:       time.Now().UTC(),
	}
	if err := database.InsertRoyaltyLedger(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func platformFeeRateFor(ctx context.Context, database *db.Database, ownerID string) float64 {
	fallback := DefaultPlatformFeeRate
	if settings, err := database.GetAdminSettings(ctx); err == nil && settings != nil {
		fallback = settings.PlatformFeePercent / 100.0
	}
	owner, err := database.GetUserByID(ctx, ownerID)
	if err != nil || owner == nil || owner.CurrentPlanID == "" {
		return fallback
	}
	plan, err := database.GetPlan(ctx, owner.CurrentPlanID)
	if err != nil || plan == nil {
		return fallback
	}
	return plan.PlatformFeePercent / 100.0
}
