package api

import (
	"net/http"
	"time"

	"brain-core/internal/apperr"
	"brain-core/internal/db"

	"github.com/gin-gonic/gin"
)

// myRoyalties lists the authenticated creator's unpaid royalty ledger
// rows plus a running total.
func (s *Server) myRoyalties(c *gin.Context) {
	rows, err := s.App.DB.ListUnpaidRoyaltiesForCreator(c.Request.Context(), CurrentUserID(c))
	if err != nil {
		writeErr(c, apperr.Wrap(apperr.Internal, "list royalties", err))
		return
	}
	out := make([]gin.H, 0, len(rows))
	var totalNet float64
	for _, r := range rows {
		out = append(out, royaltyDTO(r))
		totalNet += r.NetAmount
	}
	c.JSON(http.StatusOK, gin.H{"royalties": out, "summary": gin.H{"count": len(out), "total_net": totalNet}})
}

// myBillingStatus reports the authenticated creator's current
// grace/lock state and outstanding balance, matching §6/§8 scenario
// S5's "payment_status.should_lock" contract.
func (s *Server) myBillingStatus(c *gin.Context) {
	ctx := c.Request.Context()
	userID := CurrentUserID(c)
	state, err := s.App.DB.GetBillingState(ctx, userID)
	if err != nil {
		writeErr(c, apperr.Wrap(apperr.Internal, "get billing state", err))
		return
	}
	rows, err := s.App.DB.ListUnpaidRoyaltiesForCreator(ctx, userID)
	if err != nil {
		writeErr(c, apperr.Wrap(apperr.Internal, "list royalties", err))
		return
	}
	var outstanding float64
	for _, r := range rows {
		outstanding += r.NetAmount
	}
	c.JSON(http.StatusOK, gin.H{
		"lock_state":           state.LockState,
		"should_lock":          state.LockState == "hard",
		"outstanding_amount":   outstanding,
		"consecutive_successful_months": state.ConsecutiveSuccessfulMonths,
		"delayed_months":       state.DelayedMonths,
	})
}

func royaltyDTO(r *db.RoyaltyLedger) gin.H {
	return gin.H{
		"id":            r.ID,
		"strategy_id":   r.StrategyID,
		"trade_id":      r.TradeID,
		"royalty_amount": r.RoyaltyAmount,
		"royalty_rate":  r.RoyaltyRate,
		"platform_fee":  r.PlatformFee,
		"net_amount":    r.NetAmount,
		"trade_profit":  r.TradeProfit,
		"paid":          r.Paid,
		"created_at":    r.CreatedAt.Format(time.RFC3339),
	}
}
