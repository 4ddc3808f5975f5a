package api

import (
	"net/http"

	"brain-core/internal/apperr"
	"brain-core/internal/db"

	"github.com/gin-gonic/gin"
)

// getAdminSettings returns the platform's singleton fee/grace
// configuration row (§4.14).
func (s *Server) getAdminSettings(c *gin.Context) {
	settings, err := s.App.DB.GetAdminSettings(c.Request.Context())
	if err != nil {
		writeErr(c, apperr.Wrap(apperr.Internal, "get admin settings", err))
		return
	}
	c.JSON(http.StatusOK, settingsDTO(settings))
}

// updateAdminSettings overwrites the platform fee schedule.
func (s *Server) updateAdminSettings(c *gin.Context) {
	var req struct {
		PlatformFeePercent        float64 `json:"platform_fee_percent"`
		CreatorPlatformFeePercent float64 `json:"creator_platform_fee_percent"`
		PnLFeeThreshold           float64 `json:"pnl_fee_threshold"`
		GraceMonths               int     `json:"grace_months"`
	}
	if err := c.BindJSON(&req); err != nil {
		writeErr(c, apperr.New(apperr.Validation, "invalid settings payload"))
		return
	}
	settings := &db.AdminSettings{
		PlatformFeePercent:        req.PlatformFeePercent,
		CreatorPlatformFeePercent: req.CreatorPlatformFeePercent,
		PnLFeeThreshold:           req.PnLFeeThreshold,
		GraceMonths:               req.GraceMonths,
	}
	if err := s.App.DB.UpdateAdminSettings(c.Request.Context(), settings); err != nil {
		writeErr(c, apperr.Wrap(apperr.Internal, "update admin settings", err))
		return
	}
	c.JSON(http.StatusOK, settingsDTO(settings))
}

// getMetricsSummary exposes a lightweight JSON view of the same
// counters the Prometheus registry tracks, for the admin dashboard
// (§9's supplemented admin metrics-summary feature).
func (s *Server) getMetricsSummary(c *gin.Context) {
	snap := s.Metrics.GetSnapshot()
	c.JSON(http.StatusOK, gin.H{
		"api_requests":       snap.APIRequests,
		"api_errors":         snap.APIErrors,
		"signals_generated":  snap.SignalsGenerated,
		"trades_opened":      snap.TradesOpened,
		"trades_closed":      snap.TradesClosed,
		"royalties_recorded": snap.RoyaltiesRecorded,
		"errors":             snap.ErrorsCount,
		"goroutines":         snap.GoroutineCount,
		"heap_alloc_bytes":   snap.HeapAlloc,
		"api_latency_ms": gin.H{
			"p50": snap.APILatency.P50, "p95": snap.APILatency.P95, "p99": snap.APILatency.P99,
		},
		"timestamp": snap.Timestamp,
	})
}

// adminListRoyalties lists every creator with an outstanding royalty
// balance, for the admin payouts queue.
func (s *Server) adminListRoyalties(c *gin.Context) {
	ctx := c.Request.Context()
	creatorIDs, err := s.App.DB.ListCreatorsWithUnpaidRoyalties(ctx)
	if err != nil {
		writeErr(c, apperr.Wrap(apperr.Internal, "list creators", err))
		return
	}
	out := make([]gin.H, 0, len(creatorIDs))
	for _, id := range creatorIDs {
		rows, err := s.App.DB.ListUnpaidRoyaltiesForCreator(ctx, id)
		if err != nil {
			writeErr(c, apperr.Wrap(apperr.Internal, "list royalties", err))
			return
		}
		var total float64
		for _, r := range rows {
			total += r.NetAmount
		}
		out = append(out, gin.H{"creator_id": id, "outstanding_amount": total, "unpaid_count": len(rows)})
	}
	c.JSON(http.StatusOK, gin.H{"creators": out})
}

// adminOverrideRoyalty sets or clears a creator's royalty percentage
// override, bypassing the default royalty.RateFor schedule.
func (s *Server) adminOverrideRoyalty(c *gin.Context) {
	var req struct {
		PercentOverride *float64 `json:"percent_override"`
	}
	if err := c.BindJSON(&req); err != nil {
		writeErr(c, apperr.New(apperr.Validation, "invalid override payload"))
		return
	}
	if err := s.App.DB.UpdateUserRoyaltyOverride(c.Request.Context(), c.Param("id"), req.PercentOverride); err != nil {
		writeErr(c, apperr.Wrap(apperr.Internal, "override royalty", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": c.Param("id"), "percent_override": req.PercentOverride})
}

// adminRunBilling triggers an out-of-schedule billing cycle run
// across every creator, used to test or recover from a missed
// scheduled run.
func (s *Server) adminRunBilling(c *gin.Context) {
	if err := s.App.RunBillingCycleNow(); err != nil {
		writeErr(c, apperr.Wrap(apperr.Internal, "run billing cycle", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "completed"})
}

func settingsDTO(s *db.AdminSettings) gin.H {
	return gin.H{
		"platform_fee_percent":         s.PlatformFeePercent,
		"creator_platform_fee_percent": s.CreatorPlatformFeePercent,
		"pnl_fee_threshold":            s.PnLFeeThreshold,
		"grace_months":                 s.GraceMonths,
	}
}
