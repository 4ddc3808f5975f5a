package api

import (
	"net/http"
	"time"

	"brain-core/internal/apperr"
	"brain-core/internal/db"

	"github.com/gin-gonic/gin"
)

// createTrade opens a PAPER trade for the authenticated user. Mode is
// always PAPER per §6 ("Trades: create (PAPER only)"); live order
// routing is out of this repository's scope.
func (s *Server) createTrade(c *gin.Context) {
	var req struct {
		Symbol     string  `json:"symbol"`
		AssetType  string  `json:"asset_type"`
		Side       string  `json:"side"`
		Quantity   float64 `json:"quantity"`
		StrategyID *string `json:"strategy_id"`
		Source     string  `json:"source"`
	}
	if err := c.BindJSON(&req); err != nil || req.Symbol == "" || req.Quantity <= 0 {
		writeErr(c, apperr.New(apperr.Validation, "symbol and a positive quantity are required"))
		return
	}
	if req.Side != "BUY" && req.Side != "SELL" {
		writeErr(c, apperr.New(apperr.Validation, "side must be BUY or SELL"))
		return
	}
	if req.Source == "" {
		req.Source = "manual"
	}

	userID := CurrentUserID(c)
	ctx := c.Request.Context()

	state, err := s.App.DB.GetBillingState(ctx, userID)
	if err == nil && state.LockState == "hard" {
		writeErr(c, apperr.New(apperr.Policy, "account locked pending royalty payment"))
		return
	}

	trade, err := s.App.OpenPaperTrade(ctx, userID, req.Symbol, req.AssetType, req.Side, req.Quantity, req.StrategyID, req.Source)
	if err != nil {
		writeErr(c, apperr.Wrap(apperr.Internal, "open trade", err))
		return
	}
	c.JSON(http.StatusCreated, tradeDTO(trade))
}

// closeTrade closes every open position the user holds in a symbol.
func (s *Server) closeTrade(c *gin.Context) {
	var req struct {
		Symbol string `json:"symbol"`
	}
	if err := c.BindJSON(&req); err != nil || req.Symbol == "" {
		writeErr(c, apperr.New(apperr.Validation, "symbol is required"))
		return
	}
	trades, err := s.App.ClosePaperTrade(c.Request.Context(), CurrentUserID(c), req.Symbol)
	if err != nil {
		writeErr(c, apperr.Wrap(apperr.Internal, "close trade", err))
		return
	}
	out := make([]gin.H, 0, len(trades))
	for _, t := range trades {
		out = append(out, tradeDTO(t))
	}
	c.JSON(http.StatusOK, gin.H{"trades": out})
}

// listTrades lists the authenticated user's trades, optionally
// filtered by status/mode query parameters.
func (s *Server) listTrades(c *gin.Context) {
	trades, err := s.App.DB.ListTradesByUser(c.Request.Context(), CurrentUserID(c), c.Query("status"), c.Query("mode"))
	if err != nil {
		writeErr(c, apperr.Wrap(apperr.Internal, "list trades", err))
		return
	}
	out := make([]gin.H, 0, len(trades))
	var totalPnL float64
	for _, t := range trades {
		out = append(out, tradeDTO(t))
		if t.RealizedPnL != nil {
			totalPnL += *t.RealizedPnL
		}
	}
	c.JSON(http.StatusOK, gin.H{"trades": out, "summary": gin.H{"count": len(out), "total_realized_pnl": totalPnL}})
}

func tradeDTO(t *db.Trade) gin.H {
	dto := gin.H{
		"id":          t.ID,
		"symbol":      t.Symbol,
		"asset_type":  t.AssetType,
		"side":        t.Side,
		"quantity":    t.Quantity,
		"entry_price": t.EntryPrice,
		"status":      t.Status,
		"mode":        t.Mode,
		"source":      t.Source,
		"strategy_id": t.StrategyID,
		"opened_at":   t.OpenedAt.Format(time.RFC3339),
	}
	if t.ExitPrice != nil {
		dto["exit_price"] = *t.ExitPrice
	}
	if t.ClosedAt != nil {
		dto["closed_at"] = t.ClosedAt.Format(time.RFC3339)
	}
	if t.RealizedPnL != nil {
		dto["realized_pnl"] = *t.RealizedPnL
	}
	return dto
}
