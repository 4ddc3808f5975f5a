package api

import (
	"net/http"
	"strconv"

	"brain-core/internal/apperr"
	"brain-core/internal/marketdata"

	"github.com/gin-gonic/gin"
)

func (s *Server) getMarketPrice(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		writeErr(c, apperr.New(apperr.Validation, "symbol query parameter is required"))
		return
	}
	result, err := s.App.Router.GetPrice(c.Request.Context(), symbol)
	if err != nil {
		writeErr(c, apperr.Wrap(apperr.UpstreamTransient, "no provider available", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":     result.Snapshot.Symbol,
		"price":      result.Snapshot.Price,
		"change_pct": result.Snapshot.ChangePct,
		"volume":     result.Snapshot.Volume,
		"provider":   result.Provider,
		"timestamp":  result.Snapshot.Timestamp,
	})
}

func (s *Server) getMarketCandles(c *gin.Context) {
	symbol := c.Query("symbol")
	interval := c.DefaultQuery("interval", "1h")
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "200"))
	if err != nil || limit <= 0 {
		limit = 200
	}
	if symbol == "" {
		writeErr(c, apperr.New(apperr.Validation, "symbol query parameter is required"))
		return
	}
	candles := s.App.Router.GetCandlesOrEmpty(c.Request.Context(), symbol, interval, limit, candleIntent(c.Query("intent")))
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "interval": interval, "candles": candles})
}

// getMarketRegime exposes the §4.9 regime detector directly, used by
// the UI's "market overview" panel independent of any strategy.
func (s *Server) getMarketRegime(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		writeErr(c, apperr.New(apperr.Validation, "symbol query parameter is required"))
		return
	}
	result := s.App.DetectRegime(c.Request.Context(), symbol)
	c.JSON(http.StatusOK, gin.H{
		"symbol":         symbol,
		"regime":         result.Regime,
		"confidence":     result.Confidence,
		"volatility":     result.Volatility,
		"risk_level":     result.RiskLevel,
		"memory_samples": result.MemorySamples,
	})
}

func candleIntent(v string) marketdata.Intent {
	if v == "historical" {
		return marketdata.IntentHistorical
	}
	return marketdata.IntentLive
}
