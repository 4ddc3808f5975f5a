package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"brain-core/internal/apperr"
	"brain-core/internal/brain"
	"brain-core/internal/db"
	"brain-core/internal/ruleset"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// createStrategy validates the submitted ruleset DSL document and
// inserts a new strategy in the "experiment" status (§3's starting
// point for the evolution ladder).
func (s *Server) createStrategy(c *gin.Context) {
	var req struct {
		Name       string `json:"name"`
		AssetType  string `json:"asset_type"`
		Parameters string `json:"parameters"`
		Ruleset    json.RawMessage `json:"ruleset"`
	}
	if err := c.BindJSON(&req); err != nil || req.Name == "" || len(req.Ruleset) == 0 {
		writeErr(c, apperr.New(apperr.Validation, "name and ruleset are required"))
		return
	}
	if _, err := ruleset.Parse(req.Ruleset); err != nil {
		writeErr(c, apperr.Wrap(apperr.Validation, "invalid ruleset", err))
		return
	}

	now := time.Now().UTC()
	strategy := &db.Strategy{
		ID:         uuid.NewString(),
		OwnerID:    CurrentUserID(c),
		Name:       req.Name,
		Parameters: req.Parameters,
		Ruleset:    string(req.Ruleset),
		AssetType:  req.AssetType,
		Status:     "experiment",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.App.DB.InsertStrategy(c.Request.Context(), strategy); err != nil {
		writeErr(c, apperr.Wrap(apperr.Internal, "create strategy", err))
		return
	}
	c.JSON(http.StatusCreated, strategyDTO(strategy))
}

func (s *Server) listStrategies(c *gin.Context) {
	strategies, err := s.App.DB.ListActiveStrategies(c.Request.Context())
	if err != nil {
		writeErr(c, apperr.Wrap(apperr.Internal, "list strategies", err))
		return
	}
	out := make([]gin.H, 0, len(strategies))
	for _, st := range strategies {
		out = append(out, strategyDTO(st))
	}
	c.JSON(http.StatusOK, gin.H{"strategies": out})
}

func (s *Server) getStrategy(c *gin.Context) {
	strategy, err := s.App.DB.GetStrategy(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeErr(c, apperr.New(apperr.NotFound, "strategy not found"))
			return
		}
		writeErr(c, apperr.Wrap(apperr.Internal, "get strategy", err))
		return
	}
	c.JSON(http.StatusOK, strategyDTO(strategy))
}

// getStrategySignal runs the Brain assembler (§4.12) for the current
// user against the given symbol query parameter.
func (s *Server) getStrategySignal(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		writeErr(c, apperr.New(apperr.Validation, "symbol query parameter is required"))
		return
	}
	sig, err := s.App.GetSignal(c.Request.Context(), c.Param("id"), CurrentUserID(c), symbol)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeErr(c, apperr.New(apperr.NotFound, "strategy not found"))
			return
		}
		writeErr(c, apperr.Wrap(apperr.Internal, "compute signal", err))
		return
	}
	c.JSON(http.StatusOK, signalDTO(sig))
}

func strategyDTO(st *db.Strategy) gin.H {
	return gin.H{
		"id":                 st.ID,
		"owner_id":           st.OwnerID,
		"name":               st.Name,
		"asset_type":         st.AssetType,
		"score":              st.Score,
		"status":             st.Status,
		"is_proposable":      st.IsProposable(),
		"evolution_attempts": st.EvolutionAttempts,
		"created_at":         st.CreatedAt.Format(time.RFC3339),
		"updated_at":         st.UpdatedAt.Format(time.RFC3339),
	}
}

func signalDTO(sig *brain.Signal) gin.H {
	explanation := make([]gin.H, 0, len(sig.Explanation))
	for _, f := range sig.Explanation {
		explanation = append(explanation, gin.H{
			"name": f.Name, "value": f.Value, "weight": f.Weight, "impact": f.Impact,
		})
	}
	return gin.H{
		"side":         sig.Side,
		"symbol":       sig.Symbol,
		"entry":        sig.Entry,
		"stop_loss":    sig.StopLoss,
		"take_profit":  sig.TakeProfit,
		"confidence":   sig.Confidence,
		"refused":      sig.Refused,
		"refusal_code": sig.RefusalCode,
		"reasoning":    sig.Reasoning,
		"explanation":  explanation,
		"lineage": gin.H{
			"ancestor_count": sig.Lineage.AncestorCount,
			"stable":         sig.Lineage.Stable,
			"overfit":        sig.Lineage.Overfit,
		},
		"regime": gin.H{
			"regime":         sig.Regime.Regime,
			"confidence":     sig.Regime.Confidence,
			"risk_level":     sig.Regime.RiskLevel,
			"memory_samples": sig.Regime.MemorySamples,
		},
	}
}
