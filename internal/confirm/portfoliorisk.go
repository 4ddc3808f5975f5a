package confirm

import "brain-core/internal/db"

// PortfolioRiskConfig mirrors the reference service's RiskConfig
// shape (named thresholds, soft-limit warning bands) generalized from
// exchange-order limits to signal-confirmation limits (§4.11).
type PortfolioRiskConfig struct {
	MaxSymbolExposure  float64 // fraction of portfolio, e.g. 0.20
	MaxSectorExposure  float64 // e.g. 0.40
	MaxCorrelatedCount int
	MaxLeverage        float64
	WarningThreshold   float64 // 0.8 = 80% of a limit starts dampening
}

func DefaultPortfolioRiskConfig() PortfolioRiskConfig {
	return PortfolioRiskConfig{
		MaxSymbolExposure:  0.20,
		MaxSectorExposure:  0.40,
		MaxCorrelatedCount: 3,
		MaxLeverage:        1.0,
		WarningThreshold:   0.8,
	}
}

// PortfolioRiskDecision mirrors the reference service's RiskDecision
// (allow/deny plus a confidence-dampening multiplier).
type PortfolioRiskDecision struct {
	Allowed           bool
	Reason            string
	ConfidenceMult    float64 // 1.0 = no dampening, 0 = fully denied
	SymbolExposure    float64
	SectorExposure    float64
	CorrelatedCount   int
	Leverage          float64
}

// PortfolioRisk evaluates a proposed trade in symbol/sector against
// the user's existing open exposure (§4.11). From 80% of any limit the
// confidence multiplier is dampened; beyond 100% the trade is denied.
func PortfolioRisk(cfg PortfolioRiskConfig, openTrades []*db.Trade, sectorOf map[string]string, symbol string, proposedNotional, accountEquity, leverage float64, correlatedCount int) PortfolioRiskDecision {
	if accountEquity <= 0 {
		return PortfolioRiskDecision{Allowed: false, Reason: "no account equity"}
	}

	symbolExposure := exposureFor(openTrades, accountEquity, func(t *db.Trade) bool { return t.Symbol == symbol })
	symbolExposure += proposedNotional / accountEquity

	sector := sectorOf[symbol]
	sectorExposure := exposureFor(openTrades, accountEquity, func(t *db.Trade) bool { return sectorOf[t.Symbol] == sector && sector != "" })
	sectorExposure += proposedNotional / accountEquity

	decision := PortfolioRiskDecision{
		Allowed:         true,
		ConfidenceMult:  1.0,
		SymbolExposure:  symbolExposure,
		SectorExposure:  sectorExposure,
		CorrelatedCount: correlatedCount,
		Leverage:        leverage,
	}

	checks := []struct {
		ratio float64
		limit float64
		name  string
	}{
		{symbolExposure, cfg.MaxSymbolExposure, "symbol exposure"},
		{sectorExposure, cfg.MaxSectorExposure, "sector exposure"},
		{float64(correlatedCount), float64(cfg.MaxCorrelatedCount), "correlated position count"},
		{leverage, cfg.MaxLeverage, "leverage"},
	}

	for _, c := range checks {
		if c.limit <= 0 {
			continue
		}
		usage := c.ratio / c.limit
		if usage > 1.0 {
			decision.Allowed = false
			decision.ConfidenceMult = 0
			decision.Reason = c.name + " limit exceeded"
			return decision
		}
		if usage >= cfg.WarningThreshold {
			dampen := 1.0 - (usage-cfg.WarningThreshold)/(1.0-cfg.WarningThreshold)*0.5
			if dampen < decision.ConfidenceMult {
				decision.ConfidenceMult = dampen
			}
			if decision.Reason == "" {
				decision.Reason = c.name + " near limit"
			}
		}
	}

	return decision
}

func exposureFor(trades []*db.Trade, equity float64, match func(*db.Trade) bool) float64 {
	var sum float64
	for _, t := range trades {
		if t.Status == "OPEN" && match(t) {
			sum += t.Quantity * t.EntryPrice
		}
	}
	if equity == 0 {
		return 0
	}
	return sum / equity
}
