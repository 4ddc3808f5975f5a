// Package brain implements §4.12: the Assembler orchestration root,
// composing the provider router (C3), strategy engine (C4/C5),
// regime detector (C9), confirmation/risk (C11), and MCN lineage
// lookup (C10) into one calibrated Signal per request. Mirrors the
// orchestration shape of the reference service's internal/strategy.Engine
// — a coordinator holding references to its collaborators and driving
// a fixed pipeline — generalized here from a per-tick strategy loop
// to a per-request signal pipeline.
package brain

import (
	"context"
	"encoding/json"
	"fmt"

	"brain-core/internal/backtest"
	"brain-core/internal/confirm"
	"brain-core/internal/db"
	"brain-core/internal/marketdata"
	"brain-core/internal/regime"
	"brain-core/internal/ruleset"
)

// MinSignalConfidence is §4.12's refusal floor.
const MinSignalConfidence = 0.35

// Side is the emitted signal's direction, or HOLD when conditions
// are unmet.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
	SideHold Side = "HOLD"
)

// Factor is one line of the Explanation (§4.12 step 7).
type Factor struct {
	Name   string
	Value  float64
	Weight float64
	Impact string // qualitative: "supports", "dampens", "neutral"
}

// LineageNote summarizes the strategy's ancestry for the Explanation.
type LineageNote struct {
	AncestorCount int
	Stable        bool
	Overfit       bool
}

// Signal is the Assembler's emitted decision.
type Signal struct {
	Side         Side
	Symbol       string
	Entry        float64
	StopLoss     *float64
	TakeProfit   *float64
	Confidence   float64
	Refused      bool
	RefusalCode  string // "low-confidence" | "portfolio-risk" | ""
	Explanation  []Factor
	Lineage      LineageNote
	Regime       regime.Result
	Reasoning    string // human-readable note for HOLD/refusal outcomes
}

// Assembler is the C12 orchestration root.
type Assembler struct {
	DB      *db.Database
	Router  *marketdata.Router
	Regime  *regime.Detector
	MTF     *confirm.MultiTimeframe
	PortfolioConfig confirm.PortfolioRiskConfig
}

func NewAssembler(database *db.Database, router *marketdata.Router, reg *regime.Detector) *Assembler {
	return &Assembler{
		DB:              database,
		Router:          router,
		Regime:          reg,
		MTF:             confirm.NewMultiTimeframe(router),
		PortfolioConfig: confirm.DefaultPortfolioRiskConfig(),
	}
}

// Signal runs the full §4.12 pipeline for one (strategy, user, symbol)
// request.
func (a *Assembler) Signal(ctx context.Context, strategyID, userID, symbol string) (*Signal, error) {
	strategy, err := a.DB.GetStrategy(ctx, strategyID)
	if err != nil {
		return nil, fmt.Errorf("brain: load strategy: %w", err)
	}
	rs, err := ruleset.Parse(json.RawMessage(strategy.Ruleset))
	if err != nil {
		return nil, fmt.Errorf("brain: parse ruleset: %w", err)
	}

	candles := a.Router.GetCandlesOrEmpty(ctx, symbol, rs.Timeframe, 200, marketdata.IntentLive)
	if len(candles) < 2 {
		return &Signal{Side: SideHold, Symbol: symbol, Refused: true, RefusalCode: "no-data", Reasoning: "Insufficient market data"}, nil
	}

	values := backtest.ComputeIndicatorValues(candles)
	lastIdx := len(candles) - 1
	conditionsMet := ruleset.Evaluate(rs.Conditions, values, lastIdx)
	if !conditionsMet {
		return &Signal{Side: SideHold, Symbol: symbol, Confidence: 0, Reasoning: "Entry conditions not met"}, nil
	}

	side := SideBuy
	entry := candles[lastIdx].Close
	if rs.Entry == "open" {
		entry = candles[lastIdx].Open
	}

	var atr *float64
	if series, ok := values["atr"]; ok && lastIdx < len(series) {
		v := series[lastIdx]
		atr = &v
	}
	exitPrices := ruleset.CalculateExitPrices(entry, string(side), rs.Exit, atr)

	strength := conditionStrength(rs, values, lastIdx)
	base := 0.7*strategy.Score + 0.3*strength

	regimeResult := a.Regime.Detect(ctx, symbol)
	mtfResult := a.MTF.Analyze(ctx, symbol)
	volResult := confirm.Volume(candles)

	trades, err := a.DB.ListTradesByUser(ctx, userID, "CLOSED", "")
	if err != nil {
		trades = nil
	}
	account, err := a.DB.EnsurePaperAccount(ctx, userID, 100000)
	var balance float64 = 100000
	if err == nil && account != nil {
		balance = account.Balance
	}
	userRiskResult := confirm.UserRisk(trades, balance)

	openTrades, err := a.DB.ListTradesByUser(ctx, userID, "OPEN", "")
	if err != nil {
		openTrades = nil
	}
	portfolioDecision := confirm.PortfolioRisk(a.PortfolioConfig, openTrades, map[string]string{symbol: ""}, symbol, entry, balance, 1.0, 0)

	regimeMult := regimeFitMultiplier(regimeResult, side)
	alignmentMult := mtfResult.AlignmentScore
	volumeMult := volumeMultiplier(volResult)
	riskTendencyMult := riskTendencyMultiplier(userRiskResult)
	portfolioMult := portfolioDecision.ConfidenceMult

	confidence := clamp01(base * regimeMult * alignmentMult * volumeMult * riskTendencyMult * portfolioMult)

	explanation := []Factor{
		{Name: "strategy_score", Value: strategy.Score, Weight: 0.7, Impact: impactOf(strategy.Score, 0.5)},
		{Name: "signal_strength", Value: strength, Weight: 0.3, Impact: impactOf(strength, 0.5)},
		{Name: "regime_fit", Value: regimeMult, Weight: 1, Impact: impactOf(regimeMult, 1)},
		{Name: "timeframe_alignment", Value: alignmentMult, Weight: 1, Impact: impactOf(alignmentMult, 0.5)},
		{Name: "volume_confirmation", Value: volumeMult, Weight: 1, Impact: impactOf(volumeMult, 0.7)},
		{Name: "risk_tendency_match", Value: riskTendencyMult, Weight: 1, Impact: impactOf(riskTendencyMult, 1)},
		{Name: "portfolio_risk", Value: portfolioMult, Weight: 1, Impact: impactOf(portfolioMult, 1)},
	}

	lineage := lineageNoteFor(ctx, a.DB, strategy)

	signal := &Signal{
		Side:        side,
		Symbol:      symbol,
		Entry:       entry,
		StopLoss:    exitPrices.StopLoss,
		TakeProfit:  exitPrices.TakeProfit,
		Confidence:  confidence,
		Explanation: explanation,
		Lineage:     lineage,
		Regime:      regimeResult,
	}

	if !portfolioDecision.Allowed {
		signal.Side = SideHold
		signal.Refused = true
		signal.RefusalCode = "portfolio-risk"
		signal.Reasoning = "Portfolio risk limit reached"
		return signal, nil
	}
	if confidence < MinSignalConfidence {
		signal.Side = SideHold
		signal.Refused = true
		signal.RefusalCode = "low-confidence"
		signal.Reasoning = "Signal confidence below minimum threshold"
		return signal, nil
	}

	return signal, nil
}

// conditionStrength is the mean of per-condition normalized
// distance-to-threshold across indicator nodes, mapped into [0,1]
// (§4.12 step 4).
func conditionStrength(rs *ruleset.Ruleset, values ruleset.IndicatorValues, index int) float64 {
	var total float64
	var n int
	var walk func(nodes []ruleset.Node)
	walk = func(nodes []ruleset.Node) {
		for _, node := range nodes {
			switch node.Kind {
			case ruleset.NodeIndicator:
				if node.Value == nil {
					continue
				}
				key := ruleset.IndicatorKey(node.Indicator, node.Length)
				series, ok := values[key]
				if !ok || index >= len(series) {
					continue
				}
				total += distanceScore(series[index], *node.Value)
				n++
			case ruleset.NodeGroup:
				walk(node.Group)
			}
		}
	}
	walk(rs.Conditions)
	if n == 0 {
		return 0.5
	}
	return clamp01(total / float64(n))
}

func distanceScore(current, threshold float64) float64 {
	denom := threshold
	if denom == 0 {
		denom = 1
	}
	d := (current - threshold) / denom
	if d < 0 {
		d = -d
	}
	return clamp01(d)
}

func regimeFitMultiplier(r regime.Result, side Side) float64 {
	switch r.Regime {
	case regime.Momentum:
		if side == SideBuy {
			return 1.0
		}
		return 0.7
	case regime.RiskOff:
		return 0.6
	case regime.RiskOn:
		return 0.95
	case regime.Volatility:
		return 0.75
	default:
		return 0.85
	}
}

func volumeMultiplier(v confirm.VolumeResult) float64 {
	switch v.Recommendation {
	case confirm.RecommendConfirm:
		return 0.9 + 0.1*v.Strength
	case confirm.RecommendCaution:
		return 0.6
	default:
		return 0.3
	}
}

func riskTendencyMultiplier(u confirm.UserRiskResult) float64 {
	if u.InsufficientData {
		return 0.9
	}
	return 0.8 + 0.2*u.Confidence
}

func impactOf(value, neutral float64) string {
	switch {
	case value > neutral:
		return "supports"
	case value < neutral:
		return "dampens"
	default:
		return "neutral"
	}
}

func lineageNoteFor(ctx context.Context, database *db.Database, strategy *db.Strategy) LineageNote {
	count := 0
	current := strategy.ID
	for {
		parent, err := database.ParentOf(ctx, current)
		if err != nil {
			break
		}
		count++
		current = parent.ParentID
		if count > 50 {
			break // guard against an accidental cycle in malformed data
		}
	}
	return LineageNote{
		AncestorCount: count,
		Stable:        strategy.Status == "proposable",
		Overfit:       false,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
