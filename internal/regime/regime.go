// Package regime implements the §4.9 regime detector: a cold-start
// rule path grounded on original_source's cold_start_regime_detector.py
// (SMA50/SMA200 cross, 30-day annualized volatility, 20-day momentum),
// blended with a memory-cluster vote from mcn.Store once enough
// samples have accumulated.
package regime

import (
	"context"
	"math"

	"brain-core/internal/indicators"
	"brain-core/internal/marketdata"
	"brain-core/internal/mcn"
)

// MinMemorySamples is the sample-count gate (K) below which the
// detector relies purely on cold-start rules.
const MinMemorySamples = 20

// Label is one of the five regimes spec.md §4.9 requires; the
// original's {bull_trend, bear_trend, high_vol, low_vol, ranging}
// collapse onto these per the mapping below.
type Label string

const (
	Momentum  Label = "momentum"
	RiskOff   Label = "risk_off"
	RiskOn    Label = "risk_on"
	Volatility Label = "volatility"
	Neutral   Label = "neutral"
)

// RiskLevel is the coarse risk banding attached to a Result.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskNormal RiskLevel = "normal"
	RiskHigh   RiskLevel = "high"
)

// Features captures the raw indicator readings a Result was derived
// from, exposed for the Brain Assembler's Explanation (§4.12).
type Features struct {
	SMA50     float64
	SMA200    float64
	Momentum  float64
	Volatility float64
}

// Result is the public return contract of §4.9: on any internal
// failure it always collapses to {neutral, 0.3, ...}, never an error.
type Result struct {
	Regime         Label
	Confidence     float64
	Volatility     *float64
	RiskLevel      RiskLevel
	MemorySamples  int
	RegimeFeatures Features
}

func fallback() Result {
	return Result{Regime: Neutral, Confidence: 0.3, RiskLevel: RiskNormal}
}

// Detector runs the cold-start rule classifier and, once the memory
// store has enough samples, blends in a similarity-weighted vote.
type Detector struct {
	Router *marketdata.Router
	Memory *mcn.Store
}

func NewDetector(router *marketdata.Router, memory *mcn.Store) *Detector {
	return &Detector{Router: router, Memory: memory}
}

// Detect classifies symbol's current regime. It never returns an
// error: any failure to fetch candles or compute indicators collapses
// to the neutral fallback per §4.9.
func (d *Detector) Detect(ctx context.Context, symbol string) Result {
	candles := d.Router.GetCandlesOrEmpty(ctx, symbol, "1d", 250, marketdata.IntentHistorical)
	if len(candles) < 50 {
		return fallback()
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	sma50 := indicators.SMA(closes, 50)
	sma200 := indicators.SMA(closes, 200)

	vol := annualizedVolatility(closes)
	mom := momentum(closes)

	result := classify(sma50, sma200, vol, mom)
	result.MemorySamples = 0
	if d.Memory != nil {
		n := d.Memory.Len()
		result.MemorySamples = n
		if n >= MinMemorySamples {
			result = blendWithMemory(result, d.Memory, closes)
		}
	}
	return result
}

func annualizedVolatility(closes []float64) *float64 {
	if len(closes) < 31 {
		return nil
	}
	returns := make([]float64, 0, 30)
	start := len(closes) - 30
	for i := start; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		returns = append(returns, (closes[i]-closes[i-1])/closes[i-1])
	}
	if len(returns) == 0 {
		return nil
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	var sumSq float64
	for _, r := range returns {
		sumSq += (r - mean) * (r - mean)
	}
	stdev := math.Sqrt(sumSq / float64(len(returns)))
	v := stdev * math.Sqrt(252) * 100
	return &v
}

func momentum(closes []float64) float64 {
	if len(closes) < 20 {
		return 0
	}
	prior := closes[len(closes)-20]
	if prior == 0 {
		return 0
	}
	return ((closes[len(closes)-1] - prior) / prior) * 100
}

// classify applies the original's rule ladder: volatility regime
// first (from computed annualized volatility; no VIX proxy symbol is
// wired in this deployment), then trend override, then ranging
// override, re-labeled onto spec.md's five-value set.
func classify(sma50, sma200 []float64, vol *float64, mom float64) Result {
	var (
		raw        string
		confidence float64
		riskLevel  RiskLevel = RiskNormal
	)

	switch {
	case vol != nil && *vol > 30:
		raw, confidence, riskLevel = "high_vol", 0.75, RiskHigh
	case vol != nil && *vol < 15:
		raw, confidence, riskLevel = "low_vol", 0.70, RiskLow
	case vol != nil:
		raw, confidence, riskLevel = "neutral", 0.50, RiskNormal
	default:
		raw, confidence, riskLevel = "neutral", 0.40, RiskNormal
	}

	if len(sma50) > 0 && len(sma200) > 0 {
		sma50Now, sma200Now := sma50[len(sma50)-1], sma200[len(sma200)-1]
		sma50Slope := slopePct(sma50)
		sma200Slope := slopePct(sma200)

		switch {
		case sma50Now > sma200Now && sma50Slope > 0 && mom > 2:
			switch raw {
			case "high_vol":
				raw, confidence = "bull_trend", math.Min(0.9, confidence+0.2)
			case "low_vol":
				raw, confidence = "bull_trend", math.Min(0.95, confidence+0.3)
			default:
				raw, confidence = "bull_trend", math.Min(0.85, confidence+0.15)
			}
		case sma50Now < sma200Now && sma50Slope < 0 && mom < -2:
			switch raw {
			case "high_vol":
				raw, confidence, riskLevel = "bear_trend", math.Min(0.9, confidence+0.2), RiskHigh
			case "low_vol":
				raw, confidence = "bear_trend", math.Min(0.85, confidence+0.15)
			default:
				raw, confidence = "bear_trend", math.Min(0.8, confidence+0.1)
			}
		}

		if math.Abs(mom) < 1.0 && sma200Now != 0 {
			diffPct := math.Abs(sma50Now-sma200Now) / sma200Now * 100
			if diffPct < 2.0 {
				raw, confidence, riskLevel = "ranging", 0.7, RiskNormal
			}
		}
	}

	features := Features{Momentum: mom}
	if len(sma50) > 0 {
		features.SMA50 = sma50[len(sma50)-1]
	}
	if len(sma200) > 0 {
		features.SMA200 = sma200[len(sma200)-1]
	}
	if vol != nil {
		features.Volatility = *vol
	}

	return Result{
		Regime:         normalize(raw),
		Confidence:     clamp01(confidence),
		Volatility:     vol,
		RiskLevel:      riskLevel,
		RegimeFeatures: features,
	}
}

func slopePct(series []float64) float64 {
	if len(series) < 2 {
		return 0
	}
	prev := series[len(series)-2]
	if prev == 0 {
		return 0
	}
	return ((series[len(series)-1] - prev) / prev) * 100
}

func normalize(raw string) Label {
	switch raw {
	case "bull_trend":
		return Momentum
	case "bear_trend":
		return RiskOff
	case "high_vol":
		return Volatility
	case "low_vol":
		return RiskOn
	case "ranging":
		return Neutral
	default:
		return Neutral
	}
}

// blendWithMemory queries the memory store with an embedding of the
// recent closes and re-weights the cold-start label by
// similarity-weighted votes, per §4.9's "aggregate by similarity-
// weighted votes" once the sample gate is met.
func blendWithMemory(coldStart Result, store *mcn.Store, closes []float64) Result {
	query := embed(closes)
	matches, err := store.Search(query, 10)
	if err != nil || len(matches) == 0 {
		return coldStart
	}

	votes := map[Label]float64{coldStart.Regime: 0.5} // cold-start gets a base weight
	var total float64 = 0.5
	for _, m := range matches {
		if m.Score <= 0 {
			continue
		}
		votes[Label(m.Record.Label)] += m.Score
		total += m.Score
	}
	if total == 0 {
		return coldStart
	}

	var best Label
	var bestWeight float64
	for l, w := range votes {
		if w > bestWeight {
			best, bestWeight = l, w
		}
	}

	result := coldStart
	result.Regime = best
	result.Confidence = clamp01(bestWeight / total)
	return result
}

// embed produces a fixed-length feature vector from recent returns,
// coerced to mcn.Dim by mcn's own fix_dim step on insert/search.
func embed(closes []float64) []float32 {
	n := mcn.Dim
	if len(closes) < n+1 {
		n = len(closes) - 1
	}
	if n <= 0 {
		return nil
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		idx := len(closes) - n + i
		if closes[idx-1] == 0 {
			continue
		}
		out[i] = float32((closes[idx] - closes[idx-1]) / closes[idx-1])
	}
	return out
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
