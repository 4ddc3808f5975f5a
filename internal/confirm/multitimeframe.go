// Package confirm implements the §4.11 confirmation and admission
// controls: multi-timeframe trend, volume confirmation, user risk
// profiling, and portfolio risk. UserRisk/PortfolioRisk follow the
// shape of the reference service's internal/risk package
// (RiskConfig/RiskDecision/QuickCheck — a config struct, a decision
// struct carrying allow/deny plus a multiplier, and threshold
// constants), generalized from exchange-order limits to
// signal-confirmation limits.
package confirm

import (
	"context"

	"brain-core/internal/indicators"
	"brain-core/internal/marketdata"
)

// Trend is the per-timeframe direction classification.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendFlat Trend = "flat"
)

// Timeframes is the fixed six-timeframe ladder §4.11 requires.
var Timeframes = []string{"1m", "5m", "15m", "1h", "4h", "1d"}

// TimeframeReading is one timeframe's EMA12/EMA26 alignment classification.
type TimeframeReading struct {
	Timeframe string
	Trend     Trend
	EMA12     float64
	EMA26     float64
}

// MultiTimeframeResult groups readings into short/medium/long buckets
// and scores overall alignment.
type MultiTimeframeResult struct {
	Readings       []TimeframeReading
	Short          []TimeframeReading // 1m, 5m
	Medium         []TimeframeReading // 15m, 1h
	Long           []TimeframeReading // 4h, 1d
	AlignmentScore float64
}

// MultiTimeframe analyzes the six fixed timeframes for symbol via
// router, classifying each by EMA12/EMA26 alignment and slope.
type MultiTimeframe struct {
	Router *marketdata.Router
}

func NewMultiTimeframe(router *marketdata.Router) *MultiTimeframe {
	return &MultiTimeframe{Router: router}
}

func (m *MultiTimeframe) Analyze(ctx context.Context, symbol string) MultiTimeframeResult {
	var result MultiTimeframeResult
	for _, tf := range Timeframes {
		candles := m.Router.GetCandlesOrEmpty(ctx, symbol, tf, 60, marketdata.IntentLive)
		reading := TimeframeReading{Timeframe: tf, Trend: TrendFlat}
		if len(candles) >= 26 {
			closes := make([]float64, len(candles))
			for i, c := range candles {
				closes[i] = c.Close
			}
			ema12 := indicators.EMA(closes, 12)
			ema26 := indicators.EMA(closes, 26)
			if len(ema12) > 0 && len(ema26) > 0 {
				reading.EMA12 = ema12[len(ema12)-1]
				reading.EMA26 = ema26[len(ema26)-1]
				reading.Trend = classifyTrend(ema12, ema26)
			}
		}
		result.Readings = append(result.Readings, reading)
		switch tf {
		case "1m", "5m":
			result.Short = append(result.Short, reading)
		case "15m", "1h":
			result.Medium = append(result.Medium, reading)
		case "4h", "1d":
			result.Long = append(result.Long, reading)
		}
	}
	result.AlignmentScore = alignmentScore(result.Readings)
	return result
}

// classifyTrend reports up when EMA12 sits above EMA26 and is still
// rising relative to the prior bar, down for the mirror case, flat
// otherwise — the alignment-plus-slope rule of §4.11.
func classifyTrend(ema12, ema26 []float64) Trend {
	n12, n26 := len(ema12), len(ema26)
	cur12, cur26 := ema12[n12-1], ema26[n26-1]
	var slope12 float64
	if n12 >= 2 {
		slope12 = cur12 - ema12[n12-2]
	}
	switch {
	case cur12 > cur26 && slope12 > 0:
		return TrendUp
	case cur12 < cur26 && slope12 < 0:
		return TrendDown
	default:
		return TrendFlat
	}
}

// alignmentScore implements §4.11's formula: 1.0 if all non-flat
// readings agree, 0.67 if at least two readings share a direction,
// 0.33 otherwise (including when every reading is flat), penalized
// 0.1 per flat reading.
func alignmentScore(readings []TimeframeReading) float64 {
	ups, downs, flats := 0, 0, 0
	for _, r := range readings {
		switch r.Trend {
		case TrendUp:
			ups++
		case TrendDown:
			downs++
		default:
			flats++
		}
	}
	nonFlat := ups + downs
	var base float64
	switch {
	case nonFlat == 0:
		base = 0.33
	case ups == nonFlat || downs == nonFlat:
		base = 1.0
	case ups >= 2 || downs >= 2:
		base = 0.67
	default:
		base = 0.33
	}
	score := base - 0.1*float64(flats)
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}
