package confirm

import (
	"math"
	"sort"

	"brain-core/internal/db"
)

// RiskProfile is the §4.11 user-risk classification.
type RiskProfile string

const (
	ProfileConservative RiskProfile = "conservative"
	ProfileModerate     RiskProfile = "moderate"
	ProfileAggressive   RiskProfile = "aggressive"
)

// MinClosedTradesForProfile is the §4.11 sample-size gate.
const MinClosedTradesForProfile = 5

// UserRiskResult is the profile plus the statistics it was derived from.
type UserRiskResult struct {
	Profile           RiskProfile
	Confidence        float64
	AvgPositionFrac   float64
	WinRate           float64
	AvgHoldingDays    float64
	ReturnStdev       float64
	MaxDrawdownFrac   float64
	InsufficientData  bool
}

// UserRisk computes a trading-behavior profile from a user's closed
// trades. Fewer than MinClosedTradesForProfile trades is insufficient
// data per §4.11 and returns the moderate default with zero confidence.
func UserRisk(trades []*db.Trade, accountBalance float64) UserRiskResult {
	closed := closedOnly(trades)
	if len(closed) < MinClosedTradesForProfile {
		return UserRiskResult{Profile: ProfileModerate, InsufficientData: true}
	}

	avgPositionFrac := avgPositionFraction(closed, accountBalance)
	winRate := winRate(closed)
	avgHoldingDays := avgHoldingDays(closed)
	returns := pnlFractions(closed, accountBalance)
	stdev := stdevOf(returns)
	maxDD := maxDrawdownFraction(returns)

	scores := map[RiskProfile]float64{ProfileConservative: 0, ProfileModerate: 0, ProfileAggressive: 0}

	switch {
	case avgPositionFrac < 0.05:
		scores[ProfileConservative] += 0.3
	case avgPositionFrac <= 0.15:
		scores[ProfileModerate] += 0.3
	default:
		scores[ProfileAggressive] += 0.3
	}

	switch {
	case winRate > 0.7:
		scores[ProfileConservative] += 0.2
	case winRate >= 0.5:
		scores[ProfileModerate] += 0.2
	default:
		scores[ProfileAggressive] += 0.2
	}

	switch {
	case avgHoldingDays > 7:
		scores[ProfileConservative] += 0.2
	case avgHoldingDays >= 1:
		scores[ProfileModerate] += 0.2
	default:
		scores[ProfileAggressive] += 0.2
	}

	winner, runnerUp := rankProfiles(scores)
	total := scores[ProfileConservative] + scores[ProfileModerate] + scores[ProfileAggressive]
	var confidence float64
	if total > 0 {
		confidence = clamp01((scores[winner] - scores[runnerUp]) / total)
	}

	return UserRiskResult{
		Profile:         winner,
		Confidence:      confidence,
		AvgPositionFrac: avgPositionFrac,
		WinRate:         winRate,
		AvgHoldingDays:  avgHoldingDays,
		ReturnStdev:     stdev,
		MaxDrawdownFrac: maxDD,
	}
}

func closedOnly(trades []*db.Trade) []*db.Trade {
	out := make([]*db.Trade, 0, len(trades))
	for _, t := range trades {
		if t.Status == "CLOSED" && t.RealizedPnL != nil && t.ClosedAt != nil {
			out = append(out, t)
		}
	}
	return out
}

func avgPositionFraction(trades []*db.Trade, balance float64) float64 {
	if balance <= 0 || len(trades) == 0 {
		return 0
	}
	var sum float64
	for _, t := range trades {
		sum += (t.Quantity * t.EntryPrice) / balance
	}
	return sum / float64(len(trades))
}

func winRate(trades []*db.Trade) float64 {
	if len(trades) == 0 {
		return 0
	}
	wins := 0
	for _, t := range trades {
		if *t.RealizedPnL > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(trades))
}

func avgHoldingDays(trades []*db.Trade) float64 {
	if len(trades) == 0 {
		return 0
	}
	var sum float64
	for _, t := range trades {
		sum += t.ClosedAt.Sub(t.OpenedAt).Hours() / 24
	}
	return sum / float64(len(trades))
}

func pnlFractions(trades []*db.Trade, balance float64) []float64 {
	if balance <= 0 {
		balance = 1
	}
	out := make([]float64, len(trades))
	for i, t := range trades {
		out[i] = *t.RealizedPnL / balance
	}
	return out
}

func stdevOf(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	var sumSq float64
	for _, v := range values {
		sumSq += (v - mean) * (v - mean)
	}
	return math.Sqrt(sumSq / float64(len(values)-1))
}

func maxDrawdownFraction(returns []float64) float64 {
	var equity, peak, maxDD float64
	for _, r := range returns {
		equity += r
		if equity > peak {
			peak = equity
		}
		if dd := peak - equity; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

func rankProfiles(scores map[RiskProfile]float64) (winner, runnerUp RiskProfile) {
	type kv struct {
		p RiskProfile
		v float64
	}
	list := []kv{{ProfileConservative, scores[ProfileConservative]}, {ProfileModerate, scores[ProfileModerate]}, {ProfileAggressive, scores[ProfileAggressive]}}
	sort.Slice(list, func(i, j int) bool { return list[i].v > list[j].v })
	return list[0].p, list[1].p
}
