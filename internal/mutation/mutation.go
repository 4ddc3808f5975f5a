// Package mutation implements the §4.7 Mutation Engine: producing N
// child strategies from a parent ruleset with a recorded lineage type
// and similarity score. Mutation-type names follow the original
// schema's mutation_type strings (db/models.go's StrategyLineage,
// "parameter_tweak" and siblings), except that the original
// "timeframe_change" is named "timeframe_shift" here.
package mutation

import (
	"encoding/json"
	"math"
	"math/rand"
	"strings"

	"brain-core/internal/ruleset"
)

type Kind string

const (
	ParameterTweak Kind = "parameter_tweak"
	ConditionToggle Kind = "condition_toggle"
	TimeframeShift Kind = "timeframe_shift"
	ExitRatioTweak Kind = "exit_ratio_tweak"
	IndicatorSwap  Kind = "indicator_swap"
)

var allKinds = []Kind{ParameterTweak, ConditionToggle, TimeframeShift, ExitRatioTweak, IndicatorSwap}

// Child is one mutated offspring plus the lineage metadata the caller
// must persist as a StrategyLineage row.
type Child struct {
	Ruleset    json.RawMessage
	Kind       Kind
	Similarity float64
}

// Mutate produces n ∈ [1,3] variants of parent's ruleset, each via a
// randomly chosen mutation kind (§4.7). rng must be supplied by the
// caller for determinism in tests.
func Mutate(parentRaw json.RawMessage, n int, rng *rand.Rand) ([]Child, error) {
	if n < 1 {
		n = 1
	}
	if n > 3 {
		n = 3
	}
	parent, err := ruleset.Parse(parentRaw)
	if err != nil {
		return nil, err
	}

	children := make([]Child, 0, n)
	for i := 0; i < n; i++ {
		kind := allKinds[rng.Intn(len(allKinds))]
		mutated := cloneRuleset(parent)
		applyMutation(mutated, kind, rng)

		raw, err := encodeRuleset(mutated)
		if err != nil {
			return nil, err
		}
		children = append(children, Child{
			Ruleset:    raw,
			Kind:       kind,
			Similarity: Similarity(parent, mutated),
		})
	}
	return children, nil
}

func cloneRuleset(rs *ruleset.Ruleset) *ruleset.Ruleset {
	raw, _ := encodeRuleset(rs)
	clone, _ := ruleset.Parse(raw)
	return clone
}

func encodeRuleset(rs *ruleset.Ruleset) (json.RawMessage, error) {
	doc := struct {
		Type       string              `json:"type"`
		Conditions []conditionJSON     `json:"conditions"`
		Entry      string              `json:"entry"`
		Exit       ruleset.ExitSpec    `json:"exit"`
		Timeframe  string              `json:"timeframe"`
	}{
		Type:      rs.Type,
		Entry:     rs.Entry,
		Exit:      rs.Exit,
		Timeframe: rs.Timeframe,
	}
	for _, n := range rs.Conditions {
		doc.Conditions = append(doc.Conditions, toConditionJSON(n))
	}
	return json.Marshal(doc)
}

// conditionJSON mirrors ruleset's internal rawNode shape so mutated
// trees can be round-tripped back through ruleset.Parse.
type conditionJSON struct {
	Logic     string   `json:"logic,omitempty"`
	Indicator string   `json:"indicator,omitempty"`
	Length    int      `json:"length,omitempty"`
	Relation  string   `json:"relation,omitempty"`
	Value     *float64 `json:"value,omitempty"`
	Other     string   `json:"other,omitempty"`
}

func toConditionJSON(n ruleset.Node) conditionJSON {
	return conditionJSON{
		Logic:     n.Logic,
		Indicator: n.Indicator,
		Length:    n.Length,
		Relation:  string(n.Relation),
		Value:     n.Value,
		Other:     n.Other,
	}
}

// applyMutation mutates rs in place per kind. Each branch perturbs
// exactly one structural dimension, keeping mutations composable and
// auditable via the lineage row's mutation_type.
func applyMutation(rs *ruleset.Ruleset, kind Kind, rng *rand.Rand) {
	switch kind {
	case ParameterTweak:
		for i := range rs.Conditions {
			if rs.Conditions[i].Value != nil {
				delta := 1 + (rng.Float64()*0.2 - 0.1)
				v := *rs.Conditions[i].Value * delta
				rs.Conditions[i].Value = &v
				break
			}
		}
	case ConditionToggle:
		if len(rs.Conditions) > 1 {
			rs.Conditions = rs.Conditions[:len(rs.Conditions)-1]
		}
	case TimeframeShift:
		rs.Timeframe = shiftTimeframe(rs.Timeframe)
	case ExitRatioTweak:
		scale := 1 + (rng.Float64()*0.4 - 0.2)
		if rs.Exit.StopLossPct != nil {
			v := *rs.Exit.StopLossPct * scale
			rs.Exit.StopLossPct = &v
		}
		if rs.Exit.TakeProfitPct != nil {
			v := *rs.Exit.TakeProfitPct * scale
			rs.Exit.TakeProfitPct = &v
		}
	case IndicatorSwap:
		for i := range rs.Conditions {
			if rs.Conditions[i].Indicator == "SMA" {
				rs.Conditions[i].Indicator = "EMA"
				break
			} else if rs.Conditions[i].Indicator == "EMA" {
				rs.Conditions[i].Indicator = "SMA"
				break
			}
		}
	}
}

var timeframeLadder = []string{"1m", "5m", "15m", "1h", "4h", "1d"}

func shiftTimeframe(tf string) string {
	for i, t := range timeframeLadder {
		if t == tf {
			if i+1 < len(timeframeLadder) {
				return timeframeLadder[i+1]
			}
			return timeframeLadder[i]
		}
	}
	return tf
}

// Similarity computes a weighted Jaccard over structural tokens
// (indicator+relation pairs) plus a parametric distance term over
// comparator values, producing a score in [0,1] (§4.7, §4.14's rate
// table input).
func Similarity(a, b *ruleset.Ruleset) float64 {
	jaccard := jaccardTokens(a, b)
	paramDist := parametricDistance(a, b)
	// weight structural agreement at 0.6, parametric closeness at 0.4
	return clamp01(0.6*jaccard + 0.4*(1-paramDist))
}

func tokens(rs *ruleset.Ruleset) map[string]bool {
	set := map[string]bool{}
	var walk func(nodes []ruleset.Node)
	walk = func(nodes []ruleset.Node) {
		for _, n := range nodes {
			switch n.Kind {
			case ruleset.NodeIndicator:
				set[strings.ToUpper(n.Indicator)+":"+string(n.Relation)] = true
			case ruleset.NodeGroup:
				walk(n.Group)
			}
		}
	}
	walk(rs.Conditions)
	return set
}

func jaccardTokens(a, b *ruleset.Ruleset) float64 {
	ta, tb := tokens(a), tokens(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1
	}
	inter, union := 0, 0
	seen := map[string]bool{}
	for t := range ta {
		seen[t] = true
	}
	for t := range tb {
		seen[t] = true
	}
	for t := range seen {
		inUnion := ta[t] || tb[t]
		if inUnion {
			union++
		}
		if ta[t] && tb[t] {
			inter++
		}
	}
	if union == 0 {
		return 1
	}
	return float64(inter) / float64(union)
}

// parametricDistance averages normalized absolute difference between
// matching comparator values, 0 when parameters are identical.
func parametricDistance(a, b *ruleset.Ruleset) float64 {
	av := values(a)
	bv := values(b)
	n := len(av)
	if len(bv) < n {
		n = len(bv)
	}
	if n == 0 {
		return 0
	}
	var total float64
	for i := 0; i < n; i++ {
		denom := math.Max(math.Abs(av[i]), math.Abs(bv[i]))
		if denom == 0 {
			continue
		}
		total += math.Abs(av[i]-bv[i]) / denom
	}
	return clamp01(total / float64(n))
}

func values(rs *ruleset.Ruleset) []float64 {
	var out []float64
	var walk func(nodes []ruleset.Node)
	walk = func(nodes []ruleset.Node) {
		for _, n := range nodes {
			if n.Kind == ruleset.NodeIndicator && n.Value != nil {
				out = append(out, *n.Value)
			}
			if n.Kind == ruleset.NodeGroup {
				walk(n.Group)
			}
		}
	}
	walk(rs.Conditions)
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
