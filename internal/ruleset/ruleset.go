// Package ruleset implements the DSL parser and evaluator of §4.5: a
// JSON condition tree with AND/OR logic and indicator comparators.
package ruleset

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Relation is a comparator between an indicator value and a threshold
// or another indicator.
type Relation string

const (
	GT  Relation = ">"
	LT  Relation = "<"
	GTE Relation = ">="
	LTE Relation = "<="
	EQ  Relation = "=="
	NEQ Relation = "!="
)

// NodeKind distinguishes the three shapes a condition-list entry takes.
type NodeKind int

const (
	NodeIndicator NodeKind = iota
	NodeLogic
	NodeGroup
)

// Node is one entry of a Ruleset's condition list.
type Node struct {
	Kind      NodeKind
	Indicator string   // e.g. "RSI", "SMA", "EMA"
	Length    int      // lookback period, 0 if not applicable
	Relation  Relation
	Value     *float64 // compare to a fixed value
	Other     string   // compare to another indicator key instead of Value
	Logic     string   // "AND" | "OR" — in effect for subsequent siblings
	Group     []Node   // nested conditions when Kind == NodeGroup
}

// ExitSpec describes stop/target rules. At most one style (percent,
// ATR-multiple, fixed) wins per side, percent resolved last so ATR and
// fixed take precedence when present (§4.5, mirrors
// calculate_exit_prices in the Python original).
type ExitSpec struct {
	StopLossPct      *float64 `json:"stop_loss,omitempty"`
	TakeProfitPct    *float64 `json:"take_profit,omitempty"`
	StopLossATR      *float64 `json:"stop_loss_atr,omitempty"`
	TakeProfitATR    *float64 `json:"take_profit_atr,omitempty"`
	StopLossFixed    *float64 `json:"stop_loss_fixed,omitempty"`
	TakeProfitFixed  *float64 `json:"take_profit_fixed,omitempty"`
}

// Ruleset is the parsed DSL document of §4.5.
type Ruleset struct {
	Type       string
	Conditions []Node
	Entry      string
	Exit       ExitSpec
	Timeframe  string
}

// rawNode mirrors the JSON shape of one conditions[] entry.
type rawNode struct {
	Logic     string          `json:"logic,omitempty"`
	Indicator string          `json:"indicator,omitempty"`
	Length    int             `json:"length,omitempty"`
	Relation  string          `json:"relation,omitempty"`
	Value     *float64        `json:"value,omitempty"`
	Other     string          `json:"other,omitempty"`
	Condition json.RawMessage `json:"condition,omitempty"`
}

type rawRuleset struct {
	Type       string            `json:"type,omitempty"`
	Conditions []rawNode         `json:"conditions,omitempty"`
	Entry      string            `json:"entry,omitempty"`
	Exit       ExitSpec          `json:"exit,omitempty"`
	Timeframe  string            `json:"timeframe,omitempty"`
}

// Parse decodes raw JSON into a Ruleset. Malformed or absent fields fall
// back to documented defaults rather than erroring, matching the
// original parser's permissive style — a ruleset is data, not code, and
// should never panic the caller.
func Parse(raw json.RawMessage) (*Ruleset, error) {
	var rr rawRuleset
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &rr); err != nil {
			return nil, err
		}
	}
	if rr.Type == "" {
		rr.Type = "custom"
	}
	if rr.Entry == "" {
		rr.Entry = "close"
	}
	if rr.Timeframe == "" {
		rr.Timeframe = "1d"
	}

	rs := &Ruleset{
		Type:      rr.Type,
		Entry:     rr.Entry,
		Exit:      rr.Exit,
		Timeframe: rr.Timeframe,
	}
	rs.Conditions = parseConditions(rr.Conditions)
	return rs, nil
}

func parseConditions(raw []rawNode) []Node {
	var out []Node
	currentLogic := "AND"

	for _, item := range raw {
		switch {
		case item.Logic != "":
			currentLogic = item.Logic
		case item.Indicator != "":
			out = append(out, Node{
				Kind:      NodeIndicator,
				Indicator: item.Indicator,
				Length:    item.Length,
				Relation:  Relation(item.Relation),
				Value:     item.Value,
				Other:     item.Other,
				Logic:     currentLogic,
			})
		case len(item.Condition) > 0:
			var nested []rawNode
			_ = json.Unmarshal(item.Condition, &nested)
			out = append(out, Node{
				Kind:  NodeGroup,
				Group: parseConditions(nested),
				Logic: currentLogic,
			})
		}
	}
	return out
}

// IndicatorValues maps an indicator key (e.g. "sma_50", "rsi") to its
// computed series, aligned so index i is the same bar across all keys.
type IndicatorValues map[string][]float64

// Evaluate walks the condition list at bar index, combining results
// with the running logic operator. Unknown indicators or an
// out-of-range index make that single condition false, never an error
// (§4.5, §7 propagation policy).
func Evaluate(conditions []Node, values IndicatorValues, index int) bool {
	if len(conditions) == 0 {
		return true
	}

	var results []bool
	logic := "AND"

	for _, cond := range conditions {
		switch cond.Kind {
		case NodeIndicator:
			results = append(results, evalIndicator(cond, values, index))
			logic = cond.Logic
		case NodeGroup:
			results = append(results, Evaluate(cond.Group, values, index))
			logic = cond.Logic
		}
	}

	if logic == "OR" {
		for _, r := range results {
			if r {
				return true
			}
		}
		return false
	}
	for _, r := range results {
		if !r {
			return false
		}
	}
	return true
}

func evalIndicator(cond Node, values IndicatorValues, index int) bool {
	key := indicatorKey(cond.Indicator, cond.Length)
	series, ok := values[key]
	if !ok || index < 0 || index >= len(series) {
		return false
	}
	current := series[index]

	if cond.Other != "" {
		otherKey := indicatorKey(cond.Other, 0)
		otherSeries, ok := values[otherKey]
		if !ok || index >= len(otherSeries) {
			return false
		}
		return compare(current, cond.Relation, otherSeries[index])
	}
	if cond.Value != nil {
		return compare(current, cond.Relation, *cond.Value)
	}
	return false
}

// IndicatorKey exposes indicatorKey for callers outside this package
// that need to look up the same IndicatorValues series a condition
// node references (the Brain Assembler's signal-strength computation).
func IndicatorKey(name string, length int) string { return indicatorKey(name, length) }

// indicatorKey mirrors the original parser's _get_indicator_key: SMA and
// EMA are length-qualified, the rest are singletons per bar.
func indicatorKey(name string, length int) string {
	switch strings.ToUpper(name) {
	case "SMA":
		if length > 0 {
			return "sma_" + strconv.Itoa(length)
		}
		return "sma_20"
	case "EMA":
		if length > 0 {
			return "ema_" + strconv.Itoa(length)
		}
		return "ema_12"
	case "RSI":
		return "rsi"
	case "MACD":
		return "macd"
	case "BOLLINGER":
		return "bollinger"
	case "ATR":
		return "atr"
	case "VWAP":
		return "vwap"
	default:
		return strings.ToLower(name)
	}
}

const epsilon = 0.0001

func compare(a float64, rel Relation, b float64) bool {
	switch rel {
	case GT:
		return a > b
	case GTE:
		return a >= b
	case LT:
		return a < b
	case LTE:
		return a <= b
	case EQ:
		return math.Abs(a-b) < epsilon
	case NEQ:
		return math.Abs(a-b) >= epsilon
	default:
		return false
	}
}
