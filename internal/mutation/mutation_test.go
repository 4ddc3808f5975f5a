package mutation

import (
	"encoding/json"
	"math/rand"
	"testing"

	"brain-core/internal/ruleset"
)

func TestMutateProducesRequestedCount(t *testing.T) {
	raw := json.RawMessage(`{
		"conditions":[{"indicator":"RSI","length":14,"relation":"<","value":30}],
		"exit":{"stop_loss":0.02,"take_profit":0.04},
		"timeframe":"1h"
	}`)
	rng := rand.New(rand.NewSource(1))
	children, err := Mutate(raw, 3, rng)
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if len(children) != 3 {
		t.Fatalf("len(children) = %d, want 3", len(children))
	}
	for _, c := range children {
		if c.Similarity < 0 || c.Similarity > 1 {
			t.Errorf("similarity out of range: %v", c.Similarity)
		}
		if len(c.Ruleset) == 0 {
			t.Errorf("expected non-empty mutated ruleset")
		}
	}
}

func TestSimilarityIdenticalRulesetsIsOne(t *testing.T) {
	raw := json.RawMessage(`{"conditions":[{"indicator":"RSI","relation":"<","value":30}]}`)
	rng := rand.New(rand.NewSource(1))
	_, err := Mutate(raw, 1, rng)
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	rs, err := ruleset.Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if sim := Similarity(rs, rs); sim != 1 {
		t.Errorf("Similarity(rs, rs) = %v, want 1", sim)
	}
}

func TestMutateClampsNOutOfRange(t *testing.T) {
	raw := json.RawMessage(`{"conditions":[{"indicator":"RSI","relation":"<","value":30}]}`)
	rng := rand.New(rand.NewSource(2))
	children, err := Mutate(raw, 10, rng)
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if len(children) != 3 {
		t.Errorf("len(children) = %d, want clamped to 3", len(children))
	}
}
