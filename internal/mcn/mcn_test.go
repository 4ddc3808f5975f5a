package mcn

import (
	"path/filepath"
	"testing"
)

func vec(fill float32, n int) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = fill
	}
	return v
}

func TestAddAndSearchReturnsNearest(t *testing.T) {
	s := NewStore()
	err := s.Add(
		[][]float32{vec(1, Dim), vec(-1, Dim)},
		[]string{"momentum", "risk_off"},
		[]map[string]string{{"symbol": "BTCUSDT"}, {"symbol": "BTCUSDT"}},
	)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	matches, err := s.Search(vec(0.9, Dim), 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 1 || matches[0].Record.Label != "momentum" {
		t.Fatalf("expected momentum match, got %+v", matches)
	}
}

func TestFixDimTruncatesAndPads(t *testing.T) {
	s := NewStore()
	if err := s.Add([][]float32{vec(1, 100)}, []string{"x"}, []map[string]string{{}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add([][]float32{vec(1, 3)}, []string{"y"}, []map[string]string{{}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
}

func TestSearchDegradesOnMismatch(t *testing.T) {
	s := NewStore()
	if _, err := s.Search(nil, 1); err == nil {
		t.Errorf("expected error for empty query")
	}
}

func TestSaveLoadStateRoundTrip(t *testing.T) {
	s := NewStore()
	_ = s.Add([][]float32{vec(1, Dim)}, []string{"momentum"}, []map[string]string{{}})
	path := filepath.Join(t.TempDir(), "mcn.snapshot")
	if err := s.SaveState(path); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	restored := NewStore()
	if err := restored.LoadState(path); err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if restored.Len() != 1 {
		t.Fatalf("Len after load = %d, want 1", restored.Len())
	}
}

func TestLoadStateMissingFileDegradesToEmpty(t *testing.T) {
	s := NewStore()
	if err := s.LoadState(filepath.Join(t.TempDir(), "missing")); err != nil {
		t.Fatalf("LoadState on missing file should not error: %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("Len = %d, want 0", s.Len())
	}
}
