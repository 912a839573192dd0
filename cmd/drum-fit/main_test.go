package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/algo-drum/drum"
)

func TestParseWorkersFlag(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "1", want: 1},
		{in: "8", want: 8},
		{in: "auto", want: 0},
		{in: "AUTO", want: 0},
		{in: "0", wantErr: true},
		{in: "-2", wantErr: true},
		{in: "abc", wantErr: true},
	}

	for _, tt := range tests {
		got, err := parseWorkersFlag(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("parseWorkersFlag(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseWorkersFlag(%q) unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("parseWorkersFlag(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "bass", want: drum.AlgoBass},
		{in: "COWBELL", want: drum.AlgoCowbell},
		{in: " snare ", want: drum.AlgoSnare},
		{in: "0", want: 0},
		{in: "7", want: 7},
		{in: "8", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "tambourine", wantErr: true},
	}

	for _, tt := range tests {
		got, err := parseAlgorithm(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("parseAlgorithm(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseAlgorithm(%q) unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("parseAlgorithm(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestLoadCandidateFromReportBestKnobs(t *testing.T) {
	tmp := t.TempDir()
	reportPath := filepath.Join(tmp, "rep.json")
	if err := os.WriteFile(reportPath, []byte(`{"best_knobs":{"master_gain":2.6,"gain.bass":9.0}}`), 0o644); err != nil {
		t.Fatalf("write report: %v", err)
	}

	defs := []knobDef{
		{Name: "master_gain", Min: 0.5, Max: 4.0},
		{Name: "gain.bass", Min: 0.05, Max: 1.5},
	}
	fallback := candidate{Vals: []float64{2.0, 1.0}}

	got, ok, err := loadCandidateFromReport(reportPath, defs, fallback)
	if err != nil {
		t.Fatalf("load report: %v", err)
	}
	if !ok {
		t.Fatal("expected resume candidate")
	}
	if got.Vals[0] != 2.6 {
		t.Fatalf("master_gain = %v, want 2.6", got.Vals[0])
	}
	// gain.bass clamped to Max=1.5
	if got.Vals[1] != 1.5 {
		t.Fatalf("gain.bass = %v, want 1.5 (clamped from 9.0)", got.Vals[1])
	}
}

func TestLoadCandidateFromReportMissingFile(t *testing.T) {
	defs := []knobDef{{Name: "x", Min: 0, Max: 1}}
	fallback := candidate{Vals: []float64{0.5}}

	_, ok, err := loadCandidateFromReport("/nonexistent/path.json", defs, fallback)
	if err != nil {
		t.Fatalf("unexpected error for missing file: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for missing file")
	}
}

func TestLoadCandidateFromReportUnknownKnobsIgnored(t *testing.T) {
	tmp := t.TempDir()
	reportPath := filepath.Join(tmp, "rep.json")
	if err := os.WriteFile(reportPath, []byte(`{"best_knobs":{"body_modes":48}}`), 0o644); err != nil {
		t.Fatalf("write report: %v", err)
	}

	defs := []knobDef{{Name: "master_gain", Min: 0.5, Max: 4.0}}
	fallback := candidate{Vals: []float64{2.0}}

	_, ok, err := loadCandidateFromReport(reportPath, defs, fallback)
	if err != nil {
		t.Fatalf("load report: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false when no knob names match")
	}
}
