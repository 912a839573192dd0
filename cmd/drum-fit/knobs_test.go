package main

import (
	"testing"

	"github.com/cwbudde/algo-drum/drum"
)

func TestParseOptimizeGroups(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    map[string]bool
		wantErr bool
	}{
		{
			name:  "single group",
			input: "voice",
			want:  map[string]bool{"voice": true},
		},
		{
			name:  "both groups",
			input: "voice,modal",
			want:  map[string]bool{"voice": true, "modal": true},
		},
		{
			name:  "with whitespace",
			input: " voice , modal ",
			want:  map[string]bool{"voice": true, "modal": true},
		},
		{
			name:    "invalid group",
			input:   "voice,bogus",
			wantErr: true,
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
		{
			name:    "only whitespace",
			input:   "  ,  ",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseOptimizeGroups(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseOptimizeGroups(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseOptimizeGroups(%q) unexpected error: %v", tt.input, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseOptimizeGroups(%q) returned %d groups, want %d", tt.input, len(got), len(tt.want))
			}
			for k := range tt.want {
				if !got[k] {
					t.Fatalf("parseOptimizeGroups(%q) missing group %q", tt.input, k)
				}
			}
		})
	}
}

func knobNameSet(defs []knobDef) map[string]bool {
	m := make(map[string]bool, len(defs))
	for _, d := range defs {
		m[d.Name] = true
	}
	return m
}

func defaultBaseConfig() drum.Config {
	return drum.Config{
		Tuning:      drum.NewDefaultTuning(),
		Conditioner: drum.NewDefaultConditionerConfig(),
	}
}

func TestInitCandidateVoiceOnly(t *testing.T) {
	groups := map[string]bool{"voice": true}
	defs, cand := initCandidate(defaultBaseConfig(), drum.AlgoBass, 0.5, 0.5, groups)

	if len(defs) != 6 {
		t.Fatalf("defs len = %d, want 6", len(defs))
	}
	if len(cand.Vals) != len(defs) {
		t.Fatalf("vals len = %d, want %d", len(cand.Vals), len(defs))
	}

	names := knobNameSet(defs)
	for _, name := range []string{"master_gain", "gain.bass", "decay_min.bass", "decay_span.bass", "render.pitch", "render.param"} {
		if !names[name] {
			t.Fatalf("expected knob %q", name)
		}
	}
	if names["modal.amp.0"] {
		t.Fatal("unexpected modal knob in voice-only mode")
	}
}

func TestInitCandidateVoiceModal(t *testing.T) {
	groups := map[string]bool{"voice": true, "modal": true}
	defs, cand := initCandidate(defaultBaseConfig(), drum.AlgoModal, 0.5, 0.5, groups)

	// voice: 6 knobs, modal: 3 ratios + 4 amps + 4 decay multipliers = 17 total
	if len(defs) != 17 {
		t.Fatalf("defs len = %d, want 17", len(defs))
	}
	if len(cand.Vals) != len(defs) {
		t.Fatalf("vals len = %d, want %d", len(cand.Vals), len(defs))
	}

	names := knobNameSet(defs)
	for _, name := range []string{
		"master_gain",       // voice
		"gain.modal",        // voice, per-algorithm
		"modal.ratio.1",     // modal ratios start at 1
		"modal.amp.0",       // modal amps cover the fundamental
		"modal.decay_mul.3", // last partial
	} {
		if !names[name] {
			t.Fatalf("expected knob %q", name)
		}
	}
	// The fundamental ratio stays pinned.
	if names["modal.ratio.0"] {
		t.Fatal("unexpected modal.ratio.0 knob")
	}
}

func TestInitCandidateClampsBaseValues(t *testing.T) {
	base := defaultBaseConfig()
	base.Tuning.MasterGain = 10.0
	groups := map[string]bool{"voice": true}
	defs, cand := initCandidate(base, drum.AlgoBass, 0.5, 0.5, groups)

	for i, d := range defs {
		if d.Name == "master_gain" {
			if cand.Vals[i] != d.Max {
				t.Fatalf("master_gain = %v, want clamped to %v", cand.Vals[i], d.Max)
			}
			return
		}
	}
	t.Fatal("master_gain knob not found")
}

func TestApplyCandidateVoiceKnobs(t *testing.T) {
	base := defaultBaseConfig()
	groups := map[string]bool{"voice": true}
	defs, _ := initCandidate(base, drum.AlgoBass, 0.5, 0.5, groups)

	vals := make([]float64, len(defs))
	for i, d := range defs {
		switch d.Name {
		case "master_gain":
			vals[i] = 3.0
		case "gain.bass":
			vals[i] = 0.9
		case "decay_min.bass":
			vals[i] = 2.5
		case "decay_span.bass":
			vals[i] = 7.0
		case "render.pitch":
			vals[i] = 0.7
		case "render.param":
			vals[i] = 0.3
		default:
			vals[i] = (d.Min + d.Max) / 2
		}
	}

	cfg, pitch, param := applyCandidate(base, drum.AlgoBass, 0.5, 0.5, defs, candidate{Vals: vals})

	if cfg.Tuning.MasterGain != float32(3.0) {
		t.Fatalf("MasterGain = %v, want 3.0", cfg.Tuning.MasterGain)
	}
	if cfg.Tuning.AlgorithmGains[drum.AlgoBass] != float32(0.9) {
		t.Fatalf("AlgorithmGains[bass] = %v, want 0.9", cfg.Tuning.AlgorithmGains[drum.AlgoBass])
	}
	if cfg.Tuning.DecayMin[drum.AlgoBass] != float32(2.5) {
		t.Fatalf("DecayMin[bass] = %v, want 2.5", cfg.Tuning.DecayMin[drum.AlgoBass])
	}
	if cfg.Tuning.DecaySpan[drum.AlgoBass] != float32(7.0) {
		t.Fatalf("DecaySpan[bass] = %v, want 7.0", cfg.Tuning.DecaySpan[drum.AlgoBass])
	}
	if pitch != 0.7 {
		t.Fatalf("pitch = %v, want 0.7", pitch)
	}
	if param != 0.3 {
		t.Fatalf("param = %v, want 0.3", param)
	}
}

func TestApplyCandidateModalKnobs(t *testing.T) {
	base := defaultBaseConfig()
	groups := map[string]bool{"modal": true}
	defs, _ := initCandidate(base, drum.AlgoModal, 0.5, 0.5, groups)

	vals := make([]float64, len(defs))
	for i, d := range defs {
		switch d.Name {
		case "modal.ratio.2":
			vals[i] = 3.5
		case "modal.amp.0":
			vals[i] = 1.2
		case "modal.decay_mul.3":
			vals[i] = 4.0
		default:
			vals[i] = (d.Min + d.Max) / 2
		}
	}

	cfg, _, _ := applyCandidate(base, drum.AlgoModal, 0.5, 0.5, defs, candidate{Vals: vals})

	if cfg.Tuning.ModalRatios[2] != float32(3.5) {
		t.Fatalf("ModalRatios[2] = %v, want 3.5", cfg.Tuning.ModalRatios[2])
	}
	if cfg.Tuning.ModalAmps[0] != float32(1.2) {
		t.Fatalf("ModalAmps[0] = %v, want 1.2", cfg.Tuning.ModalAmps[0])
	}
	if cfg.Tuning.ModalDecayMul[3] != float32(4.0) {
		t.Fatalf("ModalDecayMul[3] = %v, want 4.0", cfg.Tuning.ModalDecayMul[3])
	}
	// Fundamental ratio untouched.
	if cfg.Tuning.ModalRatios[0] != float32(1.0) {
		t.Fatalf("ModalRatios[0] = %v, want 1.0", cfg.Tuning.ModalRatios[0])
	}
}

func TestApplyCandidateDoesNotMutateBase(t *testing.T) {
	base := defaultBaseConfig()
	wantGain := base.Tuning.MasterGain
	groups := map[string]bool{"voice": true}
	defs, _ := initCandidate(base, drum.AlgoSnare, 0.5, 0.5, groups)

	vals := make([]float64, len(defs))
	for i, d := range defs {
		vals[i] = d.Max
	}
	applyCandidate(base, drum.AlgoSnare, 0.5, 0.5, defs, candidate{Vals: vals})

	if base.Tuning.MasterGain != wantGain {
		t.Fatalf("base MasterGain mutated: got %v want %v", base.Tuning.MasterGain, wantGain)
	}
	if base.Tuning.AlgorithmGains[drum.AlgoSnare] != float32(0.4) {
		t.Fatalf("base AlgorithmGains[snare] mutated: got %v", base.Tuning.AlgorithmGains[drum.AlgoSnare])
	}
}

func TestFromNormalized(t *testing.T) {
	defs := []knobDef{
		{Name: "a", Min: 0.0, Max: 10.0},
		{Name: "b", Min: -1.0, Max: 1.0},
		{Name: "c", Min: 2.0, Max: 8.0, IsInt: true},
	}

	got := fromNormalized([]float64{0.0, 0.5, 0.49}, defs)
	if got.Vals[0] != 0.0 {
		t.Fatalf("vals[0] = %v, want 0", got.Vals[0])
	}
	if got.Vals[1] != 0.0 {
		t.Fatalf("vals[1] = %v, want 0", got.Vals[1])
	}
	if got.Vals[2] != 5.0 {
		t.Fatalf("vals[2] = %v, want 5 (rounded)", got.Vals[2])
	}

	// Out-of-range positions clamp to the bounds.
	got = fromNormalized([]float64{-0.5, 2.0, 1.0}, defs)
	if got.Vals[0] != 0.0 {
		t.Fatalf("clamped vals[0] = %v, want 0", got.Vals[0])
	}
	if got.Vals[1] != 1.0 {
		t.Fatalf("clamped vals[1] = %v, want 1", got.Vals[1])
	}
	if got.Vals[2] != 8.0 {
		t.Fatalf("clamped vals[2] = %v, want 8", got.Vals[2])
	}

	// Short position vector falls back to the lower bound.
	got = fromNormalized([]float64{1.0}, defs)
	if got.Vals[1] != -1.0 {
		t.Fatalf("missing pos vals[1] = %v, want -1", got.Vals[1])
	}
}
