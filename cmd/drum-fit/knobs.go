package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-drum/drum"
)

type knobDef struct {
	Name  string
	Min   float64
	Max   float64
	IsInt bool
}

type candidate struct {
	Vals []float64
}

// parseOptimizeGroups parses a comma-separated string of group names.
// Valid groups: voice, modal.
func parseOptimizeGroups(raw string) (map[string]bool, error) {
	valid := map[string]bool{"voice": true, "modal": true}
	groups := make(map[string]bool)
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if !valid[s] {
			return nil, fmt.Errorf("unknown optimize group %q (valid: voice, modal)", s)
		}
		groups[s] = true
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("no optimize groups specified")
	}
	return groups, nil
}

func initCandidate(
	base drum.Config,
	algoIdx int,
	basePitch float64,
	baseParam float64,
	groups map[string]bool,
) ([]knobDef, candidate) {
	tn := base.Tuning
	if tn == nil {
		tn = drum.NewDefaultTuning()
	}
	name := drum.AlgorithmName(algoIdx)

	defs := make([]knobDef, 0, 24)
	vals := make([]float64, 0, 24)
	addKnob := func(def knobDef, val float64) {
		for _, d := range defs {
			if d.Name == def.Name {
				return
			}
		}
		defs = append(defs, def)
		vals = append(vals, val)
	}

	// Voice group knobs: levels and the decay formula of the fitted
	// algorithm, plus the two render controls.
	if groups["voice"] {
		addKnob(knobDef{Name: "master_gain", Min: 0.5, Max: 4.0}, float64(tn.MasterGain))
		addKnob(knobDef{Name: "gain." + name, Min: 0.05, Max: 1.5}, float64(tn.AlgorithmGains[algoIdx]))
		addKnob(knobDef{Name: "decay_min." + name, Min: 0.2, Max: 40.0}, float64(tn.DecayMin[algoIdx]))
		addKnob(knobDef{Name: "decay_span." + name, Min: 0.5, Max: 120.0}, float64(tn.DecaySpan[algoIdx]))
		addKnob(knobDef{Name: "render.pitch", Min: 0.0, Max: 1.0}, basePitch)
		addKnob(knobDef{Name: "render.param", Min: 0.0, Max: 1.0}, baseParam)
	}

	// Modal group knobs: the resonator bank. The first ratio stays pinned
	// to the strike frequency so the fit cannot detune the fundamental.
	if groups["modal"] {
		for i := 1; i < drum.NumModes; i++ {
			addKnob(knobDef{Name: fmt.Sprintf("modal.ratio.%d", i), Min: 1.05, Max: 8.0}, float64(tn.ModalRatios[i]))
		}
		for i := 0; i < drum.NumModes; i++ {
			addKnob(knobDef{Name: fmt.Sprintf("modal.amp.%d", i), Min: 0.0, Max: 1.5}, float64(tn.ModalAmps[i]))
		}
		for i := 0; i < drum.NumModes; i++ {
			addKnob(knobDef{Name: fmt.Sprintf("modal.decay_mul.%d", i), Min: 0.5, Max: 6.0}, float64(tn.ModalDecayMul[i]))
		}
	}

	for i := range vals {
		vals[i] = clamp(vals[i], defs[i].Min, defs[i].Max)
		if defs[i].IsInt {
			vals[i] = math.Round(vals[i])
		}
	}
	return defs, candidate{Vals: vals}
}

func applyCandidate(
	base drum.Config,
	algoIdx int,
	basePitch float64,
	baseParam float64,
	defs []knobDef,
	c candidate,
) (drum.Config, float64, float64) {
	cfg := cloneConfig(base)
	tn := cfg.Tuning
	name := drum.AlgorithmName(algoIdx)
	pitch := basePitch
	param := baseParam

	for i, def := range defs {
		v := c.Vals[i]
		switch def.Name {
		case "master_gain":
			tn.MasterGain = float32(v)
		case "gain." + name:
			tn.AlgorithmGains[algoIdx] = float32(v)
		case "decay_min." + name:
			tn.DecayMin[algoIdx] = float32(v)
		case "decay_span." + name:
			tn.DecaySpan[algoIdx] = float32(v)
		case "render.pitch":
			pitch = v
		case "render.param":
			param = v
		default:
			applyModalKnob(tn, def.Name, v)
		}
	}

	pitch = clamp(pitch, 0, 1)
	param = clamp(param, 0, 1)
	return cfg, pitch, param
}

func applyModalKnob(tn *drum.Tuning, name string, v float64) {
	var table *[drum.NumModes]float32
	var rest string
	switch {
	case strings.HasPrefix(name, "modal.ratio."):
		table = &tn.ModalRatios
		rest = strings.TrimPrefix(name, "modal.ratio.")
	case strings.HasPrefix(name, "modal.amp."):
		table = &tn.ModalAmps
		rest = strings.TrimPrefix(name, "modal.amp.")
	case strings.HasPrefix(name, "modal.decay_mul."):
		table = &tn.ModalDecayMul
		rest = strings.TrimPrefix(name, "modal.decay_mul.")
	default:
		return
	}
	idx, err := strconv.Atoi(rest)
	if err != nil || idx < 0 || idx >= drum.NumModes {
		return
	}
	table[idx] = float32(v)
}

func fromNormalized(pos []float64, defs []knobDef) candidate {
	vals := make([]float64, len(defs))
	for i := range defs {
		x := 0.0
		if i < len(pos) {
			x = clamp(pos[i], 0, 1)
		}
		v := defs[i].Min + x*(defs[i].Max-defs[i].Min)
		if defs[i].IsInt {
			v = math.Round(v)
		}
		vals[i] = v
	}
	return candidate{Vals: vals}
}
