// Package preset loads and saves voice tuning presets: per-algorithm
// gains and decay formulas, the master gain, modal resonator tables and
// control conditioning constants, applied on top of the hardware defaults.
package preset

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/cwbudde/algo-drum/drum"
)

// File is the JSON schema for voice tuning presets.
type File struct {
	MasterGain  *float32                    `json:"master_gain"`
	Algorithms  map[string]AlgorithmSetting `json:"algorithms"`
	Modal       *ModalSetting               `json:"modal"`
	Conditioner *ConditionerSetting         `json:"conditioner"`
}

// AlgorithmSetting is a partial per-algorithm override entry, keyed by the
// short algorithm name ("bass" .. "cowbell").
type AlgorithmSetting struct {
	Gain      *float32 `json:"gain"`
	DecayMin  *float32 `json:"decay_min"`
	DecaySpan *float32 `json:"decay_span"`
}

// ModalSetting overrides the modal resonator bank. Tuning picks the ratio
// source: "fixed" uses the ratios field (or the hardware table when the
// field is absent), "membrane" derives the ratios from the square-membrane
// eigenvalues and must not combine with explicit ratios.
type ModalSetting struct {
	Tuning           string    `json:"tuning"`
	Ratios           []float32 `json:"ratios"`
	Amplitudes       []float32 `json:"amplitudes"`
	DecayMultipliers []float32 `json:"decay_multipliers"`
}

// ConditionerSetting overrides the control conditioning constants.
type ConditionerSetting struct {
	NoisyParamSmoothing *float32                  `json:"noisy_param_smoothing"`
	MinIntervalMs       *float32                  `json:"min_interval_ms"`
	Channels            map[string]ChannelSetting `json:"channels"`
}

// ChannelSetting is a partial per-channel conditioning override, keyed by
// the channel name ("pitch", "knob", "algo", "param").
type ChannelSetting struct {
	Smoothing *float32 `json:"smoothing"`
	Deadband  *float32 `json:"deadband"`
}

var channelIndex = map[string]drum.Channel{
	"pitch": drum.ChannelPitch,
	"knob":  drum.ChannelKnob,
	"algo":  drum.ChannelAlgo,
	"param": drum.ChannelParam,
}

// LoadJSON loads a preset JSON file and applies it on top of the hardware
// defaults. The returned config carries no sample rate; callers set one
// before building a voice.
func LoadJSON(path string) (drum.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return drum.Config{}, err
	}

	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return drum.Config{}, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg := drum.Config{
		Tuning:      drum.NewDefaultTuning(),
		Conditioner: drum.NewDefaultConditionerConfig(),
	}
	if err := ApplyFile(&cfg, &f); err != nil {
		return drum.Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ApplyFile applies a parsed preset file onto an existing voice config.
// The config's Tuning and Conditioner must be non-nil.
func ApplyFile(dst *drum.Config, f *File) error {
	if dst == nil || dst.Tuning == nil || dst.Conditioner == nil {
		return fmt.Errorf("nil destination config")
	}
	if f == nil {
		return nil
	}

	if f.MasterGain != nil {
		if *f.MasterGain <= 0 {
			return fmt.Errorf("master_gain must be > 0")
		}
		dst.Tuning.MasterGain = *f.MasterGain
	}

	if err := applyAlgorithms(dst.Tuning, f.Algorithms); err != nil {
		return err
	}
	if err := applyModal(dst.Tuning, f.Modal); err != nil {
		return err
	}
	return applyConditioner(dst.Conditioner, f.Conditioner)
}

func applyAlgorithms(tn *drum.Tuning, settings map[string]AlgorithmSetting) error {
	if len(settings) == 0 {
		return nil
	}
	names := make([]string, 0, len(settings))
	for name := range settings {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		idx, ok := drum.AlgorithmIndex(name)
		if !ok {
			return fmt.Errorf("unknown algorithm %q", name)
		}
		s := settings[name]
		if s.Gain != nil {
			if *s.Gain < 0 {
				return fmt.Errorf("algorithms[%s].gain must be >= 0", name)
			}
			tn.AlgorithmGains[idx] = *s.Gain
		}
		if s.DecayMin != nil {
			if *s.DecayMin <= 0 {
				return fmt.Errorf("algorithms[%s].decay_min must be > 0", name)
			}
			tn.DecayMin[idx] = *s.DecayMin
		}
		if s.DecaySpan != nil {
			if *s.DecaySpan < 0 {
				return fmt.Errorf("algorithms[%s].decay_span must be >= 0", name)
			}
			tn.DecaySpan[idx] = *s.DecaySpan
		}
	}
	return nil
}

func applyModal(tn *drum.Tuning, m *ModalSetting) error {
	if m == nil {
		return nil
	}

	switch m.Tuning {
	case "", "fixed":
		if err := copyPositive(tn.ModalRatios[:], m.Ratios, "modal.ratios"); err != nil {
			return err
		}
	case "membrane":
		if len(m.Ratios) > 0 {
			return fmt.Errorf("modal.ratios conflicts with membrane tuning")
		}
		copy(tn.ModalRatios[:], drum.MembraneModeRatios(drum.NumModes))
	default:
		return fmt.Errorf("modal.tuning must be %q or %q, got %q", "fixed", "membrane", m.Tuning)
	}

	if len(m.Amplitudes) > 0 {
		if len(m.Amplitudes) != drum.NumModes {
			return fmt.Errorf("modal.amplitudes must list %d values, got %d", drum.NumModes, len(m.Amplitudes))
		}
		for i, v := range m.Amplitudes {
			if v < 0 {
				return fmt.Errorf("modal.amplitudes[%d] must be >= 0", i)
			}
			tn.ModalAmps[i] = v
		}
	}

	return copyPositive(tn.ModalDecayMul[:], m.DecayMultipliers, "modal.decay_multipliers")
}

func copyPositive(dst []float32, src []float32, field string) error {
	if len(src) == 0 {
		return nil
	}
	if len(src) != len(dst) {
		return fmt.Errorf("%s must list %d values, got %d", field, len(dst), len(src))
	}
	for i, v := range src {
		if v <= 0 {
			return fmt.Errorf("%s[%d] must be > 0", field, i)
		}
		dst[i] = v
	}
	return nil
}

func applyConditioner(cc *drum.ConditionerConfig, s *ConditionerSetting) error {
	if s == nil {
		return nil
	}
	if s.NoisyParamSmoothing != nil {
		if *s.NoisyParamSmoothing <= 0 || *s.NoisyParamSmoothing > 1 {
			return fmt.Errorf("conditioner.noisy_param_smoothing must be in (0,1]")
		}
		cc.NoisyParamAlpha = *s.NoisyParamSmoothing
	}
	if s.MinIntervalMs != nil {
		if *s.MinIntervalMs < 0 {
			return fmt.Errorf("conditioner.min_interval_ms must be >= 0")
		}
		cc.MinIntervalMs = *s.MinIntervalMs
	}

	if len(s.Channels) == 0 {
		return nil
	}
	names := make([]string, 0, len(s.Channels))
	for name := range s.Channels {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ch, ok := channelIndex[name]
		if !ok {
			return fmt.Errorf("unknown conditioner channel %q", name)
		}
		cs := s.Channels[name]
		if cs.Smoothing != nil {
			if *cs.Smoothing <= 0 || *cs.Smoothing > 1 {
				return fmt.Errorf("conditioner.channels[%s].smoothing must be in (0,1]", name)
			}
			cc.Alpha[ch] = *cs.Smoothing
		}
		if cs.Deadband != nil {
			if *cs.Deadband < 0 {
				return fmt.Errorf("conditioner.channels[%s].deadband must be >= 0", name)
			}
			cc.Deadband[ch] = *cs.Deadband
		}
	}
	return nil
}

// FromConfig captures a voice config as a fully populated preset file,
// ready to marshal. Modal tuning is always emitted as explicit fixed
// ratios, so a membrane-tuned config round-trips by value.
func FromConfig(cfg drum.Config) *File {
	tn := cfg.Tuning
	if tn == nil {
		tn = drum.NewDefaultTuning()
	}
	cc := cfg.Conditioner
	if cc == nil {
		cc = drum.NewDefaultConditionerConfig()
	}

	f := &File{
		MasterGain: ptr(tn.MasterGain),
		Algorithms: make(map[string]AlgorithmSetting, drum.NumAlgorithms),
		Modal: &ModalSetting{
			Tuning:           "fixed",
			Ratios:           append([]float32(nil), tn.ModalRatios[:]...),
			Amplitudes:       append([]float32(nil), tn.ModalAmps[:]...),
			DecayMultipliers: append([]float32(nil), tn.ModalDecayMul[:]...),
		},
		Conditioner: &ConditionerSetting{
			NoisyParamSmoothing: ptr(cc.NoisyParamAlpha),
			MinIntervalMs:       ptr(cc.MinIntervalMs),
			Channels:            make(map[string]ChannelSetting, drum.NumChannels),
		},
	}
	for i := 0; i < drum.NumAlgorithms; i++ {
		f.Algorithms[drum.AlgorithmName(i)] = AlgorithmSetting{
			Gain:      ptr(tn.AlgorithmGains[i]),
			DecayMin:  ptr(tn.DecayMin[i]),
			DecaySpan: ptr(tn.DecaySpan[i]),
		}
	}
	for name, ch := range channelIndex {
		f.Conditioner.Channels[name] = ChannelSetting{
			Smoothing: ptr(cc.Alpha[ch]),
			Deadband:  ptr(cc.Deadband[ch]),
		}
	}
	return f
}

func ptr(v float32) *float32 { return &v }
