// Package drum implements a monophonic eight-algorithm percussion voice:
// analog-style bass, snare, hi-hat, zap, clap and cowbell plus
// Karplus-Strong and modal physical models, driven by a gate and three
// control inputs the way the hardware module drives them. The voice
// produces one finalized sample per tick; everything upstream of the DAC
// (pitch law, control conditioning, envelopes, output stage) lives here.
package drum

import "github.com/cwbudde/algo-drum/dsp"

const (
	defaultSampleRate = 44100

	// freqUpdateInterval is the control-to-audio cadence: pitch changes
	// propagate into a sounding hit every 4th sample.
	freqUpdateInterval = 4

	// envelopeFloor retires a hit once the master envelope drops below it.
	envelopeFloor = 0.001

	// karplusMinFreq sizes the string buffer for the lowest playable note.
	karplusMinFreq = 80
)

// Config carries the voice construction parameters. Zero or nil fields
// fall back to the hardware defaults.
type Config struct {
	SampleRate  int
	Tuning      *Tuning
	Conditioner *ConditionerConfig
}

// DefaultConfig returns the hardware-equivalent configuration.
func DefaultConfig() Config {
	return Config{SampleRate: defaultSampleRate}
}

// Voice is the synthesis engine. All methods must be called from a single
// goroutine; hosts with separate control and audio threads serialize
// access externally.
type Voice struct {
	sampleRate int
	tuning     *Tuning

	conditioner *Conditioner

	algorithm int
	baseFreq  float32 // unscaled 1 V/octave mapping output
	frequency float32 // algorithm-scaled target
	param     float32
	lastGate  bool

	active           bool
	sampleCount      uint64
	triggerSample    uint64
	currentFrequency float32
	env              envelope

	noise   *dsp.Noise
	karplus *dsp.DelayLine
	modes   [NumModes]modalMode

	cowbellPhases [cowbellOscillators]float32

	// Independent per-algorithm filters so selection changes cannot
	// thrash coefficients or bleed history between algorithms.
	bassFilter    *dsp.Biquad
	snareFilter   *dsp.Biquad
	hihatFilter   *dsp.Biquad
	clapFilter    *dsp.Biquad
	cowbellFilter *dsp.Biquad

	antialias *dsp.OnePole
}

// NewVoice builds a silent voice with the bass algorithm selected and the
// parameter centred.
func NewVoice(cfg Config) *Voice {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = defaultSampleRate
	}
	tuning := cfg.Tuning
	if tuning == nil {
		tuning = NewDefaultTuning()
	}

	v := &Voice{
		sampleRate:  cfg.SampleRate,
		tuning:      tuning,
		conditioner: NewConditioner(cfg.Conditioner, cfg.SampleRate),
		algorithm:   AlgoBass,
		param:       0.5,
		noise:       dsp.NewNoise(),
		karplus:     dsp.NewDelayLine(karplusCapacity(cfg.SampleRate)),

		bassFilter:    dsp.NewResonantLowpass(100, 8, float32(cfg.SampleRate)),
		snareFilter:   dsp.NewBandpass(800, 2, float32(cfg.SampleRate)),
		hihatFilter:   dsp.NewBandpass(10000, 3, float32(cfg.SampleRate)),
		clapFilter:    dsp.NewBandpass(1000, 3, float32(cfg.SampleRate)),
		cowbellFilter: dsp.NewBandpass(2000, 4, float32(cfg.SampleRate)),

		antialias: dsp.NewOnePole(antialiasAlpha),
	}
	v.baseFreq = 240
	v.frequency = ScaleForAlgorithm(v.baseFreq, v.algorithm)
	v.currentFrequency = v.frequency
	return v
}

// SetSampleRate reconfigures the voice for a new rate. The running hit is
// cut; call it before the first trigger for glitch-free use.
func (v *Voice) SetSampleRate(hz int) {
	if hz <= 0 || hz == v.sampleRate {
		return
	}
	v.sampleRate = hz
	v.conditioner.SetSampleRate(hz)
	v.karplus = dsp.NewDelayLine(karplusCapacity(hz))
	v.active = false
	v.env = envelope{}
	v.bassFilter.Reset()
	v.snareFilter.Reset()
	v.hihatFilter.Reset()
	v.clapFilter.Reset()
	v.cowbellFilter.Reset()
	v.antialias.Reset()
}

// UpdateControls feeds one already-conditioned control frame; the three
// values clamp to [0, 1]. A rising gate edge fires the trigger before the
// new pitch and selection land, matching the hardware update order, so a
// simultaneous pitch change reaches the hit through the real-time path a
// few samples later.
func (v *Voice) UpdateControls(pitchNorm, algoSelectNorm, paramNorm float32, gate bool) {
	if gate && !v.lastGate {
		v.trigger()
	}
	v.lastGate = gate

	v.applyControls(
		dsp.Clamp(pitchNorm, 0, 1)*cvOctaveSpan,
		knobCentreVolts,
		SelectAlgorithm(algoSelectNorm),
		dsp.Clamp(paramNorm, 0, 1),
	)
}

// UpdateControlsRaw feeds one raw ADC frame through the conditioner using
// the hardware calibration windows: pitch CV over the full 0-4095 range
// (inverting input stage), pitch knob 10-4000, algorithm select and
// parameter 8-2000.
func (v *Voice) UpdateControlsRaw(pitchCounts, knobCounts, algoCounts, paramCounts uint16, gate bool) {
	now := v.sampleCount
	pitch := v.conditioner.Condition(float32(pitchCounts), ChannelPitch, now)
	knob := v.conditioner.Condition(float32(knobCounts), ChannelKnob, now)
	algo := v.conditioner.Condition(float32(algoCounts), ChannelAlgo, now)
	param := v.conditioner.Condition(float32(paramCounts), ChannelParam, now)

	if gate && !v.lastGate {
		v.trigger()
	}
	v.lastGate = gate

	v.applyControls(
		cvJackVolts(pitch),
		knobVolts(knob),
		SelectAlgorithm(normalizedCV(algo)),
		normalizedCV(param),
	)
}

func (v *Voice) applyControls(cvVolts, knobV float32, algorithm int, param float32) {
	v.algorithm = algorithm
	v.conditioner.SetNoisySelection(algorithms[algorithm].noisy)
	v.param = param
	v.baseFreq = MapFrequency(cvVolts, knobV)
	v.frequency = ScaleForAlgorithm(v.baseFreq, v.algorithm)
}

// trigger fires the selected algorithm. The frequency captured here is the
// target from the previous control frame; the real-time path re-derives it
// within four samples.
func (v *Voice) trigger() {
	v.active = true
	v.triggerSample = v.sampleCount
	v.currentFrequency = v.frequency
	v.noise.Reset()

	v.env = envelope{
		amplitude: 1,
		decayRate: v.tuning.DecayMin[v.algorithm] + v.tuning.DecaySpan[v.algorithm]*v.param,
		frequency: v.currentFrequency,
	}
	if hook := algorithms[v.algorithm].onTrigger; hook != nil {
		hook(v)
	}
}

// NextSample advances the voice by one sample period and returns the
// finalized output. Idle voices return 0 without touching the output
// stage.
func (v *Voice) NextSample() float32 {
	if v.active && v.sampleCount%freqUpdateInterval == 0 {
		v.updateRealtimeFrequency()
	}

	var sample float32
	if v.active {
		t := float32(v.sampleCount-v.triggerSample) / float32(v.sampleRate)
		v.updateEnvelope(t)
		if v.active {
			sample = algorithms[v.algorithm].generate(v, t)
			sample = v.finalize(sample)
		}
	}
	v.sampleCount++
	return sample
}

// Process renders numFrames samples into a freshly allocated buffer.
func (v *Voice) Process(numFrames int) []float32 {
	out := make([]float32, numFrames)
	v.ProcessInto(out)
	return out
}

// ProcessInto renders len(out) samples into the caller's buffer. It does
// not allocate, so audio callbacks can drive it directly.
func (v *Voice) ProcessInto(out []float32) {
	for i := range out {
		out[i] = v.NextSample()
	}
}

// updateRealtimeFrequency re-derives the scaled frequency from the live
// pitch mapping so pitch changes land mid-hit without waiting for the next
// trigger.
func (v *Voice) updateRealtimeFrequency() {
	v.frequency = ScaleForAlgorithm(v.baseFreq, v.algorithm)
	v.currentFrequency = v.frequency
	if hook := algorithms[v.algorithm].onRetune; hook != nil {
		hook(v)
	}
}

func karplusCapacity(sampleRate int) int {
	return nextPow2(sampleRate / karplusMinFreq)
}

// Algorithm returns the selected algorithm index.
func (v *Voice) Algorithm() int {
	return v.algorithm
}

// Frequency returns the algorithm-scaled target frequency in Hz.
func (v *Voice) Frequency() float32 {
	return v.frequency
}

// TriggerActive reports whether a hit is currently sounding.
func (v *Voice) TriggerActive() bool {
	return v.active
}

// EnvelopeAmplitude returns the master envelope level: 1.0 at the trigger,
// decaying exponentially to the floor.
func (v *Voice) EnvelopeAmplitude() float32 {
	return v.env.amplitude
}

// SampleRate returns the current sample rate in Hz.
func (v *Voice) SampleRate() int {
	return v.sampleRate
}
