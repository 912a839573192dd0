package dsp

import (
	"math"

	dspcore "github.com/cwbudde/algo-dsp/dsp/core"
)

// Biquad implements a second-order IIR filter (no heap allocations in Process)
type Biquad struct {
	// Coefficients
	b0, b1, b2 float32
	a1, a2     float32

	// State (previous samples)
	x1, x2 float32 // input history
	y1, y2 float32 // output history
}

// NewBiquad creates a new biquad filter with the given coefficients
func NewBiquad(b0, b1, b2, a1, a2 float32) *Biquad {
	return &Biquad{
		b0: b0,
		b1: b1,
		b2: b2,
		a1: a1,
		a2: a2,
	}
}

// NewBandpass creates a bandpass biquad centred on center with the given Q.
func NewBandpass(center, q, sampleRate float32) *Biquad {
	b := &Biquad{}
	b.ConfigureBandpass(center, q, sampleRate)
	return b
}

// NewResonantLowpass creates a 2-pole resonant lowpass biquad.
func NewResonantLowpass(cutoff, resonance, sampleRate float32) *Biquad {
	b := &Biquad{}
	b.ConfigureResonantLowpass(cutoff, resonance, sampleRate)
	return b
}

// ConfigureBandpass recomputes the coefficients for a unity-peak-gain
// bandpass (RBJ cookbook) without touching the filter history. Centre and Q
// are clamped before the computation so the poles stay inside the unit
// circle for any caller-supplied values.
func (b *Biquad) ConfigureBandpass(center, q, sampleRate float32) {
	center = Clamp(center, 20, 0.45*sampleRate)
	q = Clamp(q, 0.5, 20)

	w0 := 2 * math.Pi * float64(center) / float64(sampleRate)
	alpha := math.Sin(w0) / (2 * float64(q))
	cosw0 := math.Cos(w0)
	norm := 1 / (1 + alpha)

	b.b0 = float32(alpha * norm)
	b.b1 = 0
	b.b2 = float32(-alpha * norm)
	b.a1 = float32(-2 * cosw0 * norm)
	b.a2 = float32((1 - alpha) * norm)
}

// ConfigureResonantLowpass recomputes the coefficients for a 2-pole lowpass
// whose resonance reaches self-oscillation territory near the upper end of
// the clamp range. Cutoff clamps to [20, 8000] Hz and resonance to
// [0.5, 20]; unclamped values risk a pole radius at or above 1.
func (b *Biquad) ConfigureResonantLowpass(cutoff, resonance, sampleRate float32) {
	cutoff = Clamp(cutoff, 20, 8000)
	resonance = Clamp(resonance, 0.5, 20)

	w0 := 2 * math.Pi * float64(cutoff) / float64(sampleRate)
	alpha := math.Sin(w0) / (2 * float64(resonance))
	cosw0 := math.Cos(w0)
	norm := 1 / (1 + alpha)

	b.b0 = float32((1 - cosw0) * 0.5 * norm)
	b.b1 = float32((1 - cosw0) * norm)
	b.b2 = float32((1 - cosw0) * 0.5 * norm)
	b.a1 = float32(-2 * cosw0 * norm)
	b.a2 = float32((1 - alpha) * norm)
}

// Process processes one sample through the biquad filter
func (b *Biquad) Process(input float32) float32 {
	// Direct Form I implementation
	output := b.b0*input + b.b1*b.x1 + b.b2*b.x2 - b.a1*b.y1 - b.a2*b.y2
	output = float32(dspcore.FlushDenormals(float64(output)))

	// Update state
	b.x2 = b.x1
	b.x1 = input
	b.y2 = b.y1
	b.y1 = output

	return output
}

// Reset clears the filter state
func (b *Biquad) Reset() {
	b.x1, b.x2 = 0, 0
	b.y1, b.y2 = 0, 0
}

// OnePole is a single-pole lowpass with a fixed blend factor:
// y = alpha*x + (1-alpha)*y.
type OnePole struct {
	alpha float32
	y     float32
}

// NewOnePole creates a one-pole lowpass with the given blend factor in [0,1].
func NewOnePole(alpha float32) *OnePole {
	return &OnePole{alpha: Clamp(alpha, 0, 1)}
}

// Process filters one sample.
func (p *OnePole) Process(input float32) float32 {
	p.y = float32(dspcore.FlushDenormals(float64(p.alpha*input + (1-p.alpha)*p.y)))
	return p.y
}

// Reset clears the filter state
func (p *OnePole) Reset() {
	p.y = 0
}

// DelayLine is a noise-excited feedback comb: each Tick reads the current
// sample and replaces it with the damped average of itself and its successor
// inside the active loop, which is the Karplus-Strong recurrence.
type DelayLine struct {
	buffer  []float32
	loopLen int
	index   int
	damping float32
}

// NewDelayLine creates a delay line with the given capacity in samples.
func NewDelayLine(capacity int) *DelayLine {
	if capacity < 2 {
		capacity = 2
	}
	return &DelayLine{
		buffer:  make([]float32, capacity),
		loopLen: capacity,
		damping: 0.99,
	}
}

// Capacity returns the allocated buffer size in samples.
func (d *DelayLine) Capacity() int {
	return len(d.buffer)
}

// Loop returns the active loop length in samples.
func (d *DelayLine) Loop() int {
	return d.loopLen
}

// SetLoop sets the active loop length, clamped to [2, capacity], and
// returns the length actually applied.
func (d *DelayLine) SetLoop(length int) int {
	if length < 2 {
		length = 2
	}
	if length > len(d.buffer) {
		length = len(d.buffer)
	}
	d.loopLen = length
	if d.index >= d.loopLen {
		d.index = 0
	}
	return d.loopLen
}

// SetDamping sets the per-tap feedback damping, clamped to [0, 1].
func (d *DelayLine) SetDamping(damping float32) {
	d.damping = Clamp(damping, 0, 1)
}

// Fill replaces the active loop contents with scaled samples drawn from gen
// and rewinds the read index.
func (d *DelayLine) Fill(gen func() float32, scale float32) {
	for i := 0; i < d.loopLen; i++ {
		d.buffer[i] = gen() * scale
	}
	d.index = 0
}

// SetIndex repositions the read index; positions outside the active loop
// are ignored.
func (d *DelayLine) SetIndex(i int) {
	if i < 0 || i >= d.loopLen {
		return
	}
	d.index = i
}

// Tick advances the loop by one sample and returns the value read before
// the damped-average write-back.
func (d *DelayLine) Tick() float32 {
	out := d.buffer[d.index]

	next := d.index + 1
	if next >= d.loopLen {
		next = 0
	}

	avg := (d.buffer[d.index] + d.buffer[next]) * 0.5
	d.buffer[d.index] = float32(dspcore.FlushDenormals(float64(avg * d.damping)))

	d.index = next
	return out
}

// Reset clears the buffer and rewinds the read index.
func (d *DelayLine) Reset() {
	for i := range d.buffer {
		d.buffer[i] = 0
	}
	d.index = 0
}

// Noise is a deterministic linear congruential noise source producing
// samples in [-1, 1). The zero value is not ready to use; call NewNoise or
// Seed first so the state is nonzero.
type Noise struct {
	state uint32
}

// NewNoise creates a noise source in its initial state.
func NewNoise() *Noise {
	return &Noise{state: 1}
}

// Next returns the next pseudo-random sample in [-1, 1).
func (n *Noise) Next() float32 {
	n.state = n.state*1103515245 + 12345
	return float32((n.state>>16)&0x7FFF)/16384 - 1
}

// Reset rewinds the generator to its initial state.
func (n *Noise) Reset() {
	n.state = 1
}

// Seed sets the generator state directly.
func (n *Noise) Seed(state uint32) {
	n.state = state
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
