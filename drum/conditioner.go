package drum

// Channel identifies one conditioned control input.
type Channel int

// Conditioner channels, matching the hardware ADC inputs.
const (
	ChannelPitch Channel = iota
	ChannelKnob
	ChannelAlgo
	ChannelParam

	NumChannels = 4
)

// ConditionerConfig sets the per-channel smoothing and jitter-rejection
// constants of the Conditioner.
type ConditionerConfig struct {
	// Alpha is the exponential smoothing coefficient per channel; higher
	// values track the raw input faster.
	Alpha [NumChannels]float32

	// NoisyParamAlpha replaces Alpha[ChannelParam] while a noise-heavy
	// algorithm is selected, so parameter chatter cannot modulate the
	// noise color audibly.
	NoisyParamAlpha float32

	// Deadband is the raw-count change below which a new reading does not
	// move the smoothing target.
	Deadband [NumChannels]float32

	// MinIntervalMs rate-limits target updates per channel.
	MinIntervalMs float32
}

// NewDefaultConditionerConfig returns the hardware conditioning constants:
// a tight deadband on the pitch CV, a slow algorithm selector and a 1 ms
// update rate limit.
func NewDefaultConditionerConfig() *ConditionerConfig {
	return &ConditionerConfig{
		Alpha:           [NumChannels]float32{0.6, 0.6, 0.3, 0.6},
		NoisyParamAlpha: 0.1,
		Deadband:        [NumChannels]float32{1, 2, 2, 2},
		MinIntervalMs:   1,
	}
}

type channelFilter struct {
	value      float32
	lastRaw    float32
	lastUpdate uint64
	primed     bool
}

// Conditioner turns raw ADC counts into stable control values. Each
// channel keeps a smoothing target that only moves when a reading clears
// the rate limit and the deadband; the smoothed value converges toward the
// target on every call.
type Conditioner struct {
	cfg         ConditionerConfig
	minInterval uint64
	noisy       bool
	channels    [NumChannels]channelFilter
}

// NewConditioner builds a conditioner for the given sample rate. A nil
// config uses the hardware defaults.
func NewConditioner(cfg *ConditionerConfig, sampleRate int) *Conditioner {
	if cfg == nil {
		cfg = NewDefaultConditionerConfig()
	}
	c := &Conditioner{cfg: *cfg}
	c.SetSampleRate(sampleRate)
	return c
}

// SetSampleRate rescales the rate limit, which is held in samples.
func (c *Conditioner) SetSampleRate(hz int) {
	if hz <= 0 {
		hz = defaultSampleRate
	}
	ms := c.cfg.MinIntervalMs
	if ms < 0 {
		ms = 0
	}
	c.minInterval = uint64(ms * float32(hz) / 1000)
}

// SetNoisySelection slows the parameter channel while a noise-heavy
// algorithm is selected.
func (c *Conditioner) SetNoisySelection(noisy bool) {
	c.noisy = noisy
}

// Condition feeds one raw reading for channel ch at the given sample time
// and returns the smoothed value. The first reading after construction or
// Reset passes through unsmoothed.
func (c *Conditioner) Condition(raw float32, ch Channel, nowSamples uint64) float32 {
	if ch < 0 || int(ch) >= NumChannels {
		return raw
	}
	f := &c.channels[ch]
	if !f.primed {
		f.value = raw
		f.lastRaw = raw
		f.lastUpdate = nowSamples
		f.primed = true
		return raw
	}

	if nowSamples-f.lastUpdate >= c.minInterval {
		delta := raw - f.lastRaw
		if delta < 0 {
			delta = -delta
		}
		if delta >= c.cfg.Deadband[ch] {
			f.lastRaw = raw
			f.lastUpdate = nowSamples
		}
	}

	alpha := c.cfg.Alpha[ch]
	if ch == ChannelParam && c.noisy {
		alpha = c.cfg.NoisyParamAlpha
	}
	f.value += alpha * (f.lastRaw - f.value)
	return f.value
}

// Value returns the current smoothed value of ch without feeding it.
func (c *Conditioner) Value(ch Channel) float32 {
	if ch < 0 || int(ch) >= NumChannels {
		return 0
	}
	return c.channels[ch].value
}

// Reset clears all channel state; the next reading per channel passes
// through unsmoothed.
func (c *Conditioner) Reset() {
	c.channels = [NumChannels]channelFilter{}
}
