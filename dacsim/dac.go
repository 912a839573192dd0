// Package dacsim emulates the PT8211 16-bit R-2R DAC behind the hardware
// module's output jack: ladder quantization with correlated error,
// harmonic distortion, thermal plus 1/f noise, a mild high-frequency
// rolloff and the 2.5 V output stage. Desktop renders run through it when
// they should sound like the real output path instead of the ideal float
// mix.
package dacsim

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/algo-drum/dsp"
)

const (
	// maxDigital is the 16-bit full-scale magnitude of the ladder grid.
	maxDigital = 32767

	// rolloffHz places the R-2R output pole well above the audio band.
	rolloffHz = 20000

	// fundamentalGate keeps harmonic distortion off near-silence so the
	// noise floor cannot breed harmonics.
	fundamentalGate = 0.01

	statsInterval = 1024
)

// Config controls the DAC emulation.
type Config struct {
	SampleRate int

	// THD is the target total harmonic distortion as a fraction; the
	// datasheet's 0.08 % is 0.0008.
	THD float32

	// SNR is the target signal-to-noise ratio in dB.
	SNR float32

	// MaxOutput is the full-scale output voltage.
	MaxOutput float32

	// Seed drives the noise generator; equal seeds reproduce renders
	// exactly.
	Seed int64
}

// DefaultConfig returns the PT8211 datasheet values.
func DefaultConfig() Config {
	return Config{
		SampleRate: 44100,
		THD:        0.0008,
		SNR:        91.0,
		MaxOutput:  2.5,
		Seed:       1,
	}
}

func (c *Config) Validate() error {
	if c.SampleRate < 8000 {
		return fmt.Errorf("sample rate too low: %d", c.SampleRate)
	}
	if c.THD < 0 || c.THD > 0.5 {
		return fmt.Errorf("thd must be in [0, 0.5]")
	}
	if c.SNR <= 0 {
		return fmt.Errorf("snr must be > 0 dB")
	}
	if c.MaxOutput <= 0 {
		return fmt.Errorf("max output must be > 0 V")
	}
	return nil
}

// Emulator runs samples through the simulated conversion chain: frequency
// response, quantization, harmonic distortion, thermal noise, output
// scaling. One instance per channel; not safe for concurrent use.
type Emulator struct {
	cfg        Config
	rng        *rand.Rand
	respAlpha  float32
	noiseFloor float32 // 10^(SNR/20)

	respLast   float32
	quantNoise float32
	oneFNoise  float32

	inputRMS      float32
	outputRMS     float32
	distortionRMS float32
	statsCount    int
	currentTHD    float32
	currentSNR    float32
}

// NewEmulator builds an emulator after validating cfg.
func NewEmulator(cfg Config) (*Emulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Emulator{
		cfg:        cfg,
		rng:        rand.New(rand.NewSource(cfg.Seed)),
		respAlpha:  1 / (1 + 2*math.Pi*rolloffHz/float32(cfg.SampleRate)),
		noiseFloor: float32(math.Pow(10, float64(cfg.SNR)/20)),
	}, nil
}

// ProcessSample runs one sample through the conversion chain. Full scale
// maps to MaxOutput volts; at the stock 2.5 V reference the numeric range
// is unchanged.
func (e *Emulator) ProcessSample(in float32) float32 {
	s := e.frequencyResponse(in)
	s = e.quantize(s)
	s = e.distort(s)
	s = e.addNoise(s)
	s *= e.cfg.MaxOutput / 2.5

	e.updateStatistics(in, s)
	return s
}

// Process converts samples in place.
func (e *Emulator) Process(samples []float32) {
	for i, s := range samples {
		samples[i] = e.ProcessSample(s)
	}
}

func (e *Emulator) frequencyResponse(s float32) float32 {
	e.respLast = e.respAlpha*s + (1-e.respAlpha)*e.respLast
	return e.respLast
}

// quantize snaps the sample to the 16-bit grid and feeds a fraction of the
// running error back in: R-2R ladders produce correlated, not white,
// quantization noise.
func (e *Emulator) quantize(s float32) float32 {
	s = dsp.Clamp(s, -1, 1)
	q := float32(int16(s*maxDigital)) / maxDigital
	e.quantNoise = e.quantNoise*0.95 + (q-s)*0.05
	return q + e.quantNoise*0.1
}

// distort injects the PT8211 harmonic signature: a dominant second
// harmonic, a weaker third and a small high-order term.
func (e *Emulator) distort(s float32) float32 {
	abs := s
	if abs < 0 {
		abs = -abs
	}
	if abs <= fundamentalGate {
		return s
	}
	thd := e.cfg.THD
	d := s * s * thd
	d += s * s * s * 0.5 * thd
	d += float32(math.Sin(float64(4*math.Pi*s))) * 0.1 * thd
	return s + d
}

// addNoise mixes level-tracking thermal noise with a slow 1/f component.
func (e *Emulator) addNoise(s float32) float32 {
	level := s
	if level < 0 {
		level = -level
	}
	thermal := (e.rng.Float32()*2 - 1) * level / e.noiseFloor
	e.oneFNoise = e.oneFNoise*0.999 + thermal*0.001
	return s + thermal*0.8 + e.oneFNoise*0.2
}

func (e *Emulator) updateStatistics(in, out float32) {
	e.inputRMS = e.inputRMS*0.999 + in*in*0.001
	e.outputRMS = e.outputRMS*0.999 + out*out*0.001
	d := out - in
	e.distortionRMS = e.distortionRMS*0.999 + d*d*0.001

	e.statsCount++
	if e.statsCount < statsInterval {
		return
	}
	e.statsCount = 0

	if e.inputRMS > 1e-4 {
		thd := float32(math.Sqrt(float64(e.distortionRMS / e.inputRMS)))
		e.currentTHD = dsp.Clamp(thd, 0, 1)
	} else {
		e.currentTHD = 0
	}

	switch {
	case e.outputRMS <= 1e-4:
		e.currentSNR = 0
	case e.distortionRMS <= 0:
		e.currentSNR = 120
	default:
		ratio := math.Sqrt(float64(e.outputRMS)) / math.Sqrt(float64(e.distortionRMS))
		e.currentSNR = dsp.Clamp(float32(20*math.Log10(ratio)), 0, 120)
	}
}

// CurrentTHD returns the running distortion estimate, refreshed every 1024
// samples. It measures everything the chain adds, response lag included,
// so steady tones read higher than the configured target.
func (e *Emulator) CurrentTHD() float32 {
	return e.currentTHD
}

// CurrentSNR returns the running signal-to-noise estimate in dB, refreshed
// every 1024 samples.
func (e *Emulator) CurrentSNR() float32 {
	return e.currentSNR
}

// Reset clears filter, noise and statistics state. The noise sequence
// continues rather than restarting; rebuild the emulator to reproduce a
// render.
func (e *Emulator) Reset() {
	e.respLast = 0
	e.quantNoise = 0
	e.oneFNoise = 0
	e.inputRMS = 0
	e.outputRMS = 0
	e.distortionRMS = 0
	e.statsCount = 0
	e.currentTHD = 0
	e.currentSNR = 0
}
