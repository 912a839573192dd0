package drum

// Clap pulse train constants: four bursts 30 ms apart, each 10 ms wide.
const (
	clapPulses       = 4
	clapPulseSpacing = 0.03
	clapPulseWidth   = 0.01
	clapPulseDecay   = 50
)

// envelope is the exponential decay state of the active hit. amplitude is
// the master component; the remaining fields are per-algorithm splits that
// need independent time constants.
type envelope struct {
	amplitude float32
	decayRate float32
	frequency float32

	noiseAmp  float32
	toneAmp   float32
	pulseEnv  float32
	reverbEnv float32
}

// updateEnvelope advances every envelope component to elapsed time t and
// retires the trigger once the master amplitude falls below the audible
// floor.
func (v *Voice) updateEnvelope(t float32) {
	def := &algorithms[v.algorithm]

	// The fast exponential can overshoot unity by a hair at t=0.
	amp := expDecay(v.env.decayRate, t)
	if amp > 1 {
		amp = 1
	}
	v.env.amplitude = amp
	if def.pitchEnvDecay > 0 {
		v.env.frequency = v.currentFrequency * (1 + 2*expDecay(def.pitchEnvDecay, t))
	} else {
		v.env.frequency = v.currentFrequency
	}
	if def.updateEnv != nil {
		def.updateEnv(v, t)
	}

	if v.env.amplitude < envelopeFloor {
		v.active = false
	}
}

// snareEnvelope splits the master envelope: the noise bed dies half again
// as fast as the tone.
func snareEnvelope(v *Voice, t float32) {
	v.env.noiseAmp = expDecay(1.5*v.env.decayRate, t)
	v.env.toneAmp = v.env.amplitude
}

// clapEnvelope drives the clap's pulse train and reverb tail. Each pulse
// window restarts a fast decay; the tail stretches with the parameter.
func clapEnvelope(v *Voice, t float32) {
	var pulses float32
	for i := 0; i < clapPulses; i++ {
		pt := t - float32(i)*clapPulseSpacing
		if pt >= 0 && pt < clapPulseWidth {
			pulses += expDecay(clapPulseDecay, pt)
		}
	}
	v.env.pulseEnv = pulses
	v.env.reverbEnv = expDecay(v.env.decayRate*(0.5+v.param*1.5), t)
}
