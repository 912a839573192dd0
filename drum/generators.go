package drum

import "math"

// Karplus-Strong excitation constants: buffer fill level and the fraction
// of the new period the read index jumps to on a retune.
const (
	karplusFillGain  = 0.5
	karplusSeekRatio = 0.8
)

const cowbellOscillators = 4

// Fixed cowbell partials, taken from the classic 808 analysis.
var cowbellFreqs = [cowbellOscillators]float32{555, 835, 1370, 1940}

// generateBass renders a kick: a 2 ms decaying impulse through a resonant
// lowpass whose cutoff starts at 4x the envelope frequency and relaxes.
func generateBass(v *Voice, t float32) float32 {
	var impulse float32
	if t < 0.002 {
		impulse = 1 - t/0.002
	}

	cutoff := v.env.frequency * (1 + 3*expDecay(8, t))
	resonance := 8 + v.param*12
	v.bassFilter.ConfigureResonantLowpass(cutoff, resonance, float32(v.sampleRate))

	return v.bassFilter.Process(impulse) * v.env.amplitude * 0.8
}

// generateSnare mixes a pitch-swept tone with a bandpassed noise bed. The
// parameter moves the noise color from dark to bright.
func generateSnare(v *Voice, t float32) float32 {
	toneFreq := v.env.frequency * (1 + 2*expDecay(25, t))
	tone := sinf(2*math.Pi*toneFreq*t) * v.env.toneAmp

	noise := v.noise.Next() * v.env.noiseAmp
	v.snareFilter.ConfigureBandpass(800+v.param*1200, 2, float32(v.sampleRate))
	filtered := v.snareFilter.Process(noise)

	return (tone*0.6 + filtered*0.4) * 0.7
}

// generateHiHat stacks four inharmonic squares over a noise bed and
// bandpasses the lot high.
func generateHiHat(v *Voice, t float32) float32 {
	f := v.env.frequency
	metallic := (squareWave(f*2.1, t) +
		squareWave(f*3.3, t)*0.8 +
		squareWave(f*4.7, t)*0.6 +
		squareWave(f*6.1, t)*0.4) * 0.25

	v.hihatFilter.ConfigureBandpass(10000, 3, float32(v.sampleRate))
	filtered := v.hihatFilter.Process(metallic + v.noise.Next()*0.8)

	return filtered * v.env.amplitude * 1.5
}

func generateKarplus(v *Voice, _ float32) float32 {
	return v.karplus.Tick() * v.env.amplitude
}

// generateModal sums the four decaying partials of the modal bank.
func generateModal(v *Voice, t float32) float32 {
	var sum float32
	for i := range v.modes {
		m := &v.modes[i]
		sum += sinf(m.phase) * m.amp * expDecay(m.decay, t)
		m.phase += 2 * math.Pi * m.freq / float32(v.sampleRate)
		if m.phase > 2*math.Pi {
			m.phase -= 2 * math.Pi
		}
	}
	return sum * v.env.amplitude * 0.25
}

// generateZap renders a laser drop: a saw chirp falling from up to 21x the
// current frequency, a short noise click, and an optional sub octave-up
// sine above parameter 0.1.
func generateZap(v *Voice, t float32) float32 {
	sweep := 8 + v.param*12
	zapFreq := v.currentFrequency * (1 + sweep*expDecay(20, t))

	phase := zapFreq * t
	saw := 2*(phase-float32(int(phase))) - 1
	sample := saw * v.env.amplitude * 0.5

	if t < 0.05 {
		sample += v.noise.Next() * (1 - t/0.05) * 0.3
	}
	if v.param > 0.1 {
		sample += sinf(2*math.Pi*zapFreq*2*t) * v.env.amplitude * v.param * 0.4
	}
	return sample * 0.7
}

// generateClap runs one noise source through a fixed bandpass and taps it
// twice: gated by the pulse train and quietly by the reverb tail.
func generateClap(v *Voice, _ float32) float32 {
	v.clapFilter.ConfigureBandpass(1000, 3, float32(v.sampleRate))
	filtered := v.clapFilter.Process(v.noise.Next() * 1.2)

	return (filtered*v.env.pulseEnv + filtered*v.env.reverbEnv*0.3) * 1.8
}

// generateCowbell sums four fixed-pitch squares with 1/n weights and
// bandpasses them; the parameter moves the filter center.
func generateCowbell(v *Voice, _ float32) float32 {
	var sum float32
	for i := range v.cowbellPhases {
		v.cowbellPhases[i] += 2 * math.Pi * cowbellFreqs[i] / float32(v.sampleRate)
		if v.cowbellPhases[i] > 2*math.Pi {
			v.cowbellPhases[i] -= 2 * math.Pi
		}
		sum += squarePulse(v.cowbellPhases[i]) / float32(i+1)
	}
	sum *= 0.25 * v.env.amplitude

	v.cowbellFilter.ConfigureBandpass(2000+v.param*3000, 4, float32(v.sampleRate))
	return v.cowbellFilter.Process(sum) * 0.8
}

func triggerSnare(v *Voice) {
	v.env.noiseAmp = 1
	v.env.toneAmp = 1
}

// triggerKarplus sizes the delay loop to the captured frequency, sets the
// string damping from the parameter and refills the loop with fresh noise.
func triggerKarplus(v *Voice) {
	v.karplus.SetDamping(0.995 - v.param*0.2)
	period := float64(float32(v.sampleRate) / v.currentFrequency)
	v.karplus.SetLoop(int(math.Round(period)))
	v.karplus.Fill(v.noise.Next, karplusFillGain)
}

func triggerModal(v *Voice) {
	v.setupModes()
}

func triggerClap(v *Voice) {
	v.env.pulseEnv = 1
	v.env.reverbEnv = 1
}

func triggerCowbell(v *Voice) {
	v.cowbellPhases = [cowbellOscillators]float32{}
}

// retuneKarplus shortens the effective period mid-hit by jumping the read
// index part-way into the loop. Lengthening is left to the next trigger.
func retuneKarplus(v *Voice) {
	newDelay := int(float32(v.sampleRate) / v.currentFrequency)
	if newDelay > 0 && newDelay < v.karplus.Loop() {
		v.karplus.SetIndex(int(float32(newDelay) * karplusSeekRatio))
	}
}

func retuneModal(v *Voice) {
	for i := range v.modes {
		v.modes[i].freq = v.currentFrequency * v.tuning.ModalRatios[i]
	}
}

// squarePulse is the sign of a sine at the given phase.
func squarePulse(phase float32) float32 {
	if sinf(phase) > 0 {
		return 1
	}
	return -1
}

// squareWave is the sign of a sine at frequency freq and time t.
func squareWave(freq, t float32) float32 {
	return squarePulse(2 * math.Pi * freq * t)
}
