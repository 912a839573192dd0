package drum

import "github.com/cwbudde/algo-drum/dsp"

// ADC calibration, matching the hardware input conditioning. The pitch CV
// passes through an inverting input stage; the knob and the two CV inputs
// only reach part of the converter range.
const (
	adcFullScaleVolts float32 = 3.3

	pitchCVMaxCount float32 = 4095
	pitchKnobMin    float32 = 10
	pitchKnobMax    float32 = 4000
	cvWindowMin     float32 = 8
	cvWindowMax     float32 = 2000

	cvBiasVolts   float32 = 1.65
	cvVoltsPerOct float32 = 0.33

	knobCentreVolts float32 = 1.65

	refFrequency float32 = 440
	octaveOffset float32 = -4
	cvOctaveSpan float32 = 5
)

// MapFrequency implements the 1 V/octave pitch law. cvVolts is the CV jack
// voltage, clamped to [0, 5]; knobVolts is the knob wiper voltage in
// [0, 3.3], centred at 1.65 V for a zero octave offset. The result is
// anchored so 4 V with a centred knob lands on 440 Hz.
func MapFrequency(cvVolts, knobVolts float32) float32 {
	cvOctaves := dsp.Clamp(cvVolts, 0, cvOctaveSpan)
	knobOctaves := (knobVolts - knobCentreVolts) / knobCentreVolts
	return refFrequency * pow2Approx(cvOctaves+knobOctaves+octaveOffset)
}

// ScaleForAlgorithm shifts the mapped base frequency into the selected
// algorithm's playable window and clamps it there. Out-of-range algorithm
// indices fall back to the full audio window.
func ScaleForAlgorithm(baseFreq float32, algorithm int) float32 {
	if algorithm < 0 || algorithm >= NumAlgorithms {
		return dsp.Clamp(baseFreq, 20, 8000)
	}
	def := &algorithms[algorithm]
	return dsp.Clamp(baseFreq*def.freqScale, def.freqMin, def.freqMax)
}

// SelectAlgorithm quantizes a normalized selection value to the nearest
// algorithm index.
func SelectAlgorithm(norm float32) int {
	idx := int(dsp.Clamp(norm, 0, 1)*float32(NumAlgorithms-1) + 0.5)
	if idx >= NumAlgorithms {
		idx = NumAlgorithms - 1
	}
	return idx
}

// cvJackVolts recovers the CV jack voltage from a raw pitch reading. The
// input stage inverts, so count 0 is the top of the range.
func cvJackVolts(counts float32) float32 {
	adc := (pitchCVMaxCount - counts) / pitchCVMaxCount * adcFullScaleVolts
	return (adc - cvBiasVolts) / cvVoltsPerOct
}

// knobVolts converts a raw knob reading to wiper volts through the
// calibrated travel window.
func knobVolts(counts float32) float32 {
	c := dsp.Clamp(counts, pitchKnobMin, pitchKnobMax)
	return (c - pitchKnobMin) / (pitchKnobMax - pitchKnobMin) * adcFullScaleVolts
}

// normalizedCV maps a raw CV reading through the calibrated window to
// [0, 1].
func normalizedCV(counts float32) float32 {
	return dsp.Clamp((counts-cvWindowMin)/(cvWindowMax-cvWindowMin), 0, 1)
}
