package drum

// Output stage constants from the hardware signal path: a gentle one-pole
// smoother before the DAC and a soft knee that keeps the mix inside the
// converter range.
const (
	antialiasAlpha  = 0.7
	saturationKnee  = 0.8
	saturationSlope = 5
)

// finalize runs the shared output stage: anti-alias smoothing, master and
// per-algorithm gain, then soft saturation into [-1, 1].
func (v *Voice) finalize(sample float32) float32 {
	smoothed := v.antialias.Process(sample)
	boosted := smoothed * v.tuning.MasterGain * v.tuning.AlgorithmGains[v.algorithm]
	return softSaturate(boosted)
}

// softSaturate is linear inside the knee and compresses the remainder
// through tanh, bounding the result to (-1, 1).
func softSaturate(x float32) float32 {
	switch {
	case x > saturationKnee:
		return saturationKnee + (1-saturationKnee)*tanhf((x-saturationKnee)*saturationSlope)
	case x < -saturationKnee:
		return -saturationKnee - (1-saturationKnee)*tanhf((-x-saturationKnee)*saturationSlope)
	default:
		return x
	}
}
