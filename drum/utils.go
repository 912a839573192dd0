package drum

import (
	"math"

	"github.com/cwbudde/algo-approx"
)

// expDecay evaluates exp(-rate*t) with the fast exponential; every call
// site keeps rate and t non-negative.
func expDecay(rate, t float32) float32 {
	return approx.FastExp(-rate * t)
}

func pow2Approx(x float32) float32 {
	const ln2 = 0.69314718055994530942
	return approx.FastExp(x * ln2)
}

func sinf(x float32) float32 {
	return float32(math.Sin(float64(x)))
}

func tanhf(x float32) float32 {
	return float32(math.Tanh(float64(x)))
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
