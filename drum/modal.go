package drum

import (
	"math"
	"sort"

	pdefd "github.com/cwbudde/algo-pde/fd"
	pdepoisson "github.com/cwbudde/algo-pde/poisson"
)

// NumModes is the size of the modal resonator bank.
const NumModes = 4

// modalMode is a single decaying partial of the modal bank.
type modalMode struct {
	freq  float32
	amp   float32
	decay float32
	phase float32
}

// setupModes retunes the modal bank from the captured frequency and the
// strike parameter. Phases restart so repeated hits are identical.
func (v *Voice) setupModes() {
	base := v.currentFrequency
	decayBase := 2 + v.param*8
	for i := range v.modes {
		v.modes[i] = modalMode{
			freq:  base * v.tuning.ModalRatios[i],
			amp:   v.tuning.ModalAmps[i],
			decay: decayBase * v.tuning.ModalDecayMul[i],
		}
	}
}

// MembraneModeRatios returns the first count eigenfrequency ratios of an
// ideal square membrane with clamped edges, normalized to the fundamental.
// The discrete Laplacian separates on a square grid, so the 2-D spectrum
// is the pairwise sums of the 1-D Dirichlet eigenvalues, and frequency
// goes as the square root of the eigenvalue. Degenerate pairs such as
// (1,2)/(2,1) collapse to a single ratio. Useful as a physically grounded
// alternative to the hand-tuned modal ratios.
func MembraneModeRatios(count int) []float32 {
	if count <= 0 {
		return nil
	}

	const gridSize = 64
	const h = 1.0 / gridSize

	oneD := pdefd.Eigenvalues(gridSize, h, pdepoisson.Dirichlet)
	// The low end of the 2-D spectrum only needs a handful of 1-D modes.
	if len(oneD) > 2*count+4 {
		oneD = oneD[:2*count+4]
	}

	sums := make([]float64, 0, len(oneD)*len(oneD))
	for _, lm := range oneD {
		for _, ln := range oneD {
			sums = append(sums, lm+ln)
		}
	}
	sort.Float64s(sums)

	fundamental := math.Sqrt(sums[0])
	ratios := make([]float32, 0, count)
	last := 0.0
	for _, s := range sums {
		r := math.Sqrt(s) / fundamental
		if r-last < 1e-3 {
			continue
		}
		ratios = append(ratios, float32(r))
		last = r
		if len(ratios) == count {
			break
		}
	}
	return ratios
}
