package drum

// Algorithm indices, in hardware selection order.
const (
	AlgoBass = iota
	AlgoSnare
	AlgoHiHat
	AlgoKarplus
	AlgoModal
	AlgoZap
	AlgoClap
	AlgoCowbell

	NumAlgorithms = 8
)

// Tuning holds the manually tuned level and envelope constants of the
// voice. The zero value is not usable; start from NewDefaultTuning and
// override fields, or load a preset.
type Tuning struct {
	// MasterGain scales the mix after the anti-alias smoother and before
	// soft saturation.
	MasterGain float32

	// AlgorithmGains balances the eight algorithms against each other.
	AlgorithmGains [NumAlgorithms]float32

	// DecayMin and DecaySpan define the master envelope rate in Hz as
	// DecayMin + DecaySpan*param for each algorithm.
	DecayMin  [NumAlgorithms]float32
	DecaySpan [NumAlgorithms]float32

	// Modal resonator bank: partial frequency ratios over the strike
	// frequency, per-partial amplitudes and decay-rate multipliers.
	ModalRatios   [NumModes]float32
	ModalAmps     [NumModes]float32
	ModalDecayMul [NumModes]float32
}

// NewDefaultTuning returns the hardware-equivalent tuning.
func NewDefaultTuning() *Tuning {
	return &Tuning{
		MasterGain: 2.0,
		AlgorithmGains: [NumAlgorithms]float32{
			AlgoBass:    1.0,
			AlgoSnare:   0.4,
			AlgoHiHat:   0.8,
			AlgoKarplus: 0.5,
			AlgoModal:   0.3,
			AlgoZap:     0.3,
			AlgoClap:    0.7,
			AlgoCowbell: 0.8,
		},
		DecayMin: [NumAlgorithms]float32{
			AlgoBass:    1.5,
			AlgoSnare:   4,
			AlgoHiHat:   10,
			AlgoKarplus: 3,
			AlgoModal:   4,
			AlgoZap:     8,
			AlgoClap:    6,
			AlgoCowbell: 4,
		},
		DecaySpan: [NumAlgorithms]float32{
			AlgoBass:    3.5,
			AlgoSnare:   20,
			AlgoHiHat:   70,
			AlgoKarplus: 5,
			AlgoModal:   6,
			AlgoZap:     12,
			AlgoClap:    30,
			AlgoCowbell: 6,
		},
		ModalRatios:   [NumModes]float32{1.0, 1.6, 2.3, 3.1},
		ModalAmps:     [NumModes]float32{1.0, 0.7, 0.5, 0.3},
		ModalDecayMul: [NumModes]float32{1.0, 1.3, 1.8, 2.5},
	}
}
