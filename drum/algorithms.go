package drum

// algorithmDef wires one synthesis algorithm into the voice: its playable
// frequency window, pitch-envelope behavior, optional trigger/envelope/
// retune hooks and the per-sample generator.
type algorithmDef struct {
	name string

	// The mapped base frequency is multiplied by freqScale and clamped to
	// [freqMin, freqMax] before the generator sees it.
	freqScale float32
	freqMin   float32
	freqMax   float32

	// pitchEnvDecay > 0 sweeps the envelope frequency from 3x down to 1x
	// the current frequency at this rate; 0 tracks the current frequency
	// directly.
	pitchEnvDecay float32

	// noisy marks algorithms whose parameter input is smoothed harder
	// while selected.
	noisy bool

	onTrigger func(*Voice)
	updateEnv func(*Voice, float32)
	onRetune  func(*Voice)
	generate  func(*Voice, float32) float32
}

var algorithms = [NumAlgorithms]algorithmDef{
	AlgoBass: {
		name:          "bass",
		freqScale:     0.25,
		freqMin:       20,
		freqMax:       150,
		pitchEnvDecay: 5,
		generate:      generateBass,
	},
	AlgoSnare: {
		name:      "snare",
		freqScale: 0.5,
		freqMin:   100,
		freqMax:   400,
		noisy:     true,
		onTrigger: triggerSnare,
		updateEnv: snareEnvelope,
		generate:  generateSnare,
	},
	AlgoHiHat: {
		name:      "hihat",
		freqScale: 1,
		freqMin:   200,
		freqMax:   2000,
		noisy:     true,
		generate:  generateHiHat,
	},
	AlgoKarplus: {
		name:      "karplus",
		freqScale: 0.5,
		freqMin:   80,
		freqMax:   800,
		onTrigger: triggerKarplus,
		onRetune:  retuneKarplus,
		generate:  generateKarplus,
	},
	AlgoModal: {
		name:      "modal",
		freqScale: 4,
		freqMin:   240,
		freqMax:   2400,
		onTrigger: triggerModal,
		onRetune:  retuneModal,
		generate:  generateModal,
	},
	AlgoZap: {
		name:          "zap",
		freqScale:     1.0 / 2.8,
		freqMin:       50,
		freqMax:       500,
		pitchEnvDecay: 15,
		generate:      generateZap,
	},
	AlgoClap: {
		name:      "clap",
		freqScale: 1,
		freqMin:   150,
		freqMax:   1500,
		noisy:     true,
		onTrigger: triggerClap,
		updateEnv: clapEnvelope,
		generate:  generateClap,
	},
	AlgoCowbell: {
		name:      "cowbell",
		freqScale: 4,
		freqMin:   2000,
		freqMax:   8000,
		onTrigger: triggerCowbell,
		generate:  generateCowbell,
	},
}

// AlgorithmName returns the short name of algorithm index i.
func AlgorithmName(i int) string {
	if i < 0 || i >= NumAlgorithms {
		return "unknown"
	}
	return algorithms[i].name
}

// AlgorithmIndex resolves a short algorithm name to its index.
func AlgorithmIndex(name string) (int, bool) {
	for i := range algorithms {
		if algorithms[i].name == name {
			return i, true
		}
	}
	return 0, false
}

// AlgorithmNames lists the eight algorithm names in selection order.
func AlgorithmNames() []string {
	names := make([]string, NumAlgorithms)
	for i := range algorithms {
		names[i] = algorithms[i].name
	}
	return names
}
