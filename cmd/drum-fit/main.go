package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-drum/drum"
	fitcommon "github.com/cwbudde/algo-drum/internal/fitcommon"
	"github.com/cwbudde/algo-drum/preset"
)

func main() {
	referencePath := flag.String("reference", "reference/hit.wav", "Reference WAV path")
	presetPath := flag.String("preset", "", "Base tuning preset JSON (built-in hardware tuning when empty)")
	outputPreset := flag.String("output-preset", "presets/fitted.json", "Path to write best fitted preset JSON")
	reportPath := flag.String("report", "", "Optional report JSON path (default: <output-preset>.report.json)")
	optimize := flag.String("optimize", "voice", "Comma-separated knob groups to optimize: voice, modal")
	algorithm := flag.String("algorithm", "bass", "Algorithm to fit (name or index 0-7)")
	pitch := flag.Float64("pitch", 0.5, "Base pitch control in [0,1]")
	param := flag.Float64("param", 0.5, "Base algorithm parameter in [0,1]")
	sampleRate := flag.Int("sample-rate", 44100, "Render/analysis sample rate")
	seed := flag.Int64("seed", 1, "Random seed")
	timeBudget := flag.Float64("time-budget", 120.0, "Optimization time budget in seconds")
	maxEvals := flag.Int("max-evals", 10000, "Maximum objective evaluations")
	reportEvery := flag.Int("report-every", 20, "Print progress every N evaluations")
	checkpointEvery := flag.Int("checkpoint-every", 1, "Write checkpoint every N best-score improvements")
	decayDBFS := flag.Float64("decay-dbfs", -90.0, "Auto-stop threshold in dBFS")
	decayHoldBlocks := flag.Int("decay-hold-blocks", 6, "Consecutive below-threshold blocks for stop")
	minDuration := flag.Float64("min-duration", 0.25, "Minimum render duration in seconds")
	maxDuration := flag.Float64("max-duration", 10.0, "Maximum render duration in seconds")
	optSampleRate := flag.Int("opt-sample-rate", 0, "Optimization-loop sample rate (0 uses --sample-rate)")
	optMinDuration := flag.Float64("opt-min-duration", -1, "Optimization-loop min render duration seconds (<0 uses --min-duration)")
	optMaxDuration := flag.Float64("opt-max-duration", -1, "Optimization-loop max render duration seconds (<0 uses --max-duration)")
	renderBlockSize := flag.Int("render-block-size", 128, "Audio render block size for candidate evaluation")
	refineTopK := flag.Int("refine-top-k", 3, "After optimization, re-evaluate best N candidates at full settings")
	topK := flag.Int("top-k", 5, "How many top candidates to keep in report")
	resume := flag.Bool("resume", true, "Resume from previous best_knobs report when available")
	resumeReport := flag.String("resume-report", "", "Optional report JSON path to resume from (default: current report path)")
	workers := flag.String("workers", "1", "Parallel optimization workers running independent Mayfly rounds (number or 'auto')")

	mayflyVariant := flag.String("mayfly-variant", "desma", "Mayfly variant: ma|desma|olce|eobbma|gsasma|mpma|aoblmoa")
	mayflyPop := flag.Int("mayfly-pop", 10, "Male and female population size per Mayfly run")
	mayflyRoundEvals := flag.Int("mayfly-round-evals", 240, "Target eval budget per Mayfly round")
	flag.Parse()

	groups, err := parseOptimizeGroups(*optimize)
	if err != nil {
		die("invalid --optimize: %v", err)
	}
	algoIdx, err := parseAlgorithm(*algorithm)
	if err != nil {
		die("%v", err)
	}

	if *outputPreset == "" {
		die("output-preset must not be empty")
	}
	if *maxEvals < 1 {
		die("max-evals must be >= 1")
	}
	if *timeBudget <= 0 {
		die("time-budget must be > 0")
	}
	if *reportEvery < 1 {
		*reportEvery = 1
	}
	if *checkpointEvery < 1 {
		*checkpointEvery = 1
	}
	if *mayflyPop < 2 {
		*mayflyPop = 2
	}
	if *mayflyRoundEvals < *mayflyPop*2 {
		*mayflyRoundEvals = *mayflyPop * 2
	}
	if *topK < 1 {
		*topK = 1
	}
	if *optSampleRate <= 0 {
		*optSampleRate = *sampleRate
	}
	if *optMinDuration < 0 {
		*optMinDuration = *minDuration
	}
	if *optMaxDuration < 0 {
		*optMaxDuration = *maxDuration
	}
	if *optMaxDuration < *optMinDuration {
		*optMaxDuration = *optMinDuration
	}
	if *renderBlockSize < 16 {
		*renderBlockSize = 16
	}
	if *refineTopK < 1 {
		*refineTopK = 1
	}
	if *refineTopK > *topK {
		*refineTopK = *topK
	}
	parsedWorkers, err := parseWorkersFlag(*workers)
	if err != nil {
		die("invalid workers value: %v", err)
	}

	baseConfig := drum.Config{
		Tuning:      drum.NewDefaultTuning(),
		Conditioner: drum.NewDefaultConditionerConfig(),
	}
	if *presetPath != "" {
		baseConfig, err = preset.LoadJSON(*presetPath)
		if err != nil {
			die("failed to load preset: %v", err)
		}
	}

	refRaw, refSR, err := readWAVMono(*referencePath)
	if err != nil {
		die("failed to read reference: %v", err)
	}
	refOpt, err := resampleIfNeeded(refRaw, refSR, *optSampleRate)
	if err != nil {
		die("failed to resample optimization reference: %v", err)
	}
	refFull, err := resampleIfNeeded(refRaw, refSR, *sampleRate)
	if err != nil {
		die("failed to resample full reference: %v", err)
	}

	defs, initCand := initCandidate(baseConfig, algoIdx, *pitch, *param, groups)
	if *resume {
		resumePath := *resumeReport
		if resumePath == "" {
			if *reportPath != "" {
				resumePath = *reportPath
			} else {
				resumePath = *outputPreset + ".report.json"
			}
		}
		if resumed, ok, err := loadCandidateFromReport(resumePath, defs, initCand); err != nil {
			fmt.Fprintf(os.Stderr, "resume skipped (%s): %v\n", resumePath, err)
		} else if ok {
			initCand = resumed
			fmt.Printf("Resumed candidate from %s\n", resumePath)
		}
	}

	cfg := &optimizationConfig{
		reference:        refOpt,
		finalReference:   refFull,
		baseConfig:       baseConfig,
		defs:             defs,
		initCandidate:    initCand,
		algoIdx:          algoIdx,
		basePitch:        *pitch,
		baseParam:        *param,
		sampleRate:       *optSampleRate,
		finalSampleRate:  *sampleRate,
		seed:             *seed,
		timeBudget:       *timeBudget,
		maxEvals:         *maxEvals,
		reportEvery:      *reportEvery,
		checkpointEvery:  *checkpointEvery,
		decayDBFS:        *decayDBFS,
		decayHoldBlocks:  *decayHoldBlocks,
		minDuration:      *optMinDuration,
		maxDuration:      *optMaxDuration,
		finalMinDuration: *minDuration,
		finalMaxDuration: *maxDuration,
		renderBlockSize:  *renderBlockSize,
		refineTopK:       *refineTopK,
		mayflyVariant:    *mayflyVariant,
		mayflyPop:        *mayflyPop,
		mayflyRoundEvals: *mayflyRoundEvals,
		workers:          parsedWorkers,
		topK:             *topK,
		groups:           groups,
		outputPreset:     *outputPreset,
		reportPath:       *reportPath,
		referencePath:    *referencePath,
		presetPath:       *presetPath,
	}

	result, err := runOptimization(cfg)
	if err != nil {
		die("optimization failed: %v", err)
	}

	if err := writeOutputs(
		*outputPreset,
		*reportPath,
		*referencePath,
		*presetPath,
		*sampleRate,
		algoIdx,
		result.bestPitch,
		result.bestParam,
		result.elapsed,
		result.evals,
		strings.ToLower(*mayflyVariant),
		defs,
		result.best,
		result.bestMetrics,
		result.bestConfig,
		result.checkpoints,
		result.top,
	); err != nil {
		die("failed to write outputs: %v", err)
	}

	fmt.Printf("Done evals=%d elapsed=%.1fs best_score=%.4f best_similarity=%.2f%% variant=%s\n", result.evals, result.elapsed, result.bestMetrics.Score, result.bestMetrics.Similarity*100.0, strings.ToLower(*mayflyVariant))
}

func parseWorkersFlag(raw string) (int, error) {
	return fitcommon.ParseWorkers(raw)
}

func parseAlgorithm(raw string) (int, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if idx, ok := drum.AlgorithmIndex(name); ok {
		return idx, nil
	}
	if n, err := strconv.Atoi(name); err == nil && n >= 0 && n < drum.NumAlgorithms {
		return n, nil
	}
	return 0, fmt.Errorf("unknown algorithm %q (use 0-%d or one of: %s)",
		raw, drum.NumAlgorithms-1, strings.Join(drum.AlgorithmNames(), ", "))
}

func loadCandidateFromReport(path string, defs []knobDef, fallback candidate) (candidate, bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fallback, false, nil
		}
		return fallback, false, err
	}

	var rep struct {
		BestKnobs map[string]float64 `json:"best_knobs"`
	}
	if err := json.Unmarshal(b, &rep); err != nil {
		return fallback, false, err
	}
	if len(rep.BestKnobs) == 0 {
		return fallback, false, nil
	}

	vals := make([]float64, len(fallback.Vals))
	copy(vals, fallback.Vals)
	updated := false
	for i, d := range defs {
		if v, ok := rep.BestKnobs[d.Name]; ok {
			vals[i] = clamp(v, d.Min, d.Max)
			if d.IsInt {
				vals[i] = math.Round(vals[i])
			}
			updated = true
		}
	}
	if !updated {
		return fallback, false, nil
	}
	return candidate{Vals: vals}, true, nil
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
