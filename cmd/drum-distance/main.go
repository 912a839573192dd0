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

	"github.com/cwbudde/algo-drum/analysis"
	"github.com/cwbudde/algo-drum/drum"
	fitcommon "github.com/cwbudde/algo-drum/internal/fitcommon"
	"github.com/cwbudde/algo-drum/preset"
)

func main() {
	referencePath := flag.String("reference", "reference/hit.wav", "Reference WAV path")
	candidatePath := flag.String("candidate", "", "Candidate WAV path; if empty, render candidate from drum voice")
	presetPath := flag.String("preset", "", "Tuning preset JSON for rendered candidate (built-in hardware tuning when empty)")
	algorithm := flag.String("algorithm", "bass", "Algorithm for rendered candidate (name or index 0-7)")
	pitch := flag.Float64("pitch", 0.5, "Pitch control in [0,1] for rendered candidate")
	param := flag.Float64("param", 0.5, "Algorithm parameter in [0,1] for rendered candidate")
	sampleRate := flag.Int("sample-rate", 44100, "Analysis sample rate in Hz")
	decayDBFS := flag.Float64("decay-dbfs", -90.0, "Auto-stop threshold in dBFS for rendered candidate")
	decayHoldBlocks := flag.Int("decay-hold-blocks", 6, "Consecutive below-threshold blocks required for stop")
	minDuration := flag.Float64("min-duration", 0.25, "Minimum rendered duration in seconds")
	maxDuration := flag.Float64("max-duration", 10.0, "Maximum rendered duration in seconds")
	writeCandidate := flag.String("write-candidate", "", "Optional path to write rendered candidate WAV")
	jsonOut := flag.Bool("json", false, "Print metrics as JSON")
	flag.Parse()

	ref, refSR, err := fitcommon.ReadWAVMono(*referencePath)
	if err != nil {
		die("failed to read reference: %v", err)
	}
	ref, err = fitcommon.ResampleIfNeeded(ref, refSR, *sampleRate)
	if err != nil {
		die("failed to resample reference: %v", err)
	}

	var cand []float64
	if *candidatePath != "" {
		candRaw, candSR, err := fitcommon.ReadWAVMono(*candidatePath)
		if err != nil {
			die("failed to read candidate: %v", err)
		}
		cand, err = fitcommon.ResampleIfNeeded(candRaw, candSR, *sampleRate)
		if err != nil {
			die("failed to resample candidate: %v", err)
		}
	} else {
		algoIdx, err := parseAlgorithm(*algorithm)
		if err != nil {
			die("%v", err)
		}
		samples, err := renderCandidate(
			*presetPath,
			algoIdx,
			*pitch,
			*param,
			*sampleRate,
			*decayDBFS,
			*decayHoldBlocks,
			*minDuration,
			*maxDuration,
		)
		if err != nil {
			die("failed to render candidate: %v", err)
		}
		cand = fitcommon.ToFloat64(samples)
		if *writeCandidate != "" {
			if err := fitcommon.WriteMonoWAV(*writeCandidate, samples, *sampleRate); err != nil {
				die("failed to write candidate wav: %v", err)
			}
		}
	}

	metrics := analysis.Compare(ref, cand, *sampleRate)
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(metrics); err != nil {
			die("json encode failed: %v", err)
		}
		return
	}

	fmt.Printf("Reference frames: %d\n", metrics.ReferenceFrames)
	fmt.Printf("Candidate frames: %d\n", metrics.CandidateFrames)
	fmt.Printf("Aligned frames:   %d\n", metrics.AlignedFrames)
	fmt.Printf("Onsets:           ref=%d cand=%d\n", metrics.RefOnset, metrics.CandOnset)
	fmt.Printf("Lag:              %d samples (%.3f ms)\n", metrics.LagSamples, 1000.0*float64(metrics.LagSamples)/float64(metrics.SampleRate))
	fmt.Println()
	fmt.Printf("Component        Raw          Norm   Weight  Contribution\n")
	fmt.Printf("─────────────────────────────────────────────────────────\n")
	printComp := func(name string, raw string, norm, weight float64, dominant bool) {
		contrib := norm * weight
		marker := ""
		if dominant {
			marker = " ◄"
		}
		fmt.Printf("%-16s %-12s %5.1f%%  ×%.2f   → %.4f%s\n", name, raw, norm*100, weight, contrib, marker)
	}
	printComp("Time RMSE", fmt.Sprintf("%.6f", metrics.TimeRMSE), metrics.TimeNorm, analysis.WeightTime, metrics.Dominant == "time")
	printComp("Envelope RMSE", fmt.Sprintf("%.1f dB", metrics.EnvelopeRMSEDB), metrics.EnvelopeNorm, analysis.WeightEnvelope, metrics.Dominant == "envelope")
	printComp("Spectral RMSE", fmt.Sprintf("%.1f dB", metrics.SpectralRMSEDB), metrics.SpectralNorm, analysis.WeightSpectral, metrics.Dominant == "spectral")
	printComp("Attack RMSE", fmt.Sprintf("%.1f dB", metrics.AttackSpectralRMSEDB), metrics.AttackNorm, analysis.WeightAttack, metrics.Dominant == "attack")
	printComp("Decay diff", fmt.Sprintf("%.1f dB/s", metrics.DecayDiffDBPerS), metrics.DecayNorm, analysis.WeightDecay, metrics.Dominant == "decay")
	fmt.Printf("─────────────────────────────────────────────────────────\n")
	fmt.Printf("Score:            %.4f  (0 best, 1 worst)\n", metrics.Score)
	fmt.Printf("Similarity:       %.2f%%\n", metrics.Similarity*100.0)
	fmt.Printf("Dominant factor:  %s\n", metrics.Dominant)
	fmt.Printf("\nDecay slopes: ref=%.1f dB/s  cand=%.1f dB/s\n", metrics.RefDecayDBPerS, metrics.CandDecayDBPerS)
}

func renderCandidate(
	presetPath string,
	algoIdx int,
	pitch float64,
	param float64,
	sampleRate int,
	decayDBFS float64,
	decayHoldBlocks int,
	minDuration float64,
	maxDuration float64,
) ([]float32, error) {
	cfg := drum.DefaultConfig()
	if presetPath != "" {
		var err error
		cfg, err = preset.LoadJSON(presetPath)
		if err != nil {
			return nil, err
		}
	}
	cfg.SampleRate = sampleRate
	v := drum.NewVoice(cfg)

	if decayHoldBlocks < 1 {
		decayHoldBlocks = 1
	}
	if minDuration < 0 {
		minDuration = 0
	}
	if maxDuration < minDuration {
		maxDuration = minDuration
	}

	minFrames := int(float64(sampleRate) * minDuration)
	maxFrames := int(float64(sampleRate) * maxDuration)
	if maxFrames < 1 {
		return nil, errors.New("max duration too small")
	}

	threshold := math.Pow(10.0, decayDBFS/20.0)
	blockSize := 128
	pitchNorm := float32(pitch)
	paramNorm := float32(param)
	algoNorm := float32(algoIdx) / float32(drum.NumAlgorithms-1)
	framesRendered := 0
	belowCount := 0
	gate := true
	out := make([]float32, 0, maxFrames)
	block := make([]float32, blockSize)

	for framesRendered < maxFrames {
		framesToRender := blockSize
		if framesRendered+framesToRender > maxFrames {
			framesToRender = maxFrames - framesRendered
		}
		// Gate high on the first block only; the trigger fires on the
		// rising edge and the envelope free-runs from there.
		v.UpdateControls(pitchNorm, algoNorm, paramNorm, gate)
		gate = false

		buf := block[:framesToRender]
		v.ProcessInto(buf)
		out = append(out, buf...)
		framesRendered += framesToRender

		if framesRendered >= minFrames {
			if fitcommon.RMS(buf) < threshold {
				belowCount++
				if belowCount >= decayHoldBlocks {
					break
				}
			} else {
				belowCount = 0
			}
		}
	}
	return out, nil
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

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
