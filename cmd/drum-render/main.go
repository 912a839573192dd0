package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-drum/dacsim"
	"github.com/cwbudde/algo-drum/drum"
	fitcommon "github.com/cwbudde/algo-drum/internal/fitcommon"
	"github.com/cwbudde/algo-drum/preset"
)

func main() {
	dacDefaults := dacsim.DefaultConfig()

	algorithm := flag.String("algorithm", "bass", "Algorithm to render (name or index 0-7)")
	pitch := flag.Float64("pitch", 0.5, "Pitch control in [0,1] (five octave span)")
	param := flag.Float64("param", 0.5, "Algorithm parameter in [0,1]")
	pattern := flag.String("pattern", "x...x...x...x...", "Gate pattern: x = hit, . = rest, one sixteenth per step")
	bpm := flag.Float64("bpm", 120.0, "Pattern tempo in beats per minute")
	tail := flag.Float64("tail", 1.0, "Seconds rendered after the last step (fixed mode)")
	decayDBFS := flag.Float64("decay-dbfs", math.Inf(1), "Auto-stop when tail block RMS falls below this dBFS (e.g. -90). Disabled by default")
	decayHoldBlocks := flag.Int("decay-hold-blocks", 6, "Consecutive below-threshold blocks required to stop in auto-decay mode")
	maxDuration := flag.Float64("max-duration", 30.0, "Maximum render duration in seconds when using -decay-dbfs")
	sampleRate := flag.Int("sample-rate", 44100, "Render sample rate in Hz")
	presetPath := flag.String("preset", "", "Voice tuning preset JSON (built-in hardware tuning when empty)")
	irPath := flag.String("ir", "", "Room impulse response WAV (a stereo IR produces a stereo file)")
	useDAC := flag.Bool("dac", false, "Run the output through the PT8211 DAC emulator")
	dacTHD := flag.Float64("dac-thd", float64(dacDefaults.THD), "DAC emulator total harmonic distortion fraction")
	dacSNR := flag.Float64("dac-snr", float64(dacDefaults.SNR), "DAC emulator signal-to-noise ratio in dB")
	output := flag.String("output", "output.wav", "Output WAV file path")
	flag.Parse()

	algoIdx, err := parseAlgorithm(*algorithm)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	steps, err := parsePattern(*pattern)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *bpm <= 0 || *bpm > 1000 {
		fmt.Fprintf(os.Stderr, "Error: bpm %.1f out of range (0, 1000]\n", *bpm)
		os.Exit(1)
	}
	if *sampleRate < 8000 {
		fmt.Fprintf(os.Stderr, "Error: sample rate %d too low\n", *sampleRate)
		os.Exit(1)
	}

	cfg := drum.DefaultConfig()
	if *presetPath != "" {
		cfg, err = preset.LoadJSON(*presetPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading preset %q: %v\n", *presetPath, err)
			os.Exit(1)
		}
	}
	cfg.SampleRate = *sampleRate
	v := drum.NewVoice(cfg)

	// Sixteenth-note step grid.
	stepFrames := int(math.Round(float64(*sampleRate) * 15.0 / *bpm))
	if stepFrames < 1 {
		stepFrames = 1
	}
	patternFrames := len(steps) * stepFrames

	autoStop := !math.IsInf(*decayDBFS, 1)
	limit := patternFrames + int(float64(*sampleRate)*math.Max(*tail, 0))
	if autoStop {
		limit = int(float64(*sampleRate) * (*maxDuration))
		if limit < patternFrames {
			limit = patternFrames
		}
	}
	if limit < 1 {
		limit = 1
	}

	fmt.Printf("Rendering %q (%s, pitch %.2f, param %.2f) at %.1f bpm, %d Hz...\n",
		*pattern, drum.AlgorithmName(algoIdx), *pitch, *param, *bpm, *sampleRate)

	const blockSize = 128
	pitchNorm := float32(*pitch)
	paramNorm := float32(*param)
	algoNorm := float32(algoIdx) / float32(drum.NumAlgorithms-1)
	thresholdLin := math.Pow(10.0, *decayDBFS/20.0)
	holdBlocks := *decayHoldBlocks
	if holdBlocks < 1 {
		holdBlocks = 1
	}

	samples := make([]float32, 0, limit)
	block := make([]float32, blockSize)
	framesRendered := 0
	belowCount := 0
	for framesRendered < limit {
		frames := blockSize
		// Hold each block inside its pattern step so gates land exactly on
		// the grid.
		if framesRendered < patternFrames {
			boundary := (framesRendered/stepFrames + 1) * stepFrames
			if framesRendered+frames > boundary {
				frames = boundary - framesRendered
			}
		}
		if framesRendered+frames > limit {
			frames = limit - framesRendered
		}

		gate := false
		if framesRendered < patternFrames && framesRendered%stepFrames == 0 {
			gate = steps[framesRendered/stepFrames]
		}
		v.UpdateControls(pitchNorm, algoNorm, paramNorm, gate)

		out := block[:frames]
		v.ProcessInto(out)
		samples = append(samples, out...)
		framesRendered += frames

		if autoStop && framesRendered >= patternFrames {
			if fitcommon.RMS(out) < thresholdLin {
				belowCount++
				if belowCount >= holdBlocks {
					break
				}
			} else {
				belowCount = 0
			}
		}
	}
	if autoStop {
		fmt.Printf("Auto-stop at %d frames (%.3fs), threshold %.1f dBFS\n",
			framesRendered, float64(framesRendered)/float64(*sampleRate), *decayDBFS)
	}

	if *useDAC {
		dcfg := dacsim.DefaultConfig()
		dcfg.SampleRate = *sampleRate
		dcfg.THD = float32(*dacTHD)
		dcfg.SNR = float32(*dacSNR)
		emu, err := dacsim.NewEmulator(dcfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error configuring DAC emulator: %v\n", err)
			os.Exit(1)
		}
		emu.Process(samples)
	}

	if *irPath != "" {
		conv, err := newRoomConvolver(*sampleRate, *irPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading IR %q: %v\n", *irPath, err)
			os.Exit(1)
		}
		left, right, err := conv.Apply(samples)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error convolving IR: %v\n", err)
			os.Exit(1)
		}
		if conv.Stereo() {
			err = fitcommon.WriteStereoWAVLR(*output, left, right, *sampleRate)
		} else {
			err = fitcommon.WriteMonoWAV(*output, left, *sampleRate)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing WAV file: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Successfully wrote %s (%d frames)\n", *output, len(left))
		return
	}

	if err := fitcommon.WriteMonoWAV(*output, samples, *sampleRate); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing WAV file: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Successfully wrote %s (%d frames)\n", *output, len(samples))
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

func parsePattern(raw string) ([]bool, error) {
	if raw == "" {
		return nil, fmt.Errorf("empty pattern")
	}
	steps := make([]bool, 0, len(raw))
	for i, r := range raw {
		switch r {
		case 'x', 'X':
			steps = append(steps, true)
		case '.':
			steps = append(steps, false)
		default:
			return nil, fmt.Errorf("pattern position %d: %q (use x for a hit, . for a rest)", i, string(r))
		}
	}
	return steps, nil
}
