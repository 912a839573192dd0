// drum-play runs the voice against the default audio device with the
// keyboard standing in for the hardware panel: number keys select the
// algorithm, space fires the gate, -/= and [/] nudge pitch and parameter.
package main

import (
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

const controlStep = 0.05

func main() {
	algorithm := flag.String("algorithm", "bass", "Starting algorithm (name or index 0-7)")
	pitch := flag.Float64("pitch", 0.5, "Starting pitch control in [0,1]")
	param := flag.Float64("param", 0.5, "Starting algorithm parameter in [0,1]")
	sampleRate := flag.Int("sample-rate", 44100, "Playback sample rate in Hz")
	presetPath := flag.String("preset", "", "Voice tuning preset JSON (built-in hardware tuning when empty)")
	flag.Parse()

	algoIdx, err := parseAlgorithm(*algorithm)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
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

	pitchVal := fitcommon.Clamp(*pitch, 0, 1)
	paramVal := fitcommon.Clamp(*param, 0, 1)

	p, err := newPlayer(v, *sampleRate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening audio device: %v\n", err)
		os.Exit(1)
	}
	p.setControls(algoIdx, pitchVal, paramVal)

	fmt.Printf("algo-drum live panel (%d Hz)\n", *sampleRate)
	fmt.Println("  1-8            select algorithm")
	fmt.Println("  space / enter  fire the gate")
	fmt.Println("  - / =          pitch down / up")
	fmt.Println("  [ / ]          parameter down / up")
	fmt.Println("  q              quit")

	kb, err := startKeyboard()
	if err != nil {
		_ = p.Close()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	p.start()
	printStatus(algoIdx, pitchVal, paramVal)

loop:
	for key := range kb.Keys() {
		switch {
		case key == 'q' || key == 'Q' || key == 0x03 || key == 0x1b:
			break loop
		case key == ' ' || key == '\r' || key == '\n':
			p.trigger()
			continue
		case key >= '1' && key <= '8':
			algoIdx = int(key - '1')
		case key == '=' || key == '+':
			pitchVal = math.Min(1, pitchVal+controlStep)
		case key == '-' || key == '_':
			pitchVal = math.Max(0, pitchVal-controlStep)
		case key == ']':
			paramVal = math.Min(1, paramVal+controlStep)
		case key == '[':
			paramVal = math.Max(0, paramVal-controlStep)
		default:
			continue
		}
		p.setControls(algoIdx, pitchVal, paramVal)
		printStatus(algoIdx, pitchVal, paramVal)
	}

	kb.Stop()
	fmt.Println()
	if err := p.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Error closing audio device: %v\n", err)
		os.Exit(1)
	}
}

// printStatus redraws the single status line. The keyboard runs stdin in
// raw mode, so the line ends with a carriage return instead of a newline.
func printStatus(algo int, pitch, param float64) {
	fmt.Printf("\r%-8s pitch %.2f  param %.2f   ", drum.AlgorithmName(algo), pitch, param)
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
