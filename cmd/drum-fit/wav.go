package main

import fitcommon "github.com/cwbudde/algo-drum/internal/fitcommon"

func readWAVMono(path string) ([]float64, int, error) {
	return fitcommon.ReadWAVMono(path)
}

func resampleIfNeeded(in []float64, fromRate int, toRate int) ([]float64, error) {
	return fitcommon.ResampleIfNeeded(in, fromRate, toRate)
}

func monoToFloat64(x []float32) []float64 {
	return fitcommon.ToFloat64(x)
}

func monoRMS(x []float32) float64 {
	return fitcommon.RMS(x)
}
