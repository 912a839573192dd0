package main

import fitcommon "github.com/cwbudde/algo-drum/internal/fitcommon"

func clamp(v, lo, hi float64) float64 {
	return fitcommon.Clamp(v, lo, hi)
}
