package drum

import (
	"math"
	"testing"
)

func TestSpectralCentroidOrdering(t *testing.T) {
	bassOut, _ := renderHit(AlgoBass, 0.6, 0.5, 0.5)
	snareOut, _ := renderHit(AlgoSnare, 0.6, 0.5, 0.5)
	hihatOut, _ := renderHit(AlgoHiHat, 0.6, 0.5, 0.5)

	bass := spectralCentroid(bassOut[8820:], defaultSampleRate, 4096)
	snare := spectralCentroid(snareOut, defaultSampleRate, 4096)
	hihat := spectralCentroid(hihatOut, defaultSampleRate, 4096)

	if !(hihat > snare && snare > bass) {
		t.Fatalf("centroid ordering hihat > snare > bass violated: %v, %v, %v", hihat, snare, bass)
	}
}

func TestHiHatEnergySitsHigh(t *testing.T) {
	out, _ := renderHit(AlgoHiHat, 0.6, 0.5, 0.5)

	if c := spectralCentroid(out, defaultSampleRate, 4096); c < 4000 {
		t.Fatalf("hi-hat centroid too low: %v Hz", c)
	}
	if rms := windowRMS(out[:4410]); rms < 0.01 {
		t.Fatalf("hi-hat too quiet: rms %v", rms)
	}
}

func TestSnareMixesToneAndNoise(t *testing.T) {
	pitch := pitchNormForBase(400) // scaled tone near 200 Hz
	out, v := renderHit(AlgoSnare, pitch, 0.5, 0.6)

	// Late in the hit the noise bed has died 1.5x faster and the tone
	// sweep has settled, so the tone dominates.
	seg := out[4410 : 4410+8192]
	peak := findPeakNear(seg, defaultSampleRate, float64(v.Frequency()), 90)
	if peak < 150 || peak > 300 {
		t.Fatalf("snare tone peak at %v Hz, want near %v Hz", peak, v.Frequency())
	}

	// Early on the bandpassed noise pushes the centroid well above the
	// tone.
	if c := spectralCentroid(out, defaultSampleRate, 2048); c < 400 {
		t.Fatalf("snare centroid too low for a noisy attack: %v Hz", c)
	}
}

func TestModalPartialsLandOnRatios(t *testing.T) {
	pitch := pitchNormForBase(100) // scaled strike near 400 Hz
	out, v := renderHit(AlgoModal, pitch, 0.5, 0.5)

	base := float64(v.Frequency())
	tuning := NewDefaultTuning()
	seg := out[:8192]

	for i := 0; i < 3; i++ {
		want := base * float64(tuning.ModalRatios[i])
		peak := findPeakNear(seg, defaultSampleRate, want, 35)
		if math.Abs(peak-want) > 20 {
			t.Fatalf("partial %d at %v Hz, want near %v Hz", i, peak, want)
		}
	}
}

func TestZapSweepsDownward(t *testing.T) {
	pitch := pitchNormForBase(140) // scaled floor of 50 Hz
	out, _ := renderHit(AlgoZap, pitch, 0.5, 0.5)

	early := measureFundamentalFreq(out[:2205], defaultSampleRate)
	late := measureFundamentalFreq(out[8820:13230], defaultSampleRate)

	if late <= 0 {
		t.Fatal("zap tail silent too early")
	}
	if early < 2*late {
		t.Fatalf("zap should chirp downward: early %v Hz, late %v Hz", early, late)
	}
}

func TestClapPulseTrain(t *testing.T) {
	out, _ := renderHit(AlgoClap, 0.6, 0.5, 0.5)

	// Pulse windows are 10 ms every 30 ms; between them only the quiet
	// reverb tap remains.
	burst1 := windowRMS(out[:441])
	gap1 := windowRMS(out[662:1100])
	burst2 := windowRMS(out[1323:1764])

	if burst1 < 1.5*gap1 {
		t.Fatalf("first clap burst should stand out: burst %v, gap %v", burst1, gap1)
	}
	if burst2 < 1.3*gap1 {
		t.Fatalf("second clap burst should stand out: burst %v, gap %v", burst2, gap1)
	}
}

func TestClapDeterministicPerTrigger(t *testing.T) {
	out1, _ := renderHit(AlgoClap, 0.6, 0.5, 0.3)
	out2, _ := renderHit(AlgoClap, 0.6, 0.5, 0.3)

	for i := range out1 {
		if out1[i] != out2[i] {
			t.Fatalf("clap render not deterministic at sample %d", i)
		}
	}
}

func TestCowbellRingsInFilterBand(t *testing.T) {
	out, _ := renderHit(AlgoCowbell, 0.8, 0.5, 1)

	c := spectralCentroid(out[:4096], defaultSampleRate, 4096)
	if c < 1500 || c > 6500 {
		t.Fatalf("cowbell centroid outside the filter band: %v Hz", c)
	}

	head := windowRMS(out[:2205])
	tail := windowRMS(out[13230:15435])
	if head <= tail {
		t.Fatalf("cowbell should decay: head %v, tail %v", head, tail)
	}
	if tail <= 0 {
		t.Fatal("cowbell tail should still ring at 0.3 s")
	}
}

func TestCowbellPhasesResetPerTrigger(t *testing.T) {
	v := NewVoice(DefaultConfig())
	sel := algoSelectNorm(AlgoCowbell)
	v.UpdateControls(0.8, sel, 0.5, false)
	v.UpdateControls(0.8, sel, 0.5, true)
	first := v.Process(2048)

	// Let the phases wander, then retrigger mid-ring.
	v.Process(1234)
	v.UpdateControls(0.8, sel, 0.5, false)
	v.UpdateControls(0.8, sel, 0.5, true)
	second := v.Process(2048)

	// The oscillator bank restarts from zero phase, so the retriggered
	// hit tracks the first one apart from residual filter history.
	if d := maxAbsDiff(first[256:], second[256:]); d > 0.05 {
		t.Fatalf("retriggered cowbell diverged: max diff %v", d)
	}
}

func TestBassParameterDrivesResonance(t *testing.T) {
	soft, _ := renderHit(AlgoBass, 0.6, 0, 1)
	hard, _ := renderHit(AlgoBass, 0.6, 1, 1)

	// Higher parameter means higher resonance and a faster decay; the
	// first 50 ms should ring harder.
	if windowRMS(hard[:2205]) <= windowRMS(soft[:2205]) {
		t.Fatal("high parameter should ring the filter harder")
	}
}

func TestKarplusParameterDamping(t *testing.T) {
	pitch := pitchNormForBase(400)
	bright, _ := renderHit(AlgoKarplus, pitch, 0, 1)
	damped, _ := renderHit(AlgoKarplus, pitch, 1, 1)

	// param 1 lowers the loop damping to 0.795: the string dies much
	// faster.
	late := defaultSampleRate / 4
	if windowRMS(damped[late:late+4410]) >= windowRMS(bright[late:late+4410]) {
		t.Fatal("high parameter should damp the string faster")
	}
}
