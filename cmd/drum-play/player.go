package main

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/cwbudde/algo-drum/drum"
	"github.com/ebitengine/oto/v3"
)

// playBlock is the render granularity inside Read. Controls are re-read
// between blocks, so a key press lands within ~3 ms even when the driver
// pulls a large buffer at once.
const playBlock = 128

// player streams the drum voice to the default audio device. oto pulls
// samples through Read on its own goroutine; mu serializes the voice and
// the control fields between that pull and the key loop. pl, ctx and
// started belong to the main goroutine and stay outside the lock, so
// closing the player can never deadlock against an in-flight Read.
type player struct {
	mu       sync.Mutex
	voice    *drum.Voice
	algoNorm float32
	pitch    float32
	param    float32
	pending  bool // gate goes high for exactly one control update

	scratch []float32 // touched only inside Read

	ctx     *oto.Context
	pl      *oto.Player
	started bool
}

func newPlayer(v *drum.Voice, sampleRate int) (*player, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
		BufferSize:   20 * time.Millisecond,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	p := &player{
		voice: v,
		ctx:   ctx,
		// Sized for oto's usual pull; Read grows it if the driver asks
		// for more.
		scratch: make([]float32, 4096),
	}
	p.pl = ctx.NewPlayer(p)
	return p, nil
}

// setControls replaces the control state read by the next audio block.
func (p *player) setControls(algo int, pitch, param float64) {
	p.mu.Lock()
	p.algoNorm = float32(algo) / float32(drum.NumAlgorithms-1)
	p.pitch = float32(pitch)
	p.param = float32(param)
	p.mu.Unlock()
}

// trigger arms the gate. The next control update sees a rising edge and
// the envelope free-runs from there, so the gate drops again immediately.
func (p *player) trigger() {
	p.mu.Lock()
	p.pending = true
	p.mu.Unlock()
}

func (p *player) start() {
	if !p.started && p.pl != nil {
		p.pl.Play()
		p.started = true
	}
}

func (p *player) Close() error {
	if p.pl == nil {
		return nil
	}
	err := p.pl.Close()
	p.pl = nil
	p.started = false
	return err
}

// Read renders len(buf)/4 float32 samples and serializes them little
// endian. Called by oto from its playback goroutine.
func (p *player) Read(buf []byte) (int, error) {
	frames := len(buf) / 4
	if len(p.scratch) < frames {
		p.scratch = make([]float32, frames)
	}
	out := p.scratch[:frames]

	for off := 0; off < frames; {
		n := min(playBlock, frames-off)
		p.mu.Lock()
		gate := p.pending
		p.pending = false
		p.voice.UpdateControls(p.pitch, p.algoNorm, p.param, gate)
		p.voice.ProcessInto(out[off : off+n])
		p.mu.Unlock()
		off += n
	}

	for i, s := range out {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(s))
	}
	return frames * 4, nil
}
