package main

import (
	"fmt"
	"os"

	dspconv "github.com/cwbudde/algo-dsp/dsp/conv"
	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/cwbudde/wav"
)

// roomConvolver applies a mono or stereo room impulse response to a finished
// take using partitioned overlap-add convolution.
type roomConvolver struct {
	partSize int
	stereo   bool
	irLen    int

	leftOLA  *dspconv.StreamingOverlapAddT[float32, complex64]
	rightOLA *dspconv.StreamingOverlapAddT[float32, complex64]
}

func newRoomConvolver(sampleRate int, path string) (*roomConvolver, error) {
	left, right, stereo, err := readIR(path, sampleRate)
	if err != nil {
		return nil, err
	}

	c := &roomConvolver{partSize: 128, stereo: stereo, irLen: len(left)}
	c.leftOLA, err = dspconv.NewStreamingOverlapAdd32(left, c.partSize)
	if err != nil {
		return nil, err
	}
	if stereo {
		if len(right) > c.irLen {
			c.irLen = len(right)
		}
		c.rightOLA, err = dspconv.NewStreamingOverlapAdd32(right, c.partSize)
		if err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Stereo reports whether the loaded IR carries two channels.
func (c *roomConvolver) Stereo() bool {
	return c.stereo
}

// Apply convolves the mono input and returns the wet signal including the IR
// tail. The right channel is nil for a mono IR.
func (c *roomConvolver) Apply(input []float32) ([]float32, []float32, error) {
	total := len(input) + c.irLen - 1
	left, err := c.convolve(c.leftOLA, input, total)
	if err != nil {
		return nil, nil, err
	}
	if !c.stereo {
		return left, nil, nil
	}
	right, err := c.convolve(c.rightOLA, input, total)
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

func (c *roomConvolver) convolve(ola *dspconv.StreamingOverlapAddT[float32, complex64], input []float32, total int) ([]float32, error) {
	out := make([]float32, 0, total+c.partSize)
	buf := make([]float32, c.partSize)
	res := make([]float32, c.partSize)
	for processed := 0; processed < total; processed += c.partSize {
		// Zero pad past the end of the input to flush the IR tail.
		for i := range buf {
			buf[i] = 0
		}
		if processed < len(input) {
			end := processed + c.partSize
			if end > len(input) {
				end = len(input)
			}
			copy(buf, input[processed:end])
		}
		if err := ola.ProcessBlockTo(res, buf); err != nil {
			return nil, err
		}
		out = append(out, res...)
	}
	return out[:total], nil
}

func readIR(path string, sampleRate int) (left []float32, right []float32, stereo bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, false, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, nil, false, fmt.Errorf("invalid wav file: %s", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, nil, false, err
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, nil, false, fmt.Errorf("invalid wav buffer: %s", path)
	}
	numCh := buf.Format.NumChannels
	srcRate := buf.Format.SampleRate
	if srcRate <= 0 {
		return nil, nil, false, fmt.Errorf("invalid wav sample-rate: %d", srcRate)
	}
	frames := len(buf.Data) / numCh
	if frames == 0 {
		return nil, nil, false, fmt.Errorf("empty wav data: %s", path)
	}

	left = make([]float32, frames)
	stereo = numCh >= 2
	if stereo {
		right = make([]float32, frames)
		for i := 0; i < frames; i++ {
			left[i] = buf.Data[i*numCh]
			right[i] = buf.Data[i*numCh+1]
		}
	} else {
		copy(left, buf.Data)
	}

	left, err = resampleIR(left, srcRate, sampleRate)
	if err != nil {
		return nil, nil, false, err
	}
	if stereo {
		right, err = resampleIR(right, srcRate, sampleRate)
		if err != nil {
			return nil, nil, false, err
		}
	}
	return left, right, stereo, nil
}

func resampleIR(in []float32, fromRate int, toRate int) ([]float32, error) {
	if fromRate == toRate {
		return in, nil
	}
	r, err := dspresample.NewForRates(
		float64(fromRate),
		float64(toRate),
		dspresample.WithQuality(dspresample.QualityBest),
	)
	if err != nil {
		return nil, err
	}
	in64 := make([]float64, len(in))
	for i, v := range in {
		in64[i] = float64(v)
	}
	out64 := r.Process(in64)
	out := make([]float32, len(out64))
	for i, v := range out64 {
		out[i] = float32(v)
	}
	return out, nil
}
