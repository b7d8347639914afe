package audio

import (
	"fmt"
	"math"
)

// frameMs is the duration of each emitted output frame.
const frameMs = 10

// Converter adapts a PCM stream from one sample rate to another.
//
// It is stateful: fractional read position and unconsumed input carry
// across Push calls so the output stream stays phase-continuous. A
// converter must live as long as its direction within a session;
// creating a new one mid-stream produces an audible discontinuity.
// Instances are not safe for concurrent use and are never shared
// between sessions or directions.
type Converter struct {
	inRate    int
	outRate   int
	step      float64 // input samples consumed per output sample
	pos       float64 // fractional position into pending
	pending   []int16 // unconsumed input
	out       []int16 // produced output not yet a full frame
	frameSize int
}

// NewConverter creates a converter from inRate to outRate (Hz, mono).
func NewConverter(inRate, outRate int) (*Converter, error) {
	if inRate <= 0 || outRate <= 0 {
		return nil, ErrBadSampleRate
	}
	return &Converter{
		inRate:    inRate,
		outRate:   outRate,
		step:      float64(inRate) / float64(outRate),
		frameSize: outRate * frameMs / 1000,
	}, nil
}

func (c *Converter) InputRate() int { return c.inRate }

func (c *Converter) OutputRate() int { return c.outRate }

// Push feeds one input frame and returns zero or more output frames.
// Output frames are fixed 10 ms chunks at the output rate; partial
// output stays buffered until the next call.
func (c *Converter) Push(f *Frame) ([]*Frame, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if f.SampleRate != c.inRate {
		return nil, fmt.Errorf("audio: converter expects %d Hz input, got %d Hz", c.inRate, f.SampleRate)
	}

	c.pending = append(c.pending, f.Samples...)

	// Interpolate while a right neighbour exists; the last pending
	// sample waits for the next push.
	for c.pos < float64(len(c.pending)-1) {
		i := int(c.pos)
		frac := c.pos - float64(i)
		v := float64(c.pending[i]) + frac*(float64(c.pending[i+1])-float64(c.pending[i]))
		c.out = append(c.out, clampInt16(math.Round(v)))
		c.pos += c.step
	}

	// Drop fully consumed input, keep the fractional remainder.
	if consumed := int(c.pos); consumed > 0 {
		if consumed > len(c.pending) {
			consumed = len(c.pending)
		}
		c.pending = c.pending[consumed:]
		c.pos -= float64(consumed)
	}

	var frames []*Frame
	for len(c.out) >= c.frameSize {
		chunk := make([]int16, c.frameSize)
		copy(chunk, c.out[:c.frameSize])
		c.out = c.out[c.frameSize:]
		frames = append(frames, &Frame{SampleRate: c.outRate, Channels: 1, Samples: chunk})
	}
	return frames, nil
}

func clampInt16(v float64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	default:
		return int16(v)
	}
}
