// Package audio holds the PCM frame type and the per-direction rate
// converter used by the bridge pumps.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrEmptyFrame    = errors.New("audio: empty frame")
	ErrBadChannels   = errors.New("audio: only mono frames are supported")
	ErrBadSampleRate = errors.New("audio: non-positive sample rate")
)

// Frame is one chunk of 16-bit linear PCM.
type Frame struct {
	SampleRate int
	Channels   int
	Samples    []int16
}

// NewFrame builds a mono frame and validates its shape.
func NewFrame(sampleRate int, samples []int16) (*Frame, error) {
	f := &Frame{SampleRate: sampleRate, Channels: 1, Samples: samples}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Frame) Validate() error {
	if f.SampleRate <= 0 {
		return ErrBadSampleRate
	}
	if f.Channels != 1 {
		return fmt.Errorf("%w: got %d", ErrBadChannels, f.Channels)
	}
	if len(f.Samples) == 0 {
		return ErrEmptyFrame
	}
	return nil
}

// Duration in milliseconds, diagnostic only.
func (f *Frame) DurationMs() float64 {
	return float64(len(f.Samples)) / float64(f.SampleRate) * 1000
}

// SamplesFromBytes interprets little-endian PCM16 bytes. A trailing odd
// byte is dropped rather than rejected; telephony payloads are not
// trusted to be well-formed.
func SamplesFromBytes(b []byte) []int16 {
	n := len(b) / 2
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2 : i*2+2]))
	}
	return samples
}

// SamplesToBytes renders samples as little-endian PCM16 bytes.
func SamplesToBytes(samples []int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[i*2:i*2+2], uint16(s))
	}
	return b
}
