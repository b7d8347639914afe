package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pushAll(t *testing.T, c *Converter, samples []int16, chunk int) []int16 {
	t.Helper()
	var out []int16
	for off := 0; off < len(samples); off += chunk {
		end := off + chunk
		if end > len(samples) {
			end = len(samples)
		}
		f, err := NewFrame(c.InputRate(), samples[off:end])
		require.NoError(t, err)
		frames, err := c.Push(f)
		require.NoError(t, err)
		for _, of := range frames {
			assert.Equal(t, c.OutputRate(), of.SampleRate)
			assert.Len(t, of.Samples, c.OutputRate()/100)
			out = append(out, of.Samples...)
		}
	}
	return out
}

func sineWave(rate int, freq float64, n int) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = int16(10000 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return s
}

func TestConverterSilenceStaysSilent(t *testing.T) {
	c, err := NewConverter(16000, 48000)
	require.NoError(t, err)

	out := pushAll(t, c, make([]int16, 1600), 160)
	// ten 10ms input frames upsample to nine full 10ms output frames,
	// the tail waits for a right neighbour
	require.Len(t, out, 9*480)
	for _, s := range out {
		require.Zero(t, s)
	}
}

func TestConverterDownsampleFraming(t *testing.T) {
	c, err := NewConverter(48000, 16000)
	require.NoError(t, err)

	f, err := NewFrame(48000, make([]int16, 480))
	require.NoError(t, err)
	frames, err := c.Push(f)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Len(t, frames[0].Samples, 160)
	assert.Equal(t, 16000, frames[0].SampleRate)
}

func TestConverterRoundTripIsExact(t *testing.T) {
	up, err := NewConverter(16000, 48000)
	require.NoError(t, err)
	down, err := NewConverter(48000, 16000)
	require.NoError(t, err)

	in := sineWave(16000, 440, 1600)
	mid := pushAll(t, up, in, 160)
	out := pushAll(t, down, mid, 480)

	// at an integer rate ratio the interpolation grid passes through
	// every original sample, so the round trip reproduces the input
	require.NotEmpty(t, out)
	assert.Equal(t, in[:len(out)], out)
}

func TestConverterPhaseContinuityAcrossPushes(t *testing.T) {
	in := sineWave(16000, 300, 320)

	whole, err := NewConverter(16000, 48000)
	require.NoError(t, err)
	split, err := NewConverter(16000, 48000)
	require.NoError(t, err)

	a := pushAll(t, whole, in, 320)
	b := pushAll(t, split, in, 160)
	assert.Equal(t, a, b)
}

func TestConverterRejectsWrongRate(t *testing.T) {
	c, err := NewConverter(16000, 48000)
	require.NoError(t, err)

	f, err := NewFrame(8000, make([]int16, 80))
	require.NoError(t, err)
	_, err = c.Push(f)
	assert.Error(t, err)
}

func TestNewConverterValidatesRates(t *testing.T) {
	_, err := NewConverter(0, 48000)
	assert.ErrorIs(t, err, ErrBadSampleRate)
	_, err = NewConverter(16000, -1)
	assert.ErrorIs(t, err, ErrBadSampleRate)
}
