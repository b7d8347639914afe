package livekit

import (
	"testing"

	media "github.com/livekit/media-sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Bridge/internal/audio"
)

func TestRemoteTrackWriteSampleBuffersFrames(t *testing.T) {
	rt := &remoteTrack{id: "tr-1", sampleRate: 48000, frames: make(chan *audio.Frame, 4)}

	require.NoError(t, rt.WriteSample(media.PCM16Sample{1, 2, 3}))
	f := <-rt.Frames()
	assert.Equal(t, 48000, f.SampleRate)
	assert.Equal(t, []int16{1, 2, 3}, f.Samples)
}

func TestRemoteTrackCloseDuringWrites(t *testing.T) {
	rt := &remoteTrack{id: "tr-1", sampleRate: 48000, frames: make(chan *audio.Frame, 4)}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			_ = rt.WriteSample(media.PCM16Sample{1})
		}
	}()

	// closing mid-stream must not panic the decode goroutine
	require.NoError(t, rt.Close())
	<-done
	require.NoError(t, rt.Close())

	assert.NoError(t, rt.WriteSample(media.PCM16Sample{2}))
	for f := range rt.Frames() {
		assert.Equal(t, []int16{1}, f.Samples)
	}
}

func TestRemoteTrackDropsWhenConsumerLags(t *testing.T) {
	rt := &remoteTrack{id: "tr-1", sampleRate: 48000, frames: make(chan *audio.Frame, 1)}

	require.NoError(t, rt.WriteSample(media.PCM16Sample{1}))
	require.NoError(t, rt.WriteSample(media.PCM16Sample{2}))

	f := <-rt.Frames()
	assert.Equal(t, []int16{1}, f.Samples)
	assert.Empty(t, rt.frames)
}
