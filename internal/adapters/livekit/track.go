package livekit

import (
	"fmt"
	"sync"

	media "github.com/livekit/media-sdk"
	lksdk "github.com/livekit/server-sdk-go/v2"
	lkmedia "github.com/livekit/server-sdk-go/v2/pkg/media"
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Bridge/internal/audio"
)

// trackFrameBuffer bounds how far a slow egress pump may lag before
// frames are dropped instead of blocking the SDK's decode loop.
const trackFrameBuffer = 256

// localSink feeds converted telephony audio into the published track.
type localSink struct {
	track *lkmedia.PCMLocalTrack
}

func newLocalSink(room *lksdk.Room, sampleRate int) (*localSink, error) {
	track, err := lkmedia.NewPCMLocalTrack(sampleRate, 1, nil)
	if err != nil {
		return nil, fmt.Errorf("create local track: %w", err)
	}
	if _, err := room.LocalParticipant.PublishTrack(track, &lksdk.TrackPublicationOptions{
		Name: "phone_audio",
	}); err != nil {
		track.Close()
		return nil, fmt.Errorf("publish local track: %w", err)
	}
	return &localSink{track: track}, nil
}

func (s *localSink) WriteFrame(f *audio.Frame) error {
	if err := f.Validate(); err != nil {
		return err
	}
	return s.track.WriteSample(media.PCM16Sample(f.Samples))
}

func (s *localSink) close() {
	s.track.Close()
}

// remoteTrack bridges an SDK remote audio track to the core contract:
// the SDK pushes decoded PCM through WriteSample, the egress pump
// drains Frames.
type remoteTrack struct {
	id         string
	sampleRate int
	frames     chan *audio.Frame
	pcm        *lkmedia.PCMRemoteTrack

	// mu orders WriteSample against Close: the SDK's decode goroutine
	// may still be sending while Disconnect closes the channel.
	mu     sync.Mutex
	closed bool
}

func newRemoteTrack(track *webrtc.TrackRemote, sid string, sampleRate int) (*remoteTrack, error) {
	rt := &remoteTrack{
		id:         sid,
		sampleRate: sampleRate,
		frames:     make(chan *audio.Frame, trackFrameBuffer),
	}
	pcm, err := lkmedia.NewPCMRemoteTrack(track, rt,
		lkmedia.WithTargetSampleRate(sampleRate),
		lkmedia.WithTargetChannels(1),
		lkmedia.WithHandleJitter(true),
	)
	if err != nil {
		return nil, fmt.Errorf("create remote track reader: %w", err)
	}
	rt.pcm = pcm
	return rt, nil
}

func (t *remoteTrack) ID() string { return t.id }

func (t *remoteTrack) Frames() <-chan *audio.Frame { return t.frames }

// WriteSample implements the SDK's PCM16 writer; it runs on the SDK's
// decode goroutine and must not block.
func (t *remoteTrack) WriteSample(sample media.PCM16Sample) error {
	if len(sample) == 0 {
		return nil
	}
	samples := make([]int16, len(sample))
	copy(samples, sample)
	f := &audio.Frame{SampleRate: t.sampleRate, Channels: 1, Samples: samples}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	select {
	case t.frames <- f:
	default:
		// consumer lagging; dropping beats stalling the decoder
	}
	return nil
}

// Close is called by the SDK when the track ends. Idempotent, and
// safe against a concurrent WriteSample.
func (t *remoteTrack) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.frames)
	return nil
}

func (t *remoteTrack) SampleRate() int { return t.sampleRate }
func (t *remoteTrack) String() string  { return "remote-track-" + t.id }

// stop releases the SDK reader during room teardown.
func (t *remoteTrack) stop() {
	if t.pcm != nil {
		t.pcm.Close()
	}
	_ = t.Close()
}
