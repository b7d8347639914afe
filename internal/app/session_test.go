package app

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Bridge/internal/audio"
	"github.com/dkeye/Bridge/internal/core"
	"github.com/dkeye/Bridge/internal/domain"
	"github.com/dkeye/Bridge/internal/metrics"
	"github.com/dkeye/Bridge/internal/protocol"
)

type fakeSocket struct {
	mu      sync.Mutex
	inbox   chan []byte
	done    chan struct{}
	once    sync.Once
	written [][]byte
}

func newFakeSocket(msgs ...[]byte) *fakeSocket {
	s := &fakeSocket{inbox: make(chan []byte, len(msgs)+1), done: make(chan struct{})}
	for _, m := range msgs {
		s.inbox <- m
	}
	return s
}

func (s *fakeSocket) ReadMessage(ctx context.Context) ([]byte, error) {
	// drain queued messages before reporting a dropped transport
	select {
	case m := <-s.inbox:
		return m, nil
	default:
	}
	select {
	case m := <-s.inbox:
		return m, nil
	case <-ctx.Done():
		return nil, core.ErrSocketClosed
	case <-s.done:
		return nil, core.ErrSocketClosed
	}
}

func (s *fakeSocket) WriteMessage(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return core.ErrSocketClosed
	default:
	}
	s.written = append(s.written, append([]byte(nil), data...))
	return nil
}

func (s *fakeSocket) Writable() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

func (s *fakeSocket) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *fakeSocket) sent() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.written))
	copy(out, s.written)
	return out
}

type fakeTrack struct {
	id     string
	frames chan *audio.Frame
}

func (t *fakeTrack) ID() string { return t.id }

func (t *fakeTrack) Frames() <-chan *audio.Frame { return t.frames }

type fakeSink struct {
	mu     sync.Mutex
	frames []*audio.Frame
}

func (s *fakeSink) WriteFrame(f *audio.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
	return nil
}

func (s *fakeSink) all() []*audio.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*audio.Frame, len(s.frames))
	copy(out, s.frames)
	return out
}

type fakeRoom struct {
	sink         *fakeSink
	tracks       []core.RemoteTrack
	deliverTwice bool

	mu          sync.Mutex
	disconnects int
}

func (r *fakeRoom) PublishLocalAudio(int) (core.LocalAudioSink, error) {
	return r.sink, nil
}

func (r *fakeRoom) OnRemoteTrackPublished(cb func(core.RemoteTrack)) func() {
	for _, t := range r.tracks {
		cb(t)
		if r.deliverTwice {
			cb(t)
		}
	}
	return func() {}
}

func (r *fakeRoom) Disconnect() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnects++
	return nil
}

func (r *fakeRoom) disconnectCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disconnects
}

type fakeConnector struct {
	room *fakeRoom
	err  error
}

func (c *fakeConnector) Connect(context.Context, domain.RoomName, string) (core.RoomConnection, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.room, nil
}

func mediaMessage(t *testing.T, samples []int16) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]string{
		"event":   protocol.EventMedia,
		"payload": base64.StdEncoding.EncodeToString(audio.SamplesToBytes(samples)),
	})
	require.NoError(t, err)
	return raw
}

func newTestSession(t *testing.T, sock core.TelephonySocket, conn core.RoomConnector, reg *Registry, m *metrics.Metrics) *Session {
	t.Helper()
	sess, err := NewSession("s-1", "c-1", SessionDeps{
		Socket:        sock,
		Connector:     conn,
		Registry:      reg,
		Metrics:       m,
		TelephonyRate: 16000,
		RoomRate:      48000,
	})
	require.NoError(t, err)
	require.NoError(t, reg.Register(sess))
	return sess
}

func TestSessionBridgesTelephonyAudioInOrder(t *testing.T) {
	var msgs [][]byte
	ramp := make([]int16, 1600)
	for i := range ramp {
		ramp[i] = int16(i)
	}
	for off := 0; off < len(ramp); off += 160 {
		msgs = append(msgs, mediaMessage(t, ramp[off:off+160]))
	}
	msgs = append(msgs, []byte(`{"event":"stop"}`))

	sock := newFakeSocket(msgs...)
	sink := &fakeSink{}
	room := &fakeRoom{sink: sink}
	reg := NewRegistry()
	sess := newTestSession(t, sock, &fakeConnector{room: room}, reg, nil)

	require.NoError(t, sess.Run(context.Background()))

	assert.Equal(t, StateClosed, sess.State())
	assert.Zero(t, reg.Len())
	assert.Equal(t, 1, room.disconnectCount())
	assert.False(t, sock.Writable())

	frames := sink.all()
	require.Len(t, frames, 9)
	var last int16 = -1
	for _, f := range frames {
		assert.Equal(t, 48000, f.SampleRate)
		require.Len(t, f.Samples, 480)
		for _, s := range f.Samples {
			// a monotonic ramp survives rate conversion in order
			require.GreaterOrEqual(t, s, last)
			last = s
		}
	}
}

func TestSessionForwardsRoomAudioToSocket(t *testing.T) {
	track := &fakeTrack{id: "tr-1", frames: make(chan *audio.Frame, 3)}
	for k := 0; k < 3; k++ {
		samples := make([]int16, 480)
		for i := range samples {
			samples[i] = int16((k + 1) * 100)
		}
		f, err := audio.NewFrame(48000, samples)
		require.NoError(t, err)
		track.frames <- f
	}
	close(track.frames)

	sock := newFakeSocket()
	room := &fakeRoom{sink: &fakeSink{}, tracks: []core.RemoteTrack{track}}
	reg := NewRegistry()
	sess := newTestSession(t, sock, &fakeConnector{room: room}, reg, nil)

	require.NoError(t, sess.Run(context.Background()))
	assert.Equal(t, StateClosed, sess.State())

	sent := sock.sent()
	require.Len(t, sent, 3)
	for k, data := range sent {
		m, err := protocol.Decode(data)
		require.NoError(t, err)
		assert.Equal(t, protocol.EventPlayAudio, m.Event)
		require.NotNil(t, m.Media)
		assert.Equal(t, protocol.ContentTypePCM, m.Media.ContentType)
		assert.Equal(t, 16000, m.Media.SampleRate)

		raw, err := base64.StdEncoding.DecodeString(m.Media.Payload)
		require.NoError(t, err)
		samples := audio.SamplesFromBytes(raw)
		require.Len(t, samples, 160)
		for _, s := range samples {
			require.Equal(t, int16((k+1)*100), s)
		}
	}
}

func TestSessionConnectFailureTearsDown(t *testing.T) {
	sock := newFakeSocket()
	reg := NewRegistry()
	sess := newTestSession(t, sock, &fakeConnector{err: core.ErrConnectionFailed}, reg, nil)

	err := sess.Run(context.Background())
	assert.ErrorIs(t, err, core.ErrConnectionFailed)
	assert.Equal(t, StateClosed, sess.State())
	assert.Zero(t, reg.Len())
	assert.False(t, sock.Writable())
}

func TestSessionTeardownIsIdempotent(t *testing.T) {
	sock := newFakeSocket()
	reg := NewRegistry()
	sess := newTestSession(t, sock, &fakeConnector{room: &fakeRoom{sink: &fakeSink{}}}, reg, nil)

	sess.Teardown()
	sess.Teardown()

	assert.Equal(t, StateClosed, sess.State())
	assert.Zero(t, reg.Len())
}

func TestSessionSocketDropWithoutStopReachesClosed(t *testing.T) {
	var msgs [][]byte
	for i := 0; i < 3; i++ {
		msgs = append(msgs, mediaMessage(t, make([]int16, 160)))
	}
	sock := newFakeSocket(msgs...)
	// transport drops mid-stream, no stop event ever arrives
	sock.Close()

	sink := &fakeSink{}
	room := &fakeRoom{sink: sink}
	reg := NewRegistry()
	sess := newTestSession(t, sock, &fakeConnector{room: room}, reg, nil)

	require.NoError(t, sess.Run(context.Background()))

	assert.Equal(t, StateClosed, sess.State())
	assert.Zero(t, reg.Len())
	assert.Equal(t, 1, room.disconnectCount())
	// queued media still flowed to the room before the drop surfaced
	assert.Len(t, sink.all(), 2)
}

func TestConcurrentSessionsDoNotShareConverterState(t *testing.T) {
	reg := NewRegistry()

	runSession := func(sid domain.SessionID, callID domain.CallID, value int16) *fakeSink {
		samples := make([]int16, 160)
		for i := range samples {
			samples[i] = value
		}
		var msgs [][]byte
		for i := 0; i < 5; i++ {
			msgs = append(msgs, mediaMessage(t, samples))
		}
		msgs = append(msgs, []byte(`{"event":"stop"}`))

		sink := &fakeSink{}
		sess, err := NewSession(sid, callID, SessionDeps{
			Socket:        newFakeSocket(msgs...),
			Connector:     &fakeConnector{room: &fakeRoom{sink: sink}},
			Registry:      reg,
			TelephonyRate: 16000,
			RoomRate:      48000,
		})
		require.NoError(t, err)
		require.NoError(t, reg.Register(sess))
		require.NoError(t, sess.Run(context.Background()))
		return sink
	}

	var wg sync.WaitGroup
	var sinkA, sinkB *fakeSink
	wg.Add(2)
	go func() {
		defer wg.Done()
		sinkA = runSession("s-a", "c-a", 1000)
	}()
	go func() {
		defer wg.Done()
		sinkB = runSession("s-b", "c-b", -2000)
	}()
	wg.Wait()

	// a constant input converts to the same constant, so any sample
	// from the other session's stream would be visible immediately
	framesA, framesB := sinkA.all(), sinkB.all()
	require.Len(t, framesA, 4)
	require.Len(t, framesB, 4)
	for _, f := range framesA {
		for _, s := range f.Samples {
			require.Equal(t, int16(1000), s)
		}
	}
	for _, f := range framesB {
		for _, s := range f.Samples {
			require.Equal(t, int16(-2000), s)
		}
	}
}

func TestSessionAttachesEachTrackOnce(t *testing.T) {
	track := &fakeTrack{id: "tr-1", frames: make(chan *audio.Frame)}
	close(track.frames)

	m := metrics.New(prometheus.NewRegistry())
	sock := newFakeSocket()
	room := &fakeRoom{sink: &fakeSink{}, tracks: []core.RemoteTrack{track}, deliverTwice: true}
	reg := NewRegistry()
	sess := newTestSession(t, sock, &fakeConnector{room: room}, reg, m)

	require.NoError(t, sess.Run(context.Background()))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.TracksAttached))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SessionsStarted))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SessionsEnded))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.SessionsActive))
}
