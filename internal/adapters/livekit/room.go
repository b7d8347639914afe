// Package livekit implements the room contracts over the LiveKit
// server SDK.
package livekit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/livekit/protocol/livekit"

	"github.com/dkeye/Bridge/internal/config"
	"github.com/dkeye/Bridge/internal/core"
	"github.com/dkeye/Bridge/internal/domain"
)

const (
	connectTimeout = 10 * time.Second

	// existingTrackScanDelay bounds how long we wait before
	// reconciling tracks that were published before we joined.
	existingTrackScanDelay = 500 * time.Millisecond
)

// Connector opens LiveKit room connections. One per process, injected
// into the stream entry point.
type Connector struct {
	url       string
	apiKey    string
	apiSecret string
	roomRate  int
	scanDelay time.Duration
}

func NewConnector(cfg config.LiveKitConfig, roomRate int) *Connector {
	return &Connector{
		url:       cfg.URL,
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		roomRate:  roomRate,
		scanDelay: existingTrackScanDelay,
	}
}

// Connect creates the room, mints a scoped credential, and joins.
// It blocks until the connection is ready or fails.
func (c *Connector) Connect(ctx context.Context, roomName domain.RoomName, identity string) (core.RoomConnection, error) {
	svc := lksdk.NewRoomServiceClient(httpURL(c.url), c.apiKey, c.apiSecret)
	if _, err := svc.CreateRoom(ctx, &livekit.CreateRoomRequest{Name: string(roomName)}); err != nil {
		return nil, fmt.Errorf("%w: create room: %v", core.ErrConnectionFailed, err)
	}

	token, err := c.mintToken(roomName, identity)
	if err != nil {
		return nil, fmt.Errorf("%w: mint token: %v", core.ErrConnectionFailed, err)
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())
	conn := &roomConnection{
		roomRate:    c.roomRate,
		scanDelay:   c.scanDelay,
		seen:        make(map[string]bool),
		watchCtx:    watchCtx,
		watchCancel: watchCancel,
		wrap: func(track *webrtc.TrackRemote, sid string) (*remoteTrack, error) {
			return newRemoteTrack(track, sid, c.roomRate)
		},
		logger: log.With().
			Str("module", "adapters.livekit").
			Str("room", string(roomName)).
			Logger(),
	}

	callback := &lksdk.RoomCallback{
		OnDisconnected: func() {
			conn.logger.Info().Msg("room disconnected")
		},
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackSubscribed: func(track *webrtc.TrackRemote, publication *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
				if track.Kind() != webrtc.RTPCodecTypeAudio {
					return
				}
				conn.logger.Info().
					Str("participant", string(rp.Identity())).
					Str("track_sid", string(publication.SID())).
					Msg("remote track subscribed")
				conn.deliver(track, string(publication.SID()))
			},
		},
	}

	// Guard the connect with a timeout so an unreachable service
	// surfaces as an error instead of a hang.
	resCh := make(chan *lksdk.Room, 1)
	errCh := make(chan error, 1)
	go func() {
		room, err := lksdk.ConnectToRoomWithToken(c.url, token, callback)
		if err != nil {
			errCh <- err
			return
		}
		resCh <- room
	}()

	select {
	case room := <-resCh:
		conn.room = room
		return conn, nil
	case err := <-errCh:
		watchCancel()
		return nil, fmt.Errorf("%w: %v", core.ErrConnectionFailed, err)
	case <-time.After(connectTimeout):
		watchCancel()
		return nil, fmt.Errorf("%w: connect timeout", core.ErrConnectionFailed)
	case <-ctx.Done():
		watchCancel()
		return nil, fmt.Errorf("%w: %v", core.ErrConnectionFailed, ctx.Err())
	}
}

func httpURL(wsURL string) string {
	switch {
	case strings.HasPrefix(wsURL, "wss://"):
		return "https://" + strings.TrimPrefix(wsURL, "wss://")
	case strings.HasPrefix(wsURL, "ws://"):
		return "http://" + strings.TrimPrefix(wsURL, "ws://")
	default:
		return wsURL
	}
}

// roomConnection implements core.RoomConnection for one joined room.
type roomConnection struct {
	room      *lksdk.Room
	roomRate  int
	scanDelay time.Duration
	logger    zerolog.Logger

	mu      sync.Mutex
	cb      func(core.RemoteTrack)
	seen    map[string]bool
	pending []*remoteTrack
	tracks  []*remoteTrack
	local   *localSink

	// wrap builds the core track from a subscribed SDK track.
	wrap func(track *webrtc.TrackRemote, sid string) (*remoteTrack, error)

	watchCtx    context.Context
	watchCancel context.CancelFunc
	scanOnce    sync.Once
	discOnce    sync.Once
}

func (r *roomConnection) PublishLocalAudio(sampleRate int) (core.LocalAudioSink, error) {
	sink, err := newLocalSink(r.room, sampleRate)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.local = sink
	r.mu.Unlock()
	r.logger.Info().Int("sample_rate", sampleRate).Msg("local track published")
	return sink, nil
}

// OnRemoteTrackPublished registers cb and reconciles the snapshot of
// already-published tracks with the live notification stream. Each
// track is delivered exactly once; the returned cancel is idempotent.
func (r *roomConnection) OnRemoteTrackPublished(cb func(core.RemoteTrack)) (cancel func()) {
	r.mu.Lock()
	r.cb = cb
	flush := r.pending
	r.pending = nil
	r.mu.Unlock()

	for _, t := range flush {
		cb(t)
	}

	r.scanOnce.Do(func() {
		go r.scanExisting()
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			r.cb = nil
			r.mu.Unlock()
		})
	}
}

// scanExisting waits a bounded startup delay, then walks the remote
// participants for tracks that were published before we registered.
func (r *roomConnection) scanExisting() {
	select {
	case <-r.watchCtx.Done():
		return
	case <-time.After(r.scanDelay):
	}
	for _, p := range r.room.GetRemoteParticipants() {
		for _, pub := range p.TrackPublications() {
			rpub, ok := pub.(*lksdk.RemoteTrackPublication)
			if !ok || rpub.Kind() != lksdk.TrackKindAudio {
				continue
			}
			if !rpub.IsSubscribed() {
				// subscription will surface it via OnTrackSubscribed
				if err := rpub.SetSubscribed(true); err != nil {
					r.logger.Warn().Err(err).Str("track_sid", string(rpub.SID())).Msg("subscribe failed")
				}
				continue
			}
			if tr := rpub.TrackRemote(); tr != nil {
				r.deliver(tr, string(rpub.SID()))
			}
		}
	}
}

// deliver dedups by track SID and hands the wrapped track to the
// registered callback, or parks it until one registers.
func (r *roomConnection) deliver(track *webrtc.TrackRemote, sid string) {
	r.mu.Lock()
	if r.seen[sid] {
		r.mu.Unlock()
		return
	}
	r.seen[sid] = true
	r.mu.Unlock()

	rt, err := r.wrap(track, sid)
	if err != nil {
		r.logger.Error().Err(err).Str("track_sid", sid).Msg("remote track wrap failed")
		r.mu.Lock()
		delete(r.seen, sid)
		r.mu.Unlock()
		return
	}

	// Re-read the callback here: registration may have happened while
	// the track was being wrapped, and its flush of pending already ran.
	r.mu.Lock()
	r.tracks = append(r.tracks, rt)
	cb := r.cb
	if cb == nil {
		r.pending = append(r.pending, rt)
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	cb(rt)
}

// Disconnect releases every track and the room itself. Idempotent.
func (r *roomConnection) Disconnect() error {
	r.discOnce.Do(func() {
		r.watchCancel()
		r.mu.Lock()
		tracks := r.tracks
		local := r.local
		r.cb = nil
		r.mu.Unlock()

		for _, t := range tracks {
			t.stop()
		}
		if local != nil {
			local.close()
		}
		if r.room != nil {
			r.room.Disconnect()
		}
		r.logger.Info().Msg("room connection released")
	})
	return nil
}
