package app

import (
	"context"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Bridge/internal/audio"
	"github.com/dkeye/Bridge/internal/core"
	"github.com/dkeye/Bridge/internal/domain"
	"github.com/dkeye/Bridge/internal/metrics"
)

// Session states. Monotonic: init -> streaming -> stopping -> closed.
const (
	StateInit      = "init"
	StateStreaming = "streaming"
	StateStopping  = "stopping"
	StateClosed    = "closed"
)

const (
	eventStream = "stream"
	eventStop   = "stop"
	eventClose  = "close"
)

// BridgeIdentity is the participant identity the bridge joins rooms with.
const BridgeIdentity = "plivo-bridge"

// SessionDeps carries everything a session needs, injected explicitly
// so tests substitute fakes.
type SessionDeps struct {
	Socket    core.TelephonySocket
	Connector core.RoomConnector
	Registry  *Registry
	Metrics   *metrics.Metrics

	TelephonyRate int
	RoomRate      int
}

// Session is the per-call aggregate: one telephony socket, one room
// connection, two converters, and the set of attached remote tracks.
type Session struct {
	id        domain.SessionID
	callID    domain.CallID
	createdAt time.Time

	deps SessionDeps

	room core.RoomConnection
	sink core.LocalAudioSink

	ingressConv *audio.Converter
	egressConv  *audio.Converter
	egressMu    sync.Mutex

	attachedMu sync.Mutex
	attached   map[string]bool

	machine *fsm.FSM
	logger  zerolog.Logger

	cancel    context.CancelFunc
	pumps     sync.WaitGroup
	released  sync.Once
	streaming bool
}

// NewSession builds a session in the init state.
func NewSession(sid domain.SessionID, callID domain.CallID, deps SessionDeps) (*Session, error) {
	in, err := audio.NewConverter(deps.TelephonyRate, deps.RoomRate)
	if err != nil {
		return nil, err
	}
	out, err := audio.NewConverter(deps.RoomRate, deps.TelephonyRate)
	if err != nil {
		return nil, err
	}
	s := &Session{
		id:          sid,
		callID:      callID,
		createdAt:   time.Now(),
		deps:        deps,
		ingressConv: in,
		egressConv:  out,
		attached:    make(map[string]bool),
		logger: log.With().
			Str("module", "app.session").
			Str("sid", string(sid)).
			Str("call_id", string(callID)).
			Logger(),
	}
	s.machine = fsm.NewFSM(
		StateInit,
		fsm.Events{
			{Name: eventStream, Src: []string{StateInit}, Dst: StateStreaming},
			{Name: eventStop, Src: []string{StateInit, StateStreaming}, Dst: StateStopping},
			{Name: eventClose, Src: []string{StateStopping}, Dst: StateClosed},
		},
		fsm.Callbacks{
			"after_event": func(_ context.Context, e *fsm.Event) {
				s.logger.Info().Str("from", e.Src).Str("to", e.Dst).Msg("state change")
			},
		},
	)
	return s, nil
}

func (s *Session) ID() domain.SessionID { return s.id }

func (s *Session) CallID() domain.CallID { return s.callID }

func (s *Session) State() string { return s.machine.Current() }

func (s *Session) Info() SessionInfo {
	return SessionInfo{
		SessionID: s.id,
		CallID:    s.callID,
		State:     s.State(),
		CreatedAt: s.createdAt.Format(time.RFC3339),
	}
}

// Run joins the room, publishes the local track, and pumps audio until
// the stream ends. It always tears the session down before returning.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer s.Teardown()

	room, err := s.deps.Connector.Connect(ctx, domain.RoomNameFor(s.callID), BridgeIdentity)
	if err != nil {
		s.logger.Error().Err(err).Msg("room connect failed")
		return err
	}
	s.room = room

	sink, err := room.PublishLocalAudio(s.deps.RoomRate)
	if err != nil {
		s.logger.Error().Err(err).Msg("publish local track failed")
		return err
	}
	s.sink = sink

	if err := s.machine.Event(ctx, eventStream); err != nil {
		// stop already requested before the room came up
		s.logger.Info().Err(err).Msg("not entering streaming")
		return nil
	}
	s.streaming = true
	if s.deps.Metrics != nil {
		s.deps.Metrics.SessionsStarted.Inc()
		s.deps.Metrics.SessionsActive.Inc()
	}
	s.logger.Info().Msg("session streaming")

	cancelWatch := room.OnRemoteTrackPublished(func(t core.RemoteTrack) {
		s.attachTrack(ctx, t)
	})

	s.runIngress(ctx)

	s.beginStop()
	cancelWatch()
	s.pumps.Wait()
	return nil
}

// attachTrack gives a remote track its egress pump. Insertion into the
// attached set happens before the spawn, which makes attachment
// idempotent when the pre-existing scan and a live notification race.
func (s *Session) attachTrack(ctx context.Context, t core.RemoteTrack) {
	if ctx.Err() != nil {
		return
	}
	s.attachedMu.Lock()
	if s.attached[t.ID()] {
		s.attachedMu.Unlock()
		return
	}
	s.attached[t.ID()] = true
	s.attachedMu.Unlock()

	if s.deps.Metrics != nil {
		s.deps.Metrics.TracksAttached.Inc()
	}
	s.logger.Info().Str("track_id", t.ID()).Msg("remote track attached")

	s.pumps.Add(1)
	go s.runEgress(ctx, t)
}

// beginStop moves the session toward stopping and breaks every
// suspension point: ctx for the pumps and watcher, the socket for
// reads and writes. Safe to call from any task, any number of times.
func (s *Session) beginStop() {
	_ = s.machine.Event(context.Background(), eventStop)
	if s.cancel != nil {
		s.cancel()
	}
	s.deps.Socket.Close()
}

// Teardown releases the room connection and the registry entry exactly
// once, even when several tasks detect the failure concurrently.
// Release failures are logged, never escalated.
func (s *Session) Teardown() {
	s.beginStop()
	s.released.Do(func() {
		if s.room != nil {
			if err := s.room.Disconnect(); err != nil {
				s.logger.Error().Err(err).Msg("room disconnect failed")
			}
		}
		if s.deps.Registry != nil {
			s.deps.Registry.Deregister(s.id)
		}
		if s.deps.Metrics != nil {
			s.deps.Metrics.SessionsEnded.Inc()
			if s.streaming {
				s.deps.Metrics.SessionsActive.Dec()
			}
		}
		_ = s.machine.Event(context.Background(), eventClose)
		s.logger.Info().Msg("session closed")
	})
}
