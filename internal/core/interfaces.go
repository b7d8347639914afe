// Package core defines the transport-neutral contracts between the
// bridge engine and its collaborators. Adapters own the resources
// behind these interfaces and must release them on Close/Disconnect.
package core

import (
	"context"

	"github.com/dkeye/Bridge/internal/audio"
	"github.com/dkeye/Bridge/internal/domain"
)

// TelephonySocket is the duplex media-stream channel to the telephony
// side. Exclusively owned by one session.
type TelephonySocket interface {
	// ReadMessage blocks for the next wire message. It returns
	// ErrSocketClosed (possibly wrapped) on disconnect or ctx end.
	ReadMessage(ctx context.Context) ([]byte, error)
	// WriteMessage sends one wire message; safe for concurrent use.
	WriteMessage(data []byte) error
	// Writable reports whether writes can still succeed.
	Writable() bool
	// Close is idempotent.
	Close()
}

// RoomConnector opens room connections. Injected so tests substitute
// fakes without global state.
type RoomConnector interface {
	// Connect blocks until the room connection is ready or fails with
	// ErrConnectionFailed (wrapped).
	Connect(ctx context.Context, room domain.RoomName, identity string) (RoomConnection, error)
}

// RoomConnection is one joined room. It owns at most one published
// local track.
type RoomConnection interface {
	// PublishLocalAudio creates and publishes the session's single
	// local track, sourced from frames pushed at sampleRate. Called
	// once per session, after Connect.
	PublishLocalAudio(sampleRate int) (LocalAudioSink, error)
	// OnRemoteTrackPublished fires cb exactly once per remote audio
	// track, reconciling tracks that existed before registration with
	// the live notification stream. The returned cancel stops future
	// notifications and is idempotent.
	OnRemoteTrackPublished(cb func(RemoteTrack)) (cancel func())
	// Disconnect releases all room resources; idempotent.
	Disconnect() error
}

// LocalAudioSink receives converted telephony audio for the room.
type LocalAudioSink interface {
	WriteFrame(*audio.Frame) error
}

// RemoteTrack is one audio track published by another participant.
type RemoteTrack interface {
	ID() string
	// Frames yields decoded PCM in production order; the channel is
	// closed when the track ends.
	Frames() <-chan *audio.Frame
}

// Dialer originates outbound calls. The number must already be E.164.
type Dialer interface {
	Dial(ctx context.Context, toE164 string) (domain.CallID, error)
}
