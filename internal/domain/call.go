// Package domain contains entity without logic, just meta-data
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type (
	// CallID is the opaque call identifier assigned by the telephony platform.
	CallID string
	// StreamID is the telephony media-stream identifier, when the platform provides one.
	StreamID string
	// SessionID keys one bridge session for its whole lifetime.
	SessionID string
	// RoomName names the room a call is bridged into.
	RoomName string
)

// NewSessionID derives the session identifier from the stream identifier,
// falling back to the call identifier, falling back to a generated one.
func NewSessionID(streamID StreamID, callID CallID) SessionID {
	if streamID != "" {
		return SessionID(streamID)
	}
	if callID != "" {
		return SessionID(callID)
	}
	return SessionID("bridge-" + uuid.NewString())
}

// RoomNameFor maps a call to its room.
func RoomNameFor(callID CallID) RoomName {
	return RoomName(fmt.Sprintf("call-%s", callID))
}

// Call is the telephony-side view of one bridged call.
type Call struct {
	ID        CallID
	To        string
	From      string
	CreatedAt time.Time
}
