package livekit

import (
	"time"

	"github.com/livekit/protocol/auth"

	"github.com/dkeye/Bridge/internal/domain"
)

// credentialTTL bounds how long a minted room credential stays valid.
const credentialTTL = time.Hour

// mintToken issues a signed, time-bounded grant scoped to one room,
// carrying publish and subscribe capability for the bridge identity.
func (c *Connector) mintToken(roomName domain.RoomName, identity string) (string, error) {
	canPublish := true
	canSubscribe := true
	at := auth.NewAccessToken(c.apiKey, c.apiSecret).
		SetIdentity(identity).
		SetName("Plivo Bridge").
		SetVideoGrant(&auth.VideoGrant{
			RoomJoin:     true,
			Room:         string(roomName),
			CanPublish:   &canPublish,
			CanSubscribe: &canSubscribe,
		}).
		SetValidFor(credentialTTL)
	return at.ToJWT()
}
