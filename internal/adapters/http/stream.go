package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Bridge/internal/adapters/ws"
	"github.com/dkeye/Bridge/internal/app"
	"github.com/dkeye/Bridge/internal/domain"
	"github.com/dkeye/Bridge/internal/protocol"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// mediaStream is the socket-accept entry point. It upgrades the
// connection, waits for the start event, normalizes the identifiers
// once, and runs the bridge session to completion on this goroutine.
func (h *handlers) mediaStream(ctx context.Context, c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Str("module", "adapters.http").Err(err).Msg("ws upgrade failed")
		return
	}
	sock := ws.NewSocket(conn)
	defer sock.Close()

	log.Info().Str("module", "adapters.http").Msg("media stream connected")

	data, err := sock.ReadMessage(ctx)
	if err != nil {
		log.Info().Str("module", "adapters.http").Err(err).Msg("socket closed before start")
		return
	}
	msg, err := protocol.Decode(data)
	if err != nil || msg.Event != protocol.EventStart {
		log.Warn().Str("module", "adapters.http").Err(err).Msg("expected start event, closing")
		return
	}

	callID := msg.CallID()
	sid := domain.NewSessionID(msg.StreamID(), callID)

	sess, err := app.NewSession(sid, callID, app.SessionDeps{
		Socket:        sock,
		Connector:     h.deps.Connector,
		Registry:      h.deps.Registry,
		Metrics:       h.deps.Metrics,
		TelephonyRate: h.deps.Config.TelephonyRate,
		RoomRate:      h.deps.Config.RoomRate,
	})
	if err != nil {
		log.Error().Str("module", "adapters.http").Err(err).Msg("session construction failed")
		return
	}

	if err := h.deps.Registry.Register(sess); err != nil {
		if duplicateSession(err) {
			log.Warn().
				Str("module", "adapters.http").
				Str("call_id", string(callID)).
				Msg("rejecting duplicate session, keeping existing one")
		} else {
			log.Error().Str("module", "adapters.http").Err(err).Msg("session register failed")
		}
		return
	}

	sock.StartPing(ctx)

	if err := sess.Run(ctx); err != nil {
		log.Error().
			Str("module", "adapters.http").
			Str("sid", string(sid)).
			Err(err).
			Msg("session ended with error")
	}
}
