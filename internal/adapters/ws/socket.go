// Package ws adapts a gorilla WebSocket connection to the telephony
// socket contract. The adapter owns the connection and closes it.
package ws

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Bridge/internal/core"
)

const (
	writeWait  = 5 * time.Second
	pingPeriod = 30 * time.Second
)

type Socket struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	closed  atomic.Bool
	once    sync.Once
}

func NewSocket(conn *websocket.Conn) *Socket {
	return &Socket{conn: conn}
}

// ReadMessage blocks for the next message. Cancellation works through
// Close, which unblocks the pending read; ctx is checked so a read
// issued after cancellation fails fast.
func (s *Socket) ReadMessage(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSocketClosed, err)
	}
	if s.closed.Load() {
		return nil, core.ErrSocketClosed
	}
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: %v", core.ErrSocketClosed, err)
	}
	return data, nil
}

func (s *Socket) WriteMessage(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed.Load() {
		return core.ErrSocketClosed
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.Close()
		return fmt.Errorf("%w: %v", core.ErrSocketClosed, err)
	}
	return nil
}

func (s *Socket) Writable() bool {
	return !s.closed.Load()
}

func (s *Socket) Close() {
	s.once.Do(func() {
		s.closed.Store(true)
		_ = s.conn.Close()
	})
}

// StartPing keeps the platform's idle timers at bay for long calls.
func (s *Socket) StartPing(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.writeMu.Lock()
				if s.closed.Load() {
					s.writeMu.Unlock()
					return
				}
				_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
				err := s.conn.WriteMessage(websocket.PingMessage, nil)
				s.writeMu.Unlock()
				if err != nil {
					log.Info().Str("module", "adapters.ws").Err(err).Msg("ping failed, closing socket")
					s.Close()
					return
				}
			}
		}
	}()
}
