package app

import (
	"context"
	"errors"

	"github.com/dkeye/Bridge/internal/core"
	"github.com/dkeye/Bridge/internal/protocol"
)

// runEgress is the room-to-telephony pump, one per remote track. It
// converts produced frames to the telephony rate and writes them to
// the socket, re-checking writability before each write because one
// input frame can fan out into several outputs while the destination
// closes. A write error that means "socket closed" ends the pump; any
// other frame-level error skips the frame.
func (s *Session) runEgress(ctx context.Context, track core.RemoteTrack) {
	defer s.pumps.Done()
	logger := s.logger.With().Str("pump", "egress").Str("track_id", track.ID()).Logger()
	defer logger.Info().Msg("egress pump exiting")

	// The track outliving the socket is the usual teardown order, so
	// a dead pump nudges the whole session toward stopping.
	defer s.beginStop()

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-track.Frames():
			if !ok {
				logger.Info().Msg("remote track ended")
				return
			}
			if !s.deps.Socket.Writable() {
				return
			}

			s.egressMu.Lock()
			outs, err := s.egressConv.Push(frame)
			s.egressMu.Unlock()
			if err != nil {
				s.countFrameError()
				logger.Warn().Err(err).Msg("dropping unconvertible frame")
				continue
			}

			for _, out := range outs {
				if !s.deps.Socket.Writable() {
					return
				}
				data, err := protocol.EncodePlayAudio(out)
				if err != nil {
					s.countFrameError()
					logger.Warn().Err(err).Msg("dropping unencodable frame")
					continue
				}
				if err := s.deps.Socket.WriteMessage(data); err != nil {
					if errors.Is(err, core.ErrSocketClosed) {
						return
					}
					s.countFrameError()
					logger.Warn().Err(err).Msg("dropping frame on write error")
					continue
				}
				if s.deps.Metrics != nil {
					s.deps.Metrics.EgressFrames.Inc()
				}
			}
		}
	}
}
