package app

import (
	"context"

	"github.com/dkeye/Bridge/internal/protocol"
)

// runIngress is the telephony-to-room pump. It reads wire messages,
// decodes them, converts to the room rate, and forwards the resulting
// frames in arrival order to the local track. Frame-level errors skip
// the frame; socket disconnect and stream-stop end the loop normally.
func (s *Session) runIngress(ctx context.Context) {
	logger := s.logger.With().Str("pump", "ingress").Logger()
	for {
		data, err := s.deps.Socket.ReadMessage(ctx)
		if err != nil {
			logger.Info().Err(err).Msg("socket read ended")
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			s.countFrameError()
			logger.Warn().Err(err).Msg("dropping undecodable message")
			continue
		}

		switch msg.Event {
		case protocol.EventStop:
			logger.Info().Msg("stop event received")
			return
		case protocol.EventMedia:
			frame, isAudio, err := msg.AudioFrame(s.deps.TelephonyRate)
			if err != nil {
				s.countFrameError()
				logger.Warn().Err(err).Msg("dropping bad media frame")
				continue
			}
			if !isAudio {
				continue
			}
			outs, err := s.ingressConv.Push(frame)
			if err != nil {
				s.countFrameError()
				logger.Warn().Err(err).Msg("dropping unconvertible frame")
				continue
			}
			for _, out := range outs {
				if err := s.sink.WriteFrame(out); err != nil {
					// the local track is gone; connection-level
					logger.Error().Err(err).Msg("local track write failed")
					return
				}
				if s.deps.Metrics != nil {
					s.deps.Metrics.IngressFrames.Inc()
				}
			}
		default:
			// non-audio control message
		}
	}
}

func (s *Session) countFrameError() {
	if s.deps.Metrics != nil {
		s.deps.Metrics.FrameErrors.Inc()
	}
}
