// Package protocol implements the telephony media-stream wire format:
// JSON envelopes over a persistent WebSocket carrying base64 PCM16.
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/Bridge/internal/audio"
	"github.com/dkeye/Bridge/internal/domain"
)

const (
	EventStart     = "start"
	EventMedia     = "media"
	EventStop      = "stop"
	EventPlayAudio = "playAudio"

	// ContentTypePCM is the linear PCM content type the platform streams.
	ContentTypePCM = "audio/x-l16"
)

var ErrNotJSON = errors.New("protocol: message is not valid JSON")

// Message is one inbound envelope. Only the fields for the event kind
// are populated.
type Message struct {
	Event string     `json:"event"`
	Start *StartInfo `json:"start,omitempty"`
	// media payload appears either at the top level or nested,
	// depending on platform version.
	Payload string     `json:"payload,omitempty"`
	Media   *MediaInfo `json:"media,omitempty"`

	// legacy top-level spellings of the call identifier
	CallUUIDLegacy string `json:"callUUID,omitempty"`
	CallUUIDSnake  string `json:"call_uuid,omitempty"`
}

// StartInfo carries session identity. The platform has shipped several
// spellings of the same identifiers over time; Normalize resolves them
// once so nothing downstream re-parses alternatives.
type StartInfo struct {
	CallID    string `json:"callId,omitempty"`
	CallIDAlt string `json:"callID,omitempty"`
	CallUUID  string `json:"callUuid,omitempty"`
	CallUUID2 string `json:"callUUID,omitempty"`
	StreamID  string `json:"streamId,omitempty"`
	StreamSID string `json:"streamSid,omitempty"`
}

type MediaInfo struct {
	ContentType string `json:"contentType,omitempty"`
	SampleRate  int    `json:"sampleRate,omitempty"`
	Payload     string `json:"payload,omitempty"`
}

// Decode parses one wire message. Unknown events are returned as-is;
// they are control messages the bridge ignores.
func Decode(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotJSON, err)
	}
	return &m, nil
}

// CallID resolves the call identifier across all known spellings.
func (m *Message) CallID() domain.CallID {
	if m.Start != nil {
		for _, v := range []string{m.Start.CallID, m.Start.CallIDAlt, m.Start.CallUUID, m.Start.CallUUID2} {
			if v != "" {
				return domain.CallID(v)
			}
		}
	}
	if m.CallUUIDLegacy != "" {
		return domain.CallID(m.CallUUIDLegacy)
	}
	return domain.CallID(m.CallUUIDSnake)
}

// StreamID resolves the stream identifier across known spellings.
func (m *Message) StreamID() domain.StreamID {
	if m.Start == nil {
		return ""
	}
	if m.Start.StreamID != "" {
		return domain.StreamID(m.Start.StreamID)
	}
	return domain.StreamID(m.Start.StreamSID)
}

// AudioFrame extracts the PCM frame from a media message. The second
// return is false for non-audio messages (not an error). A malformed
// payload returns an error; callers log it and drop the frame.
func (m *Message) AudioFrame(sampleRate int) (*audio.Frame, bool, error) {
	if m.Event != EventMedia {
		return nil, false, nil
	}
	payload := m.Payload
	if payload == "" && m.Media != nil {
		payload = m.Media.Payload
	}
	if payload == "" {
		return nil, false, nil
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, true, fmt.Errorf("protocol: bad media payload: %w", err)
	}
	f, err := audio.NewFrame(sampleRate, audio.SamplesFromBytes(raw))
	if err != nil {
		return nil, true, fmt.Errorf("protocol: bad media frame: %w", err)
	}
	return f, true, nil
}

// playAudioMessage is the outbound envelope the platform plays to the caller.
type playAudioMessage struct {
	Event string    `json:"event"`
	Media MediaInfo `json:"media"`
}

// EncodePlayAudio renders one outbound PCM frame.
func EncodePlayAudio(f *audio.Frame) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	msg := playAudioMessage{
		Event: EventPlayAudio,
		Media: MediaInfo{
			ContentType: ContentTypePCM,
			SampleRate:  f.SampleRate,
			Payload:     base64.StdEncoding.EncodeToString(audio.SamplesToBytes(f.Samples)),
		},
	}
	return json.Marshal(msg)
}
