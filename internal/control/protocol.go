// ABOUTME: Control protocol message definitions
// ABOUTME: JSON requests, replies, pushed events and binary layer frames
package control

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
)

const (
	// ProtocolVersion is sent in server/hello.
	ProtocolVersion = 1

	// LayerMessageType tags binary frames carrying a finished layer.
	LayerMessageType = 1

	eventPrefix = "event/"
)

// ErrMalformed is returned for payloads that do not decode.
var ErrMalformed = errors.New("malformed payload")

// Message is a request from the UI.
type Message struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Reply answers one Message.
type Reply struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// Push is an unsolicited message: server/hello and events.
type Push struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// ServerHello is sent when a connection opens.
type ServerHello struct {
	ServerID   string `json:"server_id"`
	ClientID   string `json:"client_id"`
	Name       string `json:"name"`
	Version    int    `json:"version"`
	SampleRate int    `json:"sample_rate"`
}

// decodePayload unmarshals p into v. An empty payload leaves v unchanged.
func decodePayload(p json.RawMessage, v any) error {
	if len(p) == 0 || string(p) == "null" {
		return nil
	}
	if err := json.Unmarshal(p, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// CreateLayerFrame builds a binary layer message:
// [message_type:1][layer_id:16][float32 little-endian samples]
func CreateLayerFrame(layerID string, samples []float32) ([]byte, error) {
	id, err := uuid.Parse(layerID)
	if err != nil {
		return nil, fmt.Errorf("invalid layer id: %w", err)
	}
	frame := make([]byte, 1+16+4*len(samples))
	frame[0] = LayerMessageType
	copy(frame[1:17], id[:])
	for i, s := range samples {
		binary.LittleEndian.PutUint32(frame[17+4*i:], math.Float32bits(s))
	}
	return frame, nil
}

// ParseLayerFrame decodes a frame built by CreateLayerFrame.
func ParseLayerFrame(frame []byte) (string, []float32, error) {
	if len(frame) < 17 || frame[0] != LayerMessageType {
		return "", nil, errors.New("not a layer frame")
	}
	if (len(frame)-17)%4 != 0 {
		return "", nil, errors.New("truncated layer frame")
	}
	var id uuid.UUID
	copy(id[:], frame[1:17])
	samples := make([]float32, (len(frame)-17)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(frame[17+4*i:]))
	}
	return id.String(), samples, nil
}
