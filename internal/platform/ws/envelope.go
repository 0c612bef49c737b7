package ws

import (
	"encoding/json"
	"fmt"

	"github.com/giapdoan01/SoulDungeonBE/internal/multiplayer"
)

// Envelope is the frame exchanged in both directions:
// {"type": "<event>", "payload": {...}}.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// encodeEvent wraps a server event in an envelope.
func encodeEvent(evt multiplayer.ServerEvent) ([]byte, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", evt.EventType(), err)
	}
	data, err := json.Marshal(Envelope{Type: evt.EventType(), Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", evt.EventType(), err)
	}
	return data, nil
}

// decodeFrame parses a client frame into a typed message.
func decodeFrame(data []byte) (multiplayer.ClientMessage, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return multiplayer.DecodeClientMessage(env.Type, env.Payload)
}
