// Package streaming defines the JSON envelope exchanged with viewers over
// the /ws endpoint.
package streaming

import (
	"encoding/json"
	"fmt"

	"github.com/azurexth/LimSim/pkg/core"
)

// Server to viewer message types.
const (
	TypeRunStarted = "run_started"
	TypeFrame      = "frame"
	TypeStatus     = "status"
	TypeRunEnded   = "run_ended"
	TypeAck        = "ack"
)

// Viewer to server message types.
const (
	TypeFocus  = "focus"
	TypePause  = "pause"
	TypeResume = "resume"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AckMessage is the server's answer to a viewer command.
type AckMessage struct {
	Type  string `json:"type"` // always "ack"
	For   string `json:"for"`  // the message type being acknowledged
	Error string `json:"error,omitempty"`
}

// RunStartedPayload is sent to every viewer when it connects and when a
// run starts.
type RunStartedPayload struct {
	Mode string        `json:"mode"`
	Run  *core.RunInfo `json:"run"`
}

// FocusPayload carries a viewer's focus request.
type FocusPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Marshal builds a JSON-encoded Envelope from a message type and payload.
// A nil payload leaves the payload field out.
func Marshal(msgType string, payload any) ([]byte, error) {
	env := Envelope{Type: msgType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
		}
		env.Payload = raw
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// FrameMessage is a shortcut for Marshal(TypeFrame, f).
func FrameMessage(f core.Frame) ([]byte, error) {
	return Marshal(TypeFrame, f)
}
