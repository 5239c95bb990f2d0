package websocket

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/isdelr/sitepulse/internal/telemetry"
)

// Actions sent by the server.
const (
	ActionSnapshot = "snapshot"
	ActionError    = "error"
	ActionRecorded = "recorded"
	ActionAck      = "ack"
)

// Message defines the structure for websocket messages.
type Message struct {
	Action  string          `json:"action"`
	Monitor string          `json:"monitor,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SnapshotPayload is pushed whenever a monitor changes.
type SnapshotPayload struct {
	Snapshot telemetry.Snapshot `json:"snapshot"`
	View     any                `json:"view"`
}

// NewMessage encodes an outbound message.
func NewMessage(action, monitor string, payload any) []byte {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("action", action).Msg("Failed to encode websocket payload")
		return NewErrorMessage("failed to encode payload")
	}
	out, _ := json.Marshal(Message{Action: action, Monitor: monitor, Payload: raw})
	return out
}

// NewErrorMessage creates an error message.
func NewErrorMessage(message string) []byte {
	raw, _ := json.Marshal(map[string]string{"error": message})
	out, _ := json.Marshal(Message{Action: ActionError, Payload: raw})
	return out
}

// NewSnapshotMessage creates a snapshot push for a monitor.
func NewSnapshotMessage(snap telemetry.Snapshot, view any) []byte {
	return NewMessage(ActionSnapshot, snap.Monitor, SnapshotPayload{Snapshot: snap, View: view})
}
