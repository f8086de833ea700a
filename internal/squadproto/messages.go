// Package squadproto defines message types for worker-coordinator
// communication in the squad worker pool. Messages flow over WebSocket
// connections.
package squadproto

import "encoding/json"

// Envelope wraps all messages with a type discriminator.
// When marshaling, Payload can be any message struct.
// When unmarshaling, use EnvelopeRaw for type-based dispatch.
type Envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// EnvelopeRaw is used for receiving messages where the payload
// needs to be unmarshaled based on the message type.
type EnvelopeRaw struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MarshalEnvelope creates an envelope with the given type and payload
func MarshalEnvelope(msgType string, payload interface{}) ([]byte, error) {
	return json.Marshal(Envelope{Type: msgType, Payload: payload})
}

// Worker -> Coordinator messages

// RegisterMessage sent when a worker first connects
type RegisterMessage struct {
	WorkerID string   `json:"worker_id"`
	Squads   []string `json:"squads"`
	MaxTasks int      `json:"max_tasks"`
}

// ReadyMessage sent when a worker has available task slots
type ReadyMessage struct {
	Slots int `json:"slots"`
}

// ResultMessage sent when an assignment finishes
type ResultMessage struct {
	AssignmentID string `json:"assignment_id"`
	Result       string `json:"result"`
	DurationMs   int64  `json:"duration_ms"`
}

// ErrorMessage sent when an assignment fails before completion
type ErrorMessage struct {
	AssignmentID string `json:"assignment_id"`
	Message      string `json:"message"`
}

// Coordinator -> Worker messages

// AssignmentMessage hands a sub-task to a worker
type AssignmentMessage struct {
	AssignmentID string `json:"assignment_id"`
	Squad        string `json:"squad"`
	PhaseName    string `json:"phase_name"`
	TaskName     string `json:"task_name"`
	Category     string `json:"category"`
	Timeout      int    `json:"timeout_secs,omitempty"`
}

// CancelMessage requests assignment cancellation
type CancelMessage struct {
	AssignmentID string `json:"assignment_id"`
}

// Message type constants
const (
	TypeRegister   = "register"
	TypeReady      = "ready"
	TypeResult     = "result"
	TypeError      = "error"
	TypeAssignment = "assignment"
	TypeCancel     = "cancel"
	TypePing       = "ping"
	TypePong       = "pong"
)
