package server

import "github.com/goccy/go-json"

// ClientMessage is the envelope for every client-to-server WebSocket message.
type ClientMessage struct {
	Type string          `json:"type"` // set, patch, append, remove, touch, reset, load_options, get, snapshot, ping
	ID   string          `json:"id"`   // Client-assigned request ID
	Data json.RawMessage `json:"data,omitempty"`
}

// ServerMessage is the envelope for every server-to-client WebSocket message.
type ServerMessage struct {
	Type      string `json:"type"` // session, event, ok, state, snapshot, error, pong
	RequestID string `json:"request_id,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// SetData is the payload of "set" and "append".
type SetData struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// PatchData is the payload of "patch".
type PatchData struct {
	Value any `json:"value"`
}

// RemoveData is the payload of "remove".
type RemoveData struct {
	Path  string `json:"path"`
	Index int    `json:"index"`
}

// PathData is the payload of "touch" and "get".
type PathData struct {
	Path string `json:"path"`
}

// ResetData is the payload of "reset". An empty Form keeps the current form.
type ResetData struct {
	Form string `json:"form,omitempty"`
}

// SessionData is sent once after the connection is accepted.
type SessionData struct {
	SessionID    string `json:"session_id"`
	Form         string `json:"form"`
	ConfigErrors int    `json:"config_errors"`
}

// SnapshotData answers "snapshot".
type SnapshotData struct {
	Value  map[string]any `json:"value"`
	Errors map[string]any `json:"errors,omitempty"`
	Valid  bool           `json:"valid"`
	Nodes  any            `json:"nodes"`
}

// ErrorData carries an error message.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
