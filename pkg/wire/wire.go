// Package wire holds the JSON envelopes shared by the client-facing and
// agent-facing HTTP surfaces. Both cmd/server and cmd/agent import this
// package so the two processes agree on wire shape without importing
// each other's internals.
package wire

import "time"

// CommandKind identifies which executor a Command's payload targets.
type CommandKind string

const (
	KindDelay       CommandKind = "DELAY"
	KindHTTPGetJSON CommandKind = "HTTP_GET_JSON"
	KindNoop        CommandKind = "NOOP"
)

// CommandStatus is the four-state lifecycle a Command moves through.
type CommandStatus string

const (
	StatusPending   CommandStatus = "PENDING"
	StatusRunning   CommandStatus = "RUNNING"
	StatusCompleted CommandStatus = "COMPLETED"
	StatusFailed    CommandStatus = "FAILED"
)

// Command is the over-the-wire representation of a command record. It is
// the JSON projection of store.Command, kept separate so persistence
// concerns (gorm tags, internal fields) never leak into the API surface.
type Command struct {
	ID          string          `json:"id"`
	Kind        CommandKind     `json:"kind"`
	Payload     interface{}     `json:"payload"`
	Status      CommandStatus   `json:"status"`
	Result      interface{}     `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	AgentID     string          `json:"agentId,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	StartedAt   *time.Time      `json:"startedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// SubmitCommandRequest is the body of POST /commands.
type SubmitCommandRequest struct {
	Type    CommandKind `json:"type"`
	Payload interface{} `json:"payload"`
}

// SubmitCommandResponse is the 201 body of POST /commands.
type SubmitCommandResponse struct {
	CommandID string `json:"commandId"`
}

// ErrorResponse is the shared JSON error body across both APIs.
type ErrorResponse struct {
	Error string `json:"error"`
}

// GetCommandResponse is the body of GET /commands/{id}.
type GetCommandResponse struct {
	Status  CommandStatus `json:"status"`
	Result  interface{}   `json:"result,omitempty"`
	AgentID string        `json:"agentId,omitempty"`
}

// ListCommandsResponse is the body of GET /commands.
type ListCommandsResponse struct {
	Commands []Command `json:"commands"`
}

// CommandEvent is one row of a command's transition history, returned by
// GET /commands/{id}/events.
type CommandEvent struct {
	CommandID  string        `json:"commandId"`
	FromStatus CommandStatus `json:"fromStatus"`
	ToStatus   CommandStatus `json:"toStatus"`
	AgentID    string        `json:"agentId,omitempty"`
	At         time.Time     `json:"at"`
}

// ListCommandEventsResponse is the body of GET /commands/{id}/events.
type ListCommandEventsResponse struct {
	Events []CommandEvent `json:"events"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// FetchRequest is the body of POST /agent/fetch.
type FetchRequest struct {
	AgentID string `json:"agentId"`
}

// FetchResponse is the body of POST /agent/fetch.
type FetchResponse struct {
	Command *Command `json:"command"`
}

// ResultRequest is the body of POST /agent/result.
type ResultRequest struct {
	AgentID   string        `json:"agentId"`
	CommandID string        `json:"commandId"`
	Status    CommandStatus `json:"status"`
	Result    interface{}   `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// ResultResponse is the body of POST /agent/result.
type ResultResponse struct {
	Acknowledged bool   `json:"acknowledged"`
	Message      string `json:"message,omitempty"`
}

// SyncRequest is the body of POST /agent/sync.
type SyncRequest struct {
	AgentID string `json:"agentId"`
}

// SyncResponse is the body of POST /agent/sync.
type SyncResponse struct {
	UnfinishedCommand *Command `json:"unfinishedCommand"`
}

// HeartbeatRequest is the body of POST /agent/heartbeat.
type HeartbeatRequest struct {
	AgentID   string `json:"agentId"`
	CommandID string `json:"commandId,omitempty"`
}

// HeartbeatResponse is the body of POST /agent/heartbeat.
type HeartbeatResponse struct {
	Acknowledged bool `json:"acknowledged"`
}

// DelayPayload is the Command.payload shape for KindDelay.
type DelayPayload struct {
	Ms int64 `json:"ms"`
}

// DelayResult is the Command.result shape produced by the delay executor.
type DelayResult struct {
	OK      bool  `json:"ok"`
	TookMs  int64 `json:"took_ms"`
}

// HTTPGetJSONPayload is the Command.payload shape for KindHTTPGetJSON.
type HTTPGetJSONPayload struct {
	URL string `json:"url"`
}

// HTTPGetJSONResult is the Command.result shape produced by the
// HTTP-fetch executor.
type HTTPGetJSONResult struct {
	Status        int         `json:"status"`
	Body          interface{} `json:"body,omitempty"`
	Truncated     bool        `json:"truncated"`
	BytesReturned int         `json:"bytes_returned"`
	Error         string      `json:"error,omitempty"`
}
