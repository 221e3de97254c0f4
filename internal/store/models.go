package store

import "time"

// Command is the gorm-persisted row for a unit of work. Payload and
// Result are stored as serialized JSON text, per the tagged-union
// convention described in SPEC_FULL.md §9.
type Command struct {
	ID          string `gorm:"primaryKey"`
	Kind        string `gorm:"index"`
	Payload     string
	Status      string `gorm:"index"`
	Result      string
	Error       string
	Owner       string `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// AgentLiveness is the gorm-persisted per-agent heartbeat record.
type AgentLiveness struct {
	AgentID        string `gorm:"primaryKey"`
	LastHeartbeat  time.Time
	CurrentCommand string
}

// CommandEvent is one append-only row of transition history, written
// alongside every mutating Command write. Nothing in the lifecycle
// decision path reads it back — it exists for operator visibility only.
type CommandEvent struct {
	ID         uint `gorm:"primaryKey;autoIncrement"`
	CommandID  string `gorm:"index"`
	FromStatus string
	ToStatus   string
	AgentID    string
	At         time.Time
}

// Statuses a Command can hold. String, not an enum type, so gorm and
// JSON marshaling both stay trivial.
const (
	StatusPending   = "PENDING"
	StatusRunning   = "RUNNING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// Kinds a Command's payload can be tagged with.
const (
	KindDelay       = "DELAY"
	KindHTTPGetJSON = "HTTP_GET_JSON"
	KindNoop        = "NOOP"
)
