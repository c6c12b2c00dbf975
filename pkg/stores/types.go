package stores

import "time"

// ExecStatus represents the outcome of a recorded step execution.
type ExecStatus string

const (
	ExecStatusOK    ExecStatus = "ok"
	ExecStatusError ExecStatus = "error"
)

// ExecRecord is one row of the step execution history.
type ExecRecord struct {
	// ExecID is the execution's unique id.
	ExecID string `json:"exec_id"`

	// Step is the executed step's name.
	Step string `json:"step"`

	// Status is the execution outcome.
	Status ExecStatus `json:"status"`

	// Error carries the error text for failed executions.
	Error string `json:"error,omitempty"`

	// DurationMS is the wall-clock execution time in milliseconds.
	DurationMS int64 `json:"duration_ms"`

	// StartedAt is when the execution began.
	StartedAt time.Time `json:"started_at"`
}

// KVEntry is one stored key-value pair.
type KVEntry struct {
	Namespace string     `json:"namespace"`
	Key       string     `json:"key"`
	Value     []byte     `json:"value"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}
