package analysis

import (
	"time"

	"github.com/jonathan/contract-analyzer/internal/types"
)

// Status is the terminal status of one run
type Status string

// Run statuses
const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusBlocked Status = "blocked"
)

// AttemptRecord summarizes one model invocation
type AttemptRecord struct {
	Attempt   int           `json:"attempt"`
	Kind      ErrorKind     `json:"kind,omitempty"`
	Message   string        `json:"message,omitempty"`
	LatencyMs int64         `json:"latencyMs"`
	Backoff   time.Duration `json:"backoffNs,omitempty"`
}

// Outcome is the terminal result of one run.
// Result is set only on success; Failure is set otherwise.
type Outcome struct {
	Status           Status
	Result           *types.AnalysisResult
	Usage            types.UsageMetrics
	Model            string
	RequestID        string
	ProcessingTimeMs int64
	Failure          *Failure
	Attempts         []AttemptRecord
}

// Succeeded reports whether the run produced a validated analysis.
func (o *Outcome) Succeeded() bool {
	return o.Status == StatusSuccess
}

// Invoked reports whether the model was called at least once.
func (o *Outcome) Invoked() bool {
	return len(o.Attempts) > 0
}

// Event is emitted on every state transition of a run
type Event struct {
	RequestID string    `json:"requestId"`
	Attempt   int       `json:"attempt"`
	State     State     `json:"state"`
	Message   string    `json:"message,omitempty"`
	At        time.Time `json:"at"`
}

// Observer receives run events synchronously, in order
type Observer func(Event)
