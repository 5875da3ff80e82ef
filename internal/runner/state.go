package runner

import (
	"time"

	"github.com/zjrosen/omniedit/internal/pubsub"
)

// State is the supervisor lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Status classifies how a run ended.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Outcome describes a finished run.
type Outcome struct {
	RunID       string
	Status      Status
	Err         error
	StartedAt   time.Time
	FinishedAt  time.Time
	OutputBytes int64
	Deliveries  int64
}

// Duration is how long the run took, including the final drain.
func (o Outcome) Duration() time.Duration {
	return o.FinishedAt.Sub(o.StartedAt)
}

// Lifecycle event types published on the event broker.
const (
	EventRunStarted    pubsub.EventType = "run.started"
	EventStopRequested pubsub.EventType = "stop.requested"
	EventRunFinished   pubsub.EventType = "run.finished"
)

// Event is the payload of a lifecycle event. Outcome is set only for
// EventRunFinished.
type Event struct {
	RunID   string
	State   State
	Outcome *Outcome
}
