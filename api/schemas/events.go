// api/schemas/events.go
package schemas

import "time"

// EventType enumerates the progress events a run publishes.
type EventType string

const (
	EventStepStart EventType = "step_start"
	EventStepEnd   EventType = "step_end"
	EventNetwork   EventType = "network"
	EventLog       EventType = "log"
	EventComplete  EventType = "complete"
	EventError     EventType = "error"
)

// Event is one entry on a run's ordered progress stream. Exactly one of the
// payload pointers is set depending on Type; Message carries log and error
// text. Delivery to subscribers is at-least-once and order within a run is
// preserved.
type Event struct {
	Type      EventType       `json:"type"`
	RunID     string          `json:"run_id"`
	Timestamp time.Time       `json:"timestamp"`
	StepIndex int             `json:"step_index,omitempty"`
	Step      *Step           `json:"step,omitempty"`
	Result    *StepResult     `json:"result,omitempty"`
	Request   *NetworkRequest `json:"request,omitempty"`
	Run       *RunResult      `json:"run,omitempty"`
	Message   string          `json:"message,omitempty"`
}
