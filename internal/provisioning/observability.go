package provisioning

import (
	"log"
	"time"
)

// Observer receives structured progress events during provisioning.
type Observer interface {
	// Printf emits a human-readable progress line.
	Printf(format string, args ...any)

	// Event emits a structured provisioning event.
	Event(event Event)
}

// Event is one structured provisioning event.
type Event struct {
	Type      EventType
	State     ReadinessState // state after the event
	Message   string
	Timestamp time.Time
}

// EventType classifies provisioning events.
type EventType string

const (
	// EventStateChanged indicates the readiness state advanced.
	EventStateChanged EventType = "state.changed"
	// EventStepStarted indicates a provisioning step started.
	EventStepStarted EventType = "step.started"
	// EventStepFailed indicates a provisioning step failed.
	EventStepFailed EventType = "step.failed"
)

// ConsoleObserver logs provisioning progress via the standard log package.
type ConsoleObserver struct{}

func NewConsoleObserver() *ConsoleObserver {
	return &ConsoleObserver{}
}

func (o *ConsoleObserver) Printf(format string, args ...any) {
	log.Printf(format, args...)
}

func (o *ConsoleObserver) Event(event Event) {
	switch event.Type {
	case EventStateChanged:
		log.Printf("launcher: %s", event.State)
	case EventStepFailed:
		log.Printf("launcher: %s failed: %s", event.State, event.Message)
	default:
	}
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) Printf(string, ...any) {}
func (NopObserver) Event(Event)           {}
