package common

import "time"

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
}

// EventRecorder collects the domain events raised by an aggregate until the
// repository writes them to the outbox.
type EventRecorder struct {
	events []DomainEvent
}

// Record appends an event
func (r *EventRecorder) Record(event DomainEvent) {
	r.events = append(r.events, event)
}

// DomainEvents returns the pending events
func (r *EventRecorder) DomainEvents() []DomainEvent {
	return r.events
}

// ClearDomainEvents drops the pending events once they are persisted
func (r *EventRecorder) ClearDomainEvents() {
	r.events = nil
}

// EventSource is implemented by every aggregate that records events
type EventSource interface {
	DomainEvents() []DomainEvent
	ClearDomainEvents()
}
