package events

import "seasonfarm/core/types"

// Event represents a structured state change emitted by a contract.
type Event interface {
	EventType() string
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC streams, metrics).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Multi fans a single event out to several emitters in order.
type Multi []Emitter

// Emit implements the Emitter interface.
func (m Multi) Emit(evt Event) {
	for _, emitter := range m {
		if emitter != nil {
			emitter.Emit(evt)
		}
	}
}

// Envelope adapts a raw event payload to the Event interface.
type Envelope struct {
	Payload *types.Event
}

// Wrap converts a raw event payload into the emitter-friendly envelope.
func Wrap(evt *types.Event) Event { return Envelope{Payload: evt} }

// EventType implements the Event interface.
func (e Envelope) EventType() string {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.Type
}

// Event implements the Event interface.
func (e Envelope) Event() *types.Event { return e.Payload }
