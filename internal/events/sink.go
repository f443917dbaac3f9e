// Package events defines the narrow seam between the queue engine / agent
// channel (producers of state-transition events) and the manager plane
// (the component that actually serializes and fans them out to sessions).
// Keeping this interface tiny avoids an import cycle between internal/queue,
// internal/agentchan and internal/manager while still letting the manager
// plane's lazy-construction rule (spec §4.3.4: "if no eligible session
// exists, the event is not serialized") live entirely inside the manager
// package.
package events

// Sink receives a named event with its headers as ordered key/value pairs.
// Implementations decide whether any subscriber cares before doing any
// work — see internal/manager's Sink.Publish and Server.Broadcast.
type Sink interface {
	Publish(name string, fields []Field)
}

// Field is one (key, value) header of an emitted event, kept ordered
// because the manager wire protocol is order-sensitive for tests
// (Design Notes, "Manager I/O").
type Field struct {
	Key   string
	Value string
}

// F is a convenience constructor for a Field.
func F(key, value string) Field { return Field{Key: key, Value: value} }

// Nop is a Sink that discards everything; used by packages under test that
// don't need a manager plane wired up.
type Nop struct{}

func (Nop) Publish(string, []Field) {}

var _ Sink = Nop{}
