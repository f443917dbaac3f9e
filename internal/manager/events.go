package manager

import (
	"time"

	"github.com/google/uuid"
)

// EventBuilder constructs event Messages with consistent defaults,
// grounded on the teacher's fluent event.Builder (each call-site method
// returns the builder for chaining, with Build() producing the final
// value) but emitting this protocol's flat key/value Message instead of
// a typed struct, since the wire format here is headers, not JSON.
type EventBuilder struct {
	msg      *Message
	category Category
}

// NewEvent starts building an event named name, required to be visible
// only to sessions whose read mask contains category.
func NewEvent(name string, category Category) *EventBuilder {
	m := NewMessage()
	m.Set("Event", name)
	m.Set("EventID", uuid.NewString())
	m.Set("Privilege", maskName(category))
	m.Set("Timestamp", time.Now().UTC().Format(time.RFC3339Nano))
	return &EventBuilder{msg: m, category: category}
}

// Field appends one header to the event under construction.
func (b *EventBuilder) Field(key, value string) *EventBuilder {
	b.msg.Set(key, value)
	return b
}

// ActionID correlates this event with the action that triggered it
// (spec §4.3.6, Originate async completion events).
func (b *EventBuilder) ActionID(id string) *EventBuilder {
	if id != "" {
		b.msg.Set("ActionID", id)
	}
	return b
}

// Build finalizes the event message.
func (b *EventBuilder) Build() *Message {
	return b.msg
}

// Category returns the event's required read category, used by the
// server's fan-out to decide eligible sessions without serializing the
// event for sessions that cannot see it (spec §4.3.4, "lazy construction").
func (b *EventBuilder) Category() Category {
	return b.category
}

func maskName(c Category) string {
	switch {
	case c&CatAgent != 0:
		return "agent,all"
	case c&CatCall != 0:
		return "call,all"
	case c&CatCommand != 0:
		return "command,all"
	case c&CatUser != 0:
		return "user,all"
	case c&CatLog != 0:
		return "log,all"
	case c&CatSystem != 0:
		return "system,all"
	default:
		return "none"
	}
}
