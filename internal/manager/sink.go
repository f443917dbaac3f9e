package manager

import "github.com/sebas/pbxqueue/internal/events"

// eventCategories maps the event names the queue and agentchan packages
// publish to the manager category that gates their visibility. Unlisted
// names default to CatCall, matching spec §4.3.5's "call" category for
// the bulk of per-channel lifecycle events.
var eventCategories = map[string]Category{
	"QueueCallerJoin":   CatCall,
	"QueueCallerLeave":  CatCall,
	"QueueMemberRinging": CatAgent,
	"AgentConnect":      CatAgent,
	"Agentlogin":        CatAgent,
	"Agentlogoff":       CatAgent,
	"Agentcallbacklogin": CatAgent,
	"AgentCallbackLogoff": CatAgent,
}

// Sink adapts a Server into the events.Sink seam so the queue and
// agentchan packages can publish events without importing manager
// (avoiding the import cycle manager -> queue/agentchan -> manager).
type Sink struct {
	Server *Server
}

var _ events.Sink = (*Sink)(nil)

// Publish implements events.Sink, translating a domain event into a
// manager EventBuilder and broadcasting it to eligible sessions.
func (s *Sink) Publish(name string, fields []events.Field) {
	category, ok := eventCategories[name]
	if !ok {
		category = CatCall
	}
	eb := NewEvent(name, category)
	for _, f := range fields {
		eb.Field(f.Key, f.Value)
	}
	s.Server.Broadcast(eb)
}
