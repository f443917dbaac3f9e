package queue

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/sebas/pbxqueue/internal/events"
)

// persist rewrites this queue's dynamic-member record if a KVStore
// is wired, per spec §4.1.10's "on every add/remove/pause/unpause of a
// dynamic member, rewrite the queue's record" rule. Must be called with
// mu NOT held — PersistMembers takes its own lock via DynamicMembers.
func (q *Queue) persist() {
	q.mu.Lock()
	kv := q.kv
	q.mu.Unlock()
	if kv == nil {
		return
	}
	if err := PersistMembers(context.Background(), kv, q); err != nil {
		slog.Warn("failed to persist queue members", "queue", q.Name(), "err", err)
	}
}

// AddMember adds a member (static, dynamic, or persistence-replayed) to
// the queue. Returns false if the interface is already a member.
func (q *Queue) AddMember(iface string, penalty int, dynamic bool) bool {
	q.mu.Lock()
	for _, m := range q.members {
		if m.Interface == iface {
			q.mu.Unlock()
			return false
		}
	}
	q.nextSeq++
	q.members = append(q.members, &Member{
		Interface:      iface,
		Penalty:        penalty,
		Dynamic:        dynamic,
		insertionOrder: int(q.nextSeq),
	})
	q.mu.Unlock()

	q.sink.Publish("QueueMemberAdded", []events.Field{
		events.F("Queue", q.cfg.Name),
		events.F("Interface", iface),
		events.F("Penalty", strconv.Itoa(penalty)),
	})
	if dynamic {
		q.persist()
	}
	return true
}

// RemoveMember removes iface from the queue. Returns false if not found.
func (q *Queue) RemoveMember(iface string) bool {
	q.mu.Lock()
	var wasDynamic bool
	found := false
	for i, m := range q.members {
		if m.Interface == iface {
			wasDynamic = m.Dynamic
			q.members = append(q.members[:i], q.members[i+1:]...)
			found = true
			break
		}
	}
	q.mu.Unlock()
	if !found {
		return false
	}

	q.sink.Publish("QueueMemberRemoved", []events.Field{
		events.F("Queue", q.cfg.Name),
		events.F("Interface", iface),
	})
	if wasDynamic {
		q.persist()
	}
	return true
}

// SetPaused sets the paused flag of iface. Returns false if not found.
func (q *Queue) SetPaused(iface string, paused bool) bool {
	q.mu.Lock()
	var dynamic bool
	found := false
	for _, m := range q.members {
		if m.Interface == iface {
			m.Paused = paused
			dynamic = m.Dynamic
			found = true
			break
		}
	}
	q.mu.Unlock()
	if !found {
		return false
	}

	q.sink.Publish("QueueMemberPause", []events.Field{
		events.F("Queue", q.cfg.Name),
		events.F("Interface", iface),
		events.F("Paused", boolStr(paused)),
	})
	if dynamic {
		q.persist()
	}
	return true
}

// Member returns a pointer to iface's member record, or nil.
func (q *Queue) Member(iface string) *Member {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, m := range q.members {
		if m.Interface == iface {
			return m
		}
	}
	return nil
}

// Members returns a snapshot of the member list.
func (q *Queue) Members() []*Member {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Member, len(q.members))
	copy(out, q.members)
	return out
}

// HasDynamicMembers reports whether any member is dynamic (drives
// persistence, spec §4.1.10).
func (q *Queue) HasDynamicMembers() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, m := range q.members {
		if m.Dynamic {
			return true
		}
	}
	return false
}

// DynamicMembers returns the current dynamic members, for persistence
// serialization.
func (q *Queue) DynamicMembers() []*Member {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []*Member
	for _, m := range q.members {
		if m.Dynamic {
			out = append(out, m)
		}
	}
	return out
}

func boolStr(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
