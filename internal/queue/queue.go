package queue

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/sebas/pbxqueue/internal/events"
	"github.com/sebas/pbxqueue/internal/pbx"
)

// Queue holds one queue's full runtime state: configuration, waiting
// callers, members, strategy cursor, and running counters (spec §3
// "Queue"). All mutation goes through methods that hold mu for the
// duration of the "join/insert/renumber/emit" or "leave" sequence, per
// the concurrency model's per-queue lock (spec §5).
type Queue struct {
	mu sync.Mutex

	cfg Config

	callers []*Caller
	members []*Member

	rrCursor  int
	rrWrapped bool

	callsCompleted      int
	callsAbandoned      int
	callsCompletedInSL  int
	avgHoldTime         int // seconds, exponentially smoothed (integer boxcar, spec §4.1.4)

	dead      bool
	realtime  bool

	nextSeq uint64

	sink events.Sink
	kv   pbx.KVStore
}

// NewQueue constructs a queue from static configuration.
func NewQueue(cfg Config, sink events.Sink) *Queue {
	if sink == nil {
		sink = events.Nop{}
	}
	return &Queue{cfg: cfg, sink: sink}
}

// SetKV wires the write-through persistence backend used by
// members_admin.go's AddMember/RemoveMember/SetPaused (spec §4.1.10).
// A nil kv (the default) disables persistence, matching a dev/test
// setup with no durable store configured.
func (q *Queue) SetKV(kv pbx.KVStore) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.kv = kv
}

// Name returns the queue's configured name.
func (q *Queue) Name() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cfg.Name
}

// Config returns a copy of the queue's current configuration.
func (q *Queue) Config() Config {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cfg
}

// SetConfig replaces the queue's configuration (used by realtime
// reconciliation and administrative reload).
func (q *Queue) SetConfig(cfg Config) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cfg = cfg
}

// MarkRealtime flags this queue as realtime-backed.
func (q *Queue) MarkRealtime(v bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.realtime = v
}

// IsRealtime reports whether this queue's definition lives in the
// realtime backend.
func (q *Queue) IsRealtime() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.realtime
}

// MarkDead flags the queue for deletion once its last caller leaves
// (spec §3 invariants, §4.1.11).
func (q *Queue) MarkDead() {
	q.mu.Lock()
	q.dead = true
	empty := len(q.callers) == 0
	q.mu.Unlock()
	_ = empty // caller-count based destruction happens via registry.Reap
}

// Dead reports the queue's dead flag.
func (q *Queue) Dead() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dead
}

// CallerCount returns the number of waiting callers.
func (q *Queue) CallerCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.callers)
}

// memberStatusLocked computes {NoMembers, NoReachableMembers, Normal} under the
// held lock (spec §4.1.1).
func (q *Queue) memberStatusLocked() MemberStatus {
	if len(q.members) == 0 {
		return StatusNoMembers
	}
	for _, m := range q.members {
		if !m.Dead && m.Reachable() {
			return StatusNormal
		}
	}
	return StatusNoReachableMembers
}

// MemberStatus computes the current member-pool summary.
func (q *Queue) MemberStatus() MemberStatus {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.memberStatusLocked()
}

// CheckJoinAdmissibility decides whether a new caller may join, per
// spec §4.1.1's ordered rule list. It does not mutate state.
func (q *Queue) CheckJoinAdmissibility() JoinResult {
	q.mu.Lock()
	defer q.mu.Unlock()

	status := q.memberStatusLocked()

	switch {
	case q.cfg.JoinEmpty == JoinEmptyNormal && status == StatusNoMembers:
		return JoinEmpty
	case q.cfg.JoinEmpty == JoinEmptyStrict && (status == StatusNoMembers || status == StatusNoReachableMembers):
		return JoinUnavail
	case q.cfg.MaxLen > 0 && len(q.callers) >= q.cfg.MaxLen:
		return JoinFull
	}
	return JoinOK
}

// Join inserts caller into the queue so that all callers with strictly
// greater priority precede it and all callers with equal or lesser
// priority follow it (stable on insertion order), renumbers 1-based
// positions, copies queue-level defaults onto the caller, and emits Join
// (spec §4.1.1).
func (q *Queue) Join(c *Caller) JoinResult {
	q.mu.Lock()
	defer q.mu.Unlock()

	status := q.memberStatusLocked()
	switch {
	case q.cfg.JoinEmpty == JoinEmptyNormal && status == StatusNoMembers:
		return JoinEmpty
	case q.cfg.JoinEmpty == JoinEmptyStrict && (status == StatusNoMembers || status == StatusNoReachableMembers):
		return JoinUnavail
	case q.cfg.MaxLen > 0 && len(q.callers) >= q.cfg.MaxLen:
		return JoinFull
	}

	c.MusicClass = q.cfg.MusicClass
	c.ExitContext = q.cfg.ExitContext
	c.JoinTime = time.Now()
	q.nextSeq++
	c.insertionSeq = q.nextSeq

	// All callers with strictly greater priority precede c; callers with
	// equal priority already present stay ahead of c (stable insertion
	// order) — so the insertion point is the first index whose priority
	// is strictly less than c's (spec §4.1.1, example 2 in spec §8).
	idx := sort.Search(len(q.callers), func(i int) bool {
		return q.callers[i].Priority < c.Priority
	})
	q.callers = append(q.callers, nil)
	copy(q.callers[idx+1:], q.callers[idx:])
	q.callers[idx] = c

	q.renumberLocked()
	c.OriginalPosition = c.Position

	q.sink.Publish("Join", []events.Field{
		events.F("Queue", q.cfg.Name),
		events.F("Channel", c.Channel.ID()),
		events.F("CallerIDNum", c.Channel.Interface()),
		events.F("Position", strconv.Itoa(c.Position)),
		events.F("Count", strconv.Itoa(len(q.callers))),
	})
	return JoinOK
}

// Leave removes c from the queue, renumbers remaining positions, emits
// Leave, and — if the queue is dead and now empty — signals that it may
// be reaped (spec §4.1.2).
func (q *Queue) Leave(c *Caller) (nowEmpty bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, cc := range q.callers {
		if cc == c {
			q.callers = append(q.callers[:i], q.callers[i+1:]...)
			break
		}
	}
	q.renumberLocked()

	q.sink.Publish("Leave", []events.Field{
		events.F("Queue", q.cfg.Name),
		events.F("Channel", c.Channel.ID()),
		events.F("Count", strconv.Itoa(len(q.callers))),
	})

	return q.dead && len(q.callers) == 0
}

// renumberLocked reassigns 1-based contiguous positions (spec §3
// invariant 1, 3). Caller must hold mu.
func (q *Queue) renumberLocked() {
	for i, c := range q.callers {
		c.Position = i + 1
	}
}

// Head returns the next caller to be served, or nil if the queue is
// empty.
func (q *Queue) Head() *Caller {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.callers) == 0 {
		return nil
	}
	return q.callers[0]
}

// Callers returns a snapshot slice of waiting callers in position order.
func (q *Queue) Callers() []*Caller {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Caller, len(q.callers))
	copy(out, q.callers)
	return out
}

// RecordCompletion updates the hold-time estimator and SL counter for a
// successfully bridged call (spec §4.1.4).
func (q *Queue) RecordCompletion(joinTime, bridgeTime time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	sample := int(bridgeTime.Sub(joinTime).Seconds())
	q.avgHoldTime = boxcar(q.avgHoldTime, sample)
	q.callsCompleted++
	if sample <= q.cfg.ServiceLevel {
		q.callsCompletedInSL++
	}
}

// RecordAbandon increments the abandoned-call counter.
func (q *Queue) RecordAbandon() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.callsAbandoned++
}

// Stats is a snapshot of a queue's running counters.
type Stats struct {
	CallsCompleted     int
	CallsAbandoned     int
	CallsCompletedInSL int
	AvgHoldTime        int
}

// Stats returns a snapshot of the queue's counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		CallsCompleted:     q.callsCompleted,
		CallsAbandoned:     q.callsAbandoned,
		CallsCompletedInSL: q.callsCompletedInSL,
		AvgHoldTime:        q.avgHoldTime,
	}
}

// ClearStats resets running counters (administrative "clear queue"),
// leaving static-config members untouched (spec §8 round-trip property).
func (q *Queue) ClearStats() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.callsCompleted = 0
	q.callsAbandoned = 0
	q.callsCompletedInSL = 0
	q.avgHoldTime = 0
}
