package queue

import (
	"context"
	"strings"
	"sync"

	"github.com/sebas/pbxqueue/internal/events"
	"github.com/sebas/pbxqueue/internal/pbx"
)

// RealtimeSource configures the optional realtime-backed queue lookup
// used by ResolveForJoin (spec §4.1.11). A zero-value RealtimeSource
// (Store == nil) disables realtime entirely.
type RealtimeSource struct {
	Store       pbx.RealtimeStore
	QueueTable  string
	MemberTable string
}

// Registry is the process-wide collection of live queues, keyed
// case-insensitively by name (spec §3 "Queue / Identity"). Per the
// concurrency model, the registry lock is held briefly for lookups and
// insertions/deletions and never across channel I/O (spec §5).
type Registry struct {
	mu       sync.RWMutex
	byName   map[string]*Queue
	sink     events.Sink
	kv       pbx.KVStore
	realtime RealtimeSource
}

// NewRegistry creates an empty registry.
func NewRegistry(sink events.Sink) *Registry {
	if sink == nil {
		sink = events.Nop{}
	}
	return &Registry{byName: make(map[string]*Queue), sink: sink}
}

// SetKV wires the write-through persistence backend (spec §4.1.10) onto
// the registry; every queue it creates from here on, including ones
// created by realtime reconciliation, gets it wired too.
func (r *Registry) SetKV(kv pbx.KVStore) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kv = kv
	for _, q := range r.byName {
		q.SetKV(kv)
	}
}

// SetRealtime wires the realtime backend used by ResolveForJoin.
func (r *Registry) SetRealtime(src RealtimeSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.realtime = src
}

// ResolveForJoin returns the queue a caller joining name should use,
// creating it from the realtime backend and/or reconciling its
// parameters and member rows against realtime on every join, per spec
// §4.1.11. Static configuration takes precedence: a queue that already
// exists and isn't realtime-backed is returned unchanged, never
// consulting realtime for it. Returns (nil, nil) if no such queue
// exists statically, in memory, or in the realtime backend.
func (r *Registry) ResolveForJoin(ctx context.Context, name string) (*Queue, error) {
	r.mu.RLock()
	src := r.realtime
	r.mu.RUnlock()

	if q := r.Lookup(name); q != nil {
		if q.IsRealtime() && src.Store != nil {
			if err := ReconcileRealtime(ctx, q, src.Store, src.QueueTable, src.MemberTable); err != nil {
				return q, err
			}
		}
		return q, nil
	}

	if src.Store == nil {
		return nil, nil
	}
	row, ok, err := src.Store.Lookup(ctx, src.QueueTable, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	cfg := DefaultConfig(name)
	q := r.GetOrCreate(cfg)
	q.MarkRealtime(true)
	applyRealtimeConfig(q, row)
	if err := ReconcileRealtime(ctx, q, src.Store, src.QueueTable, src.MemberTable); err != nil {
		return q, err
	}
	return q, nil
}

func key(name string) string { return strings.ToLower(name) }

// Lookup returns the named queue, or nil if none exists.
func (r *Registry) Lookup(name string) *Queue {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[key(name)]
}

// GetOrCreate returns the named queue, creating it from cfg if absent.
// Static configuration takes precedence: if a statically-configured
// queue of this name already exists, it is returned unchanged even if
// a realtime definition would also match (spec §4.1.11).
func (r *Registry) GetOrCreate(cfg Config) *Queue {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(cfg.Name)
	if q, ok := r.byName[k]; ok {
		return q
	}
	q := NewQueue(cfg, r.sink)
	q.SetKV(r.kv)
	r.byName[k] = q
	return q
}

// Register installs an already-constructed queue, replacing any queue
// already registered under the same name.
func (r *Registry) Register(q *Queue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[key(q.Name())] = q
}

// All returns a snapshot of every live queue (used by Status-style
// enumeration and reaping).
func (r *Registry) All() []*Queue {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Queue, 0, len(r.byName))
	for _, q := range r.byName {
		out = append(out, q)
	}
	return out
}

// Reap removes q from the registry if it is dead and empty (spec §3
// invariant: "A queue marked dead with zero waiting callers is deleted
// and its memory released").
func (r *Registry) Reap(q *Queue) {
	if !q.Dead() || q.CallerCount() != 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(q.Name())
	if cur, ok := r.byName[k]; ok && cur == q {
		delete(r.byName, k)
	}
}

// queuesWithMember returns every registered queue that has iface as a
// member; callers check waiting callers and weight themselves (spec
// §4.1.6).
func (r *Registry) queuesWithMember(iface string) []*Queue {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Queue
	for _, q := range r.byName {
		if q.Member(iface) != nil {
			out = append(out, q)
		}
	}
	return out
}
