package queue

import (
	"context"
	"strconv"

	"github.com/sebas/pbxqueue/internal/pbx"
)

// ReconcileRealtime implements spec §4.1.11: on join, fetch the queue's
// realtime parameters (marking the queue dead if they have disappeared,
// but preserving it until the last caller leaves) and reconcile its
// member rows against the in-memory member list using the
// mark-all-dead / clear-dead-on-match / delete-still-dead sweep.
func ReconcileRealtime(ctx context.Context, q *Queue, rt pbx.RealtimeStore, queueTable, memberTable string) error {
	if q.IsRealtime() {
		row, ok, err := rt.Lookup(ctx, queueTable, q.Name())
		if err != nil {
			return err
		}
		if !ok {
			q.MarkDead()
		} else {
			applyRealtimeConfig(q, row)
		}
	}

	rows, err := rt.LookupMulti(ctx, memberTable, "queue_name", q.Name())
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for _, m := range q.members {
		m.Dead = true
	}

	for _, row := range rows {
		iface := row["interface"]
		penalty, _ := strconv.Atoi(row["penalty"])
		found := false
		for _, m := range q.members {
			if m.Interface == iface {
				m.Dead = false
				m.Penalty = penalty
				found = true
				break
			}
		}
		if !found {
			q.nextSeq++
			q.members = append(q.members, &Member{
				Interface:      iface,
				Penalty:        penalty,
				insertionOrder: int(q.nextSeq),
			})
		}
	}

	kept := q.members[:0]
	for _, m := range q.members {
		if !m.Dead {
			kept = append(kept, m)
		}
	}
	q.members = kept
	return nil
}

// applyRealtimeConfig overlays realtime-sourced fields onto the queue's
// configuration. Only the fields realtime commonly defines are mapped;
// unrecognized columns are ignored (spec §7, "Configuration errors").
func applyRealtimeConfig(q *Queue, row pbx.RealtimeRow) {
	cfg := q.Config()
	if v, ok := row["strategy"]; ok {
		cfg.Strategy = parseStrategy(v)
	}
	if v, ok := row["weight"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Weight = n
		}
	}
	q.SetConfig(cfg)
}

func parseStrategy(s string) Strategy {
	switch s {
	case "roundrobin":
		return StrategyRoundRobin
	case "leastrecent":
		return StrategyLeastRecent
	case "fewestcalls":
		return StrategyFewestCalls
	case "random":
		return StrategyRandom
	case "rrmemory", "roundrobinmemory":
		return StrategyRoundRobinMemory
	default:
		return StrategyRingAll
	}
}
