package queue

import (
	"math/rand"
	"sort"
	"time"
)

const penaltyWeight = 1_000_000

// candidate is a member paired with its computed selection metric. Lower
// metric wins; ties break by insertion order (spec §4.1.5).
type candidate struct {
	member *Member
	index  int
	metric int64
}

// computeMetric implements the per-strategy metric table of spec §4.1.5.
// index is the member's position in the queue's member list (used by the
// round-robin strategies). now is passed in for testability.
func computeMetric(strategy Strategy, m *Member, index, cursor int, now time.Time) (metric int64, wrapped bool) {
	var base int64
	switch strategy {
	case StrategyRingAll:
		base = 0
	case StrategyRoundRobin, StrategyRoundRobinMemory:
		switch {
		case index < cursor:
			base = int64(1000 + index)
		case index == cursor:
			base = int64(index)
		default:
			base = int64(index)
			wrapped = true
		}
	case StrategyRandom:
		base = int64(rand.Intn(1000))
	case StrategyFewestCalls:
		base = int64(m.CallsTaken)
	case StrategyLeastRecent:
		if m.LastCall.IsZero() {
			base = 0
		} else {
			base = int64(1_000_000) - int64(now.Sub(m.LastCall).Seconds())
		}
	default:
		base = 0
	}
	return base + int64(m.Penalty)*penaltyWeight, wrapped
}

// selectionMode returns whether strategy rings every tied-metric member
// in parallel or only the single best candidate.
func selectionMode(strategy Strategy) SelectionMode {
	if strategy == StrategyRingAll {
		return SelectParallel
	}
	return SelectSingle
}

// rankCandidates returns every eligible member's candidate, sorted by
// ascending metric with ties broken by insertion order, along with
// whether scanning this cycle wrapped the round-robin cursor.
func rankCandidates(strategy Strategy, members []*Member, cursor int, now time.Time, wrapupSeconds int) ([]candidate, bool) {
	var out []candidate
	anyWrapped := false
	for i, m := range members {
		if !m.Eligible(now, wrapupSeconds) {
			continue
		}
		metric, wrapped := computeMetric(strategy, m, i, cursor, now)
		if wrapped {
			anyWrapped = true
		}
		out = append(out, candidate{member: m, index: i, metric: metric})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].metric != out[j].metric {
			return out[i].metric < out[j].metric
		}
		return out[i].member.insertionOrder < out[j].member.insertionOrder
	})
	return out, anyWrapped
}
