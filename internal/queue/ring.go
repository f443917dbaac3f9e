package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sebas/pbxqueue/internal/events"
	"github.com/sebas/pbxqueue/internal/pbx"
)

// Dialer resolves a member interface string to a dialable pbx.Channel.
// The queue engine never knows how an interface is actually reached —
// "Agent/100" is resolved by the agent-channel package, "SIP/1001" by a
// real channel driver — it only knows the Dialer seam (Design Notes,
// "Polymorphic strategies" generalizes the same way to dialing).
type Dialer interface {
	Dial(ctx context.Context, iface string) (pbx.Channel, error)
}

// AttemptOutcome is the result of one ring cycle against a set of
// candidate members.
type AttemptOutcome struct {
	Answered bool
	Peer     pbx.Channel
	Member   *Member
	Cause    pbx.HangupCause
}

// attemptCycle rings the best candidate(s) for caller once, honoring
// weight-based preemption (spec §4.1.6) and strategy selection mode
// (spec §4.1.5). It returns as soon as one candidate answers, or once
// every rung candidate has failed/timed out.
func attemptCycle(ctx context.Context, q *Queue, reg *Registry, caller *Caller, dialer Dialer, sink events.Sink) AttemptOutcome {
	cfg := q.Config()
	now := time.Now()

	q.mu.Lock()
	members := make([]*Member, len(q.members))
	copy(members, q.members)
	cursor := q.rrCursor
	q.mu.Unlock()

	ranked, wrapped := rankCandidates(cfg.Strategy, members, cursor, now, cfg.WrapupSeconds)
	if wrapped {
		q.mu.Lock()
		q.rrWrapped = true
		q.mu.Unlock()
	}

	var eligible []candidate
	for _, c := range ranked {
		if reg != nil && reg.WeightSuppressed(q, c.member.Interface) {
			continue
		}
		eligible = append(eligible, c)
	}
	if len(eligible) == 0 {
		return AttemptOutcome{}
	}

	var toRing []candidate
	if selectionMode(cfg.Strategy) == SelectParallel {
		best := eligible[0].metric
		for _, c := range eligible {
			if c.metric == best {
				toRing = append(toRing, c)
			}
		}
	} else {
		toRing = eligible[:1]
	}

	attemptCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	type ringResult struct {
		outcome AttemptOutcome
	}
	results := make(chan ringResult, len(toRing))

	var losersMu sync.Mutex
	var losers []pbx.Channel

	g, gctx := errgroup.WithContext(attemptCtx)
	for _, cand := range toRing {
		cand := cand
		g.Go(func() error {
			peer, err := dialer.Dial(gctx, cand.member.Interface)
			if err != nil {
				sink.Publish("QueueMemberRinging", []events.Field{
					events.F("Queue", cfg.Name),
					events.F("Interface", cand.member.Interface),
					events.F("Error", err.Error()),
				})
				return nil
			}
			res, derr := peer.Dial(gctx)
			if derr != nil {
				losersMu.Lock()
				losers = append(losers, peer)
				losersMu.Unlock()
				return nil
			}
			if res.Answered {
				select {
				case results <- ringResult{AttemptOutcome{Answered: true, Peer: peer, Member: cand.member, Cause: pbx.CauseNormal}}:
				default:
					losersMu.Lock()
					losers = append(losers, peer)
					losersMu.Unlock()
				}
			} else {
				updateMemberOnCause(cand.member, res.Cause)
			}
			return nil
		})
	}

	done := make(chan struct{})
	go func() { _ = g.Wait(); close(done) }()

	hangupLosers := func(winner pbx.Channel) {
		losersMu.Lock()
		defer losersMu.Unlock()
		for _, peer := range losers {
			if peer == winner {
				continue
			}
			go func(ch pbx.Channel) {
				hangupCtx, hangupCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer hangupCancel()
				if err := ch.Hangup(hangupCtx, pbx.CauseCancel); err != nil {
					slog.Debug("failed to hang up losing ring leg", "channel", ch.ID(), "err", err)
				}
			}(peer)
		}
	}

	select {
	case r := <-results:
		cancel()
		<-done
		close(results)
		for extra := range results {
			losers = append(losers, extra.outcome.Peer)
		}
		hangupLosers(r.outcome.Peer)
		if cfg.Strategy == StrategyRoundRobinMemory {
			q.AdvanceRRCursor(indexOf(members, r.outcome.Member))
		}
		return r.outcome
	case <-done:
		select {
		case r := <-results:
			close(results)
			for extra := range results {
				losers = append(losers, extra.outcome.Peer)
			}
			hangupLosers(r.outcome.Peer)
			return r.outcome
		default:
		}
		hangupLosers(nil)
		if cfg.Strategy == StrategyRoundRobinMemory && len(toRing) > 0 {
			q.AdvanceRRCursor(indexOf(members, toRing[len(toRing)-1].member))
		}
		return AttemptOutcome{}
	case <-attemptCtx.Done():
		<-done
		close(results)
		for extra := range results {
			losers = append(losers, extra.outcome.Peer)
		}
		hangupLosers(nil)
		return AttemptOutcome{}
	}
}

func indexOf(members []*Member, m *Member) int {
	for i, mm := range members {
		if mm == m {
			return i
		}
	}
	return -1
}

// updateMemberOnCause maps a failed dial's cause onto the member's
// published device state, per the error-handling design (spec §7:
// "Channel failure during ring ... maps to member device-state").
func updateMemberOnCause(m *Member, cause pbx.HangupCause) {
	switch cause {
	case pbx.CauseBusy:
		m.State = pbx.DeviceBusy
	case pbx.CauseCongestion, pbx.CauseNoSuchDriver:
		m.State = pbx.DeviceUnavailable
	default:
		slog.Debug("member dial attempt failed", "interface", m.Interface, "cause", cause.String())
	}
}

// RingOnce performs one full attempt cycle against q's best candidate(s)
// for caller, honoring weight arbitration. If a member answers, the
// caller is bridged and wrap-up/hold-time bookkeeping is updated.
func RingOnce(ctx context.Context, q *Queue, reg *Registry, caller *Caller, dialer Dialer, sink events.Sink) AttemptOutcome {
	outcome := attemptCycle(ctx, q, reg, caller, dialer, sink)
	if !outcome.Answered {
		return outcome
	}

	bridgeTime := time.Now()
	if err := caller.Channel.Bridge(ctx, outcome.Peer); err != nil {
		outcome.Member.State = pbx.DeviceUnavailable
		return AttemptOutcome{}
	}
	caller.Handled = true
	outcome.Member.RecordCallTaken(bridgeTime)
	q.RecordCompletion(caller.JoinTime, bridgeTime)

	sink.Publish("AgentConnect", []events.Field{
		events.F("Queue", q.Config().Name),
		events.F("Channel", caller.Channel.ID()),
		events.F("Member", outcome.Member.Interface),
		events.F("HoldTime", durationSeconds(caller.JoinTime, bridgeTime)),
	})
	return outcome
}

func durationSeconds(start, end time.Time) string {
	return time.Duration(end.Sub(start)).Truncate(time.Second).String()
}
