package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/sebas/pbxqueue/internal/events"
	"github.com/sebas/pbxqueue/internal/pbx"
)

// Options configures one Queue() dial-plan application invocation
// (spec §6, "Queue application — dial-plan entry point").
type Options struct {
	NoRetry          bool // 'n' option: no retries on timeout
	RingInsteadOfMOH bool // 'r' option: play ringing instead of music
}

// RunResult is returned to the dial-plan caller after Run completes.
type RunResult struct {
	Reason       ExitReason
	QueueStatus  string
}

// Run executes the full caller lifecycle described in spec §4.1: locate
// or construct the queue, join-admissibility check, insertion, the
// Waiting/Announcing/Offering state machine with a 1s RECHECK tick, and
// final exit bookkeeping. It blocks until the caller is bridged, times
// out, hangs up, exits via DTMF, or the queue empties out from under it.
func Run(ctx context.Context, reg *Registry, dialer Dialer, sink events.Sink, queueName string, ch pbx.Channel, priority int, overallTimeout time.Duration, opts Options) RunResult {
	if sink == nil {
		sink = events.Nop{}
	}

	q, err := reg.ResolveForJoin(ctx, queueName)
	if err != nil {
		slog.Warn("realtime queue reconciliation failed", "queue", queueName, "err", err)
	}
	if q == nil {
		return RunResult{Reason: ExitLeaveEmpty, QueueStatus: "NOSUCHQUEUE"}
	}

	caller := &Caller{Channel: ch, Priority: priority}
	if overallTimeout > 0 {
		caller.ExpiryTime = time.Now().Add(overallTimeout)
	}

	switch q.Join(caller) {
	case JoinEmpty:
		ch.SetVariable("QUEUESTATUS", "JOINEMPTY")
		return RunResult{Reason: ExitLeaveEmpty, QueueStatus: "JOINEMPTY"}
	case JoinUnavail:
		ch.SetVariable("QUEUESTATUS", "JOINUNAVAIL")
		return RunResult{Reason: ExitLeaveUnavail, QueueStatus: "JOINUNAVAIL"}
	case JoinFull:
		ch.SetVariable("QUEUESTATUS", "FULL")
		return RunResult{Reason: ExitTimeout, QueueStatus: "FULL"}
	}

	defer func() {
		q.Leave(caller)
		reg.Reap(q)
	}()

	reason := waitLoop(ctx, q, reg, dialer, caller, sink, opts)
	status := reason.QueueStatusVar()
	ch.SetVariable("QUEUESTATUS", status)

	switch reason {
	case ExitAnswered:
		// handled inline in waitLoop via caller.Handled
	case ExitAbandon:
		q.RecordAbandon()
	}

	sink.Publish("QueueCallerLeave", []events.Field{
		events.F("Queue", q.Name()),
		events.F("Channel", ch.ID()),
		events.F("Reason", statusName(reason)),
	})

	return RunResult{Reason: reason, QueueStatus: status}
}

func statusName(r ExitReason) string {
	switch r {
	case ExitAnswered:
		return "ANSWERED"
	case ExitTimeout:
		return "TIMEOUT"
	case ExitAbandon:
		return "ABANDON"
	case ExitWithKey:
		return "EXITWITHKEY"
	case ExitLeaveEmpty:
		return "LEAVEEMPTY"
	case ExitLeaveUnavail:
		return "LEAVEUNAVAIL"
	default:
		return "UNKNOWN"
	}
}

// waitLoop is the Waiting -> Announcing -> Waiting -> Offering ->
// Bridged state machine of spec §4.1.9, ticking every recheckInterval.
func waitLoop(ctx context.Context, q *Queue, reg *Registry, dialer Dialer, caller *Caller, sink events.Sink, opts Options) ExitReason {
	ticker := time.NewTicker(recheckInterval)
	defer ticker.Stop()

	var lastAttempt time.Time

	for {
		if caller.Expired(time.Now()) {
			return ExitTimeout
		}

		cfg := q.Config()
		status := q.MemberStatus()
		if cfg.LeaveWhenEmpty == LeaveWhenEmptyNormal && status == StatusNoMembers {
			return ExitLeaveEmpty
		}
		if cfg.LeaveWhenEmpty == LeaveWhenEmptyStrict && (status == StatusNoMembers || status == StatusNoReachableMembers) {
			return ExitLeaveUnavail
		}

		retryDue := lastAttempt.IsZero() || time.Since(lastAttempt) >= time.Duration(cfg.RetrySeconds)*time.Second
		if caller.Position == 1 && status == StatusNormal && retryDue {
			lastAttempt = time.Now()
			outcome := RingOnce(ctx, q, reg, caller, dialer, sink)
			if outcome.Answered && caller.Handled {
				return ExitAnswered
			}
			if opts.NoRetry {
				return ExitTimeout
			}
		}

		if estimate := estimateHoldSeconds(q); caller.Position != 0 {
			if AnnounceTick(ctx, q, caller, estimate) {
				return ExitWithKey
			}
		}

		select {
		case <-ctx.Done():
			return ExitAbandon
		case <-ticker.C:
		}
	}
}

// estimateHoldSeconds reports the queue's current smoothed hold-time
// estimate, used to gate the "hold time is..." announcement segment.
func estimateHoldSeconds(q *Queue) int {
	return q.Stats().AvgHoldTime
}
