// Package queue implements the call-queue dispatch core: queues with
// members (agents) and waiting callers, strategy-driven member selection,
// weight-based cross-queue preemption, hold-time estimation, wrap-up
// windows, and position/periodic announcements (spec §3, §4.1).
package queue

import "time"

// Strategy selects which member(s) to offer the head caller to.
type Strategy int

const (
	StrategyRingAll Strategy = iota
	StrategyRoundRobin
	StrategyLeastRecent
	StrategyFewestCalls
	StrategyRandom
	StrategyRoundRobinMemory
)

func (s Strategy) String() string {
	switch s {
	case StrategyRingAll:
		return "ringall"
	case StrategyRoundRobin:
		return "roundrobin"
	case StrategyLeastRecent:
		return "leastrecent"
	case StrategyFewestCalls:
		return "fewestcalls"
	case StrategyRandom:
		return "random"
	case StrategyRoundRobinMemory:
		return "rrmemory"
	default:
		return "unknown"
	}
}

// SelectionMode tells the ring loop whether to dial every tied-metric
// member in parallel or only the single best candidate (Design Notes,
// "Polymorphic strategies").
type SelectionMode int

const (
	SelectSingle SelectionMode = iota
	SelectParallel
)

// JoinEmptyPolicy controls whether a caller may join a queue with no
// members or no reachable members.
type JoinEmptyPolicy int

const (
	JoinEmptyAllow JoinEmptyPolicy = iota
	JoinEmptyNormal
	JoinEmptyStrict
)

// LeaveWhenEmptyPolicy controls whether waiting callers are ejected when
// a queue's member pool drains.
type LeaveWhenEmptyPolicy int

const (
	LeaveWhenEmptyNever LeaveWhenEmptyPolicy = iota
	LeaveWhenEmptyNormal
	LeaveWhenEmptyStrict
)

// AnnounceHoldTimePolicy controls when the estimated hold-time line is
// included in a position announcement.
type AnnounceHoldTimePolicy int

const (
	AnnounceHoldTimeNever AnnounceHoldTimePolicy = iota
	AnnounceHoldTimeOnce
	AnnounceHoldTimeAlways
)

// MemberStatus summarizes a queue's member pool for join admissibility
// decisions (spec §4.1.1).
type MemberStatus int

const (
	StatusNormal MemberStatus = iota
	StatusNoMembers
	StatusNoReachableMembers
)

// ExitReason is the terminal outcome of a caller's time in a queue
// (spec §4.1.8).
type ExitReason int

const (
	ExitAnswered ExitReason = iota
	ExitTimeout
	ExitAbandon
	ExitWithKey
	ExitLeaveEmpty
	ExitLeaveUnavail
)

// QueueStatusVar is the QUEUESTATUS channel variable value set on exit,
// per spec §6.
func (r ExitReason) QueueStatusVar() string {
	switch r {
	case ExitTimeout:
		return "TIMEOUT"
	case ExitLeaveEmpty:
		return "LEAVEEMPTY"
	case ExitWithKey:
		return ""
	case ExitLeaveUnavail:
		return "LEAVEUNAVAIL"
	case ExitAbandon:
		return ""
	default:
		return ""
	}
}

// JoinResult is the outcome of attempting to add a caller to a queue
// (spec §4.1.1).
type JoinResult int

const (
	JoinOK JoinResult = iota
	JoinNoSuchQueue
	JoinEmpty
	JoinUnavail
	JoinFull
)

func (r JoinResult) String() string {
	switch r {
	case JoinOK:
		return ""
	case JoinNoSuchQueue:
		return "NOSUCHQUEUE"
	case JoinEmpty:
		return "JOINEMPTY"
	case JoinUnavail:
		return "JOINUNAVAIL"
	case JoinFull:
		return "FULL"
	default:
		return "UNKNOWN"
	}
}

// Config holds one queue's static configuration (spec §3 "Queue /
// Configuration").
type Config struct {
	Name string

	Strategy          Strategy
	RetrySeconds       int
	TimeoutSeconds     int
	MaxLen             int // 0 = unlimited
	WrapupSeconds      int
	Weight             int
	ServiceLevel       int // seconds
	AnnounceFrequency  int
	PeriodicFrequency  int
	RoundingSeconds    int
	JoinEmpty          JoinEmptyPolicy
	LeaveWhenEmpty     LeaveWhenEmptyPolicy
	ReportHoldTime     bool
	AnnounceHoldTime   AnnounceHoldTimePolicy
	EventWhenCalled    bool
	MaskMemberStatus   bool
	MonitorFormat      string
	MusicClass         string
	ExitContext        string
	TimeoutRestart     bool
	MemberDelaySeconds int

	PeriodicAnnounceFile string
}

// DefaultConfig returns a Config with the source's documented defaults.
func DefaultConfig(name string) Config {
	return Config{
		Name:                 name,
		Strategy:             StrategyRingAll,
		RetrySeconds:         5,
		TimeoutSeconds:       15,
		MaxLen:               0,
		WrapupSeconds:        0,
		Weight:               0,
		ServiceLevel:         60,
		AnnounceFrequency:    0,
		PeriodicFrequency:    0,
		RoundingSeconds:      0,
		JoinEmpty:            JoinEmptyAllow,
		LeaveWhenEmpty:       LeaveWhenEmptyNever,
		ReportHoldTime:       false,
		AnnounceHoldTime:     AnnounceHoldTimeNever,
		MusicClass:           "default",
		ExitContext:          "",
		TimeoutRestart:       false,
		MemberDelaySeconds:   0,
		PeriodicAnnounceFile: "queue-periodic-announce",
	}
}

const recheckInterval = 1 * time.Second
