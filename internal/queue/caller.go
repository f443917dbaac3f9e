package queue

import (
	"time"

	"github.com/sebas/pbxqueue/internal/pbx"
)

// Caller is one channel waiting in a queue (spec §3 "Caller (queue
// entry)"). A caller exists in at most one queue at a time; the Queue
// that owns it is tracked by the registry, not by this struct.
type Caller struct {
	Channel pbx.Channel

	Priority         int
	Position         int // 1-based
	OriginalPosition int
	JoinTime         time.Time
	ExpiryTime       time.Time // zero = no overall expiry

	LastPositionAnnounce time.Time
	LastPositionValue    int
	LastPeriodicAnnounce time.Time
	HoldTimeAnnounced    bool // spec: AnnounceHoldTime=Once fires at most once

	MusicClass  string
	ExitContext string

	DigitBuffer string
	Handled     bool

	// insertionSeq breaks stable-sort ties among equal-priority callers.
	insertionSeq uint64
}

// HasExpiry reports whether this caller has an overall expiry configured.
// A caller with overall expiry = 0 never times out on overall expiry
// (spec §8, Boundary behaviors).
func (c *Caller) HasExpiry() bool {
	return !c.ExpiryTime.IsZero()
}

// Expired reports whether the overall expiry has been reached.
func (c *Caller) Expired(now time.Time) bool {
	return c.HasExpiry() && !now.Before(c.ExpiryTime)
}
