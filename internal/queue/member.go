package queue

import (
	"strconv"
	"time"

	"github.com/sebas/pbxqueue/internal/pbx"
)

// Member is an agent's presence in one specific queue (spec §3 "Member").
type Member struct {
	Interface string

	Penalty   int
	Dynamic   bool
	Paused    bool
	LastCall  time.Time // zero value = never
	CallsTaken int
	State     pbx.DeviceState
	Dead      bool

	// insertionOrder breaks metric ties deterministically (spec §4.1.5:
	// "ties by insertion order").
	insertionOrder int
}

// InWrapup reports whether m is within its post-call cool-down window
// (spec §4.1.7).
func (m *Member) InWrapup(now time.Time, wrapupSeconds int) bool {
	if wrapupSeconds <= 0 || m.LastCall.IsZero() {
		return false
	}
	return now.Sub(m.LastCall) < time.Duration(wrapupSeconds)*time.Second
}

// Eligible reports whether m may be offered a call right now: not paused,
// not dead, and not in wrap-up.
func (m *Member) Eligible(now time.Time, wrapupSeconds int) bool {
	return !m.Paused && !m.Dead && !m.InWrapup(now, wrapupSeconds)
}

// Reachable reports whether m's published device state permits ringing.
func (m *Member) Reachable() bool {
	return m.State.Reachable()
}

// RecordCallTaken updates statistics and starts the wrap-up window after a
// successful bridge (spec §4.1.7).
func (m *Member) RecordCallTaken(now time.Time) {
	m.CallsTaken++
	m.LastCall = now
}

// PersistValue renders the `interface;penalty;paused` tuple used by dynamic
// member persistence (spec §4.1.10).
func (m *Member) PersistValue() string {
	paused := "0"
	if m.Paused {
		paused = "1"
	}
	return m.Interface + ";" + strconv.Itoa(m.Penalty) + ";" + paused
}
