// Package agentchan implements the Agent channel abstraction: a synthetic
// endpoint "Agent/<id>" that multiplexes a logged-in agent's physical
// channel into the PBX so multiple queues can offer calls to the same
// agent under the same scheduling discipline (spec §4.2).
package agentchan

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/sebas/pbxqueue/internal/pbx"
)

// State is an agent's current presence/activity state (spec §3 "Agent").
type State int

const (
	StateLoggedOff State = iota
	StateIdle
	StateReserved
	StateRinging
	StateOnCall
	StateWrapup
	StatePending
)

func (s State) String() string {
	switch s {
	case StateLoggedOff:
		return "LoggedOff"
	case StateIdle:
		return "Idle"
	case StateReserved:
		return "Reserved"
	case StateRinging:
		return "Ringing"
	case StateOnCall:
		return "OnCall"
	case StateWrapup:
		return "Wrapup"
	case StatePending:
		return "Pending"
	default:
		return "Unknown"
	}
}

// AckCallMode controls whether the agent must press # to confirm before
// a call is bridged through (spec §4.2.3). Required and RequiredAlways
// are treated identically per spec §9's open question.
type AckCallMode int

const (
	AckNone AckCallMode = iota
	AckRequired
	AckRequiredAlways
)

// RequiresAck reports whether this mode requires the # confirmation
// protocol before bridging.
func (m AckCallMode) RequiresAck() bool {
	return m == AckRequired || m == AckRequiredAlways
}

// Agent is one entry in the agent registry (spec §3 "Agent").
type Agent struct {
	mu sync.Mutex // per-agent data lock (spec §4.2.5)

	ID          string
	Password    string
	DisplayName string
	Groups      uint32
	AutoLogoff  time.Duration
	WrapupTime  time.Duration
	AckCall     AckCallMode
	MusicClass  string

	state        State
	owner        pbx.Channel // physical channel currently backing this agent
	bridgedPeer  pbx.Channel
	loginStart   time.Time
	lastDisc     time.Time
	loginChannel string // callback-login dial string; "" for fixed login
	lastAck      bool
	dead         bool

	// appLock serializes ownership between the login thread and any
	// queue thread currently offering a call (spec §4.2.5). A weighted
	// semaphore of size 1 gives us TryAcquire for the "trylock; if busy
	// treat as unavailable" discipline without inventing a bespoke
	// mutex-with-trylock type — the same primitive the teacher's
	// drain.Coordinator uses for bounded concurrent admission.
	appLock *semaphore.Weighted
}

// NewAgent constructs a logged-off agent record.
func NewAgent(id, password, displayName string) *Agent {
	return &Agent{
		ID:          id,
		Password:    password,
		DisplayName: displayName,
		MusicClass:  "default",
		state:       StateLoggedOff,
		appLock:     semaphore.NewWeighted(1),
	}
}

// State returns the agent's current state.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Agent) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// LoggedIn reports whether the agent currently has a physical channel
// (fixed login) bound, independent of pending offers.
func (a *Agent) LoggedIn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.owner != nil
}

// CallbackLoggedIn reports whether the agent is logged in via a
// callback dial string rather than a held physical channel.
func (a *Agent) CallbackLoggedIn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.owner == nil && a.loginChannel != ""
}

// InWrapup reports whether the agent is within its post-call wrap-up
// window (spec §4.2.4).
func (a *Agent) InWrapup(now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state == StateWrapup && !a.lastDisc.IsZero() && now.Before(a.lastDisc)
}

// Dead reports the reconciliation tombstone.
func (a *Agent) Dead() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dead
}

// TryAcquireApp attempts the non-blocking app-lock acquisition described
// in spec §4.2.5 step 1: "the queue thread must first acquire the app
// lock (trylock; if busy the agent is treated as unavailable)".
func (a *Agent) TryAcquireApp() bool {
	return a.appLock.TryAcquire(1)
}

// ReleaseApp releases the app lock back to the login thread (spec
// §4.2.5 step 3).
func (a *Agent) ReleaseApp() {
	a.appLock.Release(1)
}

// LoginFixed binds a physical channel to the agent (AgentLogin).
func (a *Agent) LoginFixed(ctx context.Context, phys pbx.Channel) {
	a.mu.Lock()
	a.owner = phys
	a.loginChannel = ""
	a.loginStart = time.Now()
	a.state = StateIdle
	a.mu.Unlock()
}

// LoginCallback records a callback-login dial string (AgentCallbackLogin),
// with no physical channel held between calls.
func (a *Agent) LoginCallback(dialString string) {
	a.mu.Lock()
	a.owner = nil
	a.loginChannel = dialString
	a.loginStart = time.Now()
	a.state = StateIdle
	a.mu.Unlock()
}

// Logoff clears login state.
func (a *Agent) Logoff() {
	a.mu.Lock()
	a.owner = nil
	a.loginChannel = ""
	a.loginStart = time.Time{}
	a.state = StateLoggedOff
	a.mu.Unlock()
}

// LoginStart returns the time the agent logged in, or the zero time if
// logged off.
func (a *Agent) LoginStart() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loginStart
}

// LoginChannelString returns the callback dial string, or "".
func (a *Agent) LoginChannelString() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loginChannel
}

// Owner returns the physical channel currently backing a fixed-login
// agent, or nil.
func (a *Agent) Owner() pbx.Channel {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.owner
}

// BeginWrapup records the disconnect time and enters wrap-up, per the
// hangup handling of spec §4.2.4.
func (a *Agent) BeginWrapup(now time.Time) {
	a.mu.Lock()
	a.bridgedPeer = nil
	a.lastDisc = now.Add(a.WrapupTime)
	if a.WrapupTime > 0 {
		a.state = StateWrapup
	} else {
		a.state = StateIdle
	}
	a.mu.Unlock()
}

// AutoLogoffDue reports whether the agent has exceeded AutoLogoff since
// its last disconnect (spec §4.2.4).
func (a *Agent) AutoLogoffDue(now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.AutoLogoff <= 0 || a.lastDisc.IsZero() {
		return false
	}
	return now.Sub(a.lastDisc) >= a.AutoLogoff
}
