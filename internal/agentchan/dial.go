package agentchan

import (
	"context"
	"strings"
	"time"

	"github.com/sebas/pbxqueue/internal/events"
	"github.com/sebas/pbxqueue/internal/pbx"
)

// Originator places an outbound call to a raw dial string (e.g.
// "SIP/1001") on behalf of a callback-logged-in agent. It is the same
// seam the sipchannel driver fulfills for the queue engine's own Dialer.
type Originator interface {
	Originate(ctx context.Context, dialString string) (pbx.Channel, error)
}

// QueueDialer adapts a Registry into the queue package's Dialer
// interface, resolving "Agent/<id>" (and "Agent/@group" / "Agent/:group")
// interface strings per spec §4.2.2.
type QueueDialer struct {
	Registry   *Registry
	Originator Originator
	Sink       events.Sink
}

// Dial implements queue.Dialer.
func (d *QueueDialer) Dial(ctx context.Context, iface string) (pbx.Channel, error) {
	rest, ok := strings.CutPrefix(iface, "Agent/")
	if !ok {
		return nil, ErrUnavailable
	}
	target := ParseTarget(rest)

	if target.IsGroup {
		for _, a := range d.Registry.ByGroup(target.GroupBit) {
			if ch, err := d.bind(ctx, a); err == nil {
				return ch, nil
			}
		}
		if target.WaitGroup {
			return nil, ErrUnavailable
		}
		return nil, ErrUnavailable
	}

	a := d.Registry.Lookup(target.ID)
	if a == nil {
		return nil, ErrUnavailable
	}
	return d.bind(ctx, a)
}

// bind implements the search order of spec §4.2.2 steps 1-2 for a single
// candidate agent: prefer an already-held physical channel (fixed
// login), falling back to originating a call to a recorded callback
// dial string.
func (d *QueueDialer) bind(ctx context.Context, a *Agent) (pbx.Channel, error) {
	if !a.TryAcquireApp() {
		return nil, ErrUnavailable
	}

	if a.InWrapup(time.Now()) {
		a.ReleaseApp()
		return nil, ErrUnavailable
	}

	if phys := a.Owner(); phys != nil {
		a.setState(StateReserved)
		return &releasingChannel{AgentChannel: newAgentChannel(a, phys, d.Sink)}, nil
	}

	dialString := a.LoginChannelString()
	if dialString == "" {
		a.ReleaseApp()
		return nil, ErrUnavailable
	}
	if d.Originator == nil {
		a.ReleaseApp()
		return nil, ErrUnavailable
	}
	phys, err := d.Originator.Originate(ctx, dialString)
	if err != nil {
		a.ReleaseApp()
		return nil, ErrUnavailable
	}
	a.setState(StateReserved)
	return &releasingChannel{AgentChannel: newAgentChannel(a, phys, d.Sink)}, nil
}

// releasingChannel wraps an AgentChannel so the app lock acquired in
// bind is always released back to the login thread on hangup, per spec
// §4.2.5 step 3, regardless of which caller invokes Hangup.
type releasingChannel struct {
	*AgentChannel
}

func (c *releasingChannel) Hangup(ctx context.Context, cause pbx.HangupCause) error {
	err := c.AgentChannel.Hangup(ctx, cause)
	c.agent.ReleaseApp()
	return err
}
