package agentchan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sebas/pbxqueue/internal/events"
	"github.com/sebas/pbxqueue/internal/pbx"
)

// ErrUnavailable is returned by QueueDialer.Dial when no logged-in agent
// could be bound; the queue engine treats it as a failed ring of that
// member.
var ErrUnavailable = errors.New("agentchan: agent unavailable")

// AgentChannel is the synthetic "Agent/<id>" endpoint of spec §4.2: it
// forwards Answer/Hangup/Bridge/etc. to the physical channel currently
// backing the agent, while enforcing the ack-call confirmation protocol
// before the upstream caller ever sees an Answer.
type AgentChannel struct {
	id    string
	agent *Agent
	phys  pbx.Channel
	sink  events.Sink

	acked bool
}

var _ pbx.Channel = (*AgentChannel)(nil)

func newAgentChannel(a *Agent, phys pbx.Channel, sink events.Sink) *AgentChannel {
	return &AgentChannel{
		id:    fmt.Sprintf("Agent/%s-%s", a.ID, uuid.NewString()[:8]),
		agent: a,
		phys:  phys,
		sink:  sink,
	}
}

func (c *AgentChannel) ID() string        { return c.id }
func (c *AgentChannel) Interface() string { return "Agent/" + c.agent.ID }

// Dial rings the bound physical channel and runs the ack-confirmation
// protocol of spec §4.2.3 before reporting the call as answered.
func (c *AgentChannel) Dial(ctx context.Context) (pbx.DialResult, error) {
	c.agent.setState(StateRinging)

	dialCtx := ctx
	var cancel context.CancelFunc
	if c.agent.AutoLogoff > 0 {
		dialCtx, cancel = context.WithTimeout(ctx, c.agent.AutoLogoff)
		defer cancel()
	}

	res, err := c.phys.Dial(dialCtx)
	if err != nil || !res.Answered {
		if dialCtx.Err() != nil {
			c.autoLogoff("Autologoff")
		}
		c.agent.setState(StateIdle)
		return pbx.DialResult{Answered: false, Cause: res.Cause}, err
	}

	if !c.agent.AckCall.RequiresAck() {
		c.acked = true
		c.agent.setState(StateOnCall)
		return pbx.DialResult{Answered: true, AnswerAt: res.AnswerAt}, nil
	}

	if err := c.runAckProtocol(dialCtx); err != nil {
		return pbx.DialResult{Answered: false, Cause: pbx.CauseCancel}, err
	}
	c.agent.setState(StateOnCall)
	return pbx.DialResult{Answered: true, AnswerAt: time.Now()}, nil
}

// runAckProtocol plays the confirmation beep and waits for '#', treating
// '*' as a request to terminate and a timeout as an auto-logoff event.
func (c *AgentChannel) runAckProtocol(ctx context.Context) error {
	if _, err := c.phys.PlayFile(ctx, "beep"); err != nil {
		return err
	}
	for {
		digit, err := c.phys.ReadDigit(ctx, 0)
		if err != nil {
			c.autoLogoff("Autologoff")
			return err
		}
		switch digit {
		case "#":
			c.acked = true
			return nil
		case "*":
			_ = c.phys.Hangup(ctx, pbx.CauseCancel)
			return errors.New("agentchan: agent declined with *")
		case "":
			c.autoLogoff("Autologoff")
			return errors.New("agentchan: ack timeout")
		}
	}
}

func (c *AgentChannel) autoLogoff(reason string) {
	c.sink.Publish("AgentCallbackLogoff", []events.Field{
		events.F("Agent", c.agent.ID),
		events.F("Reason", reason),
	})
	c.agent.Logoff()
}

func (c *AgentChannel) Answer(ctx context.Context) error {
	return c.phys.Answer(ctx)
}

// Hangup runs the disconnect handling of spec §4.2.4: clear the bridge
// linkage and transition the agent into wrap-up (or logged-off, for a
// callback agent whose auto-logoff has already elapsed). Ordinary
// per-call hangup never fires Agentlogoff/AgentCallbackLogoff itself —
// those events mark actual session termination (the AgentLogin
// application loop exiting, or the auto-logoff path), not every
// hung-up call or losing RingAll leg.
func (c *AgentChannel) Hangup(ctx context.Context, cause pbx.HangupCause) error {
	err := c.phys.Hangup(ctx, cause)
	now := time.Now()
	// Evaluated before BeginWrapup, which moves lastDisc forward.
	logoffDue := c.agent.CallbackLoggedIn() && c.agent.AutoLogoffDue(now)
	c.agent.BeginWrapup(now)

	if logoffDue {
		c.autoLogoff("Autologoff")
	} else if !c.agent.CallbackLoggedIn() {
		_ = c.phys.StartMOH(ctx, c.agent.MusicClass)
	}
	return err
}

func (c *AgentChannel) ReadDigit(ctx context.Context, timeout time.Duration) (string, error) {
	return c.phys.ReadDigit(ctx, timeout)
}

func (c *AgentChannel) PlayFile(ctx context.Context, name string) (string, error) {
	return c.phys.PlayFile(ctx, name)
}

func (c *AgentChannel) StartMOH(ctx context.Context, class string) error {
	return c.phys.StartMOH(ctx, class)
}

func (c *AgentChannel) StopMOH(ctx context.Context) error {
	return c.phys.StopMOH(ctx)
}

func (c *AgentChannel) Bridge(ctx context.Context, peer pbx.Channel) error {
	return c.phys.Bridge(ctx, peer)
}

func (c *AgentChannel) SetVariable(name, value string) { c.phys.SetVariable(name, value) }
func (c *AgentChannel) Variable(name string) string    { return c.phys.Variable(name) }

func (c *AgentChannel) Goto(ctx context.Context, dialplanContext, exten string, priority int) error {
	return c.phys.Goto(ctx, dialplanContext, exten, priority)
}
