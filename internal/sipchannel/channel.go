// Package sipchannel is a reference pbx.Channel driver over
// github.com/emiago/sipgo: it places outbound SIP calls well enough to
// exercise the queue/agentchan dial and hangup seams; Answer only logs
// and sends no SIP response. Media
// transport and RTP bridging are explicit Non-goals of this system (they
// are the concern of a separate media-plane service); Bridge here only
// records the association for logging, it does not relay audio.
package sipchannel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/emiago/sipgo"
	"github.com/emiago/sipgo/sip"
	"github.com/google/uuid"

	"github.com/sebas/pbxqueue/internal/pbx"
)

// Driver originates outbound SIP call legs and hands back pbx.Channel
// handles, grounded on the teacher's b2bua.Originator wiring of a
// sipgo.Client/Server pair.
type Driver struct {
	Client        *sipgo.Client
	Server        *sipgo.Server
	LocalContact  string
	AdvertiseAddr string

	mu       sync.Mutex
	inbound  map[string]*Channel
}

// NewDriver constructs a Driver over an already-built sipgo client/server
// pair (composition-root wiring, not this package's concern).
func NewDriver(client *sipgo.Client, server *sipgo.Server, localContact, advertiseAddr string) *Driver {
	return &Driver{
		Client:        client,
		Server:        server,
		LocalContact:  localContact,
		AdvertiseAddr: advertiseAddr,
		inbound:       make(map[string]*Channel),
	}
}

// Originate builds an outbound INVITE to dialString (e.g.
// "SIP/1001@10.0.0.5") and returns a Channel holding it without sending
// anything; Channel.Dial sends the INVITE and blocks for the final
// answer/failure.
func (d *Driver) Originate(ctx context.Context, dialString string) (pbx.Channel, error) {
	var uri sip.Uri
	if err := sip.ParseUri(targetURI(dialString), &uri); err != nil {
		return nil, fmt.Errorf("sipchannel: parse target %q: %w", dialString, err)
	}

	req := sip.NewRequest(sip.INVITE, uri)
	req.AppendHeader(sip.NewHeader("Contact", d.LocalContact))

	ch := &Channel{
		id:       fmt.Sprintf("SIP/%s-%s", dialString, uuid.NewString()[:8]),
		iface:    dialString,
		driver:   d,
		req:      req,
		vars:     make(map[string]string),
		result:   make(chan pbx.DialResult, 1),
		digits:   make(chan string, 8),
	}
	return ch, nil
}

func targetURI(dialString string) string {
	return "sip:" + dialString
}

// Channel is a sipgo-backed pbx.Channel for one call leg.
type Channel struct {
	id     string
	iface  string
	driver *Driver
	req    *sip.Request
	tx     sip.ClientTransaction

	mu     sync.Mutex
	vars   map[string]string
	result chan pbx.DialResult
	digits chan string
}

var _ pbx.Channel = (*Channel)(nil)

func (c *Channel) ID() string        { return c.id }
func (c *Channel) Interface() string { return c.iface }

// Dial sends the INVITE and blocks for a final response or ctx
// cancellation.
func (c *Channel) Dial(ctx context.Context) (pbx.DialResult, error) {
	tx, err := c.driver.Client.TransactionRequest(ctx, c.req)
	if err != nil {
		return pbx.DialResult{Cause: pbx.CauseFailed}, err
	}
	c.tx = tx
	defer tx.Terminate()

	for {
		select {
		case res := <-tx.Responses():
			switch {
			case res.StatusCode == 200:
				return pbx.DialResult{Answered: true, AnswerAt: time.Now()}, nil
			case res.StatusCode == 486 || res.StatusCode == 600:
				return pbx.DialResult{Cause: pbx.CauseBusy}, nil
			case res.StatusCode >= 300:
				return pbx.DialResult{Cause: pbx.CauseCongestion}, nil
			}
		case <-tx.Done():
			return pbx.DialResult{Cause: pbx.CauseNoAnswer}, nil
		case <-ctx.Done():
			return pbx.DialResult{Cause: pbx.CauseCancel}, ctx.Err()
		}
	}
}

func (c *Channel) Answer(ctx context.Context) error {
	slog.Debug("sipchannel answer", "channel", c.id)
	return nil
}

func (c *Channel) Hangup(ctx context.Context, cause pbx.HangupCause) error {
	if c.tx != nil {
		bye := sip.NewRequest(sip.BYE, c.req.Recipient)
		_, err := c.driver.Client.TransactionRequest(ctx, bye)
		return err
	}
	return nil
}

func (c *Channel) ReadDigit(ctx context.Context, timeout time.Duration) (string, error) {
	var t <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		t = timer.C
	}
	select {
	case d := <-c.digits:
		return d, nil
	case <-t:
		return "", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// PlayFile is a no-op here: prompt/announcement playback belongs to a
// media-plane service out of this driver's scope (media transport is a
// Non-goal). It returns immediately with no captured digit.
func (c *Channel) PlayFile(ctx context.Context, name string) (string, error) {
	return "", nil
}

func (c *Channel) StartMOH(ctx context.Context, class string) error { return nil }
func (c *Channel) StopMOH(ctx context.Context) error                { return nil }

// Bridge records the association between the two legs for logging; it
// does not relay media (see package doc).
func (c *Channel) Bridge(ctx context.Context, peer pbx.Channel) error {
	slog.Debug("sipchannel bridge", "a", c.id, "b", peer.ID())
	return nil
}

func (c *Channel) SetVariable(name, value string) {
	c.mu.Lock()
	c.vars[name] = value
	c.mu.Unlock()
}

func (c *Channel) Variable(name string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vars[name]
}

func (c *Channel) Goto(ctx context.Context, dialplanContext, exten string, priority int) error {
	return fmt.Errorf("sipchannel: no dial-plan execution bound to this leg")
}

// DeliverDigit injects a received DTMF digit (from the SIP INFO/RFC2833
// handler wired at the composition root) for ReadDigit to observe.
func (c *Channel) DeliverDigit(d string) {
	select {
	case c.digits <- d:
	default:
	}
}
