package manager

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sebas/pbxqueue/internal/agentchan"
	"github.com/sebas/pbxqueue/internal/events"
	"github.com/sebas/pbxqueue/internal/pbx"
	"github.com/sebas/pbxqueue/internal/queue"
)

// ActionHandler executes one action request against req, writing its
// response(s) onto sess's outgoing queue.
type ActionHandler func(ctx context.Context, sess *Session, req *Message, d *Dispatcher)

// actionSpec is one entry of the dispatch table: the category required
// to invoke it, a one-line synopsis for ListCommands, and the handler.
type actionSpec struct {
	category Category
	synopsis string
	handler  ActionHandler
}

// Dispatcher owns the action table and the collaborators actions need:
// the queue registry, the agent registry/dialer, a channel resolver for
// Originate/Hangup/Redirect, and the user store for Login.
type Dispatcher struct {
	actions map[string]actionSpec

	Queues  *queue.Registry
	Agents  *agentchan.Registry
	Dialer  queue.Dialer
	Users   UserStore
	Chall   *Challenger
	Version string
	Hostname string

	ChannelLookup func(id string) pbx.Channel
	Originate     func(ctx context.Context, dialString string, timeout time.Duration) (pbx.Channel, error)
	BroadcastFn   func(eb *EventBuilder)
}

// NewDispatcher builds a Dispatcher with the standard action table of
// spec §4.3.5 registered.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{actions: make(map[string]actionSpec)}
	d.register("Ping", CatNone, "Test manager connection", actionPing)
	d.register("Version", CatNone, "Report server version", actionVersion)
	d.register("ListCommands", CatNone, "List available actions", actionListCommands)
	d.register("Events", CatNone, "Set the session's event mask", actionEvents)
	d.register("Logoff", CatNone, "Terminate the session", actionLogoff)
	d.register("Challenge", CatNone, "Issue an MD5 login challenge", actionChallenge)
	d.register("Login", CatNone, "Authenticate the session", actionLogin)
	d.register("Hangup", CatCall, "Force-hangup a named channel", actionHangup)
	d.register("Setvar", CatCall, "Set a channel variable", actionSetvar)
	d.register("Getvar", CatCall, "Get a channel variable", actionGetvar)
	d.register("Redirect", CatCall, "Async-goto a channel", actionRedirect)
	d.register("Originate", CatCall, "Originate an outbound call", actionOriginate)
	d.register("QueueAdd", CatAgent, "Add a queue member", actionQueueAdd)
	d.register("QueueRemove", CatAgent, "Remove a queue member", actionQueueRemove)
	d.register("QueuePause", CatAgent, "Pause/unpause a queue member", actionQueuePause)
	d.register("AgentCallbackLogin", CatAgent, "Callback-login an agent", actionAgentCallbackLogin)
	d.register("AgentLogoff", CatAgent, "Log an agent off", actionAgentLogoff)
	d.register("Status", CatCall, "List channel status", actionStatus)
	d.register("Command", CatCommand, "Run a CLI-equivalent command", actionCommand)
	return d
}

func (d *Dispatcher) register(name string, cat Category, synopsis string, h ActionHandler) {
	d.actions[name] = actionSpec{category: cat, synopsis: synopsis, handler: h}
}

// Handle looks up and executes req's Action, replying with an Error
// response for an unknown action or insufficient permission.
func (d *Dispatcher) Handle(ctx context.Context, sess *Session, req *Message) {
	name := req.Get("Action")
	spec, ok := d.actions[name]
	if !ok {
		d.respondError(sess, req, "Invalid/unknown command")
		return
	}
	if name != "Login" && name != "Challenge" && name != "Ping" && !sess.Authenticated() {
		d.respondError(sess, req, "Authentication required")
		return
	}
	if !sess.Authorize(spec.category) {
		d.respondError(sess, req, "Permission denied")
		return
	}
	spec.handler(ctx, sess, req, d)
}

func (d *Dispatcher) respond(sess *Session, req *Message, fields map[string]string) {
	m := NewMessage()
	m.Set("Response", fields["Response"])
	delete(fields, "Response")
	if id := req.Get("ActionID"); id != "" {
		m.Set("ActionID", id)
	}
	for k, v := range fields {
		m.Set(k, v)
	}
	sess.Enqueue(m, true)
}

func (d *Dispatcher) respondError(sess *Session, req *Message, message string) {
	d.respond(sess, req, map[string]string{"Response": "Error", "Message": message})
}

func (d *Dispatcher) respondSuccess(sess *Session, req *Message, message string) {
	d.respond(sess, req, map[string]string{"Response": "Success", "Message": message})
}

func actionPing(ctx context.Context, sess *Session, req *Message, d *Dispatcher) {
	d.respond(sess, req, map[string]string{"Response": "Pong", "Timestamp": fmt.Sprintf("%d", time.Now().Unix())})
}

func actionVersion(ctx context.Context, sess *Session, req *Message, d *Dispatcher) {
	host, _ := os.Hostname()
	d.respond(sess, req, map[string]string{
		"Response": "Success",
		"Version":  d.Version,
		"Hostname": host,
		"Pid":      fmt.Sprintf("%d", os.Getpid()),
	})
}

func actionListCommands(ctx context.Context, sess *Session, req *Message, d *Dispatcher) {
	m := NewMessage()
	m.Set("Response", "Success")
	if id := req.Get("ActionID"); id != "" {
		m.Set("ActionID", id)
	}
	for name, spec := range d.actions {
		m.AddLine(fmt.Sprintf("%s: %s", name, spec.synopsis))
	}
	sess.Enqueue(m, true)
}

func actionEvents(ctx context.Context, sess *Session, req *Message, d *Dispatcher) {
	mask := ParseMask(req.Get("EventMask"))
	sess.SetSendEvents(mask)
	d.respondSuccess(sess, req, "Events on")
}

func actionLogoff(ctx context.Context, sess *Session, req *Message, d *Dispatcher) {
	d.respondSuccess(sess, req, "Goodbye")
	sess.Close()
}

func actionChallenge(ctx context.Context, sess *Session, req *Message, d *Dispatcher) {
	challenge := d.Chall.Issue()
	d.respond(sess, req, map[string]string{"Response": "Success", "Challenge": challenge})
}

// actionLogin implements spec §4.3.2: plaintext Username/Secret, or
// Key = MD5(challenge || secret) following a prior Challenge action.
func actionLogin(ctx context.Context, sess *Session, req *Message, d *Dispatcher) {
	username := req.Get("Username")
	if key := req.Get("Key"); key != "" {
		u, ok := d.Users.Lookup(username)
		if !ok || !d.Chall.Verify(req.Get("Challenge"), key, u.Secret) {
			time.Sleep(500 * time.Millisecond)
			d.respondError(sess, req, LoginFailureMessage)
			return
		}
		sess.Authenticate(u.Name, u.ReadMask, u.WriteMask)
		d.respondSuccess(sess, req, "Authentication accepted")
		return
	}
	u, ok := AuthenticatePlain(d.Users, username, req.Get("Secret"))
	if !ok {
		time.Sleep(500 * time.Millisecond)
		d.respondError(sess, req, LoginFailureMessage)
		return
	}
	sess.Authenticate(u.Name, u.ReadMask, u.WriteMask)
	d.respondSuccess(sess, req, "Authentication accepted")
}

func (d *Dispatcher) resolveChannel(id string) pbx.Channel {
	if d.ChannelLookup == nil {
		return nil
	}
	return d.ChannelLookup(id)
}

func actionHangup(ctx context.Context, sess *Session, req *Message, d *Dispatcher) {
	ch := d.resolveChannel(req.Get("Channel"))
	if ch == nil {
		d.respondError(sess, req, "No such channel")
		return
	}
	_ = ch.Hangup(ctx, pbx.CauseNormal)
	d.respondSuccess(sess, req, "Channel Hungup")
}

func actionSetvar(ctx context.Context, sess *Session, req *Message, d *Dispatcher) {
	ch := d.resolveChannel(req.Get("Channel"))
	if ch == nil {
		d.respondError(sess, req, "No such channel")
		return
	}
	ch.SetVariable(req.Get("Variable"), req.Get("Value"))
	d.respondSuccess(sess, req, "Variable Set")
}

func actionGetvar(ctx context.Context, sess *Session, req *Message, d *Dispatcher) {
	ch := d.resolveChannel(req.Get("Channel"))
	if ch == nil {
		d.respondError(sess, req, "No such channel")
		return
	}
	d.respond(sess, req, map[string]string{
		"Response": "Success",
		req.Get("Variable"): ch.Variable(req.Get("Variable")),
	})
}

func actionRedirect(ctx context.Context, sess *Session, req *Message, d *Dispatcher) {
	ch := d.resolveChannel(req.Get("Channel"))
	if ch == nil {
		d.respondError(sess, req, "No such channel")
		return
	}
	priority := 1
	fmt.Sscanf(req.Get("Priority"), "%d", &priority)
	if err := ch.Goto(ctx, req.Get("Context"), req.Get("Exten"), priority); err != nil {
		d.respondError(sess, req, err.Error())
		return
	}
	d.respondSuccess(sess, req, "Redirect successful")
}

// actionOriginate implements spec §4.3.6: synchronous or Async=true
// outbound origination correlated by ActionID.
func actionOriginate(ctx context.Context, sess *Session, req *Message, d *Dispatcher) {
	dialString := req.Get("Channel")
	actionID := req.Get("ActionID")
	if actionID == "" {
		actionID = uuid.NewString()
	}
	timeout := 30 * time.Second

	place := func() {
		if d.Originate == nil {
			return
		}
		ch, err := d.Originate(ctx, dialString, timeout)
		eb := NewEvent("OriginateFailure", CatCall).ActionID(actionID).Field("Channel", dialString)
		if err == nil && ch != nil {
			eb = NewEvent("OriginateSuccess", CatCall).ActionID(actionID).Field("Channel", dialString)
		} else if err != nil {
			eb.Field("Reason", err.Error())
		}
		if d.BroadcastFn != nil {
			d.BroadcastFn(eb)
		}
	}

	if req.Get("Async") == "true" {
		d.respondSuccess(sess, req, "Originate request queued")
		go place()
		return
	}
	place()
	d.respondSuccess(sess, req, "Originate successful")
}

func actionQueueAdd(ctx context.Context, sess *Session, req *Message, d *Dispatcher) {
	q := d.Queues.Lookup(req.Get("Queue"))
	if q == nil {
		d.respondError(sess, req, "No such queue")
		return
	}
	penalty := 0
	fmt.Sscanf(req.Get("Penalty"), "%d", &penalty)
	q.AddMember(req.Get("Interface"), penalty, true)
	d.respondSuccess(sess, req, "Added interface to queue")
}

func actionQueueRemove(ctx context.Context, sess *Session, req *Message, d *Dispatcher) {
	q := d.Queues.Lookup(req.Get("Queue"))
	if q == nil {
		d.respondError(sess, req, "No such queue")
		return
	}
	q.RemoveMember(req.Get("Interface"))
	d.respondSuccess(sess, req, "Removed interface from queue")
}

func actionQueuePause(ctx context.Context, sess *Session, req *Message, d *Dispatcher) {
	q := d.Queues.Lookup(req.Get("Queue"))
	if q == nil {
		d.respondError(sess, req, "No such queue")
		return
	}
	paused := req.Get("Paused") == "true" || req.Get("Paused") == "1"
	q.SetPaused(req.Get("Interface"), paused)
	d.respondSuccess(sess, req, "Interface paused state set")
}

func actionAgentCallbackLogin(ctx context.Context, sess *Session, req *Message, d *Dispatcher) {
	a := d.Agents.Lookup(req.Get("Agent"))
	if a == nil {
		d.respondError(sess, req, "No such agent")
		return
	}
	if err := agentchan.CallbackLogin(ctx, nil, a, req.Get("LoginChan"), events.Nop{}); err != nil {
		d.respondError(sess, req, err.Error())
		return
	}
	d.respondSuccess(sess, req, "Agent logged in")
}

func actionAgentLogoff(ctx context.Context, sess *Session, req *Message, d *Dispatcher) {
	a := d.Agents.Lookup(req.Get("Agent"))
	if a == nil {
		d.respondError(sess, req, "No such agent")
		return
	}
	if err := agentchan.Logoff(ctx, nil, a, "ManagerRequest", events.Nop{}); err != nil {
		d.respondError(sess, req, err.Error())
		return
	}
	d.respondSuccess(sess, req, "Agent logged off")
}

// statusChannel is one live leg this process can report to a Status
// action: a waiting caller or an agent's currently-bound physical
// channel (the two kinds of pbx.Channel this process tracks — there is
// no general channel registry to enumerate beyond them).
type statusChannel struct {
	ch    pbx.Channel
	state string
	since time.Time
}

func (d *Dispatcher) liveChannels() []statusChannel {
	var out []statusChannel
	if d.Queues != nil {
		for _, q := range d.Queues.All() {
			for _, c := range q.Callers() {
				out = append(out, statusChannel{ch: c.Channel, state: "Ring", since: c.JoinTime})
			}
		}
	}
	if d.Agents != nil {
		for _, a := range d.Agents.All() {
			if owner := a.Owner(); owner != nil {
				out = append(out, statusChannel{ch: owner, state: a.State().String(), since: a.LoginStart()})
			}
		}
	}
	return out
}

// actionStatus implements spec §4.3.5's Status action, grounded on
// corelib/manager.c's action_status/action_status_one: an immediate
// Success response, one Status event per matching channel, then a
// final StatusComplete event. A Channel header restricts the report to
// that one channel.
func actionStatus(ctx context.Context, sess *Session, req *Message, d *Dispatcher) {
	want := req.Get("Channel")
	all := d.liveChannels()

	var matched []statusChannel
	if want == "" {
		matched = all
	} else {
		for _, sc := range all {
			if sc.ch.ID() == want {
				matched = append(matched, sc)
			}
		}
		if len(matched) == 0 {
			d.respondError(sess, req, "No such channel")
			return
		}
	}

	d.respondSuccess(sess, req, "Channel status will follow")

	now := time.Now()
	for _, sc := range matched {
		eb := NewEvent("Status", CatCall).
			Field("Channel", sc.ch.ID()).
			Field("Uniqueid", sc.ch.ID()).
			Field("CallerID", sc.ch.Variable("CALLERID(num)")).
			Field("CallerIDName", sc.ch.Variable("CALLERID(name)")).
			Field("Account", sc.ch.Variable("ACCOUNTCODE")).
			Field("State", sc.state)
		if !sc.since.IsZero() {
			eb.Field("Seconds", fmt.Sprintf("%d", int(now.Sub(sc.since).Seconds())))
		}
		sess.Enqueue(eb.Build(), false)
	}

	sess.Enqueue(NewEvent("StatusComplete", CatCall).Build(), false)
}

// actionCommand implements spec §4.3.5's Command action, grounded on
// corelib/manager.c's action_command: a "Follows" response (no blank
// line after the header block) streaming raw output, terminated by
// "--END COMMAND--". The only CLI-equivalent command this daemon
// exposes over the manager is "show queues", mirroring
// apps/app_queue.c's queues_show CLI handler.
func actionCommand(ctx context.Context, sess *Session, req *Message, d *Dispatcher) {
	cmd := req.Get("Command")
	if cmd == "" || strings.HasPrefix(cmd, "?") {
		d.respond(sess, req, map[string]string{"Response": "Error"})
		return
	}

	var out string
	switch strings.TrimSpace(cmd) {
	case "show queues":
		out = d.showQueues()
	default:
		out = fmt.Sprintf("No such command '%s'.\n", cmd)
	}

	m := NewMessage()
	m.Set("Response", "Follows")
	if id := req.Get("ActionID"); id != "" {
		m.Set("ActionID", id)
	}
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		m.AddLine(line)
	}
	m.AddLine("--END COMMAND--")
	sess.Enqueue(m, true)
}

// showQueues renders the "show queues" CLI-equivalent output, one block
// per queue: a summary line, its members, and its waiting callers
// (apps/app_queue.c's __queues_show format, adapted to this registry).
func (d *Dispatcher) showQueues() string {
	if d.Queues == nil {
		return "No queues.\n"
	}
	queues := d.Queues.All()
	if len(queues) == 0 {
		return "No queues.\n"
	}

	var b strings.Builder
	for _, q := range queues {
		cfg := q.Config()
		stats := q.Stats()
		max := "unlimited"
		if cfg.MaxLen > 0 {
			max = fmt.Sprintf("%d", cfg.MaxLen)
		}
		sl := 0.0
		if stats.CallsCompleted > 0 {
			sl = 100 * float64(stats.CallsCompletedInSL) / float64(stats.CallsCompleted)
		}
		fmt.Fprintf(&b, "%-12.12s has %d calls (max %s) in '%s' strategy (%ds holdtime), W:%d, C:%d, A:%d, SL:%.1f%% within %ds\n",
			cfg.Name, q.CallerCount(), max, cfg.Strategy.String(), stats.AvgHoldTime, cfg.Weight,
			stats.CallsCompleted, stats.CallsAbandoned, sl, cfg.ServiceLevel)

		members := q.Members()
		if len(members) == 0 {
			b.WriteString("   No Members\n")
		} else {
			b.WriteString("   Members:\n")
			for _, m := range members {
				extra := ""
				if m.Penalty != 0 {
					extra += fmt.Sprintf(" with penalty %d", m.Penalty)
				}
				if m.Dynamic {
					extra += " (dynamic)"
				}
				if m.Paused {
					extra += " (paused)"
				}
				fmt.Fprintf(&b, "      %s%s\n", m.Interface, extra)
			}
		}

		callers := q.Callers()
		if len(callers) == 0 {
			b.WriteString("   No Callers\n")
		} else {
			b.WriteString("   Callers:\n")
			for i, c := range callers {
				waited := time.Since(c.JoinTime)
				fmt.Fprintf(&b, "      %d. %s (wait: %d:%02d, prio: %d)\n",
					i+1, c.Channel.ID(), int(waited.Minutes()), int(waited.Seconds())%60, c.Priority)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
