package manager

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebas/pbxqueue/internal/events"
	"github.com/sebas/pbxqueue/internal/pbx"
	"github.com/sebas/pbxqueue/internal/queue"
)

type fakeChannel struct {
	id   string
	vars map[string]string
}

func newFakeChannel(id string) *fakeChannel {
	return &fakeChannel{id: id, vars: map[string]string{}}
}

func (f *fakeChannel) ID() string        { return f.id }
func (f *fakeChannel) Interface() string { return f.id }
func (f *fakeChannel) Dial(ctx context.Context) (pbx.DialResult, error) {
	return pbx.DialResult{Answered: true}, nil
}
func (f *fakeChannel) Answer(ctx context.Context) error                       { return nil }
func (f *fakeChannel) Hangup(ctx context.Context, cause pbx.HangupCause) error { return nil }
func (f *fakeChannel) ReadDigit(ctx context.Context, timeout time.Duration) (string, error) {
	return "", nil
}
func (f *fakeChannel) PlayFile(ctx context.Context, name string) (string, error) { return "", nil }
func (f *fakeChannel) StartMOH(ctx context.Context, class string) error         { return nil }
func (f *fakeChannel) StopMOH(ctx context.Context) error                        { return nil }
func (f *fakeChannel) Bridge(ctx context.Context, peer pbx.Channel) error       { return nil }
func (f *fakeChannel) SetVariable(name, value string)                          { f.vars[name] = value }
func (f *fakeChannel) Variable(name string) string                             { return f.vars[name] }
func (f *fakeChannel) Goto(ctx context.Context, dialplanContext, exten string, priority int) error {
	return nil
}

func newTestSession() (*Session, net.Conn) {
	client, server := net.Pipe()
	s := NewSession(server, 16, true)
	return s, client
}

func TestActionStatusReportsWaitingCaller(t *testing.T) {
	reg := queue.NewRegistry(events.Nop{})
	q := reg.GetOrCreate(queue.DefaultConfig("support"))
	q.AddMember("SIP/A", 0, false)
	require.Equal(t, queue.JoinOK, q.Join(&queue.Caller{Channel: newFakeChannel("SIP/200-1"), Priority: 0}))

	d := NewDispatcher()
	d.Queues = reg

	sess, conn := newTestSession()
	defer conn.Close()

	d.Handle(context.Background(), sess, NewMessage().Set("Action", "Status"))

	resp := <-sess.out
	assert.Equal(t, "Success", resp.Get("Response"))

	event := <-sess.out
	assert.Equal(t, "Status", event.Get("Event"))
	assert.Equal(t, "SIP/200-1", event.Get("Channel"))

	complete := <-sess.out
	assert.Equal(t, "StatusComplete", complete.Get("Event"))
}

func TestActionStatusNoSuchChannel(t *testing.T) {
	d := NewDispatcher()
	d.Queues = queue.NewRegistry(events.Nop{})

	sess, conn := newTestSession()
	defer conn.Close()

	d.Handle(context.Background(), sess, NewMessage().Set("Action", "Status").Set("Channel", "SIP/missing"))

	resp := <-sess.out
	assert.Equal(t, "Error", resp.Get("Response"))
}

func TestActionCommandShowQueues(t *testing.T) {
	reg := queue.NewRegistry(events.Nop{})
	q := reg.GetOrCreate(queue.DefaultConfig("sales"))
	q.AddMember("SIP/B", 0, false)

	d := NewDispatcher()
	d.Queues = reg

	sess, conn := newTestSession()
	defer conn.Close()

	d.Handle(context.Background(), sess, NewMessage().Set("Action", "Command").Set("Command", "show queues"))

	resp := <-sess.out
	assert.Equal(t, "Follows", resp.Get("Response"))

	encoded := resp.Encode()
	assert.Contains(t, encoded, "sales")
	assert.True(t, strings.Contains(encoded, "--END COMMAND--"))
	assert.True(t, strings.HasSuffix(encoded, "--END COMMAND--\r\n\r\n"))
}

func TestActionCommandMissingCommandRespondsError(t *testing.T) {
	d := NewDispatcher()
	d.Queues = queue.NewRegistry(events.Nop{})

	sess, conn := newTestSession()
	defer conn.Close()

	d.Handle(context.Background(), sess, NewMessage().Set("Action", "Command"))

	resp := <-sess.out
	assert.Equal(t, "Error", resp.Get("Response"))
}
