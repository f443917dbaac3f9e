package agentchan

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebas/pbxqueue/internal/events"
	"github.com/sebas/pbxqueue/internal/pbx"
)

type fakePhys struct {
	id      string
	answer  bool
	digits  []string
	vars    map[string]string
	hungup  bool
}

func newFakePhys(id string, answer bool, digits ...string) *fakePhys {
	return &fakePhys{id: id, answer: answer, digits: digits, vars: map[string]string{}}
}

func (f *fakePhys) ID() string        { return f.id }
func (f *fakePhys) Interface() string { return f.id }
func (f *fakePhys) Dial(ctx context.Context) (pbx.DialResult, error) {
	return pbx.DialResult{Answered: f.answer, AnswerAt: time.Now()}, nil
}
func (f *fakePhys) Answer(ctx context.Context) error { return nil }
func (f *fakePhys) Hangup(ctx context.Context, cause pbx.HangupCause) error {
	f.hungup = true
	return nil
}
func (f *fakePhys) ReadDigit(ctx context.Context, timeout time.Duration) (string, error) {
	if len(f.digits) == 0 {
		return "", nil
	}
	d := f.digits[0]
	f.digits = f.digits[1:]
	return d, nil
}
func (f *fakePhys) PlayFile(ctx context.Context, name string) (string, error) { return "", nil }
func (f *fakePhys) StartMOH(ctx context.Context, class string) error         { return nil }
func (f *fakePhys) StopMOH(ctx context.Context) error                        { return nil }
func (f *fakePhys) Bridge(ctx context.Context, peer pbx.Channel) error       { return nil }
func (f *fakePhys) SetVariable(name, value string)                          { f.vars[name] = value }
func (f *fakePhys) Variable(name string) string                             { return f.vars[name] }
func (f *fakePhys) Goto(ctx context.Context, c, e string, p int) error       { return nil }

func TestLoginFixedThenDialBindsExistingChannel(t *testing.T) {
	reg := NewRegistry()
	a := NewAgent("100", "secret", "Alice")
	reg.Register(a)

	phys := newFakePhys("SIP/100", true)
	require.NoError(t, Login(context.Background(), a, phys, events.Nop{}))

	dialer := &QueueDialer{Registry: reg, Sink: events.Nop{}}
	ch, err := dialer.Dial(context.Background(), "Agent/100")
	require.NoError(t, err)
	assert.Equal(t, "Agent/100", ch.Interface())

	res, err := ch.Dial(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Answered)
}

func TestAckRequiredGatesAnswer(t *testing.T) {
	reg := NewRegistry()
	a := NewAgent("101", "secret", "Bob")
	a.AckCall = AckRequired
	reg.Register(a)

	phys := newFakePhys("SIP/101", true, "#")
	require.NoError(t, Login(context.Background(), a, phys, events.Nop{}))

	dialer := &QueueDialer{Registry: reg, Sink: events.Nop{}}
	ch, err := dialer.Dial(context.Background(), "Agent/101")
	require.NoError(t, err)

	res, err := ch.Dial(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Answered)
}

func TestAckStarDeclinesCall(t *testing.T) {
	reg := NewRegistry()
	a := NewAgent("102", "secret", "Carol")
	a.AckCall = AckRequired
	reg.Register(a)

	phys := newFakePhys("SIP/102", true, "*")
	require.NoError(t, Login(context.Background(), a, phys, events.Nop{}))

	dialer := &QueueDialer{Registry: reg, Sink: events.Nop{}}
	ch, err := dialer.Dial(context.Background(), "Agent/102")
	require.NoError(t, err)

	res, err := ch.Dial(context.Background())
	assert.Error(t, err)
	assert.False(t, res.Answered)
	assert.True(t, phys.hungup)
}

func TestAppLockPreventsDoubleOffer(t *testing.T) {
	reg := NewRegistry()
	a := NewAgent("103", "secret", "Dave")
	reg.Register(a)
	phys := newFakePhys("SIP/103", true)
	require.NoError(t, Login(context.Background(), a, phys, events.Nop{}))

	dialer := &QueueDialer{Registry: reg, Sink: events.Nop{}}
	ch1, err := dialer.Dial(context.Background(), "Agent/103")
	require.NoError(t, err)
	require.NotNil(t, ch1)

	_, err = dialer.Dial(context.Background(), "Agent/103")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCallbackLoginOriginates(t *testing.T) {
	reg := NewRegistry()
	a := NewAgent("104", "secret", "Erin")
	reg.Register(a)
	require.NoError(t, CallbackLogin(context.Background(), nil, a, "SIP/9001", events.Nop{}))

	orig := &fakeOriginator{ch: newFakePhys("SIP/9001", true)}
	dialer := &QueueDialer{Registry: reg, Originator: orig, Sink: events.Nop{}}

	ch, err := dialer.Dial(context.Background(), "Agent/104")
	require.NoError(t, err)
	res, err := ch.Dial(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Answered)
	assert.True(t, orig.called)
}

type fakeOriginator struct {
	ch     pbx.Channel
	called bool
}

func (o *fakeOriginator) Originate(ctx context.Context, dialString string) (pbx.Channel, error) {
	o.called = true
	return o.ch, nil
}

func TestHangupReleasesAppLockAndEntersWrapup(t *testing.T) {
	reg := NewRegistry()
	a := NewAgent("105", "secret", "Frank")
	a.WrapupTime = time.Hour
	reg.Register(a)
	phys := newFakePhys("SIP/105", true)
	require.NoError(t, Login(context.Background(), a, phys, events.Nop{}))

	dialer := &QueueDialer{Registry: reg, Sink: events.Nop{}}
	ch, err := dialer.Dial(context.Background(), "Agent/105")
	require.NoError(t, err)

	require.NoError(t, ch.Hangup(context.Background(), pbx.CauseNormal))
	assert.Equal(t, StateWrapup, a.State())

	// Still inside the one-hour wrap-up window, so the agent is not
	// offered again; the app lock itself has been released.
	_, err = dialer.Dial(context.Background(), "Agent/105")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.True(t, a.TryAcquireApp())
}
