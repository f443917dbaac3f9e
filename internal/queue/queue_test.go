package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebas/pbxqueue/internal/events"
	"github.com/sebas/pbxqueue/internal/pbx"
)

type fakeChannel struct {
	id   string
	iface string
	vars map[string]string
}

func newFakeChannel(id string) *fakeChannel {
	return &fakeChannel{id: id, iface: id, vars: map[string]string{}}
}

func (f *fakeChannel) ID() string        { return f.id }
func (f *fakeChannel) Interface() string { return f.iface }
func (f *fakeChannel) Dial(ctx context.Context) (pbx.DialResult, error) {
	return pbx.DialResult{Answered: true}, nil
}
func (f *fakeChannel) Answer(ctx context.Context) error { return nil }
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
func (f *fakeChannel) Goto(ctx context.Context, context, exten string, priority int) error {
	return errNoMatch
}

var errNoMatch = assertErr("no such extension")

type assertErr string

func (e assertErr) Error() string { return string(e) }

func TestJoinPositionsAreContiguous(t *testing.T) {
	cfg := DefaultConfig("support")
	q := NewQueue(cfg, events.Nop{})
	q.AddMember("SIP/A", 0, false)

	var callers []*Caller
	for i := 0; i < 3; i++ {
		c := &Caller{Channel: newFakeChannel("C" + string(rune('1'+i)))}
		require.Equal(t, JoinOK, q.Join(c))
		callers = append(callers, c)
	}

	for i, c := range callers {
		assert.Equal(t, i+1, c.Position)
	}

	q.Leave(callers[0])
	assert.Equal(t, 1, callers[1].Position)
	assert.Equal(t, 2, callers[2].Position)
}

func TestPriorityInsertion(t *testing.T) {
	cfg := DefaultConfig("support")
	q := NewQueue(cfg, events.Nop{})
	q.AddMember("SIP/A", 0, false)

	c1 := &Caller{Channel: newFakeChannel("C1"), Priority: 0}
	require.Equal(t, JoinOK, q.Join(c1))
	assert.Equal(t, 1, c1.Position)

	c2 := &Caller{Channel: newFakeChannel("C2"), Priority: 5}
	require.Equal(t, JoinOK, q.Join(c2))
	assert.Equal(t, 1, c2.Position)
	assert.Equal(t, 2, c1.Position)

	c3 := &Caller{Channel: newFakeChannel("C3"), Priority: 5}
	require.Equal(t, JoinOK, q.Join(c3))
	assert.Equal(t, 2, c3.Position)
	assert.Equal(t, 3, c1.Position)
	assert.Equal(t, 1, c2.Position)
}

func TestJoinEmptyPolicies(t *testing.T) {
	cfg := DefaultConfig("support")
	cfg.JoinEmpty = JoinEmptyNormal
	q := NewQueue(cfg, events.Nop{})

	c := &Caller{Channel: newFakeChannel("C1")}
	assert.Equal(t, JoinEmpty, q.Join(c))

	cfg.JoinEmpty = JoinEmptyStrict
	q2 := NewQueue(cfg, events.Nop{})
	q2.AddMember("SIP/A", 0, false)
	q2.Member("SIP/A").State = pbx.DeviceUnavailable
	c2 := &Caller{Channel: newFakeChannel("C2")}
	assert.Equal(t, JoinUnavail, q2.Join(c2))
}

func TestMaxLenZeroNeverRefusesOnLength(t *testing.T) {
	cfg := DefaultConfig("support")
	cfg.MaxLen = 0
	cfg.JoinEmpty = JoinEmptyAllow
	q := NewQueue(cfg, events.Nop{})
	for i := 0; i < 50; i++ {
		c := &Caller{Channel: newFakeChannel("C")}
		require.Equal(t, JoinOK, q.Join(c))
	}
	assert.Equal(t, 50, q.CallerCount())
}

func TestHoldTimeBoxcarFirstSample(t *testing.T) {
	cfg := DefaultConfig("support")
	q := NewQueue(cfg, events.Nop{})
	join := time.Now()
	bridge := join.Add(3 * time.Second)
	q.RecordCompletion(join, bridge)
	assert.Equal(t, 0, q.Stats().AvgHoldTime)
}

func TestWeightSuppression(t *testing.T) {
	sink := events.Nop{}
	reg := NewRegistry(sink)

	hi := DefaultConfig("hi")
	hi.Weight = 10
	lo := DefaultConfig("lo")
	lo.Weight = 1

	qHi := reg.GetOrCreate(hi)
	qLo := reg.GetOrCreate(lo)
	qHi.AddMember("SIP/M", 0, false)
	qLo.AddMember("SIP/M", 0, false)

	qHi.Join(&Caller{Channel: newFakeChannel("Ch")})

	assert.True(t, reg.WeightSuppressed(qLo, "SIP/M"))
	assert.False(t, reg.WeightSuppressed(qHi, "SIP/M"))
}

func TestDeadQueueReapedWhenEmpty(t *testing.T) {
	reg := NewRegistry(events.Nop{})
	cfg := DefaultConfig("temp")
	q := reg.GetOrCreate(cfg)
	c := &Caller{Channel: newFakeChannel("C1")}
	q.Join(c)
	q.MarkDead()
	reg.Reap(q)
	assert.NotNil(t, reg.Lookup("temp"))

	q.Leave(c)
	reg.Reap(q)
	assert.Nil(t, reg.Lookup("temp"))
}
