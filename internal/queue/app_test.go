package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sebas/pbxqueue/internal/events"
	"github.com/sebas/pbxqueue/internal/pbx"
	"github.com/sebas/pbxqueue/internal/store"
)

type noopDialer struct{}

func (noopDialer) Dial(ctx context.Context, iface string) (pbx.Channel, error) {
	return nil, nil
}

func TestRunReturnsNoSuchQueueWhenUnresolvable(t *testing.T) {
	reg := NewRegistry(events.Nop{})
	res := Run(context.Background(), reg, noopDialer{}, events.Nop{}, "ghost", newFakeChannel("SIP/1"), 0, 0, Options{})
	assert.Equal(t, ExitLeaveEmpty, res.Reason)
	assert.Equal(t, "NOSUCHQUEUE", res.QueueStatus)
}

func TestRunResolvesRealtimeQueueThenAbandonsOnCancel(t *testing.T) {
	rt := store.NewMemoryRealtime()
	rt.Seed("queues", []pbx.RealtimeRow{{"name": "overflow"}})

	reg := NewRegistry(events.Nop{})
	reg.SetRealtime(RealtimeSource{Store: rt, QueueTable: "queues", MemberTable: "queue_members"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := Run(ctx, reg, noopDialer{}, events.Nop{}, "overflow", newFakeChannel("SIP/2"), 0, 0, Options{})
	assert.Equal(t, ExitAbandon, res.Reason)

	q := reg.Lookup("overflow")
	assert.NotNil(t, q, "Run must have created the queue from the realtime backend via ResolveForJoin")
	assert.True(t, q.IsRealtime())
}
