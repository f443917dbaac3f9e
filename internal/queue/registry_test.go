package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebas/pbxqueue/internal/events"
	"github.com/sebas/pbxqueue/internal/pbx"
	"github.com/sebas/pbxqueue/internal/store"
)

func TestResolveForJoinCreatesFromRealtime(t *testing.T) {
	rt := store.NewMemoryRealtime()
	rt.Seed("queues", []pbx.RealtimeRow{{"name": "sales", "strategy": "roundrobin"}})
	rt.Seed("queue_members", []pbx.RealtimeRow{{"queue_name": "sales", "interface": "SIP/101", "penalty": "0"}})

	reg := NewRegistry(events.Nop{})
	reg.SetRealtime(RealtimeSource{Store: rt, QueueTable: "queues", MemberTable: "queue_members"})

	q, err := reg.ResolveForJoin(context.Background(), "sales")
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.True(t, q.IsRealtime())
	assert.Equal(t, StrategyRoundRobin, q.Config().Strategy)
	require.NotNil(t, q.Member("SIP/101"))
}

func TestResolveForJoinPrefersStaticQueue(t *testing.T) {
	rt := store.NewMemoryRealtime()
	rt.Seed("queues", []pbx.RealtimeRow{{"name": "support", "strategy": "random"}})

	reg := NewRegistry(events.Nop{})
	reg.SetRealtime(RealtimeSource{Store: rt, QueueTable: "queues", MemberTable: "queue_members"})

	static := reg.GetOrCreate(DefaultConfig("support"))
	assert.False(t, static.IsRealtime())

	q, err := reg.ResolveForJoin(context.Background(), "support")
	require.NoError(t, err)
	assert.Same(t, static, q)
	assert.False(t, q.IsRealtime(), "static configuration takes precedence over a same-named realtime row")
}

func TestResolveForJoinUnknownQueue(t *testing.T) {
	reg := NewRegistry(events.Nop{})
	reg.SetRealtime(RealtimeSource{Store: store.NewMemoryRealtime(), QueueTable: "queues", MemberTable: "queue_members"})

	q, err := reg.ResolveForJoin(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, q)
}
