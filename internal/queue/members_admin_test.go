package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebas/pbxqueue/internal/events"
	"github.com/sebas/pbxqueue/internal/store"
)

func TestDynamicMemberMutationsPersist(t *testing.T) {
	kv := store.NewMemoryKV()
	q := NewQueue(DefaultConfig("support"), events.Nop{})
	q.SetKV(kv)

	require.True(t, q.AddMember("SIP/A", 0, true))
	v, ok, err := kv.Get(context.Background(), PersistFamily, "support")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "SIP/A;0;0", v)

	require.True(t, q.SetPaused("SIP/A", true))
	v, _, err = kv.Get(context.Background(), PersistFamily, "support")
	require.NoError(t, err)
	assert.Equal(t, "SIP/A;0;1", v)

	require.True(t, q.RemoveMember("SIP/A"))
	_, ok, err = kv.Get(context.Background(), PersistFamily, "support")
	require.NoError(t, err)
	assert.False(t, ok, "persisted record should be deleted once no dynamic members remain")
}

func TestStaticMemberMutationsDoNotPersist(t *testing.T) {
	kv := store.NewMemoryKV()
	q := NewQueue(DefaultConfig("support"), events.Nop{})
	q.SetKV(kv)

	require.True(t, q.AddMember("SIP/Static", 0, false))
	_, ok, err := kv.Get(context.Background(), PersistFamily, "support")
	require.NoError(t, err)
	assert.False(t, ok)
}
