package confload

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sebas/pbxqueue/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadQueuesDecodesStrategyAndMembers(t *testing.T) {
	path := writeTemp(t, "queues.conf", `
[general]
persistentmembers = no

[support]
strategy = leastrecent
timeout = 30
weight = 5
member => Agent/1001,1
member => Agent/1002
`)
	general, defs, err := LoadQueues(path)
	require.NoError(t, err)
	assert.False(t, general.PersistentMembers)
	require.Len(t, defs, 1)

	def := defs[0]
	assert.Equal(t, "support", def.Config.Name)
	assert.Equal(t, queue.StrategyLeastRecent, def.Config.Strategy)
	assert.Equal(t, 30, def.Config.TimeoutSeconds)
	assert.Equal(t, 5, def.Config.Weight)
	require.Len(t, def.StaticMembers, 2)
	assert.Equal(t, StaticMember{Interface: "Agent/1001", Penalty: 1}, def.StaticMembers[0])
	assert.Equal(t, StaticMember{Interface: "Agent/1002", Penalty: 0}, def.StaticMembers[1])
}

func TestLoadQueuesAppliesDefaultsWhenUnset(t *testing.T) {
	path := writeTemp(t, "queues.conf", "[sales]\n")
	_, defs, err := LoadQueues(path)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, queue.StrategyRingAll, defs[0].Config.Strategy)
	assert.Equal(t, 15, defs[0].Config.TimeoutSeconds)
}

func TestParseStrategyNameUnknownFallsBackToRingAll(t *testing.T) {
	assert.Equal(t, queue.StrategyRingAll, parseStrategyName("bogus"))
	assert.Equal(t, queue.StrategyFewestCalls, parseStrategyName("FewestCalls"))
}
