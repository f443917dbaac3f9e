package confload

import (
	"testing"
	"time"

	"github.com/sebas/pbxqueue/internal/agentchan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAgentsAppliesGeneralDefaultsPerAgent(t *testing.T) {
	path := writeTemp(t, "agents.conf", `
[general]
persistentagents = yes
autologoff = 15
wrapuptime = 10
ackcall = always

[agents]
agent => 1001,secret1,Alice
agent => 1002,secret2,Bob
`)
	general, defs, err := LoadAgents(path)
	require.NoError(t, err)
	assert.True(t, general.PersistentAgents)
	assert.Equal(t, 15*time.Second, general.AutoLogoff)
	assert.Equal(t, agentchan.AckRequiredAlways, general.AckCall)
	require.Len(t, defs, 2)
	assert.Equal(t, AgentDef{ID: "1001", Password: "secret1", Name: "Alice"}, defs[0])

	agents := NewAgents(general, defs)
	require.Len(t, agents, 2)
	assert.Equal(t, 15*time.Second, agents[0].AutoLogoff)
	assert.Equal(t, agentchan.AckRequiredAlways, agents[0].AckCall)
}

func TestParseAckCallVariants(t *testing.T) {
	assert.Equal(t, agentchan.AckRequired, parseAckCall("yes"))
	assert.Equal(t, agentchan.AckRequired, parseAckCall("Required"))
	assert.Equal(t, agentchan.AckRequiredAlways, parseAckCall("always"))
	assert.Equal(t, agentchan.AckNone, parseAckCall("no"))
}
