package sipchannel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetURIPrependsSipScheme(t *testing.T) {
	assert.Equal(t, "sip:1001@10.0.0.5", targetURI("1001@10.0.0.5"))
}

func TestChannelVariableRoundTrip(t *testing.T) {
	c := &Channel{id: "SIP/test", vars: make(map[string]string)}
	c.SetVariable("FOO", "bar")
	assert.Equal(t, "bar", c.Variable("FOO"))
	assert.Equal(t, "", c.Variable("MISSING"))
}

func TestChannelGotoIsUnsupported(t *testing.T) {
	c := &Channel{id: "SIP/test", vars: make(map[string]string)}
	err := c.Goto(context.Background(), "default", "100", 1)
	assert.Error(t, err)
}

func TestChannelReadDigitDeliversQueuedDigit(t *testing.T) {
	c := &Channel{id: "SIP/test", vars: make(map[string]string), digits: make(chan string, 1)}
	c.DeliverDigit("5")

	d, err := c.ReadDigit(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "5", d)
}

func TestChannelReadDigitTimesOut(t *testing.T) {
	c := &Channel{id: "SIP/test", vars: make(map[string]string), digits: make(chan string, 1)}

	d, err := c.ReadDigit(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "", d)
}

func TestChannelIDAndInterface(t *testing.T) {
	c := &Channel{id: "SIP/test-abcd1234", iface: "SIP/1001@10.0.0.5"}
	assert.Equal(t, "SIP/test-abcd1234", c.ID())
	assert.Equal(t, "SIP/1001@10.0.0.5", c.Interface())
}
