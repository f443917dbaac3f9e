package manager

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageEncodeRoundTrip(t *testing.T) {
	m := NewMessage()
	m.Set("Action", "Login")
	m.Set("Username", "admin")
	m.AddLine("Variable: FOO=bar")

	encoded := m.Encode()
	assert.True(t, strings.HasSuffix(encoded, "\r\n\r\n"))

	r := bufio.NewReader(strings.NewReader(encoded))
	got, err := ReadMessage(r)
	require.NoError(t, err)
	assert.Equal(t, "Login", got.Get("Action"))
	assert.Equal(t, "admin", got.Get("Username"))
	assert.True(t, got.Has("Action"))
	assert.False(t, got.Has("Missing"))
}

func TestReadMessageMultipleFrames(t *testing.T) {
	raw := "Action: Ping\r\n\r\nAction: Pong\r\n\r\n"
	r := bufio.NewReader(strings.NewReader(raw))

	first, err := ReadMessage(r)
	require.NoError(t, err)
	assert.Equal(t, "Ping", first.Get("Action"))

	second, err := ReadMessage(r)
	require.NoError(t, err)
	assert.Equal(t, "Pong", second.Get("Action"))
}

func TestReadMessageEOFWithNoFrame(t *testing.T) {
	r := bufio.NewReader(strings.NewReader(""))
	_, err := ReadMessage(r)
	assert.Error(t, err)
}

func TestReadMessageFinalFrameWithoutTrailingBlankLine(t *testing.T) {
	raw := "Action: Ping\r\n"
	r := bufio.NewReader(strings.NewReader(raw))
	got, err := ReadMessage(r)
	require.NoError(t, err)
	assert.Equal(t, "Ping", got.Get("Action"))
}

func TestReadMessageFoldsContinuationLine(t *testing.T) {
	raw := "Action: Originate\r\nMessage: this is a long\r\n value split across lines\r\n\r\n"
	r := bufio.NewReader(strings.NewReader(raw))
	got, err := ReadMessage(r)
	require.NoError(t, err)
	assert.Equal(t, "Originate", got.Get("Action"))
	assert.Equal(t, "this is a long value split across lines", got.Get("Message"))
}
