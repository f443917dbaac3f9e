package manager

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionEnqueueOverflowDropsEventsNotResponses(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	s := NewSession(server, 1, false)
	s.Enqueue(NewMessage().Set("Event", "First"), false)
	// queue is now full (size 1); a second non-critical event overflows
	// and is dropped rather than blocking.
	s.Enqueue(NewMessage().Set("Event", "Second"), false)

	assert.Equal(t, int64(1), s.QOverflow())
}

func TestSessionAuthorizeHonorsPreauth(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	s := NewSession(server, 0, true)
	assert.True(t, s.Authenticated())
	assert.True(t, s.Authorize(CatSystem|CatCall))
}

func TestSessionAuthorizeRequiresGrantedMask(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	s := NewSession(server, 0, false)
	s.Authenticate("admin", CatSystem, CatSystem)

	assert.True(t, s.Authorize(CatSystem))
	assert.False(t, s.Authorize(CatAgent))
}

func TestSessionEligibleRequiresReadAndSendEventsMask(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	s := NewSession(server, 0, false)
	s.Authenticate("admin", CatAgent, CatNone)
	s.SetSendEvents(CatAgent)

	assert.True(t, s.Eligible(CatAgent))
	assert.False(t, s.Eligible(CatCall))
}
