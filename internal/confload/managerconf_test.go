package confload

import (
	"testing"

	"github.com/sebas/pbxqueue/internal/manager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadManagerConfParsesListenersAndUsers(t *testing.T) {
	path := writeTemp(t, "manager.conf", `
[general]
queuesize = 256
displayconnects = no
listen = "Call Manager/1.0" 127.0.0.1:5038
listen = /var/run/pbxqueue/manager.sock

[admin]
secret = s3cret
read = system,call,agent
write = system,agent
`)
	general, users, err := LoadManagerConf(path)
	require.NoError(t, err)
	assert.Equal(t, 256, general.QueueSize)
	assert.False(t, general.DisplayConnects)
	require.Len(t, general.Listen, 2)
	assert.Equal(t, "Call Manager/1.0", general.Listen[0].Banner)
	assert.Equal(t, "127.0.0.1:5038", general.Listen[0].Address)
	assert.Equal(t, "/var/run/pbxqueue/manager.sock", general.Listen[1].Address)

	require.Len(t, users, 1)
	assert.Equal(t, "admin", users[0].Name)
	assert.True(t, users[0].ReadMask.Contains(manager.CatAgent))
	assert.False(t, users[0].WriteMask.Contains(manager.CatCall))
}

func TestUserStoreLookup(t *testing.T) {
	store := NewUserStore([]ManagerUser{{Name: "admin", Secret: "s3cret", ReadMask: manager.CatSystem}})
	u, ok := store.Lookup("admin")
	require.True(t, ok)
	assert.Equal(t, "s3cret", u.Secret)

	_, ok = store.Lookup("nobody")
	assert.False(t, ok)
}
