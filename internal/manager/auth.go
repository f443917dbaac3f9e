package manager

import (
	"crypto/md5"
	"encoding/hex"
	"math/rand"
	"sync"
	"time"
)

// User is one manager.conf user record: a secret and the read/write
// category masks granted to sessions authenticated as this user (spec
// §4.3.2).
type User struct {
	Name      string
	Secret    string
	ReadMask  Category
	WriteMask Category
}

// UserStore resolves login usernames to their manager.conf record.
type UserStore interface {
	Lookup(username string) (User, bool)
}

// Challenger issues and verifies MD5 login challenges (spec §4.3.2:
// "Action: Challenge (AuthType=MD5)" followed by "Key = MD5(challenge ||
// secret)"). One Challenger is shared by every listener of a Server;
// challenges are single-use and expire.
type Challenger struct {
	mu         sync.Mutex
	challenges map[string]time.Time
	ttl        time.Duration
}

// NewChallenger constructs a challenge issuer with the given challenge
// lifetime (challenges older than ttl are rejected at Login).
func NewChallenger(ttl time.Duration) *Challenger {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Challenger{challenges: make(map[string]time.Time), ttl: ttl}
}

// Issue returns a fresh challenge string and records it as outstanding.
func (c *Challenger) Issue() string {
	buf := make([]byte, 16)
	_, _ = rand.New(rand.NewSource(time.Now().UnixNano())).Read(buf)
	challenge := hex.EncodeToString(buf)
	c.mu.Lock()
	c.challenges[challenge] = time.Now().Add(c.ttl)
	c.mu.Unlock()
	return challenge
}

// Verify checks that key == MD5(challenge || secret) for some
// outstanding, unexpired challenge, consuming it either way.
func (c *Challenger) Verify(challenge, key, secret string) bool {
	c.mu.Lock()
	expiry, ok := c.challenges[challenge]
	delete(c.challenges, challenge)
	c.mu.Unlock()
	if !ok || time.Now().After(expiry) {
		return false
	}
	sum := md5.Sum([]byte(challenge + secret))
	return hex.EncodeToString(sum[:]) == key
}

// AuthenticatePlain checks Username/Secret plaintext login credentials.
func AuthenticatePlain(users UserStore, username, secret string) (User, bool) {
	u, ok := users.Lookup(username)
	if !ok || u.Secret != secret {
		return User{}, false
	}
	return u, true
}

// LoginFailureMessage is the fixed error response body of spec §4.3.2;
// the caller is responsible for the artificial delay before sending it.
const LoginFailureMessage = "Authentication failed"
