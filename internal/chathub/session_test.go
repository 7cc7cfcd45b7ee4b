package chathub_test

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"roomchat/backend/internal/chathub"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBadToken = errors.New("bad token")

func TestSessionRegistry_ConnectSoftFails(t *testing.T) {
	reg := chathub.NewSessionRegistry(staticVerifier{token: "good", userID: 7})

	authed := reg.Connect("c1", "good")
	require.True(t, authed.Authenticated())
	assert.Equal(t, uint(7), *authed.UserID)

	bad := reg.Connect("c2", "forged")
	assert.False(t, bad.Authenticated(), "invalid credential must yield an anonymous session")

	none := reg.Connect("c3", "")
	assert.False(t, none.Authenticated())

	for _, id := range []string{"c1", "c2", "c3"} {
		_, ok := reg.Lookup(id)
		assert.True(t, ok, "session %s must be registered", id)
	}
	assert.Equal(t, 3, reg.Count())
}

func TestSessionRegistry_SetProfile(t *testing.T) {
	reg := chathub.NewSessionRegistry(nil)
	reg.Connect("c1", "")

	reg.SetProfile("c1", "  alice  ")
	reg.SetProfile("c1", "alice")
	reg.SetProfile("missing", "nobody")

	sess, ok := reg.Lookup("c1")
	require.True(t, ok)
	assert.Equal(t, "alice", sess.DisplayName)
	assert.Equal(t, "alice", sess.Label())

	_, ok = reg.Lookup("missing")
	assert.False(t, ok, "SetProfile must not create sessions")
}

func TestSessionRegistry_SetProfileTruncates(t *testing.T) {
	reg := chathub.NewSessionRegistry(nil)
	reg.Connect("c1", "")
	reg.SetProfile("c1", strings.Repeat("é", 100))

	sess, _ := reg.Lookup("c1")
	assert.Equal(t, 64, len([]rune(sess.DisplayName)))
}

func TestSession_AnonymousLabelsAreDistinct(t *testing.T) {
	a := chathub.Session{ConnectionID: "1a2b3c4d-0000"}
	b := chathub.Session{ConnectionID: "9f8e7d6c-0000"}

	assert.Equal(t, "anon-1a2b3c", a.Label())
	assert.NotEqual(t, a.Label(), b.Label())
}

func TestSessionRegistry_DisconnectIsIdempotent(t *testing.T) {
	reg := chathub.NewSessionRegistry(nil)
	reg.Connect("c1", "")

	reg.Disconnect("c1")
	reg.Disconnect("c1")
	reg.Disconnect("never-existed")

	_, ok := reg.Lookup("c1")
	assert.False(t, ok)
	assert.Equal(t, 0, reg.Count())
}

func TestSessionRegistry_Concurrent(t *testing.T) {
	reg := chathub.NewSessionRegistry(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('A' + i%26))
			reg.Connect(id, "")
			reg.SetProfile(id, "x")
			reg.Lookup(id)
			reg.Disconnect(id)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, reg.Count(), "every goroutine ends with Disconnect")
}
