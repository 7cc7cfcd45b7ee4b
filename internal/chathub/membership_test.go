package chathub_test

import (
	"fmt"
	"sync"
	"testing"

	"roomchat/backend/internal/chathub"
	"roomchat/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T, store chathub.MessageStore) *chathub.ManagerService {
	t.Helper()
	hub := chathub.NewManagerService(store, staticVerifier{token: "token-1", userID: 1}, chathub.Options{MaxMessageLength: 20})
	t.Cleanup(func() { _ = hub.Shutdown(0) })
	return hub
}

// connect attaches a mock client and swallows its greeting.
func connect(t *testing.T, hub *chathub.ManagerService, id, token string) *MockClient {
	t.Helper()
	c := newMockClient(id)
	hub.Connect(c, token)
	greeting := c.next(t)
	require.Equal(t, models.EventServerInfo, greeting.Event)
	return c
}

func TestJoin_SwitchesRoomAndAnnounces(t *testing.T) {
	hub := newTestHub(t, &memoryStore{})
	a := connect(t, hub, "a", "")
	b := connect(t, hub, "b", "")
	hub.Sessions.SetProfile("a", "alice")

	require.NoError(t, hub.Membership.Join("b", "r1"))
	b.drain()

	require.NoError(t, hub.Membership.Join("a", "r1"))
	joined := decode[models.PresencePayload](t, b.next(t))
	assert.Equal(t, models.PresencePayload{Username: "alice", Room: "r1"}, joined)
	a.drain()

	require.NoError(t, hub.Membership.Join("a", "r2"))
	left := b.next(t)
	assert.Equal(t, models.EventUserLeft, left.Event)
	assert.Equal(t, models.PresencePayload{Username: "alice", Room: "r1"}, decode[models.PresencePayload](t, left))

	assert.Equal(t, []string{"r2"}, hub.Membership.RoomsOf("a"))
	assert.ElementsMatch(t, []string{"b"}, hub.Membership.MembersOf("r1"))
	sess, _ := hub.Sessions.Lookup("a")
	assert.Equal(t, "r2", sess.CurrentRoomID)
}

func TestJoin_EmptyRoomIsNoop(t *testing.T) {
	hub := newTestHub(t, &memoryStore{})
	a := connect(t, hub, "a", "")
	require.NoError(t, hub.Membership.Join("a", "r1"))
	a.drain()

	require.NoError(t, hub.Membership.Join("a", "   "))

	assert.Equal(t, []string{"r1"}, hub.Membership.RoomsOf("a"))
	a.assertSilent(t)
}

func TestJoin_UnknownConnection(t *testing.T) {
	hub := newTestHub(t, &memoryStore{})
	assert.ErrorIs(t, hub.Membership.Join("ghost", "r1"), chathub.ErrUnknownConnection)
	assert.Empty(t, hub.Membership.MembersOf("r1"))
}

func TestJoin_FirstJoinEmitsNoLeave(t *testing.T) {
	hub := newTestHub(t, &memoryStore{})
	watcher := connect(t, hub, "w", "")
	require.NoError(t, hub.Membership.Join("w", "r1"))
	watcher.drain()

	a := connect(t, hub, "a", "")
	require.NoError(t, hub.Membership.Join("a", "r1"))

	assert.Equal(t, models.EventUserJoined, watcher.next(t).Event)
	watcher.assertSilent(t)
	assert.Equal(t, models.EventUserJoined, a.next(t).Event, "joiner sees its own presence")
}

func TestJoin_RacingJoinsEndInOneRoom(t *testing.T) {
	hub := newTestHub(t, &memoryStore{})
	connect(t, hub, "a", "")

	for round := 0; round < 20; round++ {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_ = hub.Membership.Join("a", fmt.Sprintf("room-%d", i))
			}(i)
		}
		wg.Wait()

		rooms := hub.Membership.RoomsOf("a")
		require.Len(t, rooms, 1, "round %d: connection in %v", round, rooms)
		sess, _ := hub.Sessions.Lookup("a")
		assert.Equal(t, rooms[0], sess.CurrentRoomID)
	}
}

func TestLeaveAll_NotifiesAndClears(t *testing.T) {
	hub := newTestHub(t, &memoryStore{})
	a := connect(t, hub, "a", "")
	b := connect(t, hub, "b", "")
	hub.Sessions.SetProfile("a", "alice")
	require.NoError(t, hub.Membership.Join("b", "r1"))
	require.NoError(t, hub.Membership.Join("a", "r1"))
	b.drain()
	a.drain()

	hub.Membership.LeaveAll("a")

	left := b.next(t)
	assert.Equal(t, models.EventUserLeft, left.Event)
	assert.Equal(t, "alice", decode[models.PresencePayload](t, left).Username)
	assert.Empty(t, hub.Membership.RoomsOf("a"))
	assert.ElementsMatch(t, []string{"b"}, hub.Membership.MembersOf("r1"))
}

func TestLeaveAll_NoMemberships(t *testing.T) {
	hub := newTestHub(t, &memoryStore{})
	connect(t, hub, "a", "")

	assert.NotPanics(t, func() { hub.Membership.LeaveAll("a") })
	assert.NotPanics(t, func() { hub.Membership.LeaveAll("ghost") })
}
