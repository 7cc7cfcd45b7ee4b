package chathub

import (
	"log"
	"sort"
	"strings"
	"sync"

	"roomchat/backend/internal/models"
)

// Membership tracks which connections are in which room. The per-connection
// index is authoritative; the per-room index is kept in step for fan-out.
type Membership struct {
	sessions *SessionRegistry
	emitter  Emitter

	perConn stripedMutex

	mu     sync.RWMutex
	byConn map[string]map[string]struct{}
	byRoom map[string]map[string]struct{}
}

func NewMembership(sessions *SessionRegistry, emitter Emitter) *Membership {
	return &Membership{
		sessions: sessions,
		emitter:  emitter,
		byConn:   make(map[string]map[string]struct{}),
		byRoom:   make(map[string]map[string]struct{}),
	}
}

// Join moves connID into roomID, leaving any other room first. An empty room
// id is a no-op. Joins for the same connection are serialized, so racing
// calls settle on exactly one room.
func (m *Membership) Join(connID, roomID string) error {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return nil
	}

	m.perConn.Lock(connID)
	defer m.perConn.Unlock(connID)

	sess, ok := m.sessions.Lookup(connID)
	if !ok {
		return ErrUnknownConnection
	}
	name := sess.Label()

	m.mu.Lock()
	var left []string
	for room := range m.byConn[connID] {
		if room != roomID {
			m.removeLocked(connID, room)
			left = append(left, room)
		}
	}
	m.addLocked(connID, roomID)
	m.mu.Unlock()

	m.sessions.setRoom(connID, roomID)

	for _, room := range left {
		m.emitter.Emit(room, models.EventUserLeft, models.PresencePayload{Username: name, Room: room}, "")
	}
	m.emitter.Emit(roomID, models.EventUserJoined, models.PresencePayload{Username: name, Room: roomID}, "")
	log.Printf("INFO: connection %s joined room %s (left %d)", connID, roomID, len(left))
	return nil
}

// LeaveAll drops every membership of connID and tells each room. It does not
// assume the single-room invariant held.
func (m *Membership) LeaveAll(connID string) {
	m.perConn.Lock(connID)
	defer m.perConn.Unlock(connID)

	name := anonymousLabel(connID)
	if sess, ok := m.sessions.Lookup(connID); ok {
		name = sess.Label()
	}

	m.mu.Lock()
	var left []string
	for room := range m.byConn[connID] {
		m.removeLocked(connID, room)
		left = append(left, room)
	}
	delete(m.byConn, connID)
	m.mu.Unlock()

	m.sessions.setRoom(connID, "")

	for _, room := range left {
		m.emitter.Emit(room, models.EventUserLeft, models.PresencePayload{Username: name, Room: room}, "")
	}
}

// MembersOf returns the connection ids currently in roomID.
func (m *Membership) MembersOf(roomID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	members := make([]string, 0, len(m.byRoom[roomID]))
	for connID := range m.byRoom[roomID] {
		members = append(members, connID)
	}
	return members
}

// RoomsOf returns the rooms connID belongs to, sorted. It is an introspection
// helper for diagnostics and tests; fan-out only uses MembersOf.
func (m *Membership) RoomsOf(connID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rooms := make([]string, 0, len(m.byConn[connID]))
	for room := range m.byConn[connID] {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	return rooms
}

func (m *Membership) addLocked(connID, roomID string) {
	if m.byConn[connID] == nil {
		m.byConn[connID] = make(map[string]struct{})
	}
	m.byConn[connID][roomID] = struct{}{}
	if m.byRoom[roomID] == nil {
		m.byRoom[roomID] = make(map[string]struct{})
	}
	m.byRoom[roomID][connID] = struct{}{}
}

func (m *Membership) removeLocked(connID, roomID string) {
	delete(m.byConn[connID], roomID)
	if members := m.byRoom[roomID]; members != nil {
		delete(members, connID)
		if len(members) == 0 {
			delete(m.byRoom, roomID)
		}
	}
}
