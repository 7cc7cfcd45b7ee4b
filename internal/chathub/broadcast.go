package chathub

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"roomchat/backend/internal/models"
)

const relayPublishTimeout = 2 * time.Second

// Emitter delivers events to rooms and single connections. Delivery is best
// effort and never reports failure to the caller.
type Emitter interface {
	Emit(roomID, event string, payload any, excludeConnID string)
	EmitToConnection(connID, event string, payload any)
}

// Sequencer runs fn while holding the room's ordering lock, so that events
// generated inside fn reach every member in the order fn calls ran.
type Sequencer interface {
	InRoom(roomID string, fn func() error) error
}

// MemberLister resolves a room to its member connections.
type MemberLister interface {
	MembersOf(roomID string) []string
}

// Router fans events out to the bounded send queue of each member connection.
// With a relay attached, room events go through it so every instance sees
// them in publish order.
type Router struct {
	members MemberLister

	mu      sync.RWMutex
	clients map[string]Client

	rooms stripedMutex

	relay       Relay
	relayActive atomic.Bool

	dropped atomic.Int64
}

func NewRouter(members MemberLister) *Router {
	return &Router{
		members: members,
		clients: make(map[string]Client),
	}
}

// Attach makes client reachable by its connection id.
func (r *Router) Attach(client Client) {
	r.mu.Lock()
	r.clients[client.ConnID()] = client
	r.mu.Unlock()
}

// Detach forgets the connection and closes its send queue.
func (r *Router) Detach(connID string) {
	r.mu.Lock()
	client, ok := r.clients[connID]
	delete(r.clients, connID)
	r.mu.Unlock()
	if ok {
		client.Close()
	}
}

func (r *Router) client(connID string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[connID]
	return c, ok
}

// Clients returns a snapshot of every attached client.
func (r *Router) Clients() []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

// Dropped is the number of frames discarded because a recipient was gone or full.
func (r *Router) Dropped() int64 {
	return r.dropped.Load()
}

func (r *Router) InRoom(roomID string, fn func() error) error {
	r.rooms.Lock(roomID)
	defer r.rooms.Unlock(roomID)
	return fn()
}

func (r *Router) Emit(roomID, event string, payload any, excludeConnID string) {
	if roomID == "" {
		return
	}
	frame, err := encodeFrame(event, payload)
	if err != nil {
		log.Printf("ERROR: Failed to encode %s for room %s: %v", event, roomID, err)
		return
	}

	if r.relay != nil && r.relayActive.Load() {
		ctx, cancel := context.WithTimeout(context.Background(), relayPublishTimeout)
		err := publishRelayed(ctx, r.relay, roomID, frame, excludeConnID)
		cancel()
		if err == nil {
			return
		}
		log.Printf("WARNING: relay publish for room %s failed, delivering locally: %v", roomID, err)
	}
	r.deliverLocal(roomID, event, frame, excludeConnID)
}

func (r *Router) EmitToConnection(connID, event string, payload any) {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		log.Printf("ERROR: Failed to encode %s for connection %s: %v", event, connID, err)
		return
	}
	r.deliver(connID, event, frame)
}

func (r *Router) deliverLocal(roomID, event string, frame []byte, excludeConnID string) {
	for _, connID := range r.members.MembersOf(roomID) {
		if connID == excludeConnID {
			continue
		}
		r.deliver(connID, event, frame)
	}
}

func (r *Router) deliver(connID, event string, frame []byte) {
	client, ok := r.client(connID)
	if !ok {
		r.dropped.Add(1)
		log.Printf("WARNING: dropping %s for connection %s: not attached", event, connID)
		return
	}
	if !client.Enqueue(frame) {
		r.dropped.Add(1)
		log.Printf("WARNING: dropping %s for connection %s: send queue full or closed", event, connID)
	}
}

func encodeFrame(event string, payload any) ([]byte, error) {
	env, err := models.NewEnvelope(event, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}
