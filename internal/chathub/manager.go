package chathub

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"roomchat/backend/internal/auth"
	"roomchat/backend/internal/models"
)

// UserLookup resolves an authenticated user id to an account name.
type UserLookup interface {
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
}

// Options tune a ManagerService.
type Options struct {
	MaxMessageLength int
	Users            UserLookup
	Relay            Relay
	RelayBackoff     time.Duration
}

// ManagerService is the realtime hub: it owns the session registry, room
// membership and the broadcast router, and dispatches client events.
type ManagerService struct {
	Sessions   *SessionRegistry
	Membership *Membership
	Router     *Router
	Messages   *MessagePipeline

	users        UserLookup
	relayBackoff time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewManagerService(store MessageStore, verifier auth.Verifier, opts Options) *ManagerService {
	ctx, cancel := context.WithCancel(context.Background())
	m := &ManagerService{
		Sessions:     NewSessionRegistry(verifier),
		users:        opts.Users,
		relayBackoff: opts.RelayBackoff,
		ctx:          ctx,
		cancel:       cancel,
	}
	if m.relayBackoff <= 0 {
		m.relayBackoff = 5 * time.Second
	}

	m.Membership = NewMembership(m.Sessions, nil)
	m.Router = NewRouter(m.Membership)
	m.Membership.emitter = m.Router
	if opts.Relay != nil {
		m.Router.SetRelay(opts.Relay)
	}
	m.Messages = NewMessagePipeline(store, m.Router, m.Router, opts.MaxMessageLength)
	return m
}

// Run blocks until ctx is done, keeping the relay subscription alive.
func (m *ManagerService) Run(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
		case <-m.ctx.Done():
		}
		m.cancel()
	}()
	m.Router.RunRelay(m.ctx, m.relayBackoff)
	<-m.ctx.Done()
}

// Connect registers client, greets it and starts its pumps.
func (m *ManagerService) Connect(client Client, credential string) Session {
	sess := m.Sessions.Connect(client.ConnID(), credential)
	if sess.UserID != nil && m.users != nil {
		if user, err := m.users.GetUserByID(m.ctx, *sess.UserID); err == nil {
			m.Sessions.SetProfile(sess.ConnectionID, user.Name)
			sess.DisplayName = user.Name
		} else {
			log.Printf("WARNING: could not load profile of user %d: %v", *sess.UserID, err)
		}
	}

	m.Router.Attach(client)
	m.Router.EmitToConnection(client.ConnID(), models.EventServerInfo, models.ServerInfoPayload{Message: "connected"})
	client.Run()

	log.Printf("INFO: connection %s opened (authenticated=%t). Live sessions: %d",
		sess.ConnectionID, sess.Authenticated(), m.Sessions.Count())
	return sess
}

// Disconnect tears a connection down: presence leave, queue close, session
// removal. Repeated calls are no-ops.
func (m *ManagerService) Disconnect(connID string) {
	if _, ok := m.Sessions.Lookup(connID); !ok {
		return
	}
	m.Membership.LeaveAll(connID)
	m.Router.Detach(connID)
	m.Sessions.Disconnect(connID)
	log.Printf("INFO: connection %s closed. Live sessions: %d", connID, m.Sessions.Count())
}

// HandleEvent dispatches one client frame. Failures are reported back to the
// sender as server_info and never affect other connections.
func (m *ManagerService) HandleEvent(connID string, env models.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: Recovered from panic handling %s for %s: %v", env.Event, connID, r)
		}
	}()

	if err := m.dispatch(connID, env); err != nil {
		m.Router.EmitToConnection(connID, models.EventServerInfo, models.ServerInfoPayload{Message: clientMessage(connID, env.Event, err)})
	}
}

var (
	errUnknownEvent  = errors.New("unknown event")
	errMalformedData = errors.New("malformed event data")
)

const internalErrorMessage = "internal server error"

// clientMessage is what the sender is told about a failed event. Only
// rejections of the client's own input are spelled out; anything else is
// logged and reported generically.
func clientMessage(connID, event string, err error) string {
	switch {
	case IsValidation(err),
		errors.Is(err, ErrUnauthenticated),
		errors.Is(err, ErrUnknownConnection),
		errors.Is(err, errUnknownEvent),
		errors.Is(err, errMalformedData):
		return err.Error()
	default:
		log.Printf("ERROR: %s from %s failed: %v", event, connID, err)
		return internalErrorMessage
	}
}

func (m *ManagerService) dispatch(connID string, env models.Envelope) error {
	switch env.Event {
	case models.EventSetProfile:
		var req models.SetProfileRequest
		if err := decodeData(env.Data, &req); err != nil {
			return err
		}
		m.Sessions.SetProfile(connID, req.Name)
		return nil

	case models.EventJoinRoom:
		var req models.JoinRoomRequest
		if err := decodeData(env.Data, &req); err != nil {
			return err
		}
		return m.Membership.Join(connID, req.RoomID)

	case models.EventTyping:
		var req models.TypingRequest
		if err := decodeData(env.Data, &req); err != nil {
			return err
		}
		return m.Typing(connID, req.RoomID)

	case models.EventChatMessage:
		var req models.ChatMessageRequest
		if err := decodeData(env.Data, &req); err != nil {
			return err
		}
		_, err := m.SendMessage(m.ctx, connID, req.RoomID, req.Text)
		return err

	default:
		return errUnknownEvent
	}
}

// Typing tells the room (minus the sender) that the sender is typing. An
// empty room id falls back to the sender's current room.
func (m *ManagerService) Typing(connID, roomID string) error {
	sess, ok := m.Sessions.Lookup(connID)
	if !ok {
		return ErrUnknownConnection
	}
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		roomID = sess.CurrentRoomID
	}
	if roomID == "" {
		return nil
	}
	m.Router.Emit(roomID, models.EventTyping, models.TypingPayload{Username: sess.Label()}, connID)
	return nil
}

// SendMessage runs the message pipeline on behalf of a socket session.
func (m *ManagerService) SendMessage(ctx context.Context, connID, roomID, text string) (*models.Message, error) {
	sess, ok := m.Sessions.Lookup(connID)
	if !ok {
		return nil, ErrUnknownConnection
	}
	if !sess.Authenticated() {
		return nil, ErrUnauthenticated
	}
	if strings.TrimSpace(roomID) == "" {
		roomID = sess.CurrentRoomID
	}
	return m.Messages.Submit(ctx, roomID, Author{ID: *sess.UserID, Name: sess.Label()}, text)
}

// Shutdown closes every client and waits for their pumps, up to timeout.
func (m *ManagerService) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")
	m.cancel()
	for _, c := range m.Router.Clients() {
		c.Close()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some connections may still be open")
		return context.DeadlineExceeded
	}
}

// track runs fn in a goroutine that Shutdown waits for.
func (m *ManagerService) track(fn func()) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		fn()
	}()
}

func decodeData(data json.RawMessage, dst any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return errMalformedData
	}
	return nil
}
