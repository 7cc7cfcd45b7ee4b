package chathub

import (
	"log"
	"strings"
	"sync"
	"unicode/utf8"

	"roomchat/backend/internal/auth"
	"roomchat/backend/internal/config"
)

const maxDisplayNameRunes = 64

// Session is the server-side state bound to one live connection.
type Session struct {
	ConnectionID  string
	UserID        *uint
	DisplayName   string
	CurrentRoomID string
}

// Authenticated reports whether the credential presented at connect was valid.
func (s Session) Authenticated() bool {
	return s.UserID != nil
}

// Label is the name shown to other room members. Sessions without a display
// name get a per-connection fallback so concurrent anonymous users stay distinct.
func (s Session) Label() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return anonymousLabel(s.ConnectionID)
}

func anonymousLabel(connID string) string {
	id := strings.ReplaceAll(connID, "-", "")
	if len(id) > config.AnonymousLabelIDChars {
		id = id[:config.AnonymousLabelIDChars]
	}
	return config.AnonymousLabelPrefix + id
}

// SessionRegistry owns every live Session, keyed by connection id.
type SessionRegistry struct {
	verifier auth.Verifier
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionRegistry(verifier auth.Verifier) *SessionRegistry {
	return &SessionRegistry{
		verifier: verifier,
		sessions: make(map[string]*Session),
	}
}

// Connect registers a session for connID. An absent or invalid credential
// yields an unauthenticated session; the connection is never rejected.
func (r *SessionRegistry) Connect(connID, credential string) Session {
	sess := &Session{ConnectionID: connID}

	if credential != "" && r.verifier != nil {
		userID, err := r.verifier.Verify(credential)
		if err != nil {
			log.Printf("WARNING: connection %s presented a bad credential, continuing anonymously: %v", connID, err)
		} else {
			sess.UserID = &userID
		}
	}

	r.mu.Lock()
	r.sessions[connID] = sess
	r.mu.Unlock()
	return *sess
}

// SetProfile changes the display name. Missing sessions are ignored.
func (r *SessionRegistry) SetProfile(connID, displayName string) {
	name := normalizeDisplayName(displayName)

	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok := r.sessions[connID]; ok {
		sess.DisplayName = name
	}
}

// Disconnect removes the session. Safe to call for an unknown id.
func (r *SessionRegistry) Disconnect(connID string) {
	r.mu.Lock()
	delete(r.sessions, connID)
	r.mu.Unlock()
}

// Lookup returns a copy of the session for connID.
func (r *SessionRegistry) Lookup(connID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[connID]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// Count is the number of live sessions.
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *SessionRegistry) setRoom(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok := r.sessions[connID]; ok {
		sess.CurrentRoomID = roomID
	}
}

func normalizeDisplayName(name string) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) <= maxDisplayNameRunes {
		return name
	}
	return string([]rune(name)[:maxDisplayNameRunes])
}
