package models

import (
	"encoding/json"
	"time"
)

// Event names exchanged over the realtime socket.
const (
	EventServerInfo   = "server_info"
	EventUserJoined   = "user_joined"
	EventUserLeft     = "user_left"
	EventTyping       = "typing"
	EventChatMessage  = "chat_message"
	EventFileUploaded = "file_uploaded"

	EventSetProfile = "set_profile"
	EventJoinRoom   = "join_room"
)

// Envelope is one socket frame in either direction.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals payload into an Envelope.
func NewEnvelope(event string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: data}, nil
}

type ServerInfoPayload struct {
	Message string `json:"message"`
}

type PresencePayload struct {
	Username string `json:"username"`
	Room     string `json:"room"`
}

type TypingPayload struct {
	Username string `json:"username"`
}

type ChatMessagePayload struct {
	ID        uint      `json:"id"`
	RoomID    string    `json:"roomId"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

type FileUploadedPayload struct {
	ID           uint      `json:"id"`
	RoomID       string    `json:"roomId"`
	Username     string    `json:"username"`
	OriginalName string    `json:"originalName"`
	MimeType     string    `json:"mimeType"`
	SizeBytes    int64     `json:"sizeBytes"`
	URL          string    `json:"url"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Client -> server bodies.

type SetProfileRequest struct {
	Name string `json:"name"`
}

type JoinRoomRequest struct {
	RoomID string `json:"roomId"`
}

type TypingRequest struct {
	RoomID string `json:"roomId"`
}

type ChatMessageRequest struct {
	RoomID string `json:"roomId"`
	Text   string `json:"text"`
}
