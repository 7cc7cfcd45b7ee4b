package models

import "time"

// Message is a persisted chat line. ID and CreatedAt are assigned by the store
// on insert; rows are never updated or deleted.
type Message struct {
	ID         uint      `gorm:"primaryKey"`
	RoomID     string    `gorm:"size:36;not null;index:idx_room_msg"`
	AuthorID   uint      `gorm:"not null"`
	AuthorName string    `gorm:"size:64;not null"`
	Text       string    `gorm:"size:4096;not null"`
	CreatedAt  time.Time `gorm:"index:idx_room_msg"`
}

// Payload is the canonical chat_message body clients receive.
func (m *Message) Payload() ChatMessagePayload {
	return ChatMessagePayload{
		ID:        m.ID,
		RoomID:    m.RoomID,
		Username:  m.AuthorName,
		Text:      m.Text,
		CreatedAt: m.CreatedAt.UTC(),
	}
}
