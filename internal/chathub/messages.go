package chathub

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"roomchat/backend/internal/models"
)

// MessageStore is the slice of the durable store the message pipeline needs.
type MessageStore interface {
	CreateMessage(ctx context.Context, msg *models.Message) error
}

// Author identifies who a durable record is attributed to.
type Author struct {
	ID   uint
	Name string
}

// DisplayName is the name stored on records, clamped to the author column width.
func (a Author) DisplayName() string {
	return normalizeDisplayName(a.Name)
}

// MessagePipeline persists a chat message and only then broadcasts the
// stored record. Persist and broadcast for one room happen under the room's
// sequencer, so broadcast order equals persistence order.
type MessagePipeline struct {
	store     MessageStore
	emitter   Emitter
	sequencer Sequencer
	maxLength int
}

func NewMessagePipeline(store MessageStore, emitter Emitter, sequencer Sequencer, maxLength int) *MessagePipeline {
	return &MessagePipeline{
		store:     store,
		emitter:   emitter,
		sequencer: sequencer,
		maxLength: maxLength,
	}
}

// Submit validates, persists and broadcasts one message. On any error nothing
// was written and nothing was sent.
func (p *MessagePipeline) Submit(ctx context.Context, roomID string, author Author, text string) (*models.Message, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return nil, ErrMissingRoom
	}
	if author.ID == 0 {
		return nil, ErrUnauthenticated
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if p.maxLength > 0 && utf8.RuneCountInString(text) > p.maxLength {
		return nil, fmt.Errorf("%w: limit is %d characters", ErrTextTooLong, p.maxLength)
	}

	msg := &models.Message{
		RoomID:     roomID,
		AuthorID:   author.ID,
		AuthorName: author.DisplayName(),
		Text:       text,
	}

	err := p.sequencer.InRoom(roomID, func() error {
		if err := p.store.CreateMessage(ctx, msg); err != nil {
			return fmt.Errorf("persist message: %w", err)
		}
		p.emitter.Emit(roomID, models.EventChatMessage, msg.Payload(), "")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}
