package models_test

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"roomchat/backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRoomBeforeCreate_GeneratesUUID verifies that the BeforeCreate hook generates a valid UUID.
func TestRoomBeforeCreate_GeneratesUUID(t *testing.T) {
	room := &models.Room{Name: "general", CountryCode: "ID"}
	assert.Empty(t, room.ID, "Room ID should be empty before BeforeCreate")

	err := room.BeforeCreate(nil)

	assert.NoError(t, err)
	parsed, parseErr := uuid.Parse(room.ID)
	assert.NoError(t, parseErr, "Room ID must be a valid UUID string")
	assert.NotEqual(t, uuid.Nil, parsed)
}

// TestRoomBeforeCreate_PreservesExistingID verifies that the hook doesn't overwrite an existing ID.
func TestRoomBeforeCreate_PreservesExistingID(t *testing.T) {
	existingID := uuid.New().String()
	room := &models.Room{ID: existingID, Name: "general", CountryCode: "US"}

	assert.NoError(t, room.BeforeCreate(nil))
	assert.Equal(t, existingID, room.ID)
}

func TestUserBeforeSave_NormalizesEmail(t *testing.T) {
	tests := []struct {
		name       string
		user       models.User
		wantEmail  string
		wantGender string
	}{
		{"mixed case", models.User{Email: " Alice@Example.COM "}, "alice@example.com", "unspecified"},
		{"keeps gender", models.User{Email: "b@x.io", Gender: "female"}, "b@x.io", "female"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, tt.user.BeforeSave(nil))
			assert.Equal(t, tt.wantEmail, tt.user.Email)
			assert.Equal(t, tt.wantGender, tt.user.Gender)
		})
	}
}

// TestUserStructTags guards the password hash against accidental JSON exposure.
func TestUserStructTags(t *testing.T) {
	userType := reflect.TypeOf(models.User{})

	hashField, found := userType.FieldByName("PasswordHash")
	require.True(t, found)
	assert.Equal(t, "-", hashField.Tag.Get("json"))

	emailField, found := userType.FieldByName("Email")
	require.True(t, found)
	assert.Contains(t, emailField.Tag.Get("gorm"), "uniqueIndex")
}

func TestAttachmentPayload_DerivesURL(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	att := &models.Attachment{
		ID:           7,
		RoomID:       "r1",
		AuthorName:   "bob",
		OriginalName: "cat.png",
		StoredPath:   "r1/abc.png",
		MimeType:     "image/png",
		SizeBytes:    42,
		CreatedAt:    created,
	}

	p := att.Payload()

	assert.Equal(t, "/files/r1/abc.png", p.URL)
	assert.Equal(t, uint(7), p.ID)
	assert.Equal(t, "cat.png", p.OriginalName)
	assert.Equal(t, int64(42), p.SizeBytes)
	assert.True(t, created.Equal(p.CreatedAt))
}

func TestNewEnvelope_WireShape(t *testing.T) {
	msg := &models.Message{ID: 3, RoomID: "r1", AuthorName: "amy", Text: "hi", CreatedAt: time.Unix(0, 0)}

	env, err := models.NewEnvelope(models.EventChatMessage, msg.Payload())
	require.NoError(t, err)

	raw, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "chat_message", decoded["event"])

	data := decoded["data"].(map[string]any)
	assert.Equal(t, "r1", data["roomId"])
	assert.Equal(t, "hi", data["text"])
	assert.Equal(t, "amy", data["username"])
	assert.EqualValues(t, 3, data["id"])
}
