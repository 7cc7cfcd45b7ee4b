package chathub

import "errors"

var (
	// ErrMissingRoom is returned when an operation needs a room id and got none.
	ErrMissingRoom = errors.New("room id is required")
	// ErrEmptyText is returned for a message with no visible text.
	ErrEmptyText = errors.New("message text is empty")
	// ErrTextTooLong is returned when a message exceeds the configured length.
	ErrTextTooLong = errors.New("message text is too long")
	// ErrUnauthenticated is returned when a durable write has no authenticated author.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrUnknownConnection is returned when a connection has no live session.
	ErrUnknownConnection = errors.New("unknown connection")
)

// IsValidation reports whether err was a synchronous input rejection.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingRoom) ||
		errors.Is(err, ErrEmptyText) ||
		errors.Is(err, ErrTextTooLong)
}
