package storage

import (
	"context"
	"errors"
	"strings"
)

// RoomChannelPrefix namespaces the Redis pub/sub channels used for room fan-out.
const RoomChannelPrefix = "chat:room:"

var errNoRedis = errors.New("redis is not configured")

// RoomChannel returns the pub/sub channel for a room.
func RoomChannel(roomID string) string {
	return RoomChannelPrefix + roomID
}

// RoomFromChannel is the inverse of RoomChannel.
func RoomFromChannel(channel string) (string, bool) {
	if !strings.HasPrefix(channel, RoomChannelPrefix) {
		return "", false
	}
	return strings.TrimPrefix(channel, RoomChannelPrefix), true
}

// PublishRoomEvent publishes an encoded event on the room's channel.
func (s *Service) PublishRoomEvent(ctx context.Context, roomID string, frame []byte) error {
	if s.Redis == nil {
		return errNoRedis
	}
	return s.Redis.Publish(ctx, RoomChannel(roomID), frame).Err()
}

// RoomEvent is one frame received from another instance (or this one).
type RoomEvent struct {
	RoomID string
	Frame  []byte
}

// SubscribeRoomEvents pattern-subscribes to every room channel and forwards
// frames until ctx is done. The returned channel is closed on exit.
func (s *Service) SubscribeRoomEvents(ctx context.Context) (<-chan RoomEvent, error) {
	if s.Redis == nil {
		return nil, errNoRedis
	}
	pubsub := s.Redis.PSubscribe(ctx, RoomChannelPrefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan RoomEvent, 256)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				roomID, ok := RoomFromChannel(msg.Channel)
				if !ok {
					continue
				}
				select {
				case out <- RoomEvent{RoomID: roomID, Frame: []byte(msg.Payload)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
