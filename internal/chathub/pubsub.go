package chathub

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"roomchat/backend/internal/storage"
)

// Relay carries room events between server instances. *storage.Service
// implements it on top of Redis pub/sub.
type Relay interface {
	PublishRoomEvent(ctx context.Context, roomID string, frame []byte) error
	SubscribeRoomEvents(ctx context.Context) (<-chan storage.RoomEvent, error)
}

// relayedFrame is what travels over the relay: the encoded envelope plus the
// connection that must not receive it.
type relayedFrame struct {
	Exclude string          `json:"exclude,omitempty"`
	Event   string          `json:"event"`
	Frame   json.RawMessage `json:"frame"`
}

func publishRelayed(ctx context.Context, relay Relay, roomID string, frame []byte, exclude string) error {
	var env struct {
		Event string `json:"event"`
	}
	_ = json.Unmarshal(frame, &env)

	data, err := json.Marshal(relayedFrame{Exclude: exclude, Event: env.Event, Frame: frame})
	if err != nil {
		return err
	}
	return relay.PublishRoomEvent(ctx, roomID, data)
}

// SetRelay attaches a relay. It only carries traffic while RunRelay is subscribed.
func (r *Router) SetRelay(relay Relay) {
	r.relay = relay
}

// RunRelay subscribes to the relay and delivers incoming room events to local
// members until ctx is done, resubscribing after failures.
func (r *Router) RunRelay(ctx context.Context, backoff time.Duration) {
	if r.relay == nil {
		return
	}
	for {
		events, err := r.relay.SubscribeRoomEvents(ctx)
		if err != nil {
			log.Printf("ERROR: relay subscribe failed: %v", err)
		} else {
			r.relayActive.Store(true)
			log.Println("INFO: relay subscription active")
			for ev := range events {
				r.handleRelayed(ev)
			}
			r.relayActive.Store(false)
			log.Println("WARNING: relay subscription ended")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

func (r *Router) handleRelayed(ev storage.RoomEvent) {
	var rf relayedFrame
	if err := json.Unmarshal(ev.Frame, &rf); err != nil {
		log.Printf("Error unmarshalling relayed event for room %s: %v", ev.RoomID, err)
		return
	}
	r.deliverLocal(ev.RoomID, rf.Event, rf.Frame, rf.Exclude)
}
