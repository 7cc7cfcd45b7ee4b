package chathub_test

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"roomchat/backend/internal/models"

	"github.com/stretchr/testify/require"
)

// MockClient is a test double for the chathub.Client interface. Frames land
// in RecvChannel instead of a socket.
type MockClient struct {
	id          string
	RecvChannel chan []byte

	mu     sync.Mutex
	closed bool
	runs   int
}

func newMockClient(id string) *MockClient {
	return newMockClientWithBuffer(id, 64)
}

func newMockClientWithBuffer(id string, size int) *MockClient {
	return &MockClient{id: id, RecvChannel: make(chan []byte, size)}
}

func (c *MockClient) ConnID() string { return c.id }

func (c *MockClient) Enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.RecvChannel <- frame:
		return true
	default:
		return false
	}
}

func (c *MockClient) Run() {
	c.mu.Lock()
	c.runs++
	c.mu.Unlock()
}

func (c *MockClient) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *MockClient) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// next decodes the next frame or fails the test after a short wait.
func (c *MockClient) next(t *testing.T) models.Envelope {
	t.Helper()
	select {
	case frame := <-c.RecvChannel:
		var env models.Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		return env
	case <-time.After(time.Second):
		t.Fatalf("client %s received nothing", c.id)
		return models.Envelope{}
	}
}

// drain discards everything queued so far.
func (c *MockClient) drain() {
	for {
		select {
		case <-c.RecvChannel:
		default:
			return
		}
	}
}

// assertSilent fails if anything is queued.
func (c *MockClient) assertSilent(t *testing.T) {
	t.Helper()
	select {
	case frame := <-c.RecvChannel:
		t.Fatalf("client %s got unexpected frame %s", c.id, frame)
	default:
	}
}

func decode[T any](t *testing.T, env models.Envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}
