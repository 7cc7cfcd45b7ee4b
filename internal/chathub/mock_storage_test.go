package chathub_test

import (
	"context"
	"sync"
	"time"

	"roomchat/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

// MockStorage is a testify mock of the message store slice the hub uses.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) CreateMessage(ctx context.Context, msg *models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockStorage) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// memoryStore assigns increasing ids like a real database would.
type memoryStore struct {
	mu     sync.Mutex
	nextID uint
	saved  []models.Message
	delay  time.Duration
}

func (s *memoryStore) CreateMessage(_ context.Context, msg *models.Message) error {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	msg.ID = s.nextID
	msg.CreatedAt = time.Now()
	s.saved = append(s.saved, *msg)
	return nil
}

// staticVerifier accepts exactly one token.
type staticVerifier struct {
	token  string
	userID uint
}

func (v staticVerifier) Verify(token string) (uint, error) {
	if token == v.token {
		return v.userID, nil
	}
	return 0, errBadToken
}
