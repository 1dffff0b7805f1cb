package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockReplayCache is a mock implementation of ReplayCache
type MockReplayCache struct {
	mock.Mock
}

func (m *MockReplayCache) Seen(ctx context.Context, fingerprint string) (bool, error) {
	args := m.Called(ctx, fingerprint)
	return args.Bool(0), args.Error(1)
}

func (m *MockReplayCache) MarkUsed(ctx context.Context, fingerprint string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, fingerprint, ttl)
	return args.Bool(0), args.Error(1)
}
