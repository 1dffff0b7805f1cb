package mocks

import (
	"context"
	"time"

	"github.com/kunay1/seal/pkg/constants"
	"github.com/stretchr/testify/mock"
)

// MockRateLimitService is a mock implementation of RateLimitService
type MockRateLimitService struct {
	mock.Mock
}

func (m *MockRateLimitService) Allow(
	ctx context.Context,
	dimension constants.RateLimitDimension,
	key string,
) (bool, int, time.Time, error) {
	args := m.Called(ctx, dimension, key)
	return args.Bool(0), args.Int(1), args.Get(2).(time.Time), args.Error(3)
}
