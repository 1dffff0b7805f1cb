package mocks

import (
	"github.com/stretchr/testify/mock"
)

// MockClock is a mock implementation of Clock
type MockClock struct {
	mock.Mock
}

func (m *MockClock) NowMillis() uint64 {
	args := m.Called()
	return args.Get(0).(uint64)
}
