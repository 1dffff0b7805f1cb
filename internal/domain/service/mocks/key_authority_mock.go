package mocks

import (
	"context"

	"github.com/kunay1/seal/internal/domain/models"
	"github.com/stretchr/testify/mock"
)

// MockKeyAuthority is a mock implementation of KeyAuthority
type MockKeyAuthority struct {
	mock.Mock
}

func (m *MockKeyAuthority) DeriveKeyShare(ctx context.Context, scope, id models.ObjectID) ([]byte, error) {
	args := m.Called(ctx, scope, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockKeyAuthority) MasterID() string {
	args := m.Called()
	return args.String(0)
}
