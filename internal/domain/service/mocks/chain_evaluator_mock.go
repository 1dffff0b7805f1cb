package mocks

import (
	"context"

	"github.com/kunay1/seal/internal/domain/models"
	"github.com/stretchr/testify/mock"
)

// MockChainEvaluator is a mock implementation of ChainEvaluator
type MockChainEvaluator struct {
	mock.Mock
}

func (m *MockChainEvaluator) Evaluate(ctx context.Context, sender models.ObjectID, call *models.ValidatedPolicyCall) (*models.ExecutionOutcome, error) {
	args := m.Called(ctx, sender, call)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ExecutionOutcome), args.Error(1)
}
