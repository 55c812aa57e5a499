package mocks

import (
	"context"

	"github.com/camforge/camforge/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockPersistence is a mock implementation of persistence.Persistence.
type MockPersistence struct {
	mock.Mock
}

func (m *MockPersistence) Sessions(ctx context.Context) ([]*models.WorkflowSession, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowSession), args.Error(1)
}

func (m *MockPersistence) SessionsByState(ctx context.Context, state models.WorkflowState) ([]*models.WorkflowSession, error) {
	args := m.Called(ctx, state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowSession), args.Error(1)
}

func (m *MockPersistence) SaveSession(ctx context.Context, session *models.WorkflowSession) error {
	args := m.Called(ctx, session)

	return args.Error(0)
}

func (m *MockPersistence) SessionByID(ctx context.Context, id string) (*models.WorkflowSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowSession), args.Error(1)
}

func (m *MockPersistence) DeleteSession(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
