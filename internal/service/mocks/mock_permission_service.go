package mocks

import (
	"context"

	"docvault/internal/model"
	"docvault/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockPermissionService struct {
	mock.Mock
}

func (m *MockPermissionService) Grant(ctx context.Context, callerID uuid.UUID, in service.GrantInput) (model.DocumentPermission, error) {
	args := m.Called(ctx, callerID, in)
	return args.Get(0).(model.DocumentPermission), args.Error(1)
}

func (m *MockPermissionService) Revoke(ctx context.Context, callerID, permissionID uuid.UUID) error {
	args := m.Called(ctx, callerID, permissionID)
	return args.Error(0)
}

func (m *MockPermissionService) RevokeForUser(ctx context.Context, callerID, documentID, userID uuid.UUID) error {
	args := m.Called(ctx, callerID, documentID, userID)
	return args.Error(0)
}

func (m *MockPermissionService) ListForDocument(ctx context.Context, callerID, documentID uuid.UUID) ([]model.DocumentPermission, error) {
	args := m.Called(ctx, callerID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DocumentPermission), args.Error(1)
}

func (m *MockPermissionService) ListForUser(ctx context.Context, callerID, userID uuid.UUID) ([]model.DocumentPermission, error) {
	args := m.Called(ctx, callerID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DocumentPermission), args.Error(1)
}

func (m *MockPermissionService) Highest(ctx context.Context, callerID, documentID uuid.UUID) (model.PermissionType, bool, error) {
	args := m.Called(ctx, callerID, documentID)
	return args.Get(0).(model.PermissionType), args.Bool(1), args.Error(2)
}
