package mocks

import (
	"context"

	"docvault/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockPermissionRepository struct {
	mock.Mock
}

func (m *MockPermissionRepository) Save(ctx context.Context, p model.DocumentPermission, audit ...model.AuditEntry) (uuid.UUID, error) {
	args := m.Called(ctx, p, audit)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockPermissionRepository) FindByID(ctx context.Context, id uuid.UUID) (model.DocumentPermission, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.DocumentPermission), args.Error(1)
}

func (m *MockPermissionRepository) FindByDocument(ctx context.Context, documentID uuid.UUID) ([]model.DocumentPermission, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DocumentPermission), args.Error(1)
}

func (m *MockPermissionRepository) FindByUserAndDocument(ctx context.Context, userID, documentID uuid.UUID) (model.DocumentPermission, error) {
	args := m.Called(ctx, userID, documentID)
	return args.Get(0).(model.DocumentPermission), args.Error(1)
}

func (m *MockPermissionRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]model.DocumentPermission, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DocumentPermission), args.Error(1)
}

func (m *MockPermissionRepository) Delete(ctx context.Context, id uuid.UUID, audit ...model.AuditEntry) error {
	args := m.Called(ctx, id, audit)
	return args.Error(0)
}

func (m *MockPermissionRepository) HasPermission(ctx context.Context, userID, documentID uuid.UUID, level model.PermissionType) (bool, error) {
	args := m.Called(ctx, userID, documentID, level)
	return args.Bool(0), args.Error(1)
}

func (m *MockPermissionRepository) DeleteByDocument(ctx context.Context, documentID uuid.UUID) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.User), args.Error(1)
}
