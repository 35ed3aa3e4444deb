package mocks

import (
	"context"

	"docvault/internal/model"
	"docvault/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Save(ctx context.Context, doc model.Document, audit ...model.AuditEntry) error {
	args := m.Called(ctx, doc, audit)
	return args.Error(0)
}

func (m *MockDocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (model.Document, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Document), args.Error(1)
}

func (m *MockDocumentRepository) FindByChecksum(ctx context.Context, checksum model.Checksum) (model.Document, error) {
	args := m.Called(ctx, checksum)
	return args.Get(0).(model.Document), args.Error(1)
}

func (m *MockDocumentRepository) FindByContentRef(ctx context.Context, ref model.ContentRef) (model.Document, error) {
	args := m.Called(ctx, ref)
	return args.Get(0).(model.Document), args.Error(1)
}

func (m *MockDocumentRepository) FindByFilenameAndUser(ctx context.Context, filename model.Filename, userID uuid.UUID) (model.Document, error) {
	args := m.Called(ctx, filename, userID)
	return args.Get(0).(model.Document), args.Error(1)
}

func (m *MockDocumentRepository) ListByUser(ctx context.Context, userID uuid.UUID, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	args := m.Called(ctx, userID, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Document]), args.Error(1)
}

func (m *MockDocumentRepository) ListAll(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	args := m.Called(ctx, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Document]), args.Error(1)
}

func (m *MockDocumentRepository) Search(ctx context.Context, sq repository.SearchQuery, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	args := m.Called(ctx, sq, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Document]), args.Error(1)
}

func (m *MockDocumentRepository) Delete(ctx context.Context, id uuid.UUID, audit ...model.AuditEntry) error {
	args := m.Called(ctx, id, audit)
	return args.Error(0)
}

func (m *MockDocumentRepository) AddAudit(ctx context.Context, entry model.AuditEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}
