package mocks

import (
	"context"

	"docvault/internal/model"
	"docvault/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Upload(ctx context.Context, userID uuid.UUID, in service.UploadInput) (model.Document, model.DocumentVersion, error) {
	args := m.Called(ctx, userID, in)
	return args.Get(0).(model.Document), args.Get(1).(model.DocumentVersion), args.Error(2)
}

func (m *MockDocumentService) InitiateUpload(ctx context.Context, userID uuid.UUID, in service.InitiateUploadInput) (*service.UploadTicket, error) {
	args := m.Called(ctx, userID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.UploadTicket), args.Error(1)
}

func (m *MockDocumentService) ConfirmUpload(ctx context.Context, userID uuid.UUID, in service.ConfirmUploadInput) (model.Document, model.DocumentVersion, error) {
	args := m.Called(ctx, userID, in)
	return args.Get(0).(model.Document), args.Get(1).(model.DocumentVersion), args.Error(2)
}

func (m *MockDocumentService) List(ctx context.Context, userID uuid.UUID, limit, offset int) (*service.DocumentListResult, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentListResult), args.Error(1)
}

func (m *MockDocumentService) Search(ctx context.Context, userID uuid.UUID, term string, limit, offset int) (*service.DocumentListResult, error) {
	args := m.Called(ctx, userID, term, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentListResult), args.Error(1)
}

func (m *MockDocumentService) Get(ctx context.Context, userID, id uuid.UUID) (model.Document, error) {
	args := m.Called(ctx, userID, id)
	return args.Get(0).(model.Document), args.Error(1)
}

func (m *MockDocumentService) FindByFilename(ctx context.Context, userID uuid.UUID, filename string) (model.Document, error) {
	args := m.Called(ctx, userID, filename)
	return args.Get(0).(model.Document), args.Error(1)
}

func (m *MockDocumentService) ListVersions(ctx context.Context, userID, id uuid.UUID) ([]model.DocumentVersion, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DocumentVersion), args.Error(1)
}

func (m *MockDocumentService) GetVersion(ctx context.Context, userID, id, versionID uuid.UUID) (model.DocumentVersion, error) {
	args := m.Called(ctx, userID, id, versionID)
	return args.Get(0).(model.DocumentVersion), args.Error(1)
}

func (m *MockDocumentService) DownloadURL(ctx context.Context, userID, id, versionID uuid.UUID) (*service.DownloadLink, error) {
	args := m.Called(ctx, userID, id, versionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DownloadLink), args.Error(1)
}

func (m *MockDocumentService) Publish(ctx context.Context, userID, id uuid.UUID) (model.Document, error) {
	args := m.Called(ctx, userID, id)
	return args.Get(0).(model.Document), args.Error(1)
}

func (m *MockDocumentService) Unpublish(ctx context.Context, userID, id uuid.UUID) (model.Document, error) {
	args := m.Called(ctx, userID, id)
	return args.Get(0).(model.Document), args.Error(1)
}

func (m *MockDocumentService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}
