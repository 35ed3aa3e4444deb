// Package repository defines the persistence ports used by the service layer.
// Implementations live in subpackages (postgres) and contain no business logic.
//
// Implementations must make concurrent writers safe: two writers racing to append the
// same version number or the same checksum to one document, or to create a second grant
// for the same (document, user), must not both succeed. The loser receives a
// *model.ConstraintError.
package repository

import (
	"context"

	"github.com/google/uuid"

	"docvault/internal/model"
)

// DocumentRepository persists Document aggregates together with their versions.
type DocumentRepository interface {
	// Save inserts or updates the document header, inserts new versions and updates the
	// storage fields of confirmed ones. The audit entries are written in the same transaction.
	Save(ctx context.Context, doc model.Document, audit ...model.AuditEntry) error

	// FindByID returns the aggregate with its full version history.
	FindByID(ctx context.Context, id uuid.UUID) (model.Document, error)

	// FindByChecksum returns the document owning a version with the given checksum.
	FindByChecksum(ctx context.Context, checksum model.Checksum) (model.Document, error)

	// FindByContentRef returns the document owning a version with the given content ref.
	FindByContentRef(ctx context.Context, ref model.ContentRef) (model.Document, error)

	// FindByFilenameAndUser returns the most recent document named filename uploaded by userID.
	FindByFilenameAndUser(ctx context.Context, filename model.Filename, userID uuid.UUID) (model.Document, error)

	// ListByUser returns documents userID owns or holds an explicit grant on.
	// Listed documents carry headers only, without their version history.
	ListByUser(ctx context.Context, userID uuid.UUID, pq PageQuery) (*PageResult[model.Document], error)

	// ListAll returns every document, headers only.
	ListAll(ctx context.Context, pq PageQuery) (*PageResult[model.Document], error)

	// Search matches filename or original name, headers only.
	Search(ctx context.Context, sq SearchQuery, pq PageQuery) (*PageResult[model.Document], error)

	// Delete removes the document, its versions and its grants, and writes the audit entries.
	Delete(ctx context.Context, id uuid.UUID, audit ...model.AuditEntry) error

	// AddAudit appends a standalone audit entry.
	AddAudit(ctx context.Context, entry model.AuditEntry) error
}

// PermissionRepository persists explicit document grants.
type PermissionRepository interface {
	// Save upserts by (DocumentID, UserID) and writes the audit entries in the same transaction.
	// It returns the ID of the stored row, which differs from p.ID when a concurrent grant
	// for the same user was stored first.
	Save(ctx context.Context, p model.DocumentPermission, audit ...model.AuditEntry) (uuid.UUID, error)
	FindByID(ctx context.Context, id uuid.UUID) (model.DocumentPermission, error)
	FindByDocument(ctx context.Context, documentID uuid.UUID) ([]model.DocumentPermission, error)
	// FindByUserAndDocument returns a *model.NotFoundError when no grant exists.
	FindByUserAndDocument(ctx context.Context, userID, documentID uuid.UUID) (model.DocumentPermission, error)
	FindByUser(ctx context.Context, userID uuid.UUID) ([]model.DocumentPermission, error)
	Delete(ctx context.Context, id uuid.UUID, audit ...model.AuditEntry) error
	// HasPermission reports whether userID holds a grant of at least level on documentID.
	HasPermission(ctx context.Context, userID, documentID uuid.UUID, level model.PermissionType) (bool, error)
	DeleteByDocument(ctx context.Context, documentID uuid.UUID) error
}

// UserRepository resolves users for access decisions.
type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (model.User, error)
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}

// SearchQuery filters documents by a case-insensitive substring of their names.
// A zero AccessibleTo searches all documents.
type SearchQuery struct {
	Term         string
	AccessibleTo uuid.UUID
}
