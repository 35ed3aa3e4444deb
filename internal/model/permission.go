package model

import (
	"time"

	"github.com/google/uuid"
)

// DocumentPermission is an explicit grant of an access level on a document to a user.
// There is at most one grant per (DocumentID, UserID).
type DocumentPermission struct {
	ID         uuid.UUID      `json:"id"`
	DocumentID uuid.UUID      `json:"document_id"`
	UserID     uuid.UUID      `json:"user_id"`
	Permission PermissionType `json:"permission"`
	GrantedBy  uuid.UUID      `json:"granted_by"`
	GrantedAt  time.Time      `json:"granted_at"`
}

// User is the subset of a user account needed for access decisions.
type User struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Role  Role      `json:"role"`
}

// Audit actions recorded for document mutations.
const (
	AuditDocumentCreated     = "DOCUMENT_CREATED"
	AuditVersionAdded        = "VERSION_ADDED"
	AuditUploadInitiated     = "UPLOAD_INITIATED"
	AuditUploadConfirmed     = "UPLOAD_CONFIRMED"
	AuditDocumentPublished   = "DOCUMENT_PUBLISHED"
	AuditDocumentUnpublished = "DOCUMENT_UNPUBLISHED"
	AuditDocumentDeleted     = "DOCUMENT_DELETED"
	AuditPermissionGranted   = "PERMISSION_GRANTED"
	AuditPermissionUpdated   = "PERMISSION_UPDATED"
	AuditPermissionRevoked   = "PERMISSION_REVOKED"
)

// AuditEntry is one line of a document's audit trail.
type AuditEntry struct {
	DocumentID  uuid.UUID      `json:"document_id"`
	Action      string         `json:"action"`
	PerformedBy uuid.UUID      `json:"performed_by"`
	Details     map[string]any `json:"details,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// NewAuditEntry stamps an audit entry with the current time.
func NewAuditEntry(documentID uuid.UUID, action string, performedBy uuid.UUID, details map[string]any) AuditEntry {
	return AuditEntry{
		DocumentID:  documentID,
		Action:      action,
		PerformedBy: performedBy,
		Details:     details,
		CreatedAt:   now(),
	}
}
