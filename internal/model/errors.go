package model

import "fmt"

// Entity names used in NotFoundError.
const (
	EntityDocument   = "Document"
	EntityVersion    = "Version"
	EntityUser       = "User"
	EntityPermission = "Permission"
	EntityUpload     = "Upload"
)

// NotFoundError reports a missing entity.
type NotFoundError struct {
	EntityType string
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.EntityType, e.ID)
}

// ValidationError reports a malformed value object or request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return "validation error: " + e.Field + ": " + e.Message
	}
	return "validation error: " + e.Message
}

// DuplicateDocumentError is returned when content with the same checksum
// already exists in the document's version history.
type DuplicateDocumentError struct {
	Checksum Checksum
}

func (e *DuplicateDocumentError) Error() string {
	return fmt.Sprintf("duplicate document content: checksum %s already exists", e.Checksum)
}

// InsufficientPermissionError is returned when a user lacks the required access level.
type InsufficientPermissionError struct {
	UserID     string
	DocumentID string
	Required   PermissionType
}

func (e *InsufficientPermissionError) Error() string {
	return fmt.Sprintf("user %s lacks %s permission on document %s", e.UserID, e.Required, e.DocumentID)
}

// ForbiddenError is returned when an operation requires admin or owner rights.
type ForbiddenError struct {
	Resource string
}

func (e *ForbiddenError) Error() string {
	return "forbidden: " + e.Resource
}

// CannotRevokeOwnerPermissionError is returned when revoking a grant held by the document owner.
type CannotRevokeOwnerPermissionError struct {
	DocumentID string
}

func (e *CannotRevokeOwnerPermissionError) Error() string {
	return fmt.Sprintf("cannot revoke owner permission on document %s", e.DocumentID)
}

// ConstraintError wraps a uniqueness or integrity violation reported by the persistence layer.
// A losing concurrent writer receives it and may retry.
type ConstraintError struct {
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("constraint %s violated: %v", e.Constraint, e.Err)
	}
	return fmt.Sprintf("constraint violated: %v", e.Err)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

// ChecksumMismatchError is returned when a confirmed upload does not match the reserved checksum.
type ChecksumMismatchError struct {
	Expected Checksum
	Actual   Checksum
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected %s, got %s", e.Expected, e.Actual)
}

// InvalidStateError is returned when an operation does not apply to the current state of a version.
type InvalidStateError struct {
	Message string
}

func (e *InvalidStateError) Error() string {
	return "invalid state: " + e.Message
}
