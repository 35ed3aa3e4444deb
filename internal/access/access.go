// Package access resolves document access for a user.
//
// Precedence, first match wins: an admin is always allowed, the document owner
// (the uploader) is always allowed, otherwise an explicit grant whose level is at
// least the required level allows. Everything else is denied. All functions are
// pure and perform no I/O; callers load the user, document and grants first.
package access

import (
	"time"

	"github.com/google/uuid"

	"docvault/internal/model"
)

// ManageResource names the resource reported by ForbiddenError for grant management.
const ManageResource = "document permissions"

// IsAdmin reports whether u has the global admin role.
func IsAdmin(u model.User) bool {
	return u.Role == model.RoleAdmin
}

// IsDocumentOwner reports whether u uploaded d.
func IsDocumentOwner(d model.Document, u model.User) bool {
	return d.UploadedBy != uuid.Nil && d.UploadedBy == u.ID
}

// EvaluateAccess reports whether u may perform an operation requiring level required on d.
// Grants for other users or other documents are ignored.
func EvaluateAccess(u model.User, d model.Document, perms []model.DocumentPermission, required model.PermissionType) bool {
	if IsAdmin(u) || IsDocumentOwner(d, u) {
		return true
	}
	for _, p := range perms {
		if p.UserID == u.ID && p.DocumentID == d.ID && p.Permission.Satisfies(required) {
			return true
		}
	}
	return false
}

// RequirePermission returns *model.InsufficientPermissionError when EvaluateAccess denies.
func RequirePermission(u model.User, d model.Document, perms []model.DocumentPermission, required model.PermissionType) error {
	if EvaluateAccess(u, d, perms, required) {
		return nil
	}
	return &model.InsufficientPermissionError{
		UserID:     u.ID.String(),
		DocumentID: d.ID.String(),
		Required:   required,
	}
}

func RequireRead(u model.User, d model.Document, perms []model.DocumentPermission) error {
	return RequirePermission(u, d, perms, model.PermissionRead)
}

func RequireWrite(u model.User, d model.Document, perms []model.DocumentPermission) error {
	return RequirePermission(u, d, perms, model.PermissionWrite)
}

func RequireDelete(u model.User, d model.Document, perms []model.DocumentPermission) error {
	return RequirePermission(u, d, perms, model.PermissionDelete)
}

// HighestPermission returns the strongest level u holds on d. Admins and the owner hold DELETE.
func HighestPermission(u model.User, d model.Document, perms []model.DocumentPermission) (model.PermissionType, bool) {
	if IsAdmin(u) || IsDocumentOwner(d, u) {
		return model.PermissionDelete, true
	}
	var (
		best  model.PermissionType
		found bool
	)
	for _, p := range perms {
		if p.UserID != u.ID || p.DocumentID != d.ID || p.Permission.Level() == 0 {
			continue
		}
		if !found || p.Permission.Level() > best.Level() {
			best, found = p.Permission, true
		}
	}
	return best, found
}

// RequireManage guards grant, update, revoke and listing of a document's permissions.
func RequireManage(u model.User, d model.Document) error {
	if IsAdmin(u) || IsDocumentOwner(d, u) {
		return nil
	}
	return &model.ForbiddenError{Resource: ManageResource}
}

// CheckRevoke validates revoking target. A grant held by the owner can never be revoked,
// whoever asks; the check runs before authorization.
func CheckRevoke(u model.User, d model.Document, target model.DocumentPermission) error {
	if target.UserID == d.UploadedBy {
		return &model.CannotRevokeOwnerPermissionError{DocumentID: d.ID.String()}
	}
	return RequireManage(u, d)
}

// Upsert computes the grant record for (userID, d). An existing record keeps its id and
// takes the new level, granter and grant time; otherwise a new record is created.
// The second result reports whether an existing record was updated.
func Upsert(existing *model.DocumentPermission, d model.Document, userID uuid.UUID, level model.PermissionType, grantedBy uuid.UUID, grantedAt time.Time) (model.DocumentPermission, bool) {
	if existing != nil {
		p := *existing
		p.Permission = level
		p.GrantedBy = grantedBy
		p.GrantedAt = grantedAt
		return p, true
	}
	return model.DocumentPermission{
		ID:         uuid.New(),
		DocumentID: d.ID,
		UserID:     userID,
		Permission: level,
		GrantedBy:  grantedBy,
		GrantedAt:  grantedAt,
	}, false
}
