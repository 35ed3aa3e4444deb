package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"docvault/internal/access"
	"docvault/internal/model"
	"docvault/internal/repository"
)

var now = func() time.Time { return time.Now().UTC() }

// authorizer loads the caller and their grant on a document and applies the access rules.
type authorizer struct {
	users repository.UserRepository
	perms repository.PermissionRepository
}

// grantsFor returns the caller's explicit grant on documentID, if any, as a slice for access.*.
func (a authorizer) grantsFor(ctx context.Context, userID, documentID uuid.UUID) ([]model.DocumentPermission, error) {
	p, err := a.perms.FindByUserAndDocument(ctx, userID, documentID)
	if err != nil {
		var nf *model.NotFoundError
		if errors.As(err, &nf) {
			return nil, nil
		}
		return nil, fmt.Errorf("load grant: %w", err)
	}
	return []model.DocumentPermission{p}, nil
}

// require resolves userID and fails unless they hold level on doc.
func (a authorizer) require(ctx context.Context, userID uuid.UUID, doc model.Document, level model.PermissionType) (model.User, error) {
	user, err := a.users.FindByID(ctx, userID)
	if err != nil {
		return model.User{}, err
	}
	// Admins and owners never need the grant lookup.
	if access.EvaluateAccess(user, doc, nil, level) {
		return user, nil
	}
	grants, err := a.grantsFor(ctx, user.ID, doc.ID)
	if err != nil {
		return model.User{}, err
	}
	return user, access.RequirePermission(user, doc, grants, level)
}

func tempKey(documentID, versionID uuid.UUID) string {
	return fmt.Sprintf("uploads/%s/%s", documentID, versionID)
}

func versionKey(documentID uuid.UUID, n model.VersionNumber, filename model.Filename) string {
	return fmt.Sprintf("documents/%s/v%d/%s", documentID, n, objectName(filename))
}

// objectName keeps a filename to a single key segment.
func objectName(f model.Filename) string {
	return strings.NewReplacer("/", "_", "\\", "_").Replace(string(f))
}

// contentRef derives the opaque storage identifier from an object's ETag.
func contentRef(etag string, fallback uuid.UUID) string {
	if ref := strings.Trim(etag, `"`); ref != "" {
		return ref
	}
	return fallback.String()
}
