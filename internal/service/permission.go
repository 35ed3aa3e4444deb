package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docvault/internal/access"
	"docvault/internal/logging"
	"docvault/internal/model"
	"docvault/internal/repository"
)

// GrantInput assigns Permission on DocumentID to UserID.
type GrantInput struct {
	DocumentID uuid.UUID
	UserID     uuid.UUID
	Permission string
}

// PermissionService manages explicit grants. Only admins and the document owner may manage
// a document's grants.
type PermissionService interface {
	// Grant creates the grant or replaces the level of an existing one for the same user.
	Grant(ctx context.Context, callerID uuid.UUID, in GrantInput) (model.DocumentPermission, error)
	Revoke(ctx context.Context, callerID, permissionID uuid.UUID) error
	RevokeForUser(ctx context.Context, callerID, documentID, userID uuid.UUID) error
	ListForDocument(ctx context.Context, callerID, documentID uuid.UUID) ([]model.DocumentPermission, error)
	// ListForUser returns the grants held by userID. Callers other than userID must be admins.
	ListForUser(ctx context.Context, callerID, userID uuid.UUID) ([]model.DocumentPermission, error)
	// Highest reports the strongest level the caller holds on the document.
	Highest(ctx context.Context, callerID, documentID uuid.UUID) (model.PermissionType, bool, error)
}

type permissionService struct {
	docs  repository.DocumentRepository
	perms repository.PermissionRepository
	users repository.UserRepository
	authz authorizer
	log   *zap.Logger
}

func NewPermissionService(
	docs repository.DocumentRepository,
	perms repository.PermissionRepository,
	users repository.UserRepository,
	log *zap.Logger,
) PermissionService {
	return &permissionService{
		docs:  docs,
		perms: perms,
		users: users,
		authz: authorizer{users: users, perms: perms},
		log:   log.With(zap.String("component", "permission_service")),
	}
}

func (s *permissionService) Grant(ctx context.Context, callerID uuid.UUID, in GrantInput) (model.DocumentPermission, error) {
	level, err := model.NewPermissionType(in.Permission)
	if err != nil {
		return model.DocumentPermission{}, err
	}

	caller, doc, err := s.manage(ctx, callerID, in.DocumentID)
	if err != nil {
		return model.DocumentPermission{}, err
	}

	target, err := s.users.FindByID(ctx, in.UserID)
	if err != nil {
		return model.DocumentPermission{}, err
	}
	if access.IsDocumentOwner(doc, target) {
		return model.DocumentPermission{}, &model.ValidationError{Field: "user_id", Message: "the document owner already holds every permission"}
	}

	var existing *model.DocumentPermission
	current, err := s.perms.FindByUserAndDocument(ctx, target.ID, doc.ID)
	if err == nil {
		existing = &current
	} else if !isNotFound(err) {
		return model.DocumentPermission{}, err
	}

	p, updated := access.Upsert(existing, doc, target.ID, level, caller.ID, now())

	action := model.AuditPermissionGranted
	details := map[string]any{
		"permission_id": p.ID.String(),
		"user_id":       target.ID.String(),
		"permission":    string(level),
	}
	if updated {
		action = model.AuditPermissionUpdated
		details["previous"] = string(existing.Permission)
	}
	stored, err := s.perms.Save(ctx, p, model.NewAuditEntry(doc.ID, action, caller.ID, details))
	if err != nil {
		return model.DocumentPermission{}, err
	}
	// A concurrent first grant for the same user may have claimed the row.
	p.ID = stored

	logging.WithContext(ctx, s.log).Info("permission granted",
		zap.String("document_id", doc.ID.String()),
		zap.String("user_id", target.ID.String()),
		zap.String("permission", string(level)),
		zap.Bool("updated", updated),
	)
	return p, nil
}

func (s *permissionService) Revoke(ctx context.Context, callerID, permissionID uuid.UUID) error {
	p, err := s.perms.FindByID(ctx, permissionID)
	if err != nil {
		return err
	}
	return s.revoke(ctx, callerID, p)
}

func (s *permissionService) RevokeForUser(ctx context.Context, callerID, documentID, userID uuid.UUID) error {
	doc, err := s.docs.FindByID(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.UploadedBy == userID {
		return &model.CannotRevokeOwnerPermissionError{DocumentID: doc.ID.String()}
	}
	p, err := s.perms.FindByUserAndDocument(ctx, userID, documentID)
	if err != nil {
		return err
	}
	return s.revoke(ctx, callerID, p)
}

func (s *permissionService) revoke(ctx context.Context, callerID uuid.UUID, p model.DocumentPermission) error {
	doc, err := s.docs.FindByID(ctx, p.DocumentID)
	if err != nil {
		return err
	}
	caller, err := s.users.FindByID(ctx, callerID)
	if err != nil {
		return err
	}
	if err := access.CheckRevoke(caller, doc, p); err != nil {
		return err
	}

	audit := model.NewAuditEntry(doc.ID, model.AuditPermissionRevoked, caller.ID, map[string]any{
		"permission_id": p.ID.String(),
		"user_id":       p.UserID.String(),
		"permission":    string(p.Permission),
	})
	if err := s.perms.Delete(ctx, p.ID, audit); err != nil {
		return err
	}

	logging.WithContext(ctx, s.log).Info("permission revoked",
		zap.String("document_id", doc.ID.String()),
		zap.String("user_id", p.UserID.String()),
	)
	return nil
}

func (s *permissionService) ListForDocument(ctx context.Context, callerID, documentID uuid.UUID) ([]model.DocumentPermission, error) {
	if _, _, err := s.manage(ctx, callerID, documentID); err != nil {
		return nil, err
	}
	perms, err := s.perms.FindByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if perms == nil {
		perms = []model.DocumentPermission{}
	}
	return perms, nil
}

func (s *permissionService) ListForUser(ctx context.Context, callerID, userID uuid.UUID) ([]model.DocumentPermission, error) {
	caller, err := s.users.FindByID(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if caller.ID != userID && !access.IsAdmin(caller) {
		return nil, &model.ForbiddenError{Resource: "user permissions"}
	}
	perms, err := s.perms.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if perms == nil {
		perms = []model.DocumentPermission{}
	}
	return perms, nil
}

func (s *permissionService) Highest(ctx context.Context, callerID, documentID uuid.UUID) (model.PermissionType, bool, error) {
	doc, err := s.docs.FindByID(ctx, documentID)
	if err != nil {
		return "", false, err
	}
	caller, err := s.users.FindByID(ctx, callerID)
	if err != nil {
		return "", false, err
	}
	grants, err := s.authz.grantsFor(ctx, caller.ID, doc.ID)
	if err != nil {
		return "", false, err
	}
	level, ok := access.HighestPermission(caller, doc, grants)
	return level, ok, nil
}

// manage loads the caller and the document and fails unless the caller may manage its grants.
func (s *permissionService) manage(ctx context.Context, callerID, documentID uuid.UUID) (model.User, model.Document, error) {
	doc, err := s.docs.FindByID(ctx, documentID)
	if err != nil {
		return model.User{}, model.Document{}, err
	}
	caller, err := s.users.FindByID(ctx, callerID)
	if err != nil {
		return model.User{}, model.Document{}, err
	}
	if err := access.RequireManage(caller, doc); err != nil {
		return model.User{}, model.Document{}, err
	}
	return caller, doc, nil
}

func isNotFound(err error) bool {
	var nf *model.NotFoundError
	return errors.As(err, &nf)
}
