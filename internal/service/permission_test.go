package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"docvault/internal/model"
	repoMocks "docvault/internal/repository/mocks"
)

func TestPermissionService_Grant(t *testing.T) {
	ctx := context.Background()
	owner, member, admin, stranger := newUser(model.RoleUser), newUser(model.RoleUser), newUser(model.RoleAdmin), newUser(model.RoleUser)

	tests := []struct {
		name      string
		caller    model.User
		target    uuid.UUID
		level     string
		wantErrAs any
	}{
		{name: "owner grants", caller: owner, target: member.ID, level: "READ"},
		{name: "admin grants", caller: admin, target: member.ID, level: "DELETE"},
		{name: "stranger is forbidden", caller: stranger, target: member.ID, level: "READ", wantErrAs: new(*model.ForbiddenError)},
		{name: "unknown level", caller: owner, target: member.ID, level: "ADMIN", wantErrAs: new(*model.ValidationError)},
		{name: "unknown target", caller: owner, target: uuid.New(), level: "READ", wantErrAs: new(*model.NotFoundError)},
		{name: "owner target is rejected", caller: admin, target: owner.ID, level: "READ", wantErrAs: new(*model.ValidationError)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(owner, member, admin, stranger)
			doc, _ := h.upload(t, owner.ID, uuid.Nil, "notes.txt", "hello")

			p, err := h.perms.Grant(ctx, tt.caller.ID, GrantInput{DocumentID: doc.ID, UserID: tt.target, Permission: tt.level})

			if tt.wantErrAs != nil {
				assert.ErrorAs(t, err, tt.wantErrAs)
				assert.NotContains(t, h.db.actions(doc.ID), model.AuditPermissionGranted)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.target, p.UserID)
			assert.Equal(t, model.PermissionType(tt.level), p.Permission)
			assert.Equal(t, tt.caller.ID, p.GrantedBy)
			assert.Contains(t, h.db.actions(doc.ID), model.AuditPermissionGranted)
		})
	}
}

func TestPermissionService_Regrant(t *testing.T) {
	ctx := context.Background()
	owner, member, admin := newUser(model.RoleUser), newUser(model.RoleUser), newUser(model.RoleAdmin)
	h := newHarness(owner, member, admin)
	doc, _ := h.upload(t, owner.ID, uuid.Nil, "notes.txt", "hello")

	restore := now
	t.Cleanup(func() { now = restore })
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now = func() time.Time { return first }

	original, err := h.perms.Grant(ctx, owner.ID, GrantInput{DocumentID: doc.ID, UserID: member.ID, Permission: "READ"})
	require.NoError(t, err)

	now = func() time.Time { return first.Add(time.Hour) }
	updated, err := h.perms.Grant(ctx, admin.ID, GrantInput{DocumentID: doc.ID, UserID: member.ID, Permission: "WRITE"})
	require.NoError(t, err)

	assert.Equal(t, original.ID, updated.ID)
	assert.Equal(t, model.PermissionWrite, updated.Permission)
	assert.Equal(t, admin.ID, updated.GrantedBy)
	assert.Equal(t, first.Add(time.Hour), updated.GrantedAt)

	grants, err := h.perms.ListForDocument(ctx, owner.ID, doc.ID)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, updated, grants[0])
	assert.Contains(t, h.db.actions(doc.ID), model.AuditPermissionUpdated)
}

func TestPermissionService_Revoke(t *testing.T) {
	ctx := context.Background()
	owner, member, admin, stranger := newUser(model.RoleUser), newUser(model.RoleUser), newUser(model.RoleAdmin), newUser(model.RoleUser)

	t.Run("owner revokes", func(t *testing.T) {
		h := newHarness(owner, member)
		doc, _ := h.upload(t, owner.ID, uuid.Nil, "notes.txt", "hello")
		p, err := h.perms.Grant(ctx, owner.ID, GrantInput{DocumentID: doc.ID, UserID: member.ID, Permission: "READ"})
		require.NoError(t, err)

		require.NoError(t, h.perms.Revoke(ctx, owner.ID, p.ID))

		_, err = h.docs.Get(ctx, member.ID, doc.ID)
		assert.ErrorAs(t, err, new(*model.InsufficientPermissionError))
		assert.Contains(t, h.db.actions(doc.ID), model.AuditPermissionRevoked)
	})

	t.Run("stranger is forbidden", func(t *testing.T) {
		h := newHarness(owner, member, stranger)
		doc, _ := h.upload(t, owner.ID, uuid.Nil, "notes.txt", "hello")
		_, err := h.perms.Grant(ctx, owner.ID, GrantInput{DocumentID: doc.ID, UserID: member.ID, Permission: "READ"})
		require.NoError(t, err)

		err = h.perms.RevokeForUser(ctx, stranger.ID, doc.ID, member.ID)
		assert.ErrorAs(t, err, new(*model.ForbiddenError))
	})

	t.Run("owner grant can never be revoked", func(t *testing.T) {
		for _, caller := range []model.User{owner, admin, stranger} {
			h := newHarness(owner, admin, stranger)
			doc, _ := h.upload(t, owner.ID, uuid.Nil, "notes.txt", "hello")
			// Only reachable through data written outside the service.
			ownerGrant := model.DocumentPermission{
				ID: uuid.New(), DocumentID: doc.ID, UserID: owner.ID, Permission: model.PermissionDelete, GrantedBy: owner.ID,
			}
			h.db.perms[ownerGrant.ID] = ownerGrant

			assert.ErrorAs(t, h.perms.Revoke(ctx, caller.ID, ownerGrant.ID), new(*model.CannotRevokeOwnerPermissionError))
			assert.ErrorAs(t, h.perms.RevokeForUser(ctx, caller.ID, doc.ID, owner.ID), new(*model.CannotRevokeOwnerPermissionError))
		}
	})

	t.Run("missing grant", func(t *testing.T) {
		h := newHarness(owner)
		assert.ErrorAs(t, h.perms.Revoke(ctx, owner.ID, uuid.New()), new(*model.NotFoundError))
	})
}

func TestPermissionService_ListForUser(t *testing.T) {
	ctx := context.Background()
	owner, member, admin := newUser(model.RoleUser), newUser(model.RoleUser), newUser(model.RoleAdmin)
	h := newHarness(owner, member, admin)
	doc, _ := h.upload(t, owner.ID, uuid.Nil, "notes.txt", "hello")
	_, err := h.perms.Grant(ctx, owner.ID, GrantInput{DocumentID: doc.ID, UserID: member.ID, Permission: "READ"})
	require.NoError(t, err)

	own, err := h.perms.ListForUser(ctx, member.ID, member.ID)
	require.NoError(t, err)
	assert.Len(t, own, 1)

	viaAdmin, err := h.perms.ListForUser(ctx, admin.ID, member.ID)
	require.NoError(t, err)
	assert.Equal(t, own, viaAdmin)

	_, err = h.perms.ListForUser(ctx, owner.ID, member.ID)
	assert.ErrorAs(t, err, new(*model.ForbiddenError))

	_, err = h.perms.ListForDocument(ctx, member.ID, doc.ID)
	assert.ErrorAs(t, err, new(*model.ForbiddenError))
}

func TestPermissionService_Highest(t *testing.T) {
	ctx := context.Background()
	owner, member, admin, stranger := newUser(model.RoleUser), newUser(model.RoleUser), newUser(model.RoleAdmin), newUser(model.RoleUser)
	h := newHarness(owner, member, admin, stranger)
	doc, _ := h.upload(t, owner.ID, uuid.Nil, "notes.txt", "hello")
	_, err := h.perms.Grant(ctx, owner.ID, GrantInput{DocumentID: doc.ID, UserID: member.ID, Permission: "WRITE"})
	require.NoError(t, err)

	tests := []struct {
		caller model.User
		want   model.PermissionType
		ok     bool
	}{
		{owner, model.PermissionDelete, true},
		{admin, model.PermissionDelete, true},
		{member, model.PermissionWrite, true},
		{stranger, "", false},
	}
	for _, tt := range tests {
		level, ok, err := h.perms.Highest(ctx, tt.caller.ID, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, tt.ok, ok)
		assert.Equal(t, tt.want, level)
	}
}

func TestPermissionService_SaveErrorIsReturned(t *testing.T) {
	ctx := context.Background()
	owner, member := newUser(model.RoleUser), newUser(model.RoleUser)
	doc, _ := confirmedDocument(t, owner.ID)

	docs := new(repoMocks.MockDocumentRepository)
	perms := new(repoMocks.MockPermissionRepository)
	users := new(repoMocks.MockUserRepository)
	docs.On("FindByID", ctx, doc.ID).Return(doc, nil)
	users.On("FindByID", ctx, owner.ID).Return(owner, nil)
	users.On("FindByID", ctx, member.ID).Return(member, nil)
	perms.On("FindByUserAndDocument", ctx, member.ID, doc.ID).
		Return(model.DocumentPermission{}, &model.NotFoundError{EntityType: model.EntityPermission})
	conflict := &model.ConstraintError{Constraint: "uq_document_permissions_document_user", Err: errors.New("duplicate key")}
	perms.On("Save", ctx, mock.Anything, mock.Anything).Return(uuid.Nil, conflict)

	svc := NewPermissionService(docs, perms, users, zap.NewNop())
	_, err := svc.Grant(ctx, owner.ID, GrantInput{DocumentID: doc.ID, UserID: member.ID, Permission: "READ"})

	var ce *model.ConstraintError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "uq_document_permissions_document_user", ce.Constraint)
	docs.AssertExpectations(t)
	perms.AssertExpectations(t)
	users.AssertExpectations(t)
}

func TestPermissionService_GrantReturnsStoredID(t *testing.T) {
	ctx := context.Background()
	owner, member := newUser(model.RoleUser), newUser(model.RoleUser)
	doc, _ := confirmedDocument(t, owner.ID)
	winner := uuid.New()

	docs := new(repoMocks.MockDocumentRepository)
	perms := new(repoMocks.MockPermissionRepository)
	users := new(repoMocks.MockUserRepository)
	docs.On("FindByID", ctx, doc.ID).Return(doc, nil)
	users.On("FindByID", ctx, owner.ID).Return(owner, nil)
	users.On("FindByID", ctx, member.ID).Return(member, nil)
	perms.On("FindByUserAndDocument", ctx, member.ID, doc.ID).
		Return(model.DocumentPermission{}, &model.NotFoundError{EntityType: model.EntityPermission})
	// Another first-time grant for member was stored between the lookup and the upsert.
	perms.On("Save", ctx, mock.MatchedBy(func(p model.DocumentPermission) bool {
		return p.ID != winner && p.UserID == member.ID
	}), mock.Anything).Return(winner, nil)

	svc := NewPermissionService(docs, perms, users, zap.NewNop())
	p, err := svc.Grant(ctx, owner.ID, GrantInput{DocumentID: doc.ID, UserID: member.ID, Permission: "WRITE"})

	require.NoError(t, err)
	assert.Equal(t, winner, p.ID)
	assert.Equal(t, model.PermissionWrite, p.Permission)
	perms.AssertExpectations(t)
}
