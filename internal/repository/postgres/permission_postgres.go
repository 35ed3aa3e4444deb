package postgres

import (
	"context"
	"database/sql"
	"maps"

	"github.com/google/uuid"

	"docvault/internal/model"
	"docvault/internal/repository"
)

const permissionColumns = `id, document_id, user_id, permission, granted_by, granted_at`

// PermissionPostgres is a PostgreSQL implementation of repository.PermissionRepository.
type PermissionPostgres struct {
	db *sql.DB
}

// NewPermissionPostgres creates a new PermissionPostgres repository.
func NewPermissionPostgres(db *sql.DB) *PermissionPostgres {
	return &PermissionPostgres{db: db}
}

var _ repository.PermissionRepository = (*PermissionPostgres)(nil)

// Save upserts on (document_id, user_id), so racing grants for the same user end up as one row.
// The returned ID is the one of the row that survived the upsert.
func (r *PermissionPostgres) Save(ctx context.Context, p model.DocumentPermission, audit ...model.AuditEntry) (uuid.UUID, error) {
	const q = `
		INSERT INTO document_permissions (` + permissionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (document_id, user_id) DO UPDATE SET
			permission = EXCLUDED.permission,
			granted_by = EXCLUDED.granted_by,
			granted_at = EXCLUDED.granted_at
		RETURNING id
	`
	var stored uuid.UUID
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, q,
			p.ID,
			p.DocumentID,
			p.UserID,
			string(p.Permission),
			p.GrantedBy,
			p.GrantedAt,
		).Scan(&stored); err != nil {
			return err
		}
		return insertAudit(ctx, tx, withPermissionID(audit, p.ID, stored)...)
	})
	if err != nil {
		return uuid.Nil, mapError(err, model.EntityPermission, p.ID.String())
	}
	return stored, nil
}

// withPermissionID points audit details that name the proposed grant ID at the stored one.
func withPermissionID(entries []model.AuditEntry, proposed, stored uuid.UUID) []model.AuditEntry {
	if proposed == stored {
		return entries
	}
	out := make([]model.AuditEntry, len(entries))
	for i, e := range entries {
		if id, ok := e.Details["permission_id"].(string); ok && id == proposed.String() {
			details := maps.Clone(e.Details)
			details["permission_id"] = stored.String()
			e.Details = details
		}
		out[i] = e
	}
	return out
}

func (r *PermissionPostgres) FindByID(ctx context.Context, id uuid.UUID) (model.DocumentPermission, error) {
	const q = `SELECT ` + permissionColumns + ` FROM document_permissions WHERE id = $1`
	p, err := scanPermission(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return model.DocumentPermission{}, mapError(err, model.EntityPermission, id.String())
	}
	return p, nil
}

func (r *PermissionPostgres) FindByDocument(ctx context.Context, documentID uuid.UUID) ([]model.DocumentPermission, error) {
	const q = `
		SELECT ` + permissionColumns + `
		FROM document_permissions
		WHERE document_id = $1
		ORDER BY granted_at ASC, id ASC
	`
	return r.query(ctx, q, documentID)
}

func (r *PermissionPostgres) FindByUserAndDocument(ctx context.Context, userID, documentID uuid.UUID) (model.DocumentPermission, error) {
	const q = `
		SELECT ` + permissionColumns + `
		FROM document_permissions
		WHERE user_id = $1 AND document_id = $2
	`
	p, err := scanPermission(r.db.QueryRowContext(ctx, q, userID, documentID))
	if err != nil {
		return model.DocumentPermission{}, mapError(err, model.EntityPermission, userID.String()+"/"+documentID.String())
	}
	return p, nil
}

func (r *PermissionPostgres) FindByUser(ctx context.Context, userID uuid.UUID) ([]model.DocumentPermission, error) {
	const q = `
		SELECT ` + permissionColumns + `
		FROM document_permissions
		WHERE user_id = $1
		ORDER BY granted_at DESC, id ASC
	`
	return r.query(ctx, q, userID)
}

// Delete removes a grant by ID. Returns a *model.NotFoundError if it does not exist.
func (r *PermissionPostgres) Delete(ctx context.Context, id uuid.UUID, audit ...model.AuditEntry) error {
	const q = `DELETE FROM document_permissions WHERE id = $1`
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := execExpectOne(ctx, tx, q, id); err != nil {
			return err
		}
		return insertAudit(ctx, tx, audit...)
	})
	return mapError(err, model.EntityPermission, id.String())
}

func (r *PermissionPostgres) HasPermission(ctx context.Context, userID, documentID uuid.UUID, level model.PermissionType) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM document_permissions
			WHERE user_id = $1 AND document_id = $2
			AND CASE permission WHEN 'READ' THEN 1 WHEN 'WRITE' THEN 2 WHEN 'DELETE' THEN 3 ELSE 0 END >= $3
		)
	`
	var ok bool
	if err := r.db.QueryRowContext(ctx, q, userID, documentID, level.Level()).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (r *PermissionPostgres) DeleteByDocument(ctx context.Context, documentID uuid.UUID) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		return deletePermissionsByDocument(ctx, tx, documentID)
	})
}

func (r *PermissionPostgres) query(ctx context.Context, q string, args ...any) ([]model.DocumentPermission, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.DocumentPermission, 0)
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func deletePermissionsByDocument(ctx context.Context, tx *sql.Tx, documentID uuid.UUID) error {
	const q = `DELETE FROM document_permissions WHERE document_id = $1`
	_, err := tx.ExecContext(ctx, q, documentID)
	return err
}

func scanPermission(s scanner) (model.DocumentPermission, error) {
	var (
		p     model.DocumentPermission
		level string
	)
	if err := s.Scan(&p.ID, &p.DocumentID, &p.UserID, &level, &p.GrantedBy, &p.GrantedAt); err != nil {
		return model.DocumentPermission{}, err
	}
	p.Permission = model.PermissionType(level)
	return p, nil
}
