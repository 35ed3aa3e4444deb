package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"docvault/internal/model"
	"docvault/internal/repository"
)

const documentColumns = `d.id, d.filename, d.original_name, d.mime_type, d.size, d.status, d.uploaded_by, d.created_at, d.updated_at`

const versionColumns = `id, document_id, filename, original_name, mime_type, size, path, content_ref, checksum, version_number, uploaded_by, created_at`

// accessibleTo restricts d to documents the user in the given placeholder owns or holds a grant on.
const accessibleTo = `(d.uploaded_by = $%[1]d OR EXISTS (
		SELECT 1 FROM document_permissions p WHERE p.document_id = d.id AND p.user_id = $%[1]d
	))`

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

// Save upserts the header and every version in one transaction together with the audit entries.
// A concurrent writer that already stored the same version number or checksum surfaces as a
// *model.ConstraintError.
func (r *DocumentPostgres) Save(ctx context.Context, doc model.Document, audit ...model.AuditEntry) error {
	const qDoc = `
		INSERT INTO documents (id, filename, original_name, mime_type, size, status, uploaded_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			filename = EXCLUDED.filename,
			original_name = EXCLUDED.original_name,
			mime_type = EXCLUDED.mime_type,
			size = EXCLUDED.size,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`
	const qVersion = `
		INSERT INTO document_versions (` + versionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			path = EXCLUDED.path,
			content_ref = EXCLUDED.content_ref,
			checksum = EXCLUDED.checksum
	`
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, qDoc,
			doc.ID,
			string(doc.Filename),
			doc.OriginalName,
			string(doc.MimeType),
			int64(doc.Size),
			string(doc.Status),
			doc.UploadedBy,
			doc.CreatedAt,
			doc.UpdatedAt,
		); err != nil {
			return err
		}
		for _, v := range doc.Versions() {
			if _, err := tx.ExecContext(ctx, qVersion,
				v.ID,
				v.DocumentID,
				string(v.Filename),
				v.OriginalName,
				string(v.MimeType),
				int64(v.Size),
				nullString(v.Path),
				nullString(string(v.ContentRef)),
				nullString(string(v.Checksum)),
				int(v.VersionNumber),
				v.UploadedBy,
				v.CreatedAt,
			); err != nil {
				return err
			}
		}
		return insertAudit(ctx, tx, audit...)
	})
	return mapError(err, model.EntityDocument, doc.ID.String())
}

// FindByID fetches the document header and its full version history.
func (r *DocumentPostgres) FindByID(ctx context.Context, id uuid.UUID) (model.Document, error) {
	const q = `SELECT ` + documentColumns + ` FROM documents d WHERE d.id = $1`
	doc, err := scanDocument(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return model.Document{}, mapError(err, model.EntityDocument, id.String())
	}

	versions, err := r.findVersions(ctx, id)
	if err != nil {
		return model.Document{}, err
	}
	return model.RestoreDocument(doc, versions), nil
}

// FindByChecksum returns the oldest document holding a version with the given checksum.
func (r *DocumentPostgres) FindByChecksum(ctx context.Context, checksum model.Checksum) (model.Document, error) {
	const q = `
		SELECT document_id FROM document_versions
		WHERE checksum = $1
		ORDER BY created_at ASC
		LIMIT 1
	`
	return r.findOwner(ctx, q, string(checksum))
}

// FindByContentRef returns the document holding a version with the given content ref.
func (r *DocumentPostgres) FindByContentRef(ctx context.Context, ref model.ContentRef) (model.Document, error) {
	const q = `
		SELECT document_id FROM document_versions
		WHERE content_ref = $1
		ORDER BY created_at ASC
		LIMIT 1
	`
	return r.findOwner(ctx, q, string(ref))
}

// FindByFilenameAndUser returns the most recently created document named filename uploaded by userID.
func (r *DocumentPostgres) FindByFilenameAndUser(ctx context.Context, filename model.Filename, userID uuid.UUID) (model.Document, error) {
	const q = `
		SELECT id FROM documents
		WHERE filename = $1 AND uploaded_by = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	var id uuid.UUID
	if err := r.db.QueryRowContext(ctx, q, string(filename), userID).Scan(&id); err != nil {
		return model.Document{}, mapError(err, model.EntityDocument, string(filename))
	}
	return r.FindByID(ctx, id)
}

// ListByUser returns headers of documents owned by or granted to userID.
func (r *DocumentPostgres) ListByUser(ctx context.Context, userID uuid.UUID, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	where := ` WHERE ` + fmt.Sprintf(accessibleTo, 1)
	return r.list(ctx, where, []any{userID}, pq)
}

// ListAll returns every document header using LIMIT/OFFSET pagination and a total count.
func (r *DocumentPostgres) ListAll(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	return r.list(ctx, "", nil, pq)
}

// Search matches the term case-insensitively against filename and original name.
func (r *DocumentPostgres) Search(ctx context.Context, sq repository.SearchQuery, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	where := ` WHERE (d.filename ILIKE $1 OR d.original_name ILIKE $1)`
	args := []any{likePattern(sq.Term)}
	if sq.AccessibleTo != uuid.Nil {
		where += ` AND ` + fmt.Sprintf(accessibleTo, 2)
		args = append(args, sq.AccessibleTo)
	}
	return r.list(ctx, where, args, pq)
}

// Delete removes the document and its grants; versions go with the document by cascade.
func (r *DocumentPostgres) Delete(ctx context.Context, id uuid.UUID, audit ...model.AuditEntry) error {
	const q = `DELETE FROM documents WHERE id = $1`
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := deletePermissionsByDocument(ctx, tx, id); err != nil {
			return err
		}
		if err := execExpectOne(ctx, tx, q, id); err != nil {
			return err
		}
		return insertAudit(ctx, tx, audit...)
	})
	return mapError(err, model.EntityDocument, id.String())
}

// AddAudit appends a single audit entry outside of any aggregate write.
func (r *DocumentPostgres) AddAudit(ctx context.Context, entry model.AuditEntry) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		return insertAudit(ctx, tx, entry)
	})
}

func (r *DocumentPostgres) findOwner(ctx context.Context, q string, key string) (model.Document, error) {
	var id uuid.UUID
	if err := r.db.QueryRowContext(ctx, q, key).Scan(&id); err != nil {
		return model.Document{}, mapError(err, model.EntityDocument, key)
	}
	return r.FindByID(ctx, id)
}

func (r *DocumentPostgres) findVersions(ctx context.Context, documentID uuid.UUID) ([]model.DocumentVersion, error) {
	const q = `
		SELECT ` + versionColumns + `
		FROM document_versions
		WHERE document_id = $1
		ORDER BY version_number ASC
	`
	rows, err := r.db.QueryContext(ctx, q, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	versions := make([]model.DocumentVersion, 0)
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return versions, nil
}

func (r *DocumentPostgres) list(ctx context.Context, where string, args []any, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	// Count total rows
	qCount := `SELECT COUNT(*) FROM documents d` + where
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, args...).Scan(&total); err != nil {
		return nil, err
	}

	// Fetch page
	qList := `SELECT ` + documentColumns + ` FROM documents d` + where +
		fmt.Sprintf(` ORDER BY d.created_at DESC, d.id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, qList, append(args, pq.Limit, pq.Offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Document]{
		Items: items,
		Total: total,
	}, nil
}

func scanDocument(s scanner) (model.Document, error) {
	var (
		d                          model.Document
		filename, mimeType, status string
		size                       int64
	)
	if err := s.Scan(
		&d.ID,
		&filename,
		&d.OriginalName,
		&mimeType,
		&size,
		&status,
		&d.UploadedBy,
		&d.CreatedAt,
		&d.UpdatedAt,
	); err != nil {
		return model.Document{}, err
	}
	d.Filename = model.Filename(filename)
	d.MimeType = model.MimeType(mimeType)
	d.Size = model.FileSize(size)
	d.Status = model.DocumentStatus(status)
	return d, nil
}

func scanVersion(s scanner) (model.DocumentVersion, error) {
	var (
		v                          model.DocumentVersion
		filename, mimeType         string
		size                       int64
		path, contentRef, checksum sql.NullString
		number                     int
	)
	if err := s.Scan(
		&v.ID,
		&v.DocumentID,
		&filename,
		&v.OriginalName,
		&mimeType,
		&size,
		&path,
		&contentRef,
		&checksum,
		&number,
		&v.UploadedBy,
		&v.CreatedAt,
	); err != nil {
		return model.DocumentVersion{}, err
	}
	v.Filename = model.Filename(filename)
	v.MimeType = model.MimeType(mimeType)
	v.Size = model.FileSize(size)
	v.Path = path.String
	v.ContentRef = model.ContentRef(contentRef.String)
	v.Checksum = model.Checksum(checksum.String)
	v.VersionNumber = model.VersionNumber(number)
	return v, nil
}
