package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"docvault/internal/access"
	"docvault/internal/config"
	"docvault/internal/logging"
	"docvault/internal/model"
	"docvault/internal/repository"
	"docvault/internal/storage"
)

var ErrReaderNil = errors.New("reader is nil")

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
	// blobCleanupConcurrency bounds parallel object deletes after a document is removed.
	blobCleanupConcurrency = 4
)

// DocumentListResult is the service-level DTO for paginated documents.
type DocumentListResult struct {
	Items  []model.Document `json:"data"`
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// UploadInput describes a one-shot upload. A zero DocumentID creates a new document,
// otherwise the content becomes the next version of that document.
type UploadInput struct {
	DocumentID uuid.UUID
	Filename   string
	MimeType   string
	Size       int64
	Reader     io.Reader
}

// InitiateUploadInput describes the first phase of a two-phase upload.
type InitiateUploadInput struct {
	DocumentID uuid.UUID
	Filename   string
	MimeType   string
	Size       int64
	Checksum   string
}

// UploadTicket tells the client where to PUT the bytes of a pending version.
// Existing is set when identical content was already known; UploadURL is then only present
// if that version is still pending.
type UploadTicket struct {
	Document  model.Document        `json:"document"`
	Version   model.DocumentVersion `json:"version"`
	UploadURL string                `json:"upload_url,omitempty"`
	ExpiresAt *time.Time            `json:"expires_at,omitempty"`
	Existing  bool                  `json:"existing"`
}

// ConfirmUploadInput completes a two-phase upload.
type ConfirmUploadInput struct {
	DocumentID uuid.UUID
	VersionID  uuid.UUID
	Checksum   string
}

// DownloadLink is a time-limited URL for one confirmed version.
type DownloadLink struct {
	URL       string                `json:"url"`
	ExpiresAt time.Time             `json:"expires_at"`
	Version   model.DocumentVersion `json:"version"`
}

// DocumentService defines the document use cases. Every operation acts on behalf of userID
// and enforces the access rules of package access.
type DocumentService interface {
	// Upload streams the content to a temporary object while hashing it, appends the version
	// (rejecting content the document already holds), moves the object to its final key and
	// saves. Storage is rolled back if the save fails.
	Upload(ctx context.Context, userID uuid.UUID, in UploadInput) (model.Document, model.DocumentVersion, error)

	// InitiateUpload registers a pending version and returns a pre-signed PUT URL for its bytes.
	InitiateUpload(ctx context.Context, userID uuid.UUID, in InitiateUploadInput) (*UploadTicket, error)

	// ConfirmUpload moves the uploaded bytes into place and records the version's location.
	ConfirmUpload(ctx context.Context, userID uuid.UUID, in ConfirmUploadInput) (model.Document, model.DocumentVersion, error)

	// List returns the documents userID may read, headers only.
	List(ctx context.Context, userID uuid.UUID, limit, offset int) (*DocumentListResult, error)

	// Search filters List by a case-insensitive substring of the file name.
	Search(ctx context.Context, userID uuid.UUID, term string, limit, offset int) (*DocumentListResult, error)

	Get(ctx context.Context, userID, id uuid.UUID) (model.Document, error)

	// FindByFilename returns the caller's most recent document with the given name.
	FindByFilename(ctx context.Context, userID uuid.UUID, filename string) (model.Document, error)

	ListVersions(ctx context.Context, userID, id uuid.UUID) ([]model.DocumentVersion, error)
	GetVersion(ctx context.Context, userID, id, versionID uuid.UUID) (model.DocumentVersion, error)

	// DownloadURL presigns a GET for versionID, or for the latest confirmed version when it is uuid.Nil.
	DownloadURL(ctx context.Context, userID, id, versionID uuid.UUID) (*DownloadLink, error)

	Publish(ctx context.Context, userID, id uuid.UUID) (model.Document, error)
	Unpublish(ctx context.Context, userID, id uuid.UUID) (model.Document, error)

	// Delete removes the document, its versions and grants, then deletes its objects best-effort.
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	store storage.Storage
	docs  repository.DocumentRepository
	users repository.UserRepository
	authz authorizer
	cfg   config.UploadConfig
	log   *zap.Logger
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(
	store storage.Storage,
	docs repository.DocumentRepository,
	perms repository.PermissionRepository,
	users repository.UserRepository,
	cfg config.UploadConfig,
	log *zap.Logger,
) DocumentService {
	return &documentService{
		store: store,
		docs:  docs,
		users: users,
		authz: authorizer{users: users, perms: perms},
		cfg:   cfg,
		log:   log.With(zap.String("component", "document_service")),
	}
}

func (s *documentService) Upload(ctx context.Context, userID uuid.UUID, in UploadInput) (model.Document, model.DocumentVersion, error) {
	if in.Reader == nil {
		return model.Document{}, model.DocumentVersion{}, ErrReaderNil
	}
	log := logging.WithContext(ctx, s.log)

	doc, audit, err := s.targetDocument(ctx, userID, in.DocumentID, model.DocumentProps{
		Filename:   in.Filename,
		MimeType:   in.MimeType,
		Size:       in.Size,
		UploadedBy: userID,
	})
	if err != nil {
		return model.Document{}, model.DocumentVersion{}, err
	}
	// Reject invalid metadata before any bytes are transferred.
	if _, _, err := doc.AddVersion(model.VersionProps{
		Filename: in.Filename, MimeType: in.MimeType, Size: in.Size, UploadedBy: userID,
	}); err != nil {
		return model.Document{}, model.DocumentVersion{}, err
	}

	staging := tempKey(doc.ID, uuid.New())
	hash := sha256.New()
	objInfo, err := s.store.Put(ctx, staging, io.TeeReader(in.Reader, hash), storage.PutObjectOptions{
		Size:        in.Size,
		ContentType: in.MimeType,
		Metadata: map[string]string{
			"original-filename": in.Filename,
		},
	})
	if err != nil {
		return model.Document{}, model.DocumentVersion{}, fmt.Errorf("upload to storage: %w", err)
	}
	checksum := hex.EncodeToString(hash.Sum(nil))

	discard := func(key string) {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			log.Warn("discard object failed", zap.String("key", key), zap.Error(delErr))
		}
	}

	if objInfo.Size > 0 && objInfo.Size != in.Size {
		discard(staging)
		return model.Document{}, model.DocumentVersion{}, &model.ValidationError{
			Field:   "size",
			Message: fmt.Sprintf("declared %d bytes but received %d", in.Size, objInfo.Size),
		}
	}

	doc, version, err := doc.AddVersion(model.VersionProps{
		Filename:   in.Filename,
		MimeType:   in.MimeType,
		Size:       in.Size,
		Checksum:   checksum,
		UploadedBy: userID,
	})
	if err != nil {
		discard(staging)
		return model.Document{}, model.DocumentVersion{}, err
	}

	final := versionKey(doc.ID, version.VersionNumber, version.Filename)
	moved, err := s.store.Move(ctx, staging, final)
	if err != nil {
		discard(staging)
		return model.Document{}, model.DocumentVersion{}, fmt.Errorf("move to storage: %w", err)
	}

	doc, version, err = doc.ConfirmVersion(version.ID, model.ConfirmProps{
		Path:       final,
		ContentRef: contentRef(moved.ETag, version.ID),
	})
	if err != nil {
		discard(final)
		return model.Document{}, model.DocumentVersion{}, err
	}

	audit = append(audit, model.NewAuditEntry(doc.ID, model.AuditVersionAdded, userID, map[string]any{
		"version_id":     version.ID.String(),
		"version_number": int(version.VersionNumber),
		"checksum":       checksum,
		"size":           int64(version.Size),
	}))
	if err := s.docs.Save(ctx, doc, audit...); err != nil {
		// Rollback: delete the object from storage
		if delErr := s.store.Delete(ctx, final); delErr != nil {
			return model.Document{}, model.DocumentVersion{}, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
		}
		return model.Document{}, model.DocumentVersion{}, fmt.Errorf("db save failed: %w", err)
	}

	log.Info("version uploaded",
		zap.String("document_id", doc.ID.String()),
		zap.String("version_id", version.ID.String()),
		zap.Int("version_number", int(version.VersionNumber)),
		zap.String("user_id", userID.String()),
	)
	return doc, version, nil
}

func (s *documentService) InitiateUpload(ctx context.Context, userID uuid.UUID, in InitiateUploadInput) (*UploadTicket, error) {
	checksum, err := model.NewChecksum(in.Checksum)
	if err != nil {
		return nil, err
	}
	log := logging.WithContext(ctx, s.log)

	// Known content offered as a new document resolves to the copy the caller can already read.
	if in.DocumentID == uuid.Nil {
		ticket, err := s.existingUpload(ctx, userID, checksum)
		if err != nil || ticket != nil {
			return ticket, err
		}
	}

	doc, audit, err := s.targetDocument(ctx, userID, in.DocumentID, model.DocumentProps{
		Filename:   in.Filename,
		MimeType:   in.MimeType,
		Size:       in.Size,
		UploadedBy: userID,
		Status:     model.StatusDraft,
	})
	if err != nil {
		return nil, err
	}

	doc, version, err := doc.AddVersion(model.VersionProps{
		Filename:   in.Filename,
		MimeType:   in.MimeType,
		Size:       in.Size,
		Checksum:   string(checksum),
		UploadedBy: userID,
	})
	if err != nil {
		return nil, err
	}

	audit = append(audit, model.NewAuditEntry(doc.ID, model.AuditUploadInitiated, userID, map[string]any{
		"version_id":     version.ID.String(),
		"version_number": int(version.VersionNumber),
		"checksum":       string(checksum),
	}))
	if err := s.docs.Save(ctx, doc, audit...); err != nil {
		return nil, err
	}

	ticket := &UploadTicket{Document: doc, Version: version}
	if err := s.presignUpload(ctx, ticket); err != nil {
		return nil, err
	}

	log.Info("upload initiated",
		zap.String("document_id", doc.ID.String()),
		zap.String("version_id", version.ID.String()),
		zap.String("user_id", userID.String()),
	)
	return ticket, nil
}

// existingUpload returns a ticket for content already stored under a document userID can read,
// or nil when there is none.
func (s *documentService) existingUpload(ctx context.Context, userID uuid.UUID, checksum model.Checksum) (*UploadTicket, error) {
	doc, err := s.docs.FindByChecksum(ctx, checksum)
	if err != nil {
		var nf *model.NotFoundError
		if errors.As(err, &nf) {
			return nil, nil
		}
		return nil, err
	}

	if _, err := s.authz.require(ctx, userID, doc, model.PermissionRead); err != nil {
		var denied *model.InsufficientPermissionError
		if errors.As(err, &denied) {
			return nil, nil
		}
		return nil, err
	}

	for _, v := range doc.Versions() {
		if v.Checksum != checksum {
			continue
		}
		ticket := &UploadTicket{Document: doc, Version: v, Existing: true}
		if !v.Confirmed() {
			if err := s.presignUpload(ctx, ticket); err != nil {
				return nil, err
			}
		}
		return ticket, nil
	}
	return nil, nil
}

func (s *documentService) presignUpload(ctx context.Context, ticket *UploadTicket) error {
	url, err := s.store.PresignPut(ctx, tempKey(ticket.Document.ID, ticket.Version.ID), s.cfg.PresignPutTTL)
	if err != nil {
		return fmt.Errorf("presign upload: %w", err)
	}
	expires := now().Add(s.cfg.PresignPutTTL)
	ticket.UploadURL = url
	ticket.ExpiresAt = &expires
	return nil
}

func (s *documentService) ConfirmUpload(ctx context.Context, userID uuid.UUID, in ConfirmUploadInput) (model.Document, model.DocumentVersion, error) {
	checksum, err := model.NewChecksum(in.Checksum)
	if err != nil {
		return model.Document{}, model.DocumentVersion{}, err
	}
	log := logging.WithContext(ctx, s.log)

	doc, err := s.docs.FindByID(ctx, in.DocumentID)
	if err != nil {
		return model.Document{}, model.DocumentVersion{}, err
	}
	if _, err := s.authz.require(ctx, userID, doc, model.PermissionWrite); err != nil {
		return model.Document{}, model.DocumentVersion{}, err
	}

	version, ok := doc.Version(in.VersionID)
	if !ok {
		return model.Document{}, model.DocumentVersion{}, &model.NotFoundError{EntityType: model.EntityVersion, ID: in.VersionID.String()}
	}
	if !version.Checksum.IsZero() && version.Checksum != checksum {
		return model.Document{}, model.DocumentVersion{}, &model.ChecksumMismatchError{Expected: version.Checksum, Actual: checksum}
	}
	if version.Confirmed() {
		return doc, version, nil
	}

	staging := tempKey(doc.ID, version.ID)
	exists, err := s.store.Exists(ctx, staging)
	if err != nil {
		return model.Document{}, model.DocumentVersion{}, fmt.Errorf("check upload: %w", err)
	}
	if !exists {
		return model.Document{}, model.DocumentVersion{}, &model.InvalidStateError{Message: "no uploaded content found for version " + version.ID.String()}
	}

	final := versionKey(doc.ID, version.VersionNumber, version.Filename)
	moved, err := s.store.Move(ctx, staging, final)
	if err != nil {
		return model.Document{}, model.DocumentVersion{}, fmt.Errorf("move to storage: %w", err)
	}

	doc, version, err = doc.ConfirmVersion(version.ID, model.ConfirmProps{
		Path:       final,
		ContentRef: contentRef(moved.ETag, version.ID),
		Checksum:   string(checksum),
	})
	if err != nil {
		s.restoreStaging(ctx, log, final, staging)
		return model.Document{}, model.DocumentVersion{}, err
	}

	audit := model.NewAuditEntry(doc.ID, model.AuditUploadConfirmed, userID, map[string]any{
		"version_id":     version.ID.String(),
		"version_number": int(version.VersionNumber),
		"path":           final,
	})
	if err := s.docs.Save(ctx, doc, audit); err != nil {
		s.restoreStaging(ctx, log, final, staging)
		return model.Document{}, model.DocumentVersion{}, fmt.Errorf("db save failed: %w", err)
	}

	log.Info("upload confirmed",
		zap.String("document_id", doc.ID.String()),
		zap.String("version_id", version.ID.String()),
		zap.String("user_id", userID.String()),
	)
	return doc, version, nil
}

// restoreStaging moves a confirmed object back so the client can retry the confirmation.
func (s *documentService) restoreStaging(ctx context.Context, log *zap.Logger, final, staging string) {
	if _, err := s.store.Move(ctx, final, staging); err != nil {
		log.Warn("restore staged upload failed", zap.String("key", final), zap.Error(err))
	}
}

// targetDocument loads id for a new version (WRITE required) or, for a zero id, builds a new
// document owned by userID together with its creation audit entry.
func (s *documentService) targetDocument(ctx context.Context, userID, id uuid.UUID, props model.DocumentProps) (model.Document, []model.AuditEntry, error) {
	if id != uuid.Nil {
		doc, err := s.docs.FindByID(ctx, id)
		if err != nil {
			return model.Document{}, nil, err
		}
		if _, err := s.authz.require(ctx, userID, doc, model.PermissionWrite); err != nil {
			return model.Document{}, nil, err
		}
		return doc, nil, nil
	}

	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return model.Document{}, nil, err
	}
	doc, err := model.NewDocument(props)
	if err != nil {
		return model.Document{}, nil, err
	}
	created := model.NewAuditEntry(doc.ID, model.AuditDocumentCreated, userID, map[string]any{
		"filename": string(doc.Filename),
		"status":   string(doc.Status),
	})
	return doc, []model.AuditEntry{created}, nil
}

// List returns paginated documents. A caller that cannot be resolved sees an empty page.
func (s *documentService) List(ctx context.Context, userID uuid.UUID, limit, offset int) (*DocumentListResult, error) {
	return s.Search(ctx, userID, "", limit, offset)
}

func (s *documentService) Search(ctx context.Context, userID uuid.UUID, term string, limit, offset int) (*DocumentListResult, error) {
	pq := normalizePage(limit, offset)
	empty := &DocumentListResult{Items: []model.Document{}, Limit: pq.Limit, Offset: pq.Offset}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		var nf *model.NotFoundError
		if errors.As(err, &nf) {
			return empty, nil
		}
		return nil, err
	}

	var res *repository.PageResult[model.Document]
	switch {
	case term == "" && access.IsAdmin(user):
		res, err = s.docs.ListAll(ctx, pq)
	case term == "":
		res, err = s.docs.ListByUser(ctx, user.ID, pq)
	default:
		sq := repository.SearchQuery{Term: term}
		if !access.IsAdmin(user) {
			sq.AccessibleTo = user.ID
		}
		res, err = s.docs.Search(ctx, sq, pq)
	}
	if err != nil {
		return nil, err
	}
	return &DocumentListResult{Items: res.Items, Total: res.Total, Limit: pq.Limit, Offset: pq.Offset}, nil
}

func normalizePage(limit, offset int) repository.PageQuery {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return repository.PageQuery{Limit: limit, Offset: offset}
}

// Get returns a document with its version history.
func (s *documentService) Get(ctx context.Context, userID, id uuid.UUID) (model.Document, error) {
	return s.load(ctx, userID, id, model.PermissionRead)
}

func (s *documentService) FindByFilename(ctx context.Context, userID uuid.UUID, filename string) (model.Document, error) {
	name, err := model.NewFilename(filename)
	if err != nil {
		return model.Document{}, err
	}
	doc, err := s.docs.FindByFilenameAndUser(ctx, name, userID)
	if err != nil {
		return model.Document{}, err
	}
	if _, err := s.authz.require(ctx, userID, doc, model.PermissionRead); err != nil {
		return model.Document{}, err
	}
	return doc, nil
}

func (s *documentService) ListVersions(ctx context.Context, userID, id uuid.UUID) ([]model.DocumentVersion, error) {
	doc, err := s.load(ctx, userID, id, model.PermissionRead)
	if err != nil {
		return nil, err
	}
	return doc.Versions(), nil
}

func (s *documentService) GetVersion(ctx context.Context, userID, id, versionID uuid.UUID) (model.DocumentVersion, error) {
	doc, err := s.load(ctx, userID, id, model.PermissionRead)
	if err != nil {
		return model.DocumentVersion{}, err
	}
	v, ok := doc.Version(versionID)
	if !ok {
		return model.DocumentVersion{}, &model.NotFoundError{EntityType: model.EntityVersion, ID: versionID.String()}
	}
	return v, nil
}

func (s *documentService) DownloadURL(ctx context.Context, userID, id, versionID uuid.UUID) (*DownloadLink, error) {
	doc, err := s.load(ctx, userID, id, model.PermissionRead)
	if err != nil {
		return nil, err
	}

	var (
		v  model.DocumentVersion
		ok bool
	)
	if versionID == uuid.Nil {
		v, ok = latestConfirmed(doc)
		if !ok {
			return nil, &model.InvalidStateError{Message: "document has no confirmed version"}
		}
	} else {
		v, ok = doc.Version(versionID)
		if !ok {
			return nil, &model.NotFoundError{EntityType: model.EntityVersion, ID: versionID.String()}
		}
		if !v.Confirmed() {
			return nil, &model.InvalidStateError{Message: "version " + v.ID.String() + " is not confirmed yet"}
		}
	}

	url, err := s.store.PresignGet(ctx, v.Path, s.cfg.PresignGetTTL)
	if err != nil {
		return nil, fmt.Errorf("presign download: %w", err)
	}
	return &DownloadLink{URL: url, ExpiresAt: now().Add(s.cfg.PresignGetTTL), Version: v}, nil
}

func latestConfirmed(doc model.Document) (model.DocumentVersion, bool) {
	var (
		latest model.DocumentVersion
		found  bool
	)
	for _, v := range doc.Versions() {
		if v.Confirmed() && (!found || v.VersionNumber > latest.VersionNumber) {
			latest, found = v, true
		}
	}
	return latest, found
}

func (s *documentService) Publish(ctx context.Context, userID, id uuid.UUID) (model.Document, error) {
	return s.setStatus(ctx, userID, id, model.StatusPublished)
}

func (s *documentService) Unpublish(ctx context.Context, userID, id uuid.UUID) (model.Document, error) {
	return s.setStatus(ctx, userID, id, model.StatusDraft)
}

func (s *documentService) setStatus(ctx context.Context, userID, id uuid.UUID, status model.DocumentStatus) (model.Document, error) {
	doc, err := s.load(ctx, userID, id, model.PermissionWrite)
	if err != nil {
		return model.Document{}, err
	}
	if doc.Status == status {
		return doc, nil
	}

	action := model.AuditDocumentPublished
	next := doc.Publish()
	if status == model.StatusDraft {
		action = model.AuditDocumentUnpublished
		next = doc.Unpublish()
	}
	audit := model.NewAuditEntry(doc.ID, action, userID, map[string]any{
		"from": string(doc.Status),
		"to":   string(next.Status),
	})
	if err := s.docs.Save(ctx, next, audit); err != nil {
		return model.Document{}, err
	}
	return next, nil
}

// Delete removes the document record first; objects left behind by a failed cleanup are
// logged and never resurrect the document.
func (s *documentService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	doc, err := s.load(ctx, userID, id, model.PermissionDelete)
	if err != nil {
		return err
	}
	log := logging.WithContext(ctx, s.log)

	keys := make([]string, 0, len(doc.Versions()))
	for _, v := range doc.Versions() {
		if v.Confirmed() {
			keys = append(keys, v.Path)
		} else {
			keys = append(keys, tempKey(doc.ID, v.ID))
		}
	}

	audit := model.NewAuditEntry(doc.ID, model.AuditDocumentDeleted, userID, map[string]any{
		"filename": string(doc.Filename),
		"versions": len(keys),
	})
	if err := s.docs.Delete(ctx, doc.ID, audit); err != nil {
		return err
	}

	var g errgroup.Group
	g.SetLimit(blobCleanupConcurrency)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			if err := s.store.Delete(ctx, key); err != nil {
				log.Warn("delete object failed",
					zap.String("document_id", doc.ID.String()),
					zap.String("key", key),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	log.Info("document deleted",
		zap.String("document_id", doc.ID.String()),
		zap.String("user_id", userID.String()),
		zap.Int("objects", len(keys)),
	)
	return nil
}

func (s *documentService) load(ctx context.Context, userID, id uuid.UUID, level model.PermissionType) (model.Document, error) {
	doc, err := s.docs.FindByID(ctx, id)
	if err != nil {
		return model.Document{}, err
	}
	if _, err := s.authz.require(ctx, userID, doc, level); err != nil {
		return model.Document{}, err
	}
	return doc, nil
}
