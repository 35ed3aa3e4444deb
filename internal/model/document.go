package model

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
)

var now = func() time.Time { return time.Now().UTC() }

// Document is the aggregate root for a stored file and its version history.
// It is a value: every mutation returns a new Document and leaves the receiver untouched.
// Versions are reachable only through the aggregate.
type Document struct {
	ID           uuid.UUID      `json:"id"`
	Filename     Filename       `json:"filename"`
	OriginalName string         `json:"original_name"`
	MimeType     MimeType       `json:"mime_type"`
	Size         FileSize       `json:"size"`
	Status       DocumentStatus `json:"status"`
	UploadedBy   uuid.UUID      `json:"uploaded_by"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`

	versions []DocumentVersion
}

// DocumentVersion is one immutable entry of a document's history. Path, ContentRef and
// Checksum stay empty until the underlying bytes are confirmed.
type DocumentVersion struct {
	ID            uuid.UUID     `json:"id"`
	DocumentID    uuid.UUID     `json:"document_id"`
	Filename      Filename      `json:"filename"`
	OriginalName  string        `json:"original_name"`
	MimeType      MimeType      `json:"mime_type"`
	Size          FileSize      `json:"size"`
	Path          string        `json:"path,omitempty"`
	ContentRef    ContentRef    `json:"content_ref,omitempty"`
	Checksum      Checksum      `json:"checksum,omitempty"`
	VersionNumber VersionNumber `json:"version_number"`
	UploadedBy    uuid.UUID     `json:"uploaded_by"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Confirmed reports whether the version's bytes have landed in storage.
func (v DocumentVersion) Confirmed() bool { return v.Path != "" }

// DocumentProps carries the raw input for NewDocument.
type DocumentProps struct {
	Filename     string
	OriginalName string
	MimeType     string
	Size         int64
	UploadedBy   uuid.UUID
	// Status defaults to StatusPublished.
	Status DocumentStatus
}

// VersionProps carries the raw input for Document.AddVersion.
// The version number is always assigned by the aggregate.
type VersionProps struct {
	Filename     string
	OriginalName string
	MimeType     string
	Size         int64
	Path         string
	ContentRef   string
	Checksum     string
	UploadedBy   uuid.UUID
}

// ConfirmProps carries the storage location of a version whose bytes were confirmed.
type ConfirmProps struct {
	Path       string
	ContentRef string
	Checksum   string
}

// NewDocument validates props and returns a document with an empty version history.
func NewDocument(p DocumentProps) (Document, error) {
	filename, err := NewFilename(p.Filename)
	if err != nil {
		return Document{}, err
	}
	mimeType, err := NewMimeType(p.MimeType)
	if err != nil {
		return Document{}, err
	}
	size, err := NewFileSize(p.Size)
	if err != nil {
		return Document{}, err
	}
	if p.UploadedBy == uuid.Nil {
		return Document{}, &ValidationError{Field: "uploaded_by", Message: "is required"}
	}

	status := p.Status
	switch status {
	case "":
		status = StatusPublished
	case StatusDraft, StatusPublished:
	default:
		return Document{}, &ValidationError{Field: "status", Message: "must be DRAFT or PUBLISHED"}
	}

	originalName := p.OriginalName
	if originalName == "" {
		originalName = p.Filename
	}

	ts := now()
	return Document{
		ID:           uuid.New(),
		Filename:     filename,
		OriginalName: originalName,
		MimeType:     mimeType,
		Size:         size,
		Status:       status,
		UploadedBy:   p.UploadedBy,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}, nil
}

// RestoreDocument rebuilds an aggregate from persisted state. Versions are ordered by number.
func RestoreDocument(d Document, versions []DocumentVersion) Document {
	vs := make([]DocumentVersion, len(versions))
	copy(vs, versions)
	sort.SliceStable(vs, func(i, j int) bool { return vs[i].VersionNumber < vs[j].VersionNumber })
	d.versions = vs
	return d
}

// Versions returns a copy of the version history in version order.
func (d Document) Versions() []DocumentVersion {
	out := make([]DocumentVersion, len(d.versions))
	copy(out, d.versions)
	return out
}

// LatestVersion returns the version with the highest number.
func (d Document) LatestVersion() (DocumentVersion, bool) {
	var (
		latest DocumentVersion
		found  bool
	)
	for _, v := range d.versions {
		if !found || v.VersionNumber > latest.VersionNumber {
			latest, found = v, true
		}
	}
	return latest, found
}

// Version looks up a version by id.
func (d Document) Version(id uuid.UUID) (DocumentVersion, bool) {
	for _, v := range d.versions {
		if v.ID == id {
			return v, true
		}
	}
	return DocumentVersion{}, false
}

// AddVersion appends a new version and returns the resulting document together with the
// created version. A present checksum must not collide with any existing version.
func (d Document) AddVersion(p VersionProps) (Document, DocumentVersion, error) {
	v, err := newVersion(d.ID, p)
	if err != nil {
		return Document{}, DocumentVersion{}, err
	}
	if err := ValidateNoDuplicateContent(d.versions, v.Checksum); err != nil {
		return Document{}, DocumentVersion{}, err
	}

	v.VersionNumber = d.nextVersionNumber()

	next := d.clone(1)
	next.versions = append(next.versions, v)
	next.UpdatedAt = v.CreatedAt
	return next, v, nil
}

// ConfirmVersion records where a pending version's bytes were stored. When the version
// already carries a checksum the confirmed one must match it.
func (d Document) ConfirmVersion(id uuid.UUID, p ConfirmProps) (Document, DocumentVersion, error) {
	idx := d.indexOf(id)
	if idx < 0 {
		return Document{}, DocumentVersion{}, &NotFoundError{EntityType: EntityVersion, ID: id.String()}
	}
	if p.Path == "" {
		return Document{}, DocumentVersion{}, &ValidationError{Field: "path", Message: "is required"}
	}

	v := d.versions[idx]

	if p.ContentRef != "" {
		ref, err := NewContentRef(p.ContentRef)
		if err != nil {
			return Document{}, DocumentVersion{}, err
		}
		v.ContentRef = ref
	}

	if p.Checksum != "" {
		sum, err := NewChecksum(p.Checksum)
		if err != nil {
			return Document{}, DocumentVersion{}, err
		}
		switch {
		case v.Checksum.IsZero():
			others := make([]DocumentVersion, 0, len(d.versions)-1)
			others = append(others, d.versions[:idx]...)
			others = append(others, d.versions[idx+1:]...)
			if err := ValidateNoDuplicateContent(others, sum); err != nil {
				return Document{}, DocumentVersion{}, err
			}
			v.Checksum = sum
		case v.Checksum != sum:
			return Document{}, DocumentVersion{}, &ChecksumMismatchError{Expected: v.Checksum, Actual: sum}
		}
	}

	v.Path = p.Path

	next := d.clone(0)
	next.versions[idx] = v
	next.UpdatedAt = now()
	return next, v, nil
}

// Publish moves the document to PUBLISHED.
func (d Document) Publish() Document { return d.withStatus(StatusPublished) }

// Unpublish moves the document back to DRAFT.
func (d Document) Unpublish() Document { return d.withStatus(StatusDraft) }

// MarshalJSON renders the header together with the version history.
func (d Document) MarshalJSON() ([]byte, error) {
	type header Document
	return json.Marshal(struct {
		header
		Versions []DocumentVersion `json:"versions"`
	}{header(d), d.Versions()})
}

func (d Document) withStatus(s DocumentStatus) Document {
	if d.Status == s {
		return d
	}
	next := d.clone(0)
	next.Status = s
	next.UpdatedAt = now()
	return next
}

func (d Document) nextVersionNumber() VersionNumber {
	var highest VersionNumber
	for _, v := range d.versions {
		if v.VersionNumber > highest {
			highest = v.VersionNumber
		}
	}
	return highest + 1
}

func (d Document) indexOf(id uuid.UUID) int {
	for i, v := range d.versions {
		if v.ID == id {
			return i
		}
	}
	return -1
}

// clone copies the version slice into a fresh backing array with room for extra entries,
// so appends on the copy never alias the original.
func (d Document) clone(extra int) Document {
	vs := make([]DocumentVersion, len(d.versions), len(d.versions)+extra)
	copy(vs, d.versions)
	d.versions = vs
	return d
}

func newVersion(documentID uuid.UUID, p VersionProps) (DocumentVersion, error) {
	filename, err := NewFilename(p.Filename)
	if err != nil {
		return DocumentVersion{}, err
	}
	mimeType, err := NewMimeType(p.MimeType)
	if err != nil {
		return DocumentVersion{}, err
	}
	size, err := NewFileSize(p.Size)
	if err != nil {
		return DocumentVersion{}, err
	}
	if p.UploadedBy == uuid.Nil {
		return DocumentVersion{}, &ValidationError{Field: "uploaded_by", Message: "is required"}
	}

	var sum Checksum
	if p.Checksum != "" {
		if sum, err = NewChecksum(p.Checksum); err != nil {
			return DocumentVersion{}, err
		}
	}
	var ref ContentRef
	if p.ContentRef != "" {
		if ref, err = NewContentRef(p.ContentRef); err != nil {
			return DocumentVersion{}, err
		}
	}

	originalName := p.OriginalName
	if originalName == "" {
		originalName = p.Filename
	}

	return DocumentVersion{
		ID:           uuid.New(),
		DocumentID:   documentID,
		Filename:     filename,
		OriginalName: originalName,
		MimeType:     mimeType,
		Size:         size,
		Path:         p.Path,
		ContentRef:   ref,
		Checksum:     sum,
		UploadedBy:   p.UploadedBy,
		CreatedAt:    now(),
	}, nil
}
