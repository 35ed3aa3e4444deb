package model

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MaxFilenameLength is the longest accepted filename, in characters.
	MaxFilenameLength = 255
	// MaxFileSize is the upper bound for a single document or version (100 MiB).
	MaxFileSize int64 = 100 * 1024 * 1024
	// MaxContentRefLength is the longest accepted opaque storage identifier.
	MaxContentRefLength = 255
)

var (
	mimeTypePattern = regexp.MustCompile(`^[\w-]+/[\w+.-]+(;[\w-]+=[\w-]+)*$`)
	checksumPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)
)

// Filename is a validated, non-empty file name of at most 255 characters.
type Filename string

// NewFilename validates s as a Filename.
func NewFilename(s string) (Filename, error) {
	if strings.TrimSpace(s) == "" {
		return "", &ValidationError{Field: "filename", Message: "must not be empty"}
	}
	if utf8.RuneCountInString(s) > MaxFilenameLength {
		return "", &ValidationError{Field: "filename", Message: fmt.Sprintf("must be at most %d characters", MaxFilenameLength)}
	}
	return Filename(s), nil
}

func (f Filename) String() string { return string(f) }

// MimeType is a media type such as "application/pdf" or "text/plain;charset=utf-8".
type MimeType string

// NewMimeType validates s as a MimeType.
func NewMimeType(s string) (MimeType, error) {
	if !mimeTypePattern.MatchString(s) {
		return "", &ValidationError{Field: "mime_type", Message: fmt.Sprintf("invalid mime type %q", s)}
	}
	return MimeType(s), nil
}

func (m MimeType) String() string { return string(m) }

// FileSize is a byte count in [1, MaxFileSize].
type FileSize int64

// NewFileSize validates n as a FileSize.
func NewFileSize(n int64) (FileSize, error) {
	if n < 1 || n > MaxFileSize {
		return 0, &ValidationError{Field: "size", Message: fmt.Sprintf("must be between 1 and %d bytes", MaxFileSize)}
	}
	return FileSize(n), nil
}

// VersionNumber is the 1-based position of a version within its document.
type VersionNumber int

// NewVersionNumber validates n as a VersionNumber.
func NewVersionNumber(n int) (VersionNumber, error) {
	if n < 1 {
		return 0, &ValidationError{Field: "version_number", Message: "must be a positive integer"}
	}
	return VersionNumber(n), nil
}

// Checksum is a lowercase hex SHA-256 digest. The zero value means "not known yet".
type Checksum string

// NewChecksum validates s as a Checksum.
func NewChecksum(s string) (Checksum, error) {
	if !checksumPattern.MatchString(s) {
		return "", &ValidationError{Field: "checksum", Message: "must be 64 lowercase hex characters"}
	}
	return Checksum(s), nil
}

func (c Checksum) IsZero() bool   { return c == "" }
func (c Checksum) String() string { return string(c) }

// ContentRef is an opaque storage identifier. The zero value means "not stored yet".
type ContentRef string

// NewContentRef validates s as a ContentRef.
func NewContentRef(s string) (ContentRef, error) {
	n := utf8.RuneCountInString(s)
	if n < 1 || n > MaxContentRefLength {
		return "", &ValidationError{Field: "content_ref", Message: fmt.Sprintf("must be 1-%d characters", MaxContentRefLength)}
	}
	return ContentRef(s), nil
}

func (r ContentRef) IsZero() bool { return r == "" }

// PermissionType is an access level on a document.
type PermissionType string

const (
	PermissionRead   PermissionType = "READ"
	PermissionWrite  PermissionType = "WRITE"
	PermissionDelete PermissionType = "DELETE"
)

var permissionLevels = map[PermissionType]int{
	PermissionRead:   1,
	PermissionWrite:  2,
	PermissionDelete: 3,
}

// NewPermissionType validates s as a PermissionType.
func NewPermissionType(s string) (PermissionType, error) {
	p := PermissionType(s)
	if _, ok := permissionLevels[p]; !ok {
		return "", &ValidationError{Field: "permission", Message: fmt.Sprintf("must be one of READ, WRITE, DELETE, got %q", s)}
	}
	return p, nil
}

// Level returns the ordinal of p (READ=1, WRITE=2, DELETE=3), or 0 for an unknown value.
func (p PermissionType) Level() int { return permissionLevels[p] }

// Satisfies reports whether holding p grants required.
func (p PermissionType) Satisfies(required PermissionType) bool {
	return p.Level() > 0 && p.Level() >= required.Level()
}

func (p PermissionType) String() string { return string(p) }

// DocumentStatus is the publication state of a document.
type DocumentStatus string

const (
	StatusDraft     DocumentStatus = "DRAFT"
	StatusPublished DocumentStatus = "PUBLISHED"
)

// Role is the global role of a user.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)
