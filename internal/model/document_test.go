package model

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var owner = uuid.MustParse("11111111-1111-1111-1111-111111111111")

func newTestDocument(t *testing.T) Document {
	t.Helper()
	doc, err := NewDocument(DocumentProps{
		Filename:   "report.pdf",
		MimeType:   "application/pdf",
		Size:       1024,
		UploadedBy: owner,
	})
	require.NoError(t, err)
	return doc
}

func versionProps(checksum string) VersionProps {
	return VersionProps{
		Filename:   "report.pdf",
		MimeType:   "application/pdf",
		Size:       1024,
		Checksum:   checksum,
		UploadedBy: owner,
	}
}

func TestNewDocument(t *testing.T) {
	tests := []struct {
		name      string
		props     DocumentProps
		wantField string
	}{
		{
			name:  "valid",
			props: DocumentProps{Filename: "a.txt", MimeType: "text/plain", Size: 1, UploadedBy: owner},
		},
		{
			name:      "empty filename",
			props:     DocumentProps{Filename: "", MimeType: "text/plain", Size: 1, UploadedBy: owner},
			wantField: "filename",
		},
		{
			name:      "size zero",
			props:     DocumentProps{Filename: "a.txt", MimeType: "text/plain", Size: 0, UploadedBy: owner},
			wantField: "size",
		},
		{
			name:      "size above 100 MiB",
			props:     DocumentProps{Filename: "a.txt", MimeType: "text/plain", Size: MaxFileSize + 1, UploadedBy: owner},
			wantField: "size",
		},
		{
			name:      "malformed mime type",
			props:     DocumentProps{Filename: "a.txt", MimeType: "text", Size: 1, UploadedBy: owner},
			wantField: "mime_type",
		},
		{
			name:      "missing uploader",
			props:     DocumentProps{Filename: "a.txt", MimeType: "text/plain", Size: 1},
			wantField: "uploaded_by",
		},
		{
			name:      "unknown status",
			props:     DocumentProps{Filename: "a.txt", MimeType: "text/plain", Size: 1, UploadedBy: owner, Status: "ARCHIVED"},
			wantField: "status",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := NewDocument(tt.props)
			if tt.wantField != "" {
				var vErr *ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Equal(t, tt.wantField, vErr.Field)
				return
			}
			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, doc.ID)
			assert.Equal(t, StatusPublished, doc.Status)
			assert.Equal(t, "a.txt", doc.OriginalName)
			assert.Empty(t, doc.Versions())
			assert.False(t, doc.CreatedAt.IsZero())
		})
	}
}

func TestDocument_AddVersion_Numbering(t *testing.T) {
	doc := newTestDocument(t)

	for n := 1; n <= 5; n++ {
		var (
			v   DocumentVersion
			err error
		)
		doc, v, err = doc.AddVersion(versionProps(strings.Repeat(string(rune('a'+n)), 64)))
		require.NoError(t, err)
		assert.Equal(t, VersionNumber(n), v.VersionNumber)
		assert.Equal(t, doc.ID, v.DocumentID)
	}

	versions := doc.Versions()
	require.Len(t, versions, 5)
	for i, v := range versions {
		assert.Equal(t, VersionNumber(i+1), v.VersionNumber)
	}
}

func TestDocument_AddVersion_DoesNotMutateReceiver(t *testing.T) {
	doc := newTestDocument(t)
	first, _, err := doc.AddVersion(versionProps(strings.Repeat("a", 64)))
	require.NoError(t, err)

	second, _, err := first.AddVersion(versionProps(strings.Repeat("b", 64)))
	require.NoError(t, err)
	branch, _, err := first.AddVersion(versionProps(strings.Repeat("c", 64)))
	require.NoError(t, err)

	assert.Empty(t, doc.Versions())
	assert.Len(t, first.Versions(), 1)
	assert.Len(t, second.Versions(), 2)
	assert.Len(t, branch.Versions(), 2)
	assert.Equal(t, Checksum(strings.Repeat("b", 64)), second.Versions()[1].Checksum)
	assert.Equal(t, Checksum(strings.Repeat("c", 64)), branch.Versions()[1].Checksum)
}

func TestDocument_AddVersion_Duplicate(t *testing.T) {
	doc := newTestDocument(t)
	doc, _, err := doc.AddVersion(versionProps(strings.Repeat("a", 64)))
	require.NoError(t, err)

	_, _, err = doc.AddVersion(versionProps(strings.Repeat("a", 64)))
	var dup *DuplicateDocumentError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, Checksum(strings.Repeat("a", 64)), dup.Checksum)
	assert.Len(t, doc.Versions(), 1)

	doc, v, err := doc.AddVersion(versionProps(strings.Repeat("b", 64)))
	require.NoError(t, err)
	assert.Equal(t, VersionNumber(2), v.VersionNumber)
}

func TestDocument_AddVersion_PendingVersionsNeverCollide(t *testing.T) {
	doc := newTestDocument(t)
	doc, _, err := doc.AddVersion(versionProps(""))
	require.NoError(t, err)
	doc, _, err = doc.AddVersion(versionProps(""))
	require.NoError(t, err)
	doc, v, err := doc.AddVersion(versionProps(strings.Repeat("f", 64)))
	require.NoError(t, err)
	assert.Equal(t, VersionNumber(3), v.VersionNumber)
}

func TestDocument_AddVersion_InvalidChecksum(t *testing.T) {
	doc := newTestDocument(t)
	_, _, err := doc.AddVersion(versionProps(strings.Repeat("A", 64)))
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "checksum", vErr.Field)
}

func TestDocument_LatestVersion(t *testing.T) {
	doc := newTestDocument(t)
	_, ok := doc.LatestVersion()
	assert.False(t, ok)

	doc, _, err := doc.AddVersion(versionProps(strings.Repeat("a", 64)))
	require.NoError(t, err)
	doc, v2, err := doc.AddVersion(versionProps(strings.Repeat("b", 64)))
	require.NoError(t, err)

	latest, ok := doc.LatestVersion()
	require.True(t, ok)
	assert.Equal(t, v2.ID, latest.ID)

	got, ok := doc.Version(v2.ID)
	require.True(t, ok)
	assert.Equal(t, VersionNumber(2), got.VersionNumber)

	_, ok = doc.Version(uuid.New())
	assert.False(t, ok)
}

func TestRestoreDocument_OrdersVersions(t *testing.T) {
	doc := newTestDocument(t)
	restored := RestoreDocument(doc, []DocumentVersion{
		{ID: uuid.New(), VersionNumber: 3},
		{ID: uuid.New(), VersionNumber: 1},
		{ID: uuid.New(), VersionNumber: 2},
	})

	versions := restored.Versions()
	require.Len(t, versions, 3)
	assert.Equal(t, VersionNumber(1), versions[0].VersionNumber)
	assert.Equal(t, VersionNumber(3), versions[2].VersionNumber)

	_, v, err := restored.AddVersion(versionProps(""))
	require.NoError(t, err)
	assert.Equal(t, VersionNumber(4), v.VersionNumber)
}

func TestDocument_ConfirmVersion(t *testing.T) {
	sum := strings.Repeat("a", 64)

	t.Run("fills storage location", func(t *testing.T) {
		doc := newTestDocument(t)
		doc, v, err := doc.AddVersion(versionProps(sum))
		require.NoError(t, err)
		assert.False(t, v.Confirmed())

		confirmed, cv, err := doc.ConfirmVersion(v.ID, ConfirmProps{Path: "documents/x/v1/report.pdf", ContentRef: "etag-1", Checksum: sum})
		require.NoError(t, err)
		assert.True(t, cv.Confirmed())
		assert.Equal(t, ContentRef("etag-1"), cv.ContentRef)
		assert.Equal(t, v.VersionNumber, cv.VersionNumber)

		stored, _ := confirmed.Version(v.ID)
		assert.Equal(t, "documents/x/v1/report.pdf", stored.Path)
		original, _ := doc.Version(v.ID)
		assert.Empty(t, original.Path)
	})

	t.Run("checksum mismatch", func(t *testing.T) {
		doc := newTestDocument(t)
		doc, v, err := doc.AddVersion(versionProps(sum))
		require.NoError(t, err)

		_, _, err = doc.ConfirmVersion(v.ID, ConfirmProps{Path: "p", Checksum: strings.Repeat("b", 64)})
		var mismatch *ChecksumMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, Checksum(sum), mismatch.Expected)
	})

	t.Run("late checksum is deduplicated", func(t *testing.T) {
		doc := newTestDocument(t)
		doc, _, err := doc.AddVersion(versionProps(sum))
		require.NoError(t, err)
		doc, pending, err := doc.AddVersion(versionProps(""))
		require.NoError(t, err)

		_, _, err = doc.ConfirmVersion(pending.ID, ConfirmProps{Path: "p", Checksum: sum})
		var dup *DuplicateDocumentError
		assert.ErrorAs(t, err, &dup)
	})

	t.Run("unknown version", func(t *testing.T) {
		doc := newTestDocument(t)
		_, _, err := doc.ConfirmVersion(uuid.New(), ConfirmProps{Path: "p"})
		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, EntityVersion, nf.EntityType)
	})
}

func TestDocument_PublishUnpublish(t *testing.T) {
	doc, err := NewDocument(DocumentProps{Filename: "a.txt", MimeType: "text/plain", Size: 1, UploadedBy: owner, Status: StatusDraft})
	require.NoError(t, err)

	published := doc.Publish()
	assert.Equal(t, StatusPublished, published.Status)
	assert.Equal(t, StatusDraft, doc.Status)

	draft := published.Unpublish()
	assert.Equal(t, StatusDraft, draft.Status)
	assert.Equal(t, StatusPublished, draft.Publish().Status)
	assert.Equal(t, StatusPublished, published.Publish().Status)
}

func TestDocument_MarshalJSON(t *testing.T) {
	doc := newTestDocument(t)
	doc, _, err := doc.AddVersion(versionProps(strings.Repeat("a", 64)))
	require.NoError(t, err)

	b, err := json.Marshal(doc)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, doc.ID.String(), out["id"])
	assert.Equal(t, "report.pdf", out["filename"])
	versions, ok := out["versions"].([]any)
	require.True(t, ok)
	assert.Len(t, versions, 1)
}
