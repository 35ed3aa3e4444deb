package handler

import (
	"bytes"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"docvault/internal/http/middleware"
	"docvault/internal/model"
	"docvault/internal/service"
)

// sniffLen is the number of leading bytes inspected to detect an upload's content type.
const sniffLen = 512

type versionResponse struct {
	Document model.Document        `json:"document"`
	Version  model.DocumentVersion `json:"version"`
}

type initiateUploadRequest struct {
	DocumentID string `json:"document_id" validate:"omitempty,uuid"`
	Filename   string `json:"filename" validate:"required,max=255"`
	MimeType   string `json:"mime_type" validate:"required"`
	Size       int64  `json:"size" validate:"required,gte=1"`
	Checksum   string `json:"checksum" validate:"required,len=64,hexadecimal"`
}

type confirmUploadRequest struct {
	Checksum string `json:"checksum" validate:"required,len=64,hexadecimal"`
}

type accessResponse struct {
	Permission model.PermissionType `json:"permission,omitempty"`
	HasAccess  bool                 `json:"has_access"`
}

// ListDocuments lists the documents visible to the caller, optionally filtered by name.
//
// @Summary  List or search documents
// @Tags     documents
// @Produce  json
// @Param    X-User-ID header string true  "Caller ID"
// @Param    q         query  string false "Case-insensitive filename filter"
// @Param    limit     query  int    false "Page size (default 10, max 100)"
// @Param    offset    query  int    false "Page offset"
// @Success  200 {object} service.DocumentListResult
// @Failure  400 {object} errorPayload
// @Router   /documents [get]
func ListDocuments(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := middleware.UserID(c)
		if !ok {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "missing caller identity")
		}
		limit, err := queryInt(c, "limit", 10)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := queryInt(c, "offset", 0)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		var res *service.DocumentListResult
		if q := c.Query("q"); q != "" {
			res, err = svc.Search(c.UserContext(), userID, q, limit, offset)
		} else {
			res, err = svc.List(c.UserContext(), userID, limit, offset)
		}
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// FindDocumentByFilename returns the caller's most recent document with the given name.
//
// @Summary  Find own document by filename
// @Tags     documents
// @Produce  json
// @Param    X-User-ID header string true "Caller ID"
// @Param    filename  query  string true "Exact filename"
// @Success  200 {object} model.Document
// @Failure  400,404 {object} errorPayload
// @Router   /documents/lookup [get]
func FindDocumentByFilename(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := middleware.UserID(c)
		if !ok {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "missing caller identity")
		}
		filename := c.Query("filename")
		if filename == "" {
			return writeError(c, fiber.StatusBadRequest, "FILENAME_REQUIRED", "filename is required")
		}
		doc, err := svc.FindByFilename(c.UserContext(), userID, filename)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(doc)
	}
}

// UploadDocument uploads a new document, or a new version when document_id is set.
//
// @Summary  Upload a document or a new version (multipart/form-data)
// @Tags     documents
// @Accept   multipart/form-data
// @Produce  json
// @Param    X-User-ID   header   string true  "Caller ID"
// @Param    file        formData file   true  "Document content"
// @Param    document_id formData string false "Existing document to version"
// @Success  201 {object} versionResponse
// @Failure  400,403,404,409 {object} errorPayload
// @Router   /documents [post]
func UploadDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := middleware.UserID(c)
		if !ok {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "missing caller identity")
		}

		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		var docID uuid.UUID
		if raw := c.FormValue("document_id"); raw != "" {
			if docID, err = uuid.Parse(raw); err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid document_id format")
			}
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		head := make([]byte, sniffLen)
		n, err := io.ReadFull(f, head)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot read uploaded file")
		}
		head = head[:n]

		doc, version, err := svc.Upload(c.UserContext(), userID, service.UploadInput{
			DocumentID: docID,
			Filename:   fh.Filename,
			MimeType:   contentType(fh.Header.Get("Content-Type"), head),
			Size:       fh.Size,
			Reader:     io.MultiReader(bytes.NewReader(head), f),
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(versionResponse{Document: doc, Version: version})
	}
}

// InitiateUpload reserves a pending version and returns a pre-signed upload URL.
//
// @Summary  Start a two-phase upload
// @Tags     uploads
// @Accept   json
// @Produce  json
// @Param    X-User-ID header string                true "Caller ID"
// @Param    body      body   initiateUploadRequest true "Upload metadata"
// @Success  201 {object} service.UploadTicket
// @Success  200 {object} service.UploadTicket "Content already known"
// @Failure  400,403,404,409 {object} errorPayload
// @Router   /documents/uploads [post]
func InitiateUpload(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := middleware.UserID(c)
		if !ok {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "missing caller identity")
		}

		var req initiateUploadRequest
		if err := parseBody(c, &req); err != nil {
			return writeServiceError(c, err)
		}
		var docID uuid.UUID
		if req.DocumentID != "" {
			var err error
			if docID, err = uuid.Parse(req.DocumentID); err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid document_id format")
			}
		}

		ticket, err := svc.InitiateUpload(c.UserContext(), userID, service.InitiateUploadInput{
			DocumentID: docID,
			Filename:   req.Filename,
			MimeType:   req.MimeType,
			Size:       req.Size,
			Checksum:   req.Checksum,
		})
		if err != nil {
			return writeServiceError(c, err)
		}

		status := fiber.StatusCreated
		if ticket.Existing {
			status = fiber.StatusOK
		}
		return c.Status(status).JSON(ticket)
	}
}

// ConfirmUpload records that the bytes of a pending version were uploaded.
//
// @Summary  Complete a two-phase upload
// @Tags     uploads
// @Accept   json
// @Produce  json
// @Param    X-User-ID header string               true "Caller ID"
// @Param    id        path   string               true "Document ID"
// @Param    versionId path   string               true "Version ID"
// @Param    body      body   confirmUploadRequest true "Checksum of the uploaded bytes"
// @Success  200 {object} versionResponse
// @Failure  400,403,404,409,422 {object} errorPayload
// @Router   /documents/{id}/versions/{versionId}/confirm [post]
func ConfirmUpload(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := middleware.UserID(c)
		if !ok {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "missing caller identity")
		}
		id, ok := paramUUID(c, "id")
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		versionID, ok := paramUUID(c, "versionId")
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid version id format")
		}

		var req confirmUploadRequest
		if err := parseBody(c, &req); err != nil {
			return writeServiceError(c, err)
		}

		doc, version, err := svc.ConfirmUpload(c.UserContext(), userID, service.ConfirmUploadInput{
			DocumentID: id,
			VersionID:  versionID,
			Checksum:   req.Checksum,
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(versionResponse{Document: doc, Version: version})
	}
}

// GetDocument returns a document with its version history.
//
// @Summary  Get a document
// @Tags     documents
// @Produce  json
// @Param    X-User-ID header string true "Caller ID"
// @Param    id        path   string true "Document ID"
// @Success  200 {object} model.Document
// @Failure  400,403,404 {object} errorPayload
// @Router   /documents/{id} [get]
func GetDocument(svc service.DocumentService) fiber.Handler {
	return documentHandler(func(c *fiber.Ctx, userID, id uuid.UUID) error {
		doc, err := svc.Get(c.UserContext(), userID, id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(doc)
	})
}

// DeleteDocument removes a document with all versions, grants and stored objects.
//
// @Summary  Delete a document
// @Tags     documents
// @Param    X-User-ID header string true "Caller ID"
// @Param    id        path   string true "Document ID"
// @Success  204
// @Failure  400,403,404 {object} errorPayload
// @Router   /documents/{id} [delete]
func DeleteDocument(svc service.DocumentService) fiber.Handler {
	return documentHandler(func(c *fiber.Ctx, userID, id uuid.UUID) error {
		if err := svc.Delete(c.UserContext(), userID, id); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

// ListVersions returns a document's versions in version order.
//
// @Summary  List versions
// @Tags     versions
// @Produce  json
// @Param    X-User-ID header string true "Caller ID"
// @Param    id        path   string true "Document ID"
// @Success  200 {array} model.DocumentVersion
// @Failure  400,403,404 {object} errorPayload
// @Router   /documents/{id}/versions [get]
func ListVersions(svc service.DocumentService) fiber.Handler {
	return documentHandler(func(c *fiber.Ctx, userID, id uuid.UUID) error {
		versions, err := svc.ListVersions(c.UserContext(), userID, id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(versions)
	})
}

// GetVersion returns one version of a document.
//
// @Summary  Get a version
// @Tags     versions
// @Produce  json
// @Param    X-User-ID header string true "Caller ID"
// @Param    id        path   string true "Document ID"
// @Param    versionId path   string true "Version ID"
// @Success  200 {object} model.DocumentVersion
// @Failure  400,403,404 {object} errorPayload
// @Router   /documents/{id}/versions/{versionId} [get]
func GetVersion(svc service.DocumentService) fiber.Handler {
	return documentHandler(func(c *fiber.Ctx, userID, id uuid.UUID) error {
		versionID, ok := paramUUID(c, "versionId")
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid version id format")
		}
		v, err := svc.GetVersion(c.UserContext(), userID, id, versionID)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(v)
	})
}

// DownloadDocument returns a pre-signed download URL.
//
// @Summary  Get a download URL
// @Tags     documents
// @Produce  json
// @Param    X-User-ID  header string true  "Caller ID"
// @Param    id         path   string true  "Document ID"
// @Param    version_id query  string false "Version ID, latest confirmed when omitted"
// @Success  200 {object} service.DownloadLink
// @Failure  400,403,404,409 {object} errorPayload
// @Router   /documents/{id}/download [get]
func DownloadDocument(svc service.DocumentService) fiber.Handler {
	return documentHandler(func(c *fiber.Ctx, userID, id uuid.UUID) error {
		var versionID uuid.UUID
		if raw := c.Query("version_id"); raw != "" {
			var err error
			if versionID, err = uuid.Parse(raw); err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid version_id format")
			}
		}
		link, err := svc.DownloadURL(c.UserContext(), userID, id, versionID)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(link)
	})
}

// PublishDocument moves a document to PUBLISHED.
//
// @Summary  Publish a document
// @Tags     documents
// @Produce  json
// @Param    X-User-ID header string true "Caller ID"
// @Param    id        path   string true "Document ID"
// @Success  200 {object} model.Document
// @Failure  400,403,404 {object} errorPayload
// @Router   /documents/{id}/publish [post]
func PublishDocument(svc service.DocumentService) fiber.Handler {
	return documentHandler(func(c *fiber.Ctx, userID, id uuid.UUID) error {
		doc, err := svc.Publish(c.UserContext(), userID, id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(doc)
	})
}

// UnpublishDocument moves a document back to DRAFT.
//
// @Summary  Unpublish a document
// @Tags     documents
// @Produce  json
// @Param    X-User-ID header string true "Caller ID"
// @Param    id        path   string true "Document ID"
// @Success  200 {object} model.Document
// @Failure  400,403,404 {object} errorPayload
// @Router   /documents/{id}/unpublish [post]
func UnpublishDocument(svc service.DocumentService) fiber.Handler {
	return documentHandler(func(c *fiber.Ctx, userID, id uuid.UUID) error {
		doc, err := svc.Unpublish(c.UserContext(), userID, id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(doc)
	})
}

// documentHandler resolves the caller and the :id parameter before calling fn.
func documentHandler(fn func(c *fiber.Ctx, userID, id uuid.UUID) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := middleware.UserID(c)
		if !ok {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "missing caller identity")
		}
		id, ok := paramUUID(c, "id")
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		return fn(c, userID, id)
	}
}
