package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"

	"docvault/internal/http/middleware"
	"docvault/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Probes are public, everything else requires the X-User-ID header.
func RegisterRoutes(app *fiber.App, db *sql.DB, docSvc service.DocumentService, permSvc service.PermissionService) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	docs := app.Group("/documents", middleware.Identity())
	docs.Get("/", ListDocuments(docSvc))
	docs.Post("/", UploadDocument(docSvc))
	docs.Get("/lookup", FindDocumentByFilename(docSvc))
	docs.Post("/uploads", InitiateUpload(docSvc))

	docs.Get("/:id", GetDocument(docSvc))
	docs.Delete("/:id", DeleteDocument(docSvc))
	docs.Get("/:id/download", DownloadDocument(docSvc))
	docs.Post("/:id/publish", PublishDocument(docSvc))
	docs.Post("/:id/unpublish", UnpublishDocument(docSvc))

	docs.Get("/:id/versions", ListVersions(docSvc))
	docs.Get("/:id/versions/:versionId", GetVersion(docSvc))
	docs.Post("/:id/versions/:versionId/confirm", ConfirmUpload(docSvc))

	docs.Get("/:id/access", GetAccess(permSvc))
	docs.Get("/:id/permissions", ListDocumentPermissions(permSvc))
	docs.Post("/:id/permissions", GrantPermission(permSvc))
	docs.Delete("/:id/permissions/:userId", RevokeUserPermission(permSvc))

	app.Delete("/permissions/:id", middleware.Identity(), RevokePermission(permSvc))
	app.Get("/users/:id/permissions", middleware.Identity(), ListUserPermissions(permSvc))
}
