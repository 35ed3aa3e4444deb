package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"docvault/internal/http/middleware"
	"docvault/internal/service"
)

type grantRequest struct {
	UserID     string `json:"user_id" validate:"required,uuid"`
	Permission string `json:"permission" validate:"required,oneof=READ WRITE DELETE"`
}

// GetAccess reports the caller's strongest permission on a document.
//
// @Summary  Caller's access level
// @Tags     permissions
// @Produce  json
// @Param    X-User-ID header string true "Caller ID"
// @Param    id        path   string true "Document ID"
// @Success  200 {object} accessResponse
// @Failure  400,404 {object} errorPayload
// @Router   /documents/{id}/access [get]
func GetAccess(svc service.PermissionService) fiber.Handler {
	return documentHandler(func(c *fiber.Ctx, userID, id uuid.UUID) error {
		level, ok, err := svc.Highest(c.UserContext(), userID, id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(accessResponse{Permission: level, HasAccess: ok})
	})
}

// ListDocumentPermissions lists the explicit grants on a document.
//
// @Summary  List grants on a document
// @Tags     permissions
// @Produce  json
// @Param    X-User-ID header string true "Caller ID"
// @Param    id        path   string true "Document ID"
// @Success  200 {array} model.DocumentPermission
// @Failure  400,403,404 {object} errorPayload
// @Router   /documents/{id}/permissions [get]
func ListDocumentPermissions(svc service.PermissionService) fiber.Handler {
	return documentHandler(func(c *fiber.Ctx, userID, id uuid.UUID) error {
		perms, err := svc.ListForDocument(c.UserContext(), userID, id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(perms)
	})
}

// GrantPermission grants or updates a user's permission on a document.
//
// @Summary  Grant a permission
// @Tags     permissions
// @Accept   json
// @Produce  json
// @Param    X-User-ID header string       true "Caller ID"
// @Param    id        path   string       true "Document ID"
// @Param    body      body   grantRequest true "Grant"
// @Success  201 {object} model.DocumentPermission
// @Failure  400,403,404,409 {object} errorPayload
// @Router   /documents/{id}/permissions [post]
func GrantPermission(svc service.PermissionService) fiber.Handler {
	return documentHandler(func(c *fiber.Ctx, userID, id uuid.UUID) error {
		var req grantRequest
		if err := parseBody(c, &req); err != nil {
			return writeServiceError(c, err)
		}
		target, err := uuid.Parse(req.UserID)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid user_id format")
		}

		p, err := svc.Grant(c.UserContext(), userID, service.GrantInput{
			DocumentID: id,
			UserID:     target,
			Permission: req.Permission,
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(p)
	})
}

// RevokePermission deletes a grant by its ID.
//
// @Summary  Revoke a permission
// @Tags     permissions
// @Param    X-User-ID header string true "Caller ID"
// @Param    id        path   string true "Permission ID"
// @Success  204
// @Failure  400,403,404,409 {object} errorPayload
// @Router   /permissions/{id} [delete]
func RevokePermission(svc service.PermissionService) fiber.Handler {
	return documentHandler(func(c *fiber.Ctx, userID, id uuid.UUID) error {
		if err := svc.Revoke(c.UserContext(), userID, id); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

// RevokeUserPermission removes a user's grant on a document.
//
// @Summary  Revoke a user's grant on a document
// @Tags     permissions
// @Param    X-User-ID header string true "Caller ID"
// @Param    id        path   string true "Document ID"
// @Param    userId    path   string true "User ID"
// @Success  204
// @Failure  400,403,404,409 {object} errorPayload
// @Router   /documents/{id}/permissions/{userId} [delete]
func RevokeUserPermission(svc service.PermissionService) fiber.Handler {
	return documentHandler(func(c *fiber.Ctx, callerID, id uuid.UUID) error {
		userID, ok := paramUUID(c, "userId")
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid user id format")
		}
		if err := svc.RevokeForUser(c.UserContext(), callerID, id, userID); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

// ListUserPermissions lists the grants held by a user.
//
// @Summary  List a user's grants
// @Tags     permissions
// @Produce  json
// @Param    X-User-ID header string true "Caller ID"
// @Param    id        path   string true "User ID"
// @Success  200 {array} model.DocumentPermission
// @Failure  400,403,404 {object} errorPayload
// @Router   /users/{id}/permissions [get]
func ListUserPermissions(svc service.PermissionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		callerID, ok := middleware.UserID(c)
		if !ok {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "missing caller identity")
		}
		userID, ok := paramUUID(c, "id")
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		perms, err := svc.ListForUser(c.UserContext(), callerID, userID)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(perms)
	}
}
