package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"docvault/internal/http/middleware"
	"docvault/internal/model"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "INVALID_ID", "NOT_FOUND", "INTERNAL_ERROR")
// - message: human-readable safe message (no internal details)
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

// writeServiceError maps domain errors to their HTTP status. Their messages carry ids and
// levels only, so they are safe to return. Anything unrecognized becomes a 500.
func writeServiceError(c *fiber.Ctx, err error) error {
	var (
		notFound   *model.NotFoundError
		invalid    *model.ValidationError
		duplicate  *model.DuplicateDocumentError
		constraint *model.ConstraintError
		ownerGrant *model.CannotRevokeOwnerPermissionError
		denied     *model.InsufficientPermissionError
		forbidden  *model.ForbiddenError
		mismatch   *model.ChecksumMismatchError
		state      *model.InvalidStateError
	)

	switch {
	case errors.As(err, &notFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", notFound.Error())
	case errors.As(err, &invalid):
		return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", invalid.Error())
	case errors.As(err, &duplicate):
		return writeError(c, fiber.StatusConflict, "DUPLICATE_CONTENT", duplicate.Error())
	case errors.As(err, &ownerGrant):
		return writeError(c, fiber.StatusConflict, "CANNOT_REVOKE_OWNER", ownerGrant.Error())
	case errors.As(err, &constraint):
		return writeError(c, fiber.StatusConflict, "CONFLICT", "conflicting concurrent update, retry the request")
	case errors.As(err, &denied):
		return writeError(c, fiber.StatusForbidden, "INSUFFICIENT_PERMISSION", denied.Error())
	case errors.As(err, &forbidden):
		return writeError(c, fiber.StatusForbidden, "FORBIDDEN", forbidden.Error())
	case errors.As(err, &mismatch):
		return writeError(c, fiber.StatusUnprocessableEntity, "CHECKSUM_MISMATCH", mismatch.Error())
	case errors.As(err, &state):
		return writeError(c, fiber.StatusConflict, "INVALID_STATE", state.Error())
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var e *fiber.Error
		if !errors.As(err, &e) {
			return writeServiceError(c, err)
		}

		switch e.Code {
		case fiber.StatusBadRequest:
			return writeError(c, e.Code, "BAD_REQUEST", "bad request")
		case fiber.StatusUnauthorized:
			return writeError(c, e.Code, "UNAUTHORIZED", e.Message)
		case fiber.StatusNotFound:
			return writeError(c, e.Code, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, e.Code, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, e.Code, "PAYLOAD_TOO_LARGE", "request body too large")
		default:
			return writeError(c, e.Code, "INTERNAL_ERROR", "internal server error")
		}
	}
}
