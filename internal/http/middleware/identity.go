package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	// UserIDHeader carries the authenticated caller's ID, set by the gateway in front of the API.
	UserIDHeader = "X-User-ID"
	// UserIDLocalKey is the key used to store the caller's uuid.UUID in Fiber's context locals.
	UserIDLocalKey = "user_id"
)

// Identity rejects requests without a valid X-User-ID header with 401 and stores the
// parsed ID in context locals for handlers.
func Identity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Get(UserIDHeader)
		if raw == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing "+UserIDHeader+" header")
		}
		id, err := uuid.Parse(raw)
		if err != nil || id == uuid.Nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid "+UserIDHeader+" header")
		}

		c.Locals(UserIDLocalKey, id)
		return c.Next()
	}
}

// UserID returns the caller resolved by Identity.
func UserID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, ok := c.Locals(UserIDLocalKey).(uuid.UUID)
	return id, ok
}
