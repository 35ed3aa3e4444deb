package handler

import (
	"errors"
	"fmt"
	"mime"
	"reflect"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"docvault/internal/model"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateBody checks dto's `validate` tags and reports the first failure as a *model.ValidationError.
func validateBody(dto any) error {
	err := validate.Struct(dto)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return &model.ValidationError{Message: err.Error()}
	}
	e := errs[0]
	return &model.ValidationError{Field: e.Field(), Message: describe(e)}
}

func describe(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "uuid":
		return "must be a UUID"
	case "oneof":
		return "must be one of " + e.Param()
	case "len":
		return "must be exactly " + e.Param() + " characters"
	case "hexadecimal":
		return "must be hexadecimal"
	case "min", "gte":
		return "must be at least " + e.Param()
	case "max", "lte":
		return "must be at most " + e.Param()
	default:
		return fmt.Sprintf("failed on %q", e.Tag())
	}
}

// parseBody decodes the JSON body into dto and validates it.
func parseBody(c *fiber.Ctx, dto any) error {
	if err := c.BodyParser(dto); err != nil {
		return &model.ValidationError{Message: "malformed request body"}
	}
	return validateBody(dto)
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(c *fiber.Ctx, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

// contentType resolves an upload's media type without parameters. Generic or missing
// client types are replaced by sniffing the first bytes of the content.
func contentType(declared string, head []byte) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
		return mt
	}
	detected := mimetype.Detect(head).String()
	if mt, _, err := mime.ParseMediaType(detected); err == nil {
		return mt
	}
	return "application/octet-stream"
}
