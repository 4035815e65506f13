package handler

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/utmlink/internal/app/service"
	"go.uber.org/zap"
)

const kindValidation = "ValidationError"

var kindStatus = map[string]int{
	"InvalidURL":              fiber.StatusBadRequest,
	"BlockedDomain":           fiber.StatusBadRequest,
	"InvalidAlias":            fiber.StatusBadRequest,
	"ExpiryInPast":            fiber.StatusBadRequest,
	"CampaignValidationError": fiber.StatusBadRequest,
	"InvalidStatus":           fiber.StatusBadRequest,
	"PermissionDenied":        fiber.StatusForbidden,
	"NotFound":                fiber.StatusNotFound,
	"AliasTaken":              fiber.StatusConflict,
	"Inactive":                fiber.StatusGone,
	"Expired":                 fiber.StatusGone,
	"RateLimitExceeded":       fiber.StatusTooManyRequests,
	"CodeSpaceExhausted":      fiber.StatusServiceUnavailable,
	"StorageError":            fiber.StatusInternalServerError,
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// writeError maps a service error to its HTTP status and a JSON body carrying
// the error kind. Internal details of storage failures are not exposed.
func writeError(c *fiber.Ctx, logger *zap.Logger, op string, err error) error {
	kind := service.Kind(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = fiber.StatusInternalServerError
	}

	message := err.Error()
	if status >= fiber.StatusInternalServerError {
		logger.Error(op+" failed", zap.String("kind", kind), zap.Error(err))
		message = "internal server error"
	} else {
		logger.Debug(op+" rejected", zap.String("kind", kind), zap.Error(err))
	}

	return c.Status(status).JSON(fiber.Map{
		"error":     message,
		"errorKind": kind,
	})
}

// parseBody decodes the JSON body into dst and runs struct validation.
// When handled is true a 400 response has been written and err is the
// result of writing it.
func parseBody(c *fiber.Ctx, dst any) (handled bool, err error) {
	if err := c.BodyParser(dst); err != nil {
		return true, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":     "invalid request body",
			"errorKind": kindValidation,
		})
	}
	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return true, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":     err.Error(),
				"errorKind": kindValidation,
			})
		}
		details := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			details = append(details, validationMessage(fe))
		}
		return true, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":     "validation failed",
			"errorKind": kindValidation,
			"details":   details,
		})
	}
	return false, nil
}

func validationMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return field + " must be at least " + fe.Param()
	case "max":
		return field + " must be at most " + fe.Param()
	case "oneof":
		return field + " must be one of: " + fe.Param()
	default:
		return field + " is invalid"
	}
}
