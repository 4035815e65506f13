package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

var corsAllowHeaders = strings.Join([]string{
	fiber.HeaderOrigin,
	fiber.HeaderContentType,
	fiber.HeaderAccept,
	fiber.HeaderAuthorization,
	PrincipalHeader,
	PrincipalRolesHeader,
	RequestIDHeader,
}, ", ")

// CORS allows browser clients from any origin to call the API.
func CORS() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
		c.Set(fiber.HeaderAccessControlAllowMethods, "GET, POST, PATCH, DELETE, OPTIONS")
		c.Set(fiber.HeaderAccessControlAllowHeaders, corsAllowHeaders)
		c.Set(fiber.HeaderAccessControlExposeHeaders, "Content-Length, Content-Type, Content-Disposition, X-Request-ID")
		c.Set(fiber.HeaderAccessControlMaxAge, "86400")

		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusNoContent)
		}

		return c.Next()
	}
}
