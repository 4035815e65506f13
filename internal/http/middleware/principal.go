package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/utmlink/internal/app/model"
)

// Identity headers set by the authenticating proxy in front of the API.
const (
	PrincipalHeader      = "X-Principal"
	PrincipalRolesHeader = "X-Principal-Roles"
	localPrincipal       = "principal"
)

// Principal reads the caller identity from the request headers and rejects
// requests that carry none.
func Principal() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := strings.TrimSpace(c.Get(PrincipalHeader))
		if id == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":     "missing " + PrincipalHeader + " header",
				"errorKind": "PermissionDenied",
			})
		}

		var roles []string
		for _, role := range strings.Split(c.Get(PrincipalRolesHeader), ",") {
			if role = strings.ToLower(strings.TrimSpace(role)); role != "" {
				roles = append(roles, role)
			}
		}

		c.Locals(localPrincipal, model.Principal{ID: id, Roles: roles})
		return c.Next()
	}
}

// PrincipalFrom returns the caller stored by Principal. Without the
// middleware the zero Principal is returned, which owns nothing.
func PrincipalFrom(c *fiber.Ctx) model.Principal {
	p, _ := principalFrom(c)
	return p
}

func principalFrom(c *fiber.Ctx) (model.Principal, bool) {
	p, ok := c.Locals(localPrincipal).(model.Principal)
	return p, ok
}
