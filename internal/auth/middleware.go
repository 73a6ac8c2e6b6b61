package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"restricted-backend/internal/engine"
	"restricted-backend/internal/identity"
)

// IdentityMiddleware returns a Fiber middleware that validates a bearer
// token if one is presented and sets the Identity on the request. Requests
// without a token proceed as anonymous: public resources are readable
// without an account, so the middleware never rejects for a missing header,
// only for a bad token.
func IdentityMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return c.Next()
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return engine.UnauthorizedError("Invalid auth header format")
		}

		claims, err := ParseAccessToken(parts[1], secret)
		if err != nil {
			return engine.UnauthorizedError("Invalid or expired token")
		}

		identity.Set(c, &identity.Identity{
			Name:     claims.Subject,
			Sysadmin: claims.Sysadmin,
		})

		return c.Next()
	}
}

// RequireSysadmin is a Fiber middleware that checks the authenticated user
// has site-wide admin rights.
func RequireSysadmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := identity.FromContext(c)
		if id == nil {
			return engine.UnauthorizedError("Missing auth token")
		}
		if !id.IsSysadmin() {
			return engine.ForbiddenError("Sysadmin access required")
		}
		return c.Next()
	}
}
