package middleware

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// SessionResolver resolves an opaque session cookie value to the signed-in
// user. Implemented by the session store; defined here to keep the middleware
// free of a dependency on the session package.
type SessionResolver interface {
	Resolve(ctx context.Context, sessionID string) (userID uint, isAdmin bool, err error)
}

var (
	resolver          SessionResolver
	sessionCookieName string
)

// InitAuth wires the session resolver and cookie name used by AuthRequired.
func InitAuth(r SessionResolver, cookieName string) {
	resolver = r
	sessionCookieName = cookieName
}

// AuthRequired enforces a valid session cookie for protected routes. On
// success the user ID, admin flag and session ID are stored in Fiber locals.
func AuthRequired(c *fiber.Ctx) error {
	sid := c.Cookies(sessionCookieName)
	if sid == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	if resolver == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Session store unavailable",
		})
	}

	userID, isAdmin, err := resolver.Resolve(c.UserContext(), sid)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid or expired session",
		})
	}

	c.Locals("sessionID", sid)
	c.Locals("userID", userID)
	c.Locals("isAdmin", isAdmin)

	// Sync to the request context so the ctx-aware logger picks them up.
	ctx := context.WithValue(c.UserContext(), UserIDKey, userID)
	ctx = context.WithValue(ctx, SessionIDKey, sid)
	c.SetUserContext(ctx)

	return c.Next()
}

// AdminRequired enforces that the session user is an administrator. Must run
// after AuthRequired.
func AdminRequired(c *fiber.Ctx) error {
	isAdmin, ok := c.Locals("isAdmin").(bool)
	if !ok || !isAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Administrator access required",
		})
	}
	return c.Next()
}
