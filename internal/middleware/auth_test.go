package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	userID  uint
	isAdmin bool
	err     error
}

func (s stubResolver) Resolve(_ context.Context, _ string) (uint, bool, error) {
	return s.userID, s.isAdmin, s.err
}

func newAuthTestApp(t *testing.T, r SessionResolver) *fiber.App {
	t.Helper()
	InitAuth(r, "keepsake_session")
	t.Cleanup(func() { InitAuth(nil, "") })

	app := fiber.New()
	app.Get("/me", AuthRequired, func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"user_id": c.Locals("userID")})
	})
	app.Get("/admin", AuthRequired, AdminRequired, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestAuthRequired(t *testing.T) {
	t.Run("missing cookie", func(t *testing.T) {
		app := newAuthTestApp(t, stubResolver{userID: 1})

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/me", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("expired session", func(t *testing.T) {
		app := newAuthTestApp(t, stubResolver{err: errors.New("session not found")})

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.AddCookie(&http.Cookie{Name: "keepsake_session", Value: "stale"})
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("valid session sets locals", func(t *testing.T) {
		app := newAuthTestApp(t, stubResolver{userID: 42})

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.AddCookie(&http.Cookie{Name: "keepsake_session", Value: "sid-1"})
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	})
}

func TestAdminRequired(t *testing.T) {
	t.Run("non-admin is forbidden", func(t *testing.T) {
		app := newAuthTestApp(t, stubResolver{userID: 42})

		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.AddCookie(&http.Cookie{Name: "keepsake_session", Value: "sid-1"})
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("admin passes", func(t *testing.T) {
		app := newAuthTestApp(t, stubResolver{userID: 42, isAdmin: true})

		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.AddCookie(&http.Cookie{Name: "keepsake_session", Value: "sid-1"})
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	})
}
