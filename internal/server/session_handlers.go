package server

import (
	"log/slog"
	"time"

	"keepsake/internal/middleware"
	"keepsake/internal/models"

	"github.com/gofiber/fiber/v2"
)

// SignIn exchanges credentials for a session cookie.
func (s *Server) SignIn(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.Email == "" || req.Password == "" {
		return models.RespondWithError(c, fiber.StatusUnprocessableEntity,
			models.NewValidationError("Email and password are required"))
	}

	if s.sessions == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewInternalError(fiber.ErrServiceUnavailable))
	}

	user, token, err := s.authenticator.SignIn(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return c.Status(models.StatusForError(err)).JSON(fiber.Map{
			"error": "Could not sign in",
			"alert": models.ErrorMessage(err),
		})
	}

	sid, err := s.sessions.Create(c.UserContext(), token)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	c.Cookie(&fiber.Cookie{
		Name:     s.config.SessionCookieName,
		Value:    sid,
		HTTPOnly: true,
		SameSite: "Lax",
		Secure:   s.config.Env == "production",
		Expires:  time.Now().Add(time.Duration(s.config.SessionTTLHours) * time.Hour),
	})

	middleware.Logger.InfoContext(c.UserContext(), "user signed in",
		slog.Uint64("user_id", uint64(user.ID)),
	)

	return c.JSON(fiber.Map{
		"message": "Successfully signed in",
		"user": fiber.Map{
			"id":       user.ID,
			"username": user.Username,
			"is_admin": user.IsAdmin,
		},
	})
}

// SignOut destroys the session and revokes its auth token. Signing out
// without a session still succeeds.
func (s *Server) SignOut(c *fiber.Ctx) error {
	sid := c.Cookies(s.config.SessionCookieName)
	if sid != "" && s.sessions != nil {
		if err := s.sessions.Destroy(c.UserContext(), sid); err != nil {
			middleware.Logger.WarnContext(c.UserContext(), "session destroy failed",
				slog.String("error", err.Error()),
			)
		}
	}

	c.Cookie(&fiber.Cookie{
		Name:     s.config.SessionCookieName,
		Value:    "",
		HTTPOnly: true,
		Expires:  time.Now().Add(-time.Hour),
	})

	return c.JSON(fiber.Map{"message": "Signed out"})
}
