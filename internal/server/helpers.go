package server

import (
	"context"
	"errors"

	"keepsake/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// memoryPageSize is the fixed page size of the memories grid.
const memoryPageSize = 30

// Page holds a parsed 1-based page query parameter with its derived window.
type Page struct {
	Number int
	Limit  int
	Offset int
}

// parsePage extracts the 1-based page query parameter with a fixed page size.
func parsePage(c *fiber.Ctx, pageSize int) Page {
	number := c.QueryInt("page", 1)
	if number < 1 {
		number = 1
	}
	return Page{
		Number: number,
		Limit:  pageSize,
		Offset: (number - 1) * pageSize,
	}
}

// parseID extracts a route parameter by name as a positive uint. On failure
// it writes a 400 JSON response and returns errResponseWritten; callers
// should check: if err != nil { return nil }.
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid ID"))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// currentUserID reads the authenticated user ID placed in locals by
// AuthRequired.
func currentUserID(c *fiber.Ctx) uint {
	userID, _ := c.Locals("userID").(uint)
	return userID
}

// currentSessionID reads the session cookie value placed in locals by
// AuthRequired.
func currentSessionID(c *fiber.Ctx) string {
	sid, _ := c.Locals("sessionID").(string)
	return sid
}

// requestPath returns the request path including the raw query string, the
// exact value stored into session index-path slots.
func requestPath(c *fiber.Ctx) string {
	path := c.Path()
	if qs := string(c.Context().URI().QueryString()); qs != "" {
		path += "?" + qs
	}
	return path
}

// rememberPath stores a session index-path slot, best effort. Sessionless
// requests (and Redis outages) are tolerated; the redirect fallback covers
// them.
func (s *Server) rememberPath(c *fiber.Ctx, set func(ctx context.Context, sid, path string) error) {
	if s.sessions == nil {
		return
	}
	sid := currentSessionID(c)
	if sid == "" {
		return
	}
	_ = set(c.UserContext(), sid, requestPath(c))
}

// redirectTarget picks the destroy redirect target: an explicit return_to
// query parameter wins, then the stored session slot, then the fallback
// index path.
func (s *Server) redirectTarget(c *fiber.Ctx, stored func(sess sessionPaths) string, fallback string) string {
	if override := c.Query("return_to"); override != "" {
		return override
	}
	if s.sessions != nil {
		if sid := currentSessionID(c); sid != "" {
			if sess, err := s.sessions.Get(c.UserContext(), sid); err == nil {
				if path := stored(sessionPaths{
					memory:    sess.CurrentMemoryIndexPath,
					scrapbook: sess.CurrentScrapbookIndexPath,
				}); path != "" {
					return path
				}
			}
		}
	}
	return fallback
}

// sessionPaths carries the two index-path slots without exposing the session
// type to handler code.
type sessionPaths struct {
	memory    string
	scrapbook string
}
