package server

import (
	"fmt"

	"keepsake/internal/models"
	"keepsake/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMyScrapbooks lists the signed-in user's scrapbooks with cover memories
// and counts, and remembers the request path for post-destroy redirects.
func (s *Server) GetMyScrapbooks(c *fiber.Ctx) error {
	userID := currentUserID(c)
	page := parsePage(c, memoryPageSize)

	scrapbooks, total, err := s.scrapbookService.List(c.UserContext(), userID, page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}

	payload, err := s.indexPresenter.Present(c.UserContext(), scrapbooks, page.Number, page.Limit, total)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}

	s.rememberPath(c, s.sessions.SetScrapbookIndexPath)

	return c.JSON(fiber.Map{
		"scrapbooks":  payload.Scrapbooks,
		"page":        payload.Page,
		"total_count": payload.TotalCount,
		"total_pages": payload.TotalPages,
		"return_to":   requestPath(c),
	})
}

// GetMyScrapbook shows one scrapbook with a page of its memories in display
// order. The show path is remembered as the memory return path, so deleting
// a memory from inside a scrapbook leads back to it.
func (s *Server) GetMyScrapbook(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	view, err := s.scrapbookService.View(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}

	page := parsePage(c, memoryPageSize)
	memories := pageOfMemories(view.Memories, page)

	s.rememberPath(c, s.sessions.SetMemoryIndexPath)

	return c.JSON(fiber.Map{
		"scrapbook":   view.Scrapbook,
		"memories":    memories,
		"page":        page.Number,
		"total_count": len(view.Memories),
		"return_to":   requestPath(c),
	})
}

func pageOfMemories(memories []models.Memory, page Page) []models.Memory {
	if page.Offset >= len(memories) {
		return []models.Memory{}
	}
	end := page.Offset + page.Limit
	if end > len(memories) {
		end = len(memories)
	}
	return memories[page.Offset:end]
}

// CreateScrapbook stores a new scrapbook; it starts unmoderated.
func (s *Server) CreateScrapbook(c *fiber.Ctx) error {
	var in service.ScrapbookInput
	if err := c.BodyParser(&in); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	scrapbook, err := s.scrapbookService.Create(c.UserContext(), currentUserID(c), in)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"scrapbook": scrapbook})
}

// UpdateScrapbook applies field, ordering and detachment changes atomically
// and points the client back at the show page.
func (s *Server) UpdateScrapbook(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var in service.ScrapbookUpdateInput
	if err := c.BodyParser(&in); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	scrapbook, err := s.scrapbookService.Update(c.UserContext(), currentUserID(c), id, in)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}

	return c.JSON(fiber.Map{
		"scrapbook":   scrapbook,
		"redirect_to": fmt.Sprintf("/api/my/scrapbooks/%d", scrapbook.ID),
	})
}

// AddScrapbookMemory appends one of the user's memories to the end of the
// scrapbook.
func (s *Server) AddScrapbookMemory(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		MemoryID uint `json:"memory_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.MemoryID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid memory reference"))
	}

	if err := s.scrapbookService.AddMemory(c.UserContext(), currentUserID(c), id, req.MemoryID); err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Memory added to scrapbook",
	})
}

// DeleteScrapbook destroys a scrapbook, leaving its memories intact, and
// answers with the redirect target.
func (s *Server) DeleteScrapbook(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.scrapbookService.Delete(c.UserContext(), currentUserID(c), id); err != nil {
		return c.Status(models.StatusForError(err)).JSON(fiber.Map{
			"error": "Could not delete",
			"alert": models.ErrorMessage(err),
		})
	}

	redirect := s.redirectTarget(c, func(sess sessionPaths) string {
		return sess.scrapbook
	}, "/api/my/scrapbooks")

	return c.JSON(fiber.Map{
		"message":     "Successfully deleted",
		"redirect_to": redirect,
	})
}
