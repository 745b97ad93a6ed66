package server

import (
	"keepsake/internal/models"
	"keepsake/internal/service"

	"github.com/gofiber/fiber/v2"
)

// moderationAlertFor maps a transition action to its failure alert string.
func moderationAlertFor(action string) string {
	switch action {
	case "approve":
		return service.MsgApproveFailed
	case "reject":
		return service.MsgRejectFailed
	default:
		return service.MsgUnmoderateFailed
	}
}

func (s *Server) moderationQueue(c *fiber.Ctx, kind service.ModerationQueueKind) error {
	page := parsePage(c, memoryPageSize)

	scrapbooks, err := s.moderationService.Queue(c.UserContext(), kind, page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}

	// Queue pages are the admin's scrapbook index; remember them the same
	// way the owner-facing index does.
	s.rememberPath(c, s.sessions.SetScrapbookIndexPath)

	return c.JSON(fiber.Map{
		"scrapbooks": scrapbooks,
		"queue":      string(kind),
		"page":       page.Number,
		"return_to":  requestPath(c),
	})
}

// GetUnmoderatedScrapbooks lists scrapbooks awaiting review, oldest first.
func (s *Server) GetUnmoderatedScrapbooks(c *fiber.Ctx) error {
	return s.moderationQueue(c, service.QueueUnmoderated)
}

// GetModeratedScrapbooks lists decided scrapbooks, most recent decision
// first.
func (s *Server) GetModeratedScrapbooks(c *fiber.Ctx) error {
	return s.moderationQueue(c, service.QueueModerated)
}

// GetReportedScrapbooks lists rejected scrapbooks oldest decision first. The
// endpoint is behind the reported_queue feature flag while it rolls out.
func (s *Server) GetReportedScrapbooks(c *fiber.Ctx) error {
	if !s.featureFlags.Enabled("reported_queue", currentUserID(c)) {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("Queue", "reported"))
	}
	return s.moderationQueue(c, service.QueueReported)
}

// GetScrapbookForReview shows any scrapbook with a page of its memories in
// display order, regardless of owner.
func (s *Server) GetScrapbookForReview(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	scrapbook, err := s.moderationService.GetForReview(c.UserContext(), id)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}

	memories, err := s.scrapbookMemoriesForReview(c, scrapbook)
	if err != nil {
		return models.RespondWithError(c, models.StatusForError(err), err)
	}

	page := parsePage(c, memoryPageSize)
	return c.JSON(fiber.Map{
		"scrapbook":   scrapbook,
		"memories":    pageOfMemories(memories, page),
		"page":        page.Number,
		"total_count": len(memories),
	})
}

func (s *Server) scrapbookMemoriesForReview(c *fiber.Ctx, scrapbook *models.Scrapbook) ([]models.Memory, error) {
	ids := make([]uint, 0, len(scrapbook.ScrapbookMemories))
	for _, sm := range scrapbook.ScrapbookMemories {
		ids = append(ids, sm.MemoryID)
	}
	loaded, err := s.memoryRepo.GetByIDs(c.UserContext(), ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]models.Memory, len(loaded))
	for _, m := range loaded {
		byID[m.ID] = m
	}
	ordered := make([]models.Memory, 0, len(ids))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			ordered = append(ordered, m)
		}
	}
	return ordered, nil
}

func (s *Server) moderationTransition(c *fiber.Ctx, action, notice string, apply func(moderatorID, id uint) error) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := apply(currentUserID(c), id); err != nil {
		return c.Status(models.StatusForError(err)).JSON(fiber.Map{
			"error": moderationAlertFor(action),
			"alert": models.ErrorMessage(err),
		})
	}

	redirect := s.redirectTarget(c, func(sess sessionPaths) string {
		return sess.scrapbook
	}, "/api/admin/moderation/scrapbooks")

	return c.JSON(fiber.Map{
		"message":     notice,
		"redirect_to": redirect,
	})
}

// ApproveScrapbook marks a scrapbook approved.
func (s *Server) ApproveScrapbook(c *fiber.Ctx) error {
	return s.moderationTransition(c, "approve", service.MsgApproved, func(moderatorID, id uint) error {
		return s.moderationService.Approve(c.UserContext(), moderatorID, id)
	})
}

// RejectScrapbook marks a scrapbook rejected with an optional reason.
func (s *Server) RejectScrapbook(c *fiber.Ctx) error {
	var req struct {
		Reason string `json:"reason"`
	}
	// Reason is optional; an empty or non-JSON body means no reason given.
	_ = c.BodyParser(&req)

	return s.moderationTransition(c, "reject", service.MsgRejected, func(moderatorID, id uint) error {
		return s.moderationService.Reject(c.UserContext(), moderatorID, id, req.Reason)
	})
}

// UnmoderateScrapbook returns a rejected scrapbook to the review queue.
func (s *Server) UnmoderateScrapbook(c *fiber.Ctx) error {
	return s.moderationTransition(c, "unmoderate", service.MsgUnmoderated, func(moderatorID, id uint) error {
		return s.moderationService.Unmoderate(c.UserContext(), moderatorID, id)
	})
}
