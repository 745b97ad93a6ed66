package service

import (
	"context"
	"errors"
	"log/slog"

	"keepsake/internal/cache"
	"keepsake/internal/middleware"
	"keepsake/internal/models"
	"keepsake/internal/observability"
	"keepsake/internal/repository"
)

// Notices returned alongside successful moderation decisions, and the
// corresponding failure messages.
const (
	MsgApproved    = "Scrapbook approved"
	MsgRejected    = "Scrapbook rejected"
	MsgUnmoderated = "Scrapbook unmoderated"

	MsgApproveFailed    = "Could not approve scrapbook"
	MsgRejectFailed     = "Could not reject scrapbook"
	MsgUnmoderateFailed = "Could not unmoderate scrapbook"
)

// ModerationQueueKind names the three admin listings.
type ModerationQueueKind string

const (
	QueueUnmoderated ModerationQueueKind = "unmoderated"
	QueueModerated   ModerationQueueKind = "moderated"
	QueueReported    ModerationQueueKind = "reported"
)

// ModerationService implements admin review of scrapbooks: the three triage
// queues and the state transitions.
type ModerationService struct {
	scrapbooks repository.ScrapbookRepository
}

// NewModerationService returns a new ModerationService.
func NewModerationService(scrapbooks repository.ScrapbookRepository) *ModerationService {
	return &ModerationService{scrapbooks: scrapbooks}
}

// Approve moves the scrapbook to approved. Allowed from unmoderated and
// rejected; approving an approved scrapbook is a conflict.
func (s *ModerationService) Approve(ctx context.Context, moderatorID, id uint) error {
	return s.transition(ctx, "approve", moderatorID, id, models.ModerationStateApproved, "")
}

// Reject moves the scrapbook to rejected with the given reason. Allowed from
// unmoderated and approved; rejecting a rejected scrapbook is a conflict.
func (s *ModerationService) Reject(ctx context.Context, moderatorID, id uint, reason string) error {
	return s.transition(ctx, "reject", moderatorID, id, models.ModerationStateRejected, reason)
}

// Unmoderate returns a rejected scrapbook to the review queue. It applies
// only to rejected scrapbooks.
func (s *ModerationService) Unmoderate(ctx context.Context, moderatorID, id uint) error {
	return s.transition(ctx, "unmoderate", moderatorID, id, models.ModerationStateUnmoderated, "")
}

func (s *ModerationService) transition(ctx context.Context, action string, moderatorID, id uint, to models.ModerationState, reason string) error {
	err := s.scrapbooks.Transition(ctx, id, to, moderatorID, reason)
	observability.RecordModeration(action, transitionOutcome(err))
	if err != nil {
		middleware.Logger.WarnContext(ctx, "moderation transition refused",
			slog.String("action", action),
			slog.Uint64("scrapbook_id", uint64(id)),
			slog.String("error", err.Error()),
		)
		return err
	}

	middleware.Logger.InfoContext(ctx, "moderation transition applied",
		slog.String("action", action),
		slog.Uint64("scrapbook_id", uint64(id)),
		slog.Uint64("moderator_id", uint64(moderatorID)),
	)
	return nil
}

func transitionOutcome(err error) string {
	if err == nil {
		return "applied"
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case "CONFLICT":
			return "conflict"
		case "NOT_FOUND":
			return "not_found"
		}
	}
	return "error"
}

// Queue returns one of the three admin listings. The first page of each
// queue is briefly cached; state transitions invalidate it.
func (s *ModerationService) Queue(ctx context.Context, kind ModerationQueueKind, limit, offset int) ([]models.Scrapbook, error) {
	load := func() ([]models.Scrapbook, error) {
		switch kind {
		case QueueModerated:
			return s.scrapbooks.Moderated(ctx, limit, offset)
		case QueueReported:
			return s.scrapbooks.Reported(ctx, limit, offset)
		case QueueUnmoderated:
			return s.scrapbooks.Unmoderated(ctx, limit, offset)
		default:
			return nil, models.NewValidationError("Unknown moderation queue")
		}
	}

	if offset != 0 {
		return load()
	}

	var scrapbooks []models.Scrapbook
	err := cache.Aside(ctx, cache.ModerationQueue(string(kind)), &scrapbooks, cache.ModerationQueueTTL, func() error {
		loaded, err := load()
		if err != nil {
			return err
		}
		scrapbooks = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return scrapbooks, nil
}

// GetForReview loads a scrapbook for the admin detail view without ownership
// restrictions.
func (s *ModerationService) GetForReview(ctx context.Context, id uint) (*models.Scrapbook, error) {
	return s.scrapbooks.GetByID(ctx, id)
}
