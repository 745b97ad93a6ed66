package service

import (
	"context"

	"keepsake/internal/models"
	"keepsake/internal/repository"
	"keepsake/internal/validation"
)

// ScrapbookInput carries the user-editable fields of a scrapbook.
type ScrapbookInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ScrapbookUpdateInput combines field changes with membership reordering and
// detachment. The three effects are applied atomically.
type ScrapbookUpdateInput struct {
	ScrapbookInput
	Ordering []repository.MembershipOrdering `json:"ordering"`
	Deleted  []uint                          `json:"deleted"`
}

// ScrapbookView is a scrapbook with its memories resolved in display order.
type ScrapbookView struct {
	Scrapbook *models.Scrapbook `json:"scrapbook"`
	Memories  []models.Memory   `json:"memories"`
}

// ScrapbookService implements the owner-scoped scrapbook operations. As with
// memories, another user's scrapbook is reported as not-found.
type ScrapbookService struct {
	scrapbooks repository.ScrapbookRepository
	memories   repository.MemoryRepository
}

// NewScrapbookService returns a new ScrapbookService.
func NewScrapbookService(scrapbooks repository.ScrapbookRepository, memories repository.MemoryRepository) *ScrapbookService {
	return &ScrapbookService{scrapbooks: scrapbooks, memories: memories}
}

func (s *ScrapbookService) validate(in ScrapbookInput) error {
	if err := validation.ValidateTitle(in.Title); err != nil {
		return models.NewValidationError(err.Error())
	}
	if err := validation.ValidateDescription(in.Description); err != nil {
		return models.NewValidationError(err.Error())
	}
	return nil
}

// Create stores a new scrapbook in the unmoderated state.
func (s *ScrapbookService) Create(ctx context.Context, userID uint, in ScrapbookInput) (*models.Scrapbook, error) {
	if userID == 0 {
		return nil, models.NewUnauthorizedError("Sign in required")
	}
	if err := s.validate(in); err != nil {
		return nil, err
	}

	scrapbook := &models.Scrapbook{
		UserID:          userID,
		Title:           validation.CleanText(in.Title),
		Description:     in.Description,
		ModerationState: models.ModerationStateUnmoderated,
	}
	if err := s.scrapbooks.Create(ctx, scrapbook); err != nil {
		return nil, err
	}
	return scrapbook, nil
}

// Get returns the scrapbook when it exists and belongs to the user.
func (s *ScrapbookService) Get(ctx context.Context, userID, id uint) (*models.Scrapbook, error) {
	scrapbook, err := s.scrapbooks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !scrapbook.CanModify(userID) {
		return nil, models.NewNotFoundError("Scrapbook", id)
	}
	return scrapbook, nil
}

// View resolves the scrapbook's memories in display order. All memories are
// loaded in a single batched query regardless of scrapbook size.
func (s *ScrapbookService) View(ctx context.Context, userID, id uint) (*ScrapbookView, error) {
	scrapbook, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	memories, err := s.resolveMemories(ctx, scrapbook)
	if err != nil {
		return nil, err
	}
	return &ScrapbookView{Scrapbook: scrapbook, Memories: memories}, nil
}

func (s *ScrapbookService) resolveMemories(ctx context.Context, scrapbook *models.Scrapbook) ([]models.Memory, error) {
	ids := make([]uint, 0, len(scrapbook.ScrapbookMemories))
	for _, sm := range scrapbook.ScrapbookMemories {
		ids = append(ids, sm.MemoryID)
	}

	loaded, err := s.memories.GetByIDs(ctx, ids)
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

// List returns the user's scrapbooks, newest first, with the total count.
func (s *ScrapbookService) List(ctx context.Context, userID uint, limit, offset int) ([]models.Scrapbook, int64, error) {
	return s.scrapbooks.ListByUser(ctx, userID, limit, offset)
}

// Update applies field, ordering and detachment changes in one transaction.
// If any part fails nothing is applied.
func (s *ScrapbookService) Update(ctx context.Context, userID, id uint, in ScrapbookUpdateInput) (*models.Scrapbook, error) {
	scrapbook, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.validate(in.ScrapbookInput); err != nil {
		return nil, err
	}

	scrapbook.Title = validation.CleanText(in.Title)
	scrapbook.Description = in.Description

	if len(in.Ordering) == 0 && len(in.Deleted) == 0 {
		if err := s.scrapbooks.Update(ctx, scrapbook); err != nil {
			return nil, err
		}
		return scrapbook, nil
	}

	if err := s.scrapbooks.UpdateWithMembership(ctx, scrapbook, in.Ordering, in.Deleted); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, id)
}

// AddMemory appends one of the user's memories to the end of the scrapbook.
// Both the scrapbook and the memory must belong to the user.
func (s *ScrapbookService) AddMemory(ctx context.Context, userID, scrapbookID, memoryID uint) error {
	if _, err := s.Get(ctx, userID, scrapbookID); err != nil {
		return err
	}

	memory, err := s.memories.GetByID(ctx, memoryID)
	if err != nil {
		return err
	}
	if !memory.CanModify(userID) {
		return models.NewNotFoundError("Memory", memoryID)
	}

	return s.scrapbooks.AddMemory(ctx, scrapbookID, memoryID)
}

// Delete removes the scrapbook and its membership rows. The referenced
// memories are left alone.
func (s *ScrapbookService) Delete(ctx context.Context, userID, id uint) error {
	scrapbook, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	return s.scrapbooks.Delete(ctx, scrapbook.ID)
}
