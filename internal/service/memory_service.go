package service

import (
	"context"

	"keepsake/internal/models"
	"keepsake/internal/repository"
	"keepsake/internal/validation"
)

// MemoryInput carries the user-editable fields of a memory.
type MemoryInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Area        string   `json:"area"`
	Location    string   `json:"location"`
	Date        string   `json:"date"`
	Categories  []string `json:"categories"`
	Attribution string   `json:"attribution"`
	Rotation    *int     `json:"rotation"`
}

// MemoryService implements the owner-scoped memory operations. Every lookup
// is owner-checked; a memory belonging to someone else is reported as
// not-found, indistinguishable from one that does not exist.
type MemoryService struct {
	repo   repository.MemoryRepository
	images *ImageService
}

// NewMemoryService returns a new MemoryService.
func NewMemoryService(repo repository.MemoryRepository, images *ImageService) *MemoryService {
	return &MemoryService{repo: repo, images: images}
}

func (s *MemoryService) validate(in MemoryInput) error {
	if err := validation.ValidateTitle(in.Title); err != nil {
		return models.NewValidationError(err.Error())
	}
	if err := validation.ValidateDescription(in.Description); err != nil {
		return models.NewValidationError(err.Error())
	}
	for _, f := range []struct{ name, value string }{
		{"area", in.Area},
		{"location", in.Location},
		{"date", in.Date},
		{"attribution", in.Attribution},
	} {
		if err := validation.ValidateShortField(f.name, f.value); err != nil {
			return models.NewValidationError(err.Error())
		}
	}
	return nil
}

func (s *MemoryService) apply(memory *models.Memory, in MemoryInput) error {
	categories, err := validation.CleanCategories(in.Categories)
	if err != nil {
		return models.NewValidationError(err.Error())
	}
	memory.Title = validation.CleanText(in.Title)
	memory.Description = in.Description
	memory.Area = validation.CleanText(in.Area)
	memory.Location = validation.CleanText(in.Location)
	memory.Date = validation.CleanText(in.Date)
	memory.Categories = categories
	memory.Attribution = validation.CleanText(in.Attribution)
	if in.Rotation != nil {
		memory.Rotation = NormalizeRotation(*in.Rotation)
	}
	return nil
}

// Create stores a new memory with its optional uploaded source file. When the
// file cannot be stored the database row is rolled back so no orphan records
// remain.
func (s *MemoryService) Create(ctx context.Context, userID uint, in MemoryInput, filename string, content []byte) (*models.Memory, error) {
	if userID == 0 {
		return nil, models.NewUnauthorizedError("Sign in required")
	}
	if err := s.validate(in); err != nil {
		return nil, err
	}

	memory := &models.Memory{UserID: userID}
	if err := s.apply(memory, in); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, memory); err != nil {
		return nil, err
	}

	if len(content) > 0 {
		if err := s.images.Attach(memory, filename, content); err != nil {
			_ = s.repo.Delete(ctx, memory.ID)
			return nil, err
		}
		if err := s.repo.Update(ctx, memory); err != nil {
			s.images.Remove(memory)
			return nil, err
		}
	}

	return memory, nil
}

// Get returns the memory when it exists and belongs to the user.
func (s *MemoryService) Get(ctx context.Context, userID, id uint) (*models.Memory, error) {
	memory, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !memory.CanModify(userID) {
		return nil, models.NewNotFoundError("Memory", id)
	}
	return memory, nil
}

// List returns the user's memories, newest first, with the total count for
// pagination.
func (s *MemoryService) List(ctx context.Context, userID uint, limit, offset int) ([]models.Memory, int64, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// Update applies field changes and an optional replacement source file.
func (s *MemoryService) Update(ctx context.Context, userID, id uint, in MemoryInput, filename string, content []byte) (*models.Memory, error) {
	memory, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.validate(in); err != nil {
		return nil, err
	}
	if err := s.apply(memory, in); err != nil {
		return nil, err
	}

	if len(content) > 0 {
		// Check the replacement before discarding the current files, so a
		// rejected upload leaves the stored image servable.
		if err := s.images.Validate(content); err != nil {
			return nil, err
		}
		s.images.Remove(memory)
		if err := s.images.Attach(memory, filename, content); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, memory); err != nil {
		return nil, err
	}
	return memory, nil
}

// Delete removes the memory and its stored files.
func (s *MemoryService) Delete(ctx context.Context, userID, id uint) error {
	memory, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, memory.ID); err != nil {
		return err
	}
	s.images.Remove(memory)
	return nil
}
