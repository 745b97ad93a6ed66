package repository

import (
	"context"
	"errors"

	"keepsake/internal/cache"
	"keepsake/internal/models"

	"gorm.io/gorm"
)

// MemoryRepository defines persistence operations for memories.
type MemoryRepository interface {
	Create(ctx context.Context, memory *models.Memory) error
	GetByID(ctx context.Context, id uint) (*models.Memory, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.Memory, error)
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.Memory, int64, error)
	Update(ctx context.Context, memory *models.Memory) error
	Delete(ctx context.Context, id uint) error
}

type memoryRepository struct {
	db *gorm.DB
}

// NewMemoryRepository returns a new MemoryRepository implementation.
func NewMemoryRepository(db *gorm.DB) MemoryRepository {
	return &memoryRepository{db: db}
}

func (r *memoryRepository) Create(ctx context.Context, memory *models.Memory) error {
	if err := r.db.WithContext(ctx).Create(memory).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *memoryRepository) GetByID(ctx context.Context, id uint) (*models.Memory, error) {
	var memory models.Memory
	key := cache.MemoryKey(id)

	err := cache.Aside(ctx, key, &memory, cache.MemoryTTL, func() error {
		if err := r.db.WithContext(ctx).First(&memory, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Memory", id)
			}
			return models.NewInternalError(err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return &memory, nil
}

// GetByIDs loads the given memories in a single query. Missing IDs are simply
// absent from the result; callers decide whether that matters.
func (r *memoryRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.Memory, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var memories []models.Memory
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&memories).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return memories, nil
}

func (r *memoryRepository) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.Memory, int64, error) {
	limit, offset = clampPage(limit, offset)

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Memory{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var memories []models.Memory
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&memories).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return memories, total, nil
}

func (r *memoryRepository) Update(ctx context.Context, memory *models.Memory) error {
	if err := r.db.WithContext(ctx).Save(memory).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateMemory(ctx, memory.ID)
	return nil
}

func (r *memoryRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.Memory{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateMemory(ctx, id)
	return nil
}
