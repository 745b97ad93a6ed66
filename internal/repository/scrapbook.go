package repository

import (
	"context"
	"errors"
	"sort"
	"time"

	"keepsake/internal/cache"
	"keepsake/internal/models"

	"gorm.io/gorm"
)

// MembershipOrdering assigns a display position to a memory within a scrapbook.
type MembershipOrdering struct {
	MemoryID uint `json:"memory_id"`
	Ordering int  `json:"ordering"`
}

// orderingShift moves existing orderings out of the way before a reorder so
// the per-scrapbook unique index is never violated mid-transaction.
const orderingShift = 1_000_000

// ScrapbookRepository defines persistence operations for scrapbooks and their
// memory memberships.
type ScrapbookRepository interface {
	Create(ctx context.Context, scrapbook *models.Scrapbook) error
	GetByID(ctx context.Context, id uint) (*models.Scrapbook, error)
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.Scrapbook, int64, error)
	Update(ctx context.Context, scrapbook *models.Scrapbook) error
	UpdateWithMembership(ctx context.Context, scrapbook *models.Scrapbook, ordering []MembershipOrdering, deleted []uint) error
	AddMemory(ctx context.Context, scrapbookID, memoryID uint) error
	Delete(ctx context.Context, id uint) error
	MembershipsForScrapbooks(ctx context.Context, scrapbookIDs []uint) ([]models.ScrapbookMemory, error)

	Unmoderated(ctx context.Context, limit, offset int) ([]models.Scrapbook, error)
	Moderated(ctx context.Context, limit, offset int) ([]models.Scrapbook, error)
	Reported(ctx context.Context, limit, offset int) ([]models.Scrapbook, error)
	Transition(ctx context.Context, id uint, to models.ModerationState, moderatorID uint, reason string) error
}

type scrapbookRepository struct {
	db *gorm.DB
}

// NewScrapbookRepository returns a new ScrapbookRepository implementation.
func NewScrapbookRepository(db *gorm.DB) ScrapbookRepository {
	return &scrapbookRepository{db: db}
}

func (r *scrapbookRepository) Create(ctx context.Context, scrapbook *models.Scrapbook) error {
	if err := r.db.WithContext(ctx).Create(scrapbook).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *scrapbookRepository) GetByID(ctx context.Context, id uint) (*models.Scrapbook, error) {
	var scrapbook models.Scrapbook
	if err := r.db.WithContext(ctx).
		Preload("ScrapbookMemories", func(db *gorm.DB) *gorm.DB {
			return db.Order("ordering ASC")
		}).
		First(&scrapbook, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Scrapbook", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &scrapbook, nil
}

func (r *scrapbookRepository) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.Scrapbook, int64, error) {
	limit, offset = clampPage(limit, offset)

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Scrapbook{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var scrapbooks []models.Scrapbook
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&scrapbooks).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return scrapbooks, total, nil
}

func (r *scrapbookRepository) Update(ctx context.Context, scrapbook *models.Scrapbook) error {
	if err := r.db.WithContext(ctx).Save(scrapbook).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateScrapbook(ctx, scrapbook.ID)
	return nil
}

// UpdateWithMembership applies field changes, a reordering list and a
// detachment list in a single transaction. Either everything is applied or
// nothing is.
func (r *scrapbookRepository) UpdateWithMembership(ctx context.Context, scrapbook *models.Scrapbook, ordering []MembershipOrdering, deleted []uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(scrapbook).Error; err != nil {
			return err
		}

		if len(deleted) > 0 {
			if err := tx.
				Where("scrapbook_id = ? AND memory_id IN ?", scrapbook.ID, deleted).
				Delete(&models.ScrapbookMemory{}).Error; err != nil {
				return err
			}
		}

		if len(ordering) > 0 {
			var rows []models.ScrapbookMemory
			if err := tx.
				Where("scrapbook_id = ?", scrapbook.ID).
				Order("ordering ASC").
				Find(&rows).Error; err != nil {
				return err
			}

			// Requested positions decide the front of the sequence; rows the
			// client left out keep their relative order behind them. Stored
			// orderings are always resequenced to 1..N, so the requested
			// values only rank rows and partial lists leave no gaps.
			requested := make(map[uint]int, len(ordering))
			for _, o := range ordering {
				requested[o.MemoryID] = o.Ordering
			}
			sort.SliceStable(rows, func(i, j int) bool {
				pi, iListed := requested[rows[i].MemoryID]
				pj, jListed := requested[rows[j].MemoryID]
				switch {
				case iListed && jListed:
					return pi < pj
				case iListed:
					return true
				default:
					return false
				}
			})

			// Park current orderings above the target range so the unique
			// (scrapbook_id, ordering) index never trips while positions swap.
			if err := tx.Model(&models.ScrapbookMemory{}).
				Where("scrapbook_id = ?", scrapbook.ID).
				Update("ordering", gorm.Expr("ordering + ?", orderingShift)).Error; err != nil {
				return err
			}
			for position, row := range rows {
				if err := tx.Model(&models.ScrapbookMemory{}).
					Where("id = ?", row.ID).
					Update("ordering", position+1).Error; err != nil {
					return err
				}
			}
		}

		return nil
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateScrapbook(ctx, scrapbook.ID)
	return nil
}

var errMembershipExists = errors.New("membership exists")

// AddMemory appends a memory at the end of the scrapbook's display sequence.
// Each memory appears in a scrapbook at most once.
func (r *scrapbookRepository) AddMemory(ctx context.Context, scrapbookID, memoryID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.ScrapbookMemory{}).
			Where("scrapbook_id = ? AND memory_id = ?", scrapbookID, memoryID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return errMembershipExists
		}

		var maxOrdering *int
		if err := tx.Model(&models.ScrapbookMemory{}).
			Where("scrapbook_id = ?", scrapbookID).
			Select("MAX(ordering)").
			Scan(&maxOrdering).Error; err != nil {
			return err
		}
		next := 1
		if maxOrdering != nil {
			next = *maxOrdering + 1
		}
		return tx.Create(&models.ScrapbookMemory{
			ScrapbookID: scrapbookID,
			MemoryID:    memoryID,
			Ordering:    next,
		}).Error
	})
	if err != nil {
		if errors.Is(err, errMembershipExists) {
			return models.NewConflictError("Memory is already in the scrapbook")
		}
		// A unique-index trip here means a concurrent append took the same
		// ordering slot.
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Scrapbook was modified concurrently, try again")
		}
		return models.NewInternalError(err)
	}
	cache.InvalidateScrapbook(ctx, scrapbookID)
	return nil
}

func (r *scrapbookRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Membership rows are owned by the scrapbook; the referenced memories
		// are not and stay untouched.
		if err := tx.Where("scrapbook_id = ?", id).Delete(&models.ScrapbookMemory{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Scrapbook{}, id).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateScrapbook(ctx, id)
	return nil
}

// MembershipsForScrapbooks loads the membership rows for all given scrapbooks
// in one query, memories preloaded, ordered per scrapbook.
func (r *scrapbookRepository) MembershipsForScrapbooks(ctx context.Context, scrapbookIDs []uint) ([]models.ScrapbookMemory, error) {
	if len(scrapbookIDs) == 0 {
		return nil, nil
	}
	var memberships []models.ScrapbookMemory
	if err := r.db.WithContext(ctx).
		Preload("Memory").
		Where("scrapbook_id IN ?", scrapbookIDs).
		Order("scrapbook_id ASC, ordering ASC").
		Find(&memberships).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return memberships, nil
}

func (r *scrapbookRepository) Unmoderated(ctx context.Context, limit, offset int) ([]models.Scrapbook, error) {
	limit, offset = clampPage(limit, offset)
	var scrapbooks []models.Scrapbook
	if err := r.db.WithContext(ctx).
		Where("moderation_state = ?", models.ModerationStateUnmoderated).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&scrapbooks).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return scrapbooks, nil
}

// Moderated lists scrapbooks a moderator has already decided on, most recent
// decision first.
func (r *scrapbookRepository) Moderated(ctx context.Context, limit, offset int) ([]models.Scrapbook, error) {
	limit, offset = clampPage(limit, offset)
	var scrapbooks []models.Scrapbook
	if err := r.db.WithContext(ctx).
		Where("moderation_state IN ?", []models.ModerationState{models.ModerationStateApproved, models.ModerationStateRejected}).
		Order("moderated_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&scrapbooks).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return scrapbooks, nil
}

// Reported lists rejected scrapbooks oldest decision first, a triage queue
// for admins revisiting rejections.
func (r *scrapbookRepository) Reported(ctx context.Context, limit, offset int) ([]models.Scrapbook, error) {
	limit, offset = clampPage(limit, offset)
	var scrapbooks []models.Scrapbook
	if err := r.db.WithContext(ctx).
		Where("moderation_state = ?", models.ModerationStateRejected).
		Order("moderated_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&scrapbooks).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return scrapbooks, nil
}

// Transition moves a scrapbook into the target moderation state with a
// state-guarded UPDATE. When the guard matches no row the current state is
// read back to distinguish a missing scrapbook from a disallowed transition.
func (r *scrapbookRepository) Transition(ctx context.Context, id uint, to models.ModerationState, moderatorID uint, reason string) error {
	from := models.TransitionSources(to)
	now := time.Now()

	updates := map[string]interface{}{
		"moderation_state": to,
		"moderated_at":     now,
		"moderated_by_id":  moderatorID,
	}
	switch to {
	case models.ModerationStateRejected:
		updates["rejection_reason"] = reason
	case models.ModerationStateUnmoderated:
		// Unmoderating clears the decision trail except the audit timestamp.
		updates["rejection_reason"] = ""
	}

	result := r.db.WithContext(ctx).
		Model(&models.Scrapbook{}).
		Where("id = ? AND moderation_state IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return models.NewInternalError(result.Error)
	}

	if result.RowsAffected == 0 {
		var current models.Scrapbook
		if err := r.db.WithContext(ctx).Select("id", "moderation_state").First(&current, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Scrapbook", id)
			}
			return models.NewInternalError(err)
		}
		return models.NewConflictError("Scrapbook is already " + string(current.ModerationState))
	}

	cache.InvalidateScrapbook(ctx, id)
	return nil
}
