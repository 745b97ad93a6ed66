package service

import (
	"context"
	"testing"

	"keepsake/internal/models"
	"keepsake/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestScrapbookService(t *testing.T) (*ScrapbookService, *gorm.DB) {
	t.Helper()
	db := setupServiceDB(t)
	return NewScrapbookService(
		repository.NewScrapbookRepository(db),
		repository.NewMemoryRepository(db),
	), db
}

func createServiceMemory(t *testing.T, db *gorm.DB, userID uint, title string) *models.Memory {
	t.Helper()
	memory := &models.Memory{UserID: userID, Title: title}
	require.NoError(t, db.Create(memory).Error)
	return memory
}

func TestScrapbookServiceCreate(t *testing.T) {
	svc, _ := newTestScrapbookService(t)

	scrapbook, err := svc.Create(context.Background(), 1, ScrapbookInput{
		Title: "  Summer 1957  ",
	})
	require.NoError(t, err)
	assert.Equal(t, "Summer 1957", scrapbook.Title)
	assert.Equal(t, models.ModerationStateUnmoderated, scrapbook.ModerationState)
}

func TestScrapbookServiceCreate_SignedOut(t *testing.T) {
	svc, _ := newTestScrapbookService(t)

	_, err := svc.Create(context.Background(), 0, ScrapbookInput{Title: "Nope"})
	require.Error(t, err)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "UNAUTHORIZED", appErr.Code)
}

func TestScrapbookServiceView_DisplayOrder(t *testing.T) {
	svc, db := newTestScrapbookService(t)
	ctx := context.Background()

	scrapbook, err := svc.Create(ctx, 1, ScrapbookInput{Title: "Summer"})
	require.NoError(t, err)

	first := createServiceMemory(t, db, 1, "First")
	second := createServiceMemory(t, db, 1, "Second")
	require.NoError(t, svc.AddMemory(ctx, 1, scrapbook.ID, first.ID))
	require.NoError(t, svc.AddMemory(ctx, 1, scrapbook.ID, second.ID))

	view, err := svc.View(ctx, 1, scrapbook.ID)
	require.NoError(t, err)
	require.Len(t, view.Memories, 2)
	assert.Equal(t, first.ID, view.Memories[0].ID)
	assert.Equal(t, second.ID, view.Memories[1].ID)
}

func TestScrapbookServiceView_SomeoneElses(t *testing.T) {
	svc, _ := newTestScrapbookService(t)
	ctx := context.Background()

	scrapbook, err := svc.Create(ctx, 1, ScrapbookInput{Title: "Private"})
	require.NoError(t, err)

	_, err = svc.View(ctx, 2, scrapbook.ID)
	require.Error(t, err)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestScrapbookServiceAddMemory_ForeignMemory(t *testing.T) {
	svc, db := newTestScrapbookService(t)
	ctx := context.Background()

	scrapbook, err := svc.Create(ctx, 1, ScrapbookInput{Title: "Summer"})
	require.NoError(t, err)
	foreign := createServiceMemory(t, db, 2, "Someone else's")

	err = svc.AddMemory(ctx, 1, scrapbook.ID, foreign.ID)
	require.Error(t, err)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestScrapbookServiceUpdate_FieldsOnly(t *testing.T) {
	svc, _ := newTestScrapbookService(t)
	ctx := context.Background()

	scrapbook, err := svc.Create(ctx, 1, ScrapbookInput{Title: "Before"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, 1, scrapbook.ID, ScrapbookUpdateInput{
		ScrapbookInput: ScrapbookInput{Title: "After", Description: "New words"},
	})
	require.NoError(t, err)
	assert.Equal(t, "After", updated.Title)
	assert.Equal(t, "New words", updated.Description)
}

func TestScrapbookServiceUpdate_ReorderAndDetach(t *testing.T) {
	svc, db := newTestScrapbookService(t)
	ctx := context.Background()

	scrapbook, err := svc.Create(ctx, 1, ScrapbookInput{Title: "Summer"})
	require.NoError(t, err)

	first := createServiceMemory(t, db, 1, "First")
	second := createServiceMemory(t, db, 1, "Second")
	third := createServiceMemory(t, db, 1, "Third")
	for _, m := range []*models.Memory{first, second, third} {
		require.NoError(t, svc.AddMemory(ctx, 1, scrapbook.ID, m.ID))
	}

	_, err = svc.Update(ctx, 1, scrapbook.ID, ScrapbookUpdateInput{
		ScrapbookInput: ScrapbookInput{Title: "Summer"},
		Ordering: []repository.MembershipOrdering{
			{MemoryID: third.ID, Ordering: 1},
			{MemoryID: first.ID, Ordering: 2},
		},
		Deleted: []uint{second.ID},
	})
	require.NoError(t, err)

	view, err := svc.View(ctx, 1, scrapbook.ID)
	require.NoError(t, err)
	require.Len(t, view.Memories, 2)
	assert.Equal(t, third.ID, view.Memories[0].ID)
	assert.Equal(t, first.ID, view.Memories[1].ID)

	// Detached memories survive the membership row.
	var count int64
	db.Model(&models.Memory{}).Where("id = ?", second.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestScrapbookServiceDelete_KeepsMemories(t *testing.T) {
	svc, db := newTestScrapbookService(t)
	ctx := context.Background()

	scrapbook, err := svc.Create(ctx, 1, ScrapbookInput{Title: "Summer"})
	require.NoError(t, err)
	memory := createServiceMemory(t, db, 1, "Kept")
	require.NoError(t, svc.AddMemory(ctx, 1, scrapbook.ID, memory.ID))

	require.NoError(t, svc.Delete(ctx, 1, scrapbook.ID))

	var scrapbookCount, memoryCount, membershipCount int64
	db.Model(&models.Scrapbook{}).Count(&scrapbookCount)
	db.Model(&models.Memory{}).Count(&memoryCount)
	db.Model(&models.ScrapbookMemory{}).Count(&membershipCount)
	assert.Equal(t, int64(0), scrapbookCount)
	assert.Equal(t, int64(1), memoryCount)
	assert.Equal(t, int64(0), membershipCount)
}
