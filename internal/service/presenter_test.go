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

func newTestPresenter(t *testing.T) (*ScrapbookIndexPresenter, repository.ScrapbookRepository, *gorm.DB) {
	t.Helper()
	db := setupServiceDB(t)
	repo := repository.NewScrapbookRepository(db)
	return NewScrapbookIndexPresenter(NewScrapbookMemoryFetcher(repo)), repo, db
}

func attachMemories(t *testing.T, db *gorm.DB, repo repository.ScrapbookRepository, scrapbookID uint, count int) []uint {
	t.Helper()
	ids := make([]uint, 0, count)
	for i := 0; i < count; i++ {
		memory := createServiceMemory(t, db, 1, "Memory")
		require.NoError(t, repo.AddMemory(context.Background(), scrapbookID, memory.ID))
		ids = append(ids, memory.ID)
	}
	return ids
}

func TestPresenterCoversAndCounts(t *testing.T) {
	presenter, repo, db := newTestPresenter(t)
	ctx := context.Background()

	big := &models.Scrapbook{UserID: 1, Title: "Big", ModerationState: models.ModerationStateUnmoderated}
	small := &models.Scrapbook{UserID: 1, Title: "Small", ModerationState: models.ModerationStateUnmoderated}
	empty := &models.Scrapbook{UserID: 1, Title: "Empty", ModerationState: models.ModerationStateUnmoderated}
	for _, sb := range []*models.Scrapbook{big, small, empty} {
		require.NoError(t, repo.Create(ctx, sb))
	}

	bigMemories := attachMemories(t, db, repo, big.ID, 6)
	smallMemories := attachMemories(t, db, repo, small.ID, 2)

	page, err := presenter.Present(ctx, []models.Scrapbook{*big, *small, *empty}, 1, 30, 3)
	require.NoError(t, err)
	require.Len(t, page.Scrapbooks, 3)

	byTitle := make(map[string]ScrapbookIndexEntry, 3)
	for _, entry := range page.Scrapbooks {
		byTitle[entry.Scrapbook.Title] = entry
	}

	// Covers are the first four memories in display order.
	bigEntry := byTitle["Big"]
	assert.Equal(t, 6, bigEntry.MemoryCount)
	require.Len(t, bigEntry.CoverMemories, 4)
	for i, memory := range bigEntry.CoverMemories {
		assert.Equal(t, bigMemories[i], memory.ID)
	}

	smallEntry := byTitle["Small"]
	assert.Equal(t, 2, smallEntry.MemoryCount)
	require.Len(t, smallEntry.CoverMemories, 2)
	assert.Equal(t, smallMemories[0], smallEntry.CoverMemories[0].ID)

	emptyEntry := byTitle["Empty"]
	assert.Equal(t, 0, emptyEntry.MemoryCount)
	assert.Empty(t, emptyEntry.CoverMemories)
}

func TestPresenterPagination(t *testing.T) {
	presenter, _, _ := newTestPresenter(t)
	ctx := context.Background()

	tests := []struct {
		total     int64
		pageSize  int
		wantPages int
	}{
		{0, 30, 0},
		{1, 30, 1},
		{30, 30, 1},
		{31, 30, 2},
		{90, 30, 3},
	}
	for _, tt := range tests {
		page, err := presenter.Present(ctx, nil, 1, tt.pageSize, tt.total)
		require.NoError(t, err)
		assert.Equal(t, tt.wantPages, page.TotalPages, "total %d", tt.total)
		assert.Equal(t, tt.total, page.TotalCount)
	}
}

func TestPresenterSingleBatchQuery(t *testing.T) {
	presenter, repo, db := newTestPresenter(t)
	ctx := context.Background()

	sb := &models.Scrapbook{UserID: 1, Title: "Solo", ModerationState: models.ModerationStateUnmoderated}
	require.NoError(t, repo.Create(ctx, sb))
	attachMemories(t, db, repo, sb.ID, 3)

	// Membership rows come back preloaded with their memories, so the page
	// can be assembled without per-scrapbook queries.
	rows, err := repo.MembershipsForScrapbooks(ctx, []uint{sb.ID})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, row := range rows {
		require.NotNil(t, row.Memory)
	}

	page, err := presenter.Present(ctx, []models.Scrapbook{*sb}, 1, 30, 1)
	require.NoError(t, err)
	require.Len(t, page.Scrapbooks, 1)
	assert.Equal(t, 3, page.Scrapbooks[0].MemoryCount)
}
