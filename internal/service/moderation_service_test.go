package service

import (
	"context"
	"testing"
	"time"

	"keepsake/internal/cache"
	"keepsake/internal/models"
	"keepsake/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestModerationService(t *testing.T) (*ModerationService, *gorm.DB) {
	t.Helper()
	db := setupServiceDB(t)
	return NewModerationService(repository.NewScrapbookRepository(db)), db
}

func createModerationScrapbook(t *testing.T, db *gorm.DB, state models.ModerationState) *models.Scrapbook {
	t.Helper()
	sb := &models.Scrapbook{UserID: 1, Title: "Under review", ModerationState: state}
	if state != models.ModerationStateUnmoderated {
		now := time.Now()
		moderator := uint(9)
		sb.ModeratedAt = &now
		sb.ModeratedByID = &moderator
	}
	require.NoError(t, db.Create(sb).Error)
	return sb
}

func TestModerationTransitions(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		from     models.ModerationState
		apply    func(svc *ModerationService, id uint) error
		want     models.ModerationState
		conflict bool
	}{
		{"approve from unmoderated", models.ModerationStateUnmoderated,
			func(svc *ModerationService, id uint) error { return svc.Approve(ctx, 5, id) },
			models.ModerationStateApproved, false},
		{"approve from rejected", models.ModerationStateRejected,
			func(svc *ModerationService, id uint) error { return svc.Approve(ctx, 5, id) },
			models.ModerationStateApproved, false},
		{"approve from approved", models.ModerationStateApproved,
			func(svc *ModerationService, id uint) error { return svc.Approve(ctx, 5, id) },
			models.ModerationStateApproved, true},
		{"reject from unmoderated", models.ModerationStateUnmoderated,
			func(svc *ModerationService, id uint) error { return svc.Reject(ctx, 5, id, "reason") },
			models.ModerationStateRejected, false},
		{"reject from approved", models.ModerationStateApproved,
			func(svc *ModerationService, id uint) error { return svc.Reject(ctx, 5, id, "reason") },
			models.ModerationStateRejected, false},
		{"reject from rejected", models.ModerationStateRejected,
			func(svc *ModerationService, id uint) error { return svc.Reject(ctx, 5, id, "reason") },
			models.ModerationStateRejected, true},
		{"unmoderate from rejected", models.ModerationStateRejected,
			func(svc *ModerationService, id uint) error { return svc.Unmoderate(ctx, 5, id) },
			models.ModerationStateUnmoderated, false},
		{"unmoderate from approved", models.ModerationStateApproved,
			func(svc *ModerationService, id uint) error { return svc.Unmoderate(ctx, 5, id) },
			models.ModerationStateApproved, true},
		{"unmoderate from unmoderated", models.ModerationStateUnmoderated,
			func(svc *ModerationService, id uint) error { return svc.Unmoderate(ctx, 5, id) },
			models.ModerationStateUnmoderated, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, db := newTestModerationService(t)
			sb := createModerationScrapbook(t, db, tt.from)

			err := tt.apply(svc, sb.ID)
			if tt.conflict {
				require.Error(t, err)
				var appErr *models.AppError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, "CONFLICT", appErr.Code)
			} else {
				require.NoError(t, err)
			}

			var got models.Scrapbook
			require.NoError(t, db.First(&got, sb.ID).Error)
			assert.Equal(t, tt.want, got.ModerationState)
		})
	}
}

func TestModerationTransition_RecordsOutcome(t *testing.T) {
	svc, db := newTestModerationService(t)
	ctx := context.Background()
	sb := createModerationScrapbook(t, db, models.ModerationStateUnmoderated)

	require.NoError(t, svc.Reject(ctx, 7, sb.ID, "Contains street addresses"))

	var got models.Scrapbook
	require.NoError(t, db.First(&got, sb.ID).Error)
	require.NotNil(t, got.ModeratedAt)
	require.NotNil(t, got.ModeratedByID)
	assert.Equal(t, uint(7), *got.ModeratedByID)
	assert.Equal(t, "Contains street addresses", got.RejectionReason)
}

func TestModerationTransition_UnknownScrapbook(t *testing.T) {
	svc, _ := newTestModerationService(t)

	err := svc.Approve(context.Background(), 5, 9999)
	require.Error(t, err)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestModerationQueues(t *testing.T) {
	svc, db := newTestModerationService(t)
	ctx := context.Background()

	pending := createModerationScrapbook(t, db, models.ModerationStateUnmoderated)
	older := createModerationScrapbook(t, db, models.ModerationStateUnmoderated)
	newer := createModerationScrapbook(t, db, models.ModerationStateUnmoderated)

	require.NoError(t, svc.Approve(ctx, 5, older.ID))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, svc.Reject(ctx, 5, newer.ID, ""))

	unmoderated, err := svc.Queue(ctx, QueueUnmoderated, 30, 0)
	require.NoError(t, err)
	require.Len(t, unmoderated, 1)
	assert.Equal(t, pending.ID, unmoderated[0].ID)

	moderated, err := svc.Queue(ctx, QueueModerated, 30, 0)
	require.NoError(t, err)
	require.Len(t, moderated, 2)
	// Most recent decision first.
	assert.Equal(t, newer.ID, moderated[0].ID)
	assert.Equal(t, older.ID, moderated[1].ID)

	reported, err := svc.Queue(ctx, QueueReported, 30, 0)
	require.NoError(t, err)
	require.Len(t, reported, 1)
	assert.Equal(t, newer.ID, reported[0].ID)

	_, err = svc.Queue(ctx, ModerationQueueKind("bogus"), 30, 0)
	require.Error(t, err)
}

func TestModerationQueue_CacheInvalidatedByTransition(t *testing.T) {
	svc, db := newTestModerationService(t)
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	cache.SetClient(client)
	t.Cleanup(func() { cache.SetClient(nil) })

	sb := createModerationScrapbook(t, db, models.ModerationStateUnmoderated)

	// First page read populates the cache.
	queue, err := svc.Queue(ctx, QueueUnmoderated, 30, 0)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.True(t, mr.Exists(cache.ModerationQueue(string(QueueUnmoderated))))

	// Approving drops the cached queue so the next read sees the change.
	require.NoError(t, svc.Approve(ctx, 5, sb.ID))
	assert.False(t, mr.Exists(cache.ModerationQueue(string(QueueUnmoderated))))

	queue, err = svc.Queue(ctx, QueueUnmoderated, 30, 0)
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestModerationGetForReview(t *testing.T) {
	svc, db := newTestModerationService(t)
	ctx := context.Background()

	sb := createModerationScrapbook(t, db, models.ModerationStateUnmoderated)

	got, err := svc.GetForReview(ctx, sb.ID)
	require.NoError(t, err)
	assert.Equal(t, sb.ID, got.ID)

	_, err = svc.GetForReview(ctx, 9999)
	require.Error(t, err)
}
