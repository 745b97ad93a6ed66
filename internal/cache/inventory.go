package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix      = "user:%d"
	MemoryKeyPrefix    = "memory:%d"
	ScrapbookKeyPrefix = "scrapbook:%d"
	ModerationQueueKey = "moderation:%s"
)

const (
	UserTTL            = 5 * time.Minute
	MemoryTTL          = 10 * time.Minute
	ScrapbookTTL       = 10 * time.Minute
	ModerationQueueTTL = 1 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func MemoryKey(memoryID uint) string {
	return fmt.Sprintf(MemoryKeyPrefix, memoryID)
}

func ScrapbookKey(scrapbookID uint) string {
	return fmt.Sprintf(ScrapbookKeyPrefix, scrapbookID)
}

// ModerationQueue keys cache the first page of each moderation listing
// (unmoderated, moderated, reported). They are short-lived and invalidated
// on every state transition.
func ModerationQueue(name string) string {
	return fmt.Sprintf(ModerationQueueKey, name)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

func InvalidateScrapbook(ctx context.Context, scrapbookID uint) {
	Invalidate(ctx, ScrapbookKey(scrapbookID))
	InvalidateModerationQueues(ctx)
}

func InvalidateMemory(ctx context.Context, memoryID uint) {
	Invalidate(ctx, MemoryKey(memoryID))
}

func InvalidateModerationQueues(ctx context.Context) {
	for _, name := range []string{"unmoderated", "moderated", "reported"} {
		Invalidate(ctx, ModerationQueue(name))
	}
}
