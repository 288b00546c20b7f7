package sweeps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"activity-sync/internal/observability"
	"activity-sync/internal/repositories"
)

// DefaultRetention is how long chat data outlives its activity's date.
const DefaultRetention = 5 * 24 * time.Hour

// CleanupResult summarizes one cleanup run.
type CleanupResult struct {
	Scanned        int
	Deleted        int
	Kept           int
	Failed         int
	IndexesCleared int
}

// Cleaner deletes chat data of activities that are gone or past retention.
type Cleaner struct {
	activities repositories.ActivityRepository
	tree       repositories.ChatTreeRepository
	retention  time.Duration
	log        *zap.Logger
	now        func() time.Time
}

// NewCleaner constructs a Cleaner. Non-positive retention means DefaultRetention.
func NewCleaner(activities repositories.ActivityRepository, tree repositories.ChatTreeRepository, retention time.Duration, log *zap.Logger, now func() time.Time) *Cleaner {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if now == nil {
		now = time.Now
	}
	return &Cleaner{activities: activities, tree: tree, retention: retention, log: log, now: now}
}

// Run visits every activity with chat data. Failures on one activity are
// logged and counted; the sweep moves on to the next.
func (c *Cleaner) Run(ctx context.Context) (CleanupResult, error) {
	start := time.Now()
	cutoff := c.now().UTC().Add(-c.retention)

	ids, err := c.tree.ListChatIDs(ctx)
	if err != nil {
		return CleanupResult{}, fmt.Errorf("list chats: %w", err)
	}

	res := CleanupResult{Scanned: len(ids)}
	for _, activityID := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		log := c.log.With(zap.String("activity_id", activityID))

		stale, reason, err := c.isStale(ctx, activityID, cutoff)
		if err != nil {
			res.Failed++
			log.Error("cleanup check failed", zap.Error(err))
			continue
		}
		if !stale {
			res.Kept++
			if reason == "undated" {
				log.Warn("activity has no date, keeping chat")
			}
			continue
		}

		cleared, err := c.deleteChat(ctx, log, activityID)
		if err != nil {
			res.Failed++
			log.Error("chat cleanup failed", zap.Error(err))
			continue
		}
		res.Deleted++
		res.IndexesCleared += cleared
		log.Info("chat deleted", zap.String("reason", reason), zap.Int("index_entries_cleared", cleared))
	}

	observability.IncSweepItems("cleanup", "deleted", res.Deleted)
	observability.IncSweepItems("cleanup", "error", res.Failed)
	c.log.Info("cleanup sweep completed",
		zap.Int("scanned", res.Scanned),
		zap.Int("deleted", res.Deleted),
		zap.Int("kept", res.Kept),
		zap.Int("failed", res.Failed),
		zap.Duration("duration", time.Since(start)))
	return res, nil
}

func (c *Cleaner) isStale(ctx context.Context, activityID string, cutoff time.Time) (bool, string, error) {
	activity, err := c.activities.GetActivity(ctx, activityID)
	if errors.Is(err, repositories.ErrActivityNotFound) {
		return true, "activity_deleted", nil
	}
	if err != nil {
		return false, "", err
	}
	if activity.DateTime.IsZero() {
		return false, "undated", nil
	}
	if activity.DateTime.Before(cutoff) {
		return true, "retention_expired", nil
	}
	return false, "", nil
}

// deleteChat reads the member list first so the reverse index entries of
// those members can be cleared once the chat itself is gone.
func (c *Cleaner) deleteChat(ctx context.Context, log *zap.Logger, activityID string) (int, error) {
	members, err := c.tree.ListMembers(ctx, activityID)
	if err != nil {
		return 0, fmt.Errorf("list members: %w", err)
	}
	if err := c.tree.DeleteChat(ctx, activityID); err != nil {
		return 0, fmt.Errorf("delete chat: %w", err)
	}

	cleared := 0
	for userID := range members {
		if err := c.tree.RemoveUserChat(ctx, userID, activityID); err != nil {
			log.Warn("user chat index cleanup failed", zap.String("user_id", userID), zap.Error(err))
			continue
		}
		cleared++
	}
	return cleared, nil
}
