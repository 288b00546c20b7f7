// Package sweeps implements the daily batch jobs: archiving past activities
// and deleting stale chat data.
package sweeps

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"activity-sync/internal/observability"
	"activity-sync/internal/repositories"
)

// ArchiveResult summarizes one archival run.
type ArchiveResult struct {
	Matched  int
	Archived int64
}

// Archiver flips archived=true on every activity whose date has passed.
type Archiver struct {
	activities repositories.ActivityRepository
	log        *zap.Logger
	now        func() time.Time
}

// NewArchiver constructs an Archiver. A nil clock means time.Now.
func NewArchiver(activities repositories.ActivityRepository, log *zap.Logger, now func() time.Time) *Archiver {
	if now == nil {
		now = time.Now
	}
	return &Archiver{activities: activities, log: log, now: now}
}

// Run archives all unarchived activities dated before now in one batched write.
// Already archived activities never match, so repeated runs are harmless.
func (a *Archiver) Run(ctx context.Context) (ArchiveResult, error) {
	start := time.Now()
	now := a.now().UTC()

	ids, err := a.activities.ListArchivable(ctx, now)
	if err != nil {
		observability.IncSweepItems("archive", "error", 1)
		return ArchiveResult{}, fmt.Errorf("list archivable activities: %w", err)
	}
	res := ArchiveResult{Matched: len(ids)}
	if len(ids) == 0 {
		a.log.Info("archival sweep found nothing to archive")
		return res, nil
	}

	res.Archived, err = a.activities.MarkArchived(ctx, ids)
	if err != nil {
		observability.IncSweepItems("archive", "error", len(ids))
		return res, fmt.Errorf("mark %d activities archived: %w", len(ids), err)
	}
	observability.IncSweepItems("archive", "archived", int(res.Archived))
	a.log.Info("archival sweep completed",
		zap.Int("matched", res.Matched),
		zap.Int64("archived", res.Archived),
		zap.Duration("duration", time.Since(start)))
	return res, nil
}
