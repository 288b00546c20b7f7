package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"activity-sync/internal/sweeps"
)

type ArchiveRunner interface {
	Run(ctx context.Context) (sweeps.ArchiveResult, error)
}

type CleanupRunner interface {
	Run(ctx context.Context) (sweeps.CleanupResult, error)
}

// SweepHandler triggers the daily sweeps on demand.
type SweepHandler struct {
	archiver ArchiveRunner
	cleaner  CleanupRunner
	log      *zap.Logger
}

// NewSweepHandler builds a SweepHandler.
func NewSweepHandler(archiver ArchiveRunner, cleaner CleanupRunner, log *zap.Logger) *SweepHandler {
	return &SweepHandler{archiver: archiver, cleaner: cleaner, log: log}
}

// RunArchive archives every past unarchived activity.
func (h *SweepHandler) RunArchive(c *gin.Context) {
	res, err := h.archiver.Run(c.Request.Context())
	if err != nil {
		h.log.Error("manual archival sweep failed", zap.String("request_id", requestIDFromContext(c)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "archival sweep failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"matched": res.Matched, "archived": res.Archived})
}

// RunCleanup deletes stale chat data.
func (h *SweepHandler) RunCleanup(c *gin.Context) {
	res, err := h.cleaner.Run(c.Request.Context())
	if err != nil {
		h.log.Error("manual cleanup sweep failed", zap.String("request_id", requestIDFromContext(c)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cleanup sweep failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"scanned":         res.Scanned,
		"deleted":         res.Deleted,
		"kept":            res.Kept,
		"failed":          res.Failed,
		"indexes_cleared": res.IndexesCleared,
	})
}
