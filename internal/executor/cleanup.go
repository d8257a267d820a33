package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/leadstack/outreach/internal/dispatch"
	"github.com/leadstack/outreach/internal/dto"
	"github.com/leadstack/outreach/internal/models"
)

// JobStore is the queue maintenance surface the cleanup handler needs.
type JobStore interface {
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupHandler handles CLEANUP jobs: it drops COMPLETED and FAILED jobs
// older than the payload's retention window. Attempt records are kept;
// they are the analytics and idempotence trail.
type CleanupHandler struct {
	jobs   JobStore
	logger *slog.Logger
	now    func() time.Time
}

func NewCleanupHandler(jobs JobStore, logger *slog.Logger) *CleanupHandler {
	return &CleanupHandler{jobs: jobs, logger: logger, now: time.Now}
}

func (h *CleanupHandler) Handle(ctx context.Context, job *models.Job) error {
	var payload dto.CleanupPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return dispatch.NoRetry(fmt.Errorf("decode cleanup payload: %w", err))
	}
	if payload.Days < 1 {
		return dispatch.NoRetry(fmt.Errorf("cleanup window must be at least 1 day, got %d", payload.Days))
	}

	cutoff := h.now().UTC().AddDate(0, 0, -payload.Days)
	removed, err := h.jobs.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		return err
	}

	h.logger.Info("cleanup finished",
		slog.Uint64("job_id", uint64(job.ID)),
		slog.Int("retention_days", payload.Days),
		slog.Int64("jobs_removed", removed),
	)
	return nil
}
