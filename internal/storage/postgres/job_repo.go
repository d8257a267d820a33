package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leadstack/outreach/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JobRepository is the durable work queue. Job rows are owned exclusively
// by this type; the conditional claim update is the engine's single
// serialization point across dispatcher instances.
type JobRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db, now: time.Now}
}

// Backoff returns the retry delay after the given number of attempts:
// 2^n minutes, exponential.
func Backoff(attempts int) time.Duration {
	return time.Duration(1<<attempts) * time.Minute
}

// EnqueueOpts carries the optional fields of an enqueue. Zero values fall
// back to sensible defaults: priority 0, scheduled now, 3 attempts.
type EnqueueOpts struct {
	TenantID    uint
	Priority    int
	MaxAttempts int
	ScheduledAt *time.Time
	// DedupeKey, when non-empty, suppresses the insert if a live
	// (PENDING or PROCESSING) job already carries the same key. The
	// existing job is returned instead.
	DedupeKey string
}

// Enqueue creates a PENDING job. Constant-time, no side effects beyond
// the insert. A non-empty dedupe key makes the insert conflict-tolerant:
// the live-key unique index is the guarantee, the pre-check is only the
// fast path.
func (r *JobRepository) Enqueue(ctx context.Context, jobType models.JobType, payload datatypes.JSON, opts EnqueueOpts) (*models.Job, error) {
	if opts.DedupeKey != "" {
		existing, err := r.liveJobByDedupeKey(ctx, opts.DedupeKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("check dedupe key: %w", err)
		}
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	scheduledAt := r.now().UTC()
	if opts.ScheduledAt != nil {
		scheduledAt = opts.ScheduledAt.UTC()
	}

	job := models.Job{
		TenantID:    opts.TenantID,
		Type:        jobType,
		Payload:     payload,
		Status:      models.JobStatusPending,
		DedupeKey:   opts.DedupeKey,
		Priority:    opts.Priority,
		MaxAttempts: maxAttempts,
		ScheduledAt: scheduledAt,
	}

	if opts.DedupeKey != "" {
		return r.createDeduped(ctx, &job)
	}
	if err := r.db.WithContext(ctx).Create(&job).Error; err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	return &job, nil
}

// createDeduped inserts a keyed job tolerating a lost race: two enqueuers
// can both miss the pre-check, but only one row survives the partial
// unique index on live dedupe keys, and the loser adopts the survivor.
func (r *JobRepository) createDeduped(ctx context.Context, job *models.Job) (*models.Job, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(job)
	if res.Error != nil {
		return nil, fmt.Errorf("enqueue job: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return job, nil
	}

	existing, err := r.liveJobByDedupeKey(ctx, job.DedupeKey)
	if err != nil {
		return nil, fmt.Errorf("resolve deduped job: %w", err)
	}
	return existing, nil
}

func (r *JobRepository) liveJobByDedupeKey(ctx context.Context, key string) (*models.Job, error) {
	var job models.Job
	err := r.db.WithContext(ctx).
		Where("dedupe_key = ? AND status IN ?", key,
			[]models.JobStatus{models.JobStatusPending, models.JobStatusProcessing}).
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ClaimBatch atomically claims up to limit due jobs, highest priority
// first, oldest schedule first. Each row transitions PENDING->PROCESSING
// through a conditional update guarded by the original status; a row lost
// to a concurrent claimer is simply absent from the result.
func (r *JobRepository) ClaimBatch(ctx context.Context, limit int) ([]models.Job, error) {
	if limit <= 0 {
		return nil, nil
	}

	now := r.now().UTC()

	var candidates []models.Job
	err := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_at <= ?", models.JobStatusPending, now).
		Order("priority DESC, scheduled_at ASC").
		Limit(limit).
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("select due jobs: %w", err)
	}

	claimed := make([]models.Job, 0, len(candidates))
	for _, candidate := range candidates {
		res := r.db.WithContext(ctx).Model(&models.Job{}).
			Where("id = ? AND status = ?", candidate.ID, models.JobStatusPending).
			Updates(map[string]any{
				"status":     models.JobStatusProcessing,
				"started_at": now,
			})
		if res.Error != nil {
			return nil, fmt.Errorf("claim job %d: %w", candidate.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			// Lost the race to another claimer.
			continue
		}

		candidate.Status = models.JobStatusProcessing
		candidate.StartedAt = &now
		claimed = append(claimed, candidate)
	}

	return claimed, nil
}

// Complete marks a job COMPLETED.
func (r *JobRepository) Complete(ctx context.Context, id uint) error {
	now := r.now().UTC()
	if err := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       models.JobStatusCompleted,
			"completed_at": now,
		}).Error; err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// FailWithBackoff records a failed execution. While attempts remain, the
// job returns to PENDING with an exponentially deferred schedule;
// otherwise it is FAILED terminally.
func (r *JobRepository) FailWithBackoff(ctx context.Context, id uint, jobErr error) error {
	job, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	errMsg := ""
	if jobErr != nil {
		errMsg = jobErr.Error()
	}

	now := r.now().UTC()
	attempts := job.Attempts + 1

	updates := map[string]any{
		"attempts":      attempts,
		"error_message": errMsg,
	}
	if attempts < job.MaxAttempts {
		updates["status"] = models.JobStatusPending
		updates["scheduled_at"] = now.Add(Backoff(attempts))
	} else {
		updates["status"] = models.JobStatusFailed
		updates["completed_at"] = now
	}

	if err := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", id).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("fail job with backoff: %w", err)
	}
	return nil
}

// FailPermanently marks a job FAILED without retries, forcing attempts to
// the ceiling. Used for configuration errors that no retry can fix, such
// as a job type with no registered handler.
func (r *JobRepository) FailPermanently(ctx context.Context, id uint, errMsg string) error {
	now := r.now().UTC()
	if err := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        models.JobStatusFailed,
			"attempts":      gorm.Expr("max_attempts"),
			"completed_at":  now,
			"error_message": errMsg,
		}).Error; err != nil {
		return fmt.Errorf("fail job permanently: %w", err)
	}
	return nil
}

// Get retrieves a single job by ID.
func (r *JobRepository) Get(ctx context.Context, id uint) (*models.Job, error) {
	var job models.Job
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("job not found: %w", err)
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &job, nil
}

// List retrieves jobs filtered by status, newest first. An empty status
// returns everything.
func (r *JobRepository) List(ctx context.Context, status models.JobStatus) ([]models.Job, error) {
	q := r.db.WithContext(ctx).Order("id DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var jobs []models.Job
	if err := q.Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// CountByStatus aggregates job counts per status for the operator surface.
func (r *JobRepository) CountByStatus(ctx context.Context) (map[models.JobStatus]int, error) {
	var rows []struct {
		Status models.JobStatus
		Count  int
	}
	if err := r.db.WithContext(ctx).Model(&models.Job{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count jobs by status: %w", err)
	}

	counts := make(map[models.JobStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// DeleteTerminalBefore removes COMPLETED and FAILED jobs whose terminal
// timestamp predates the cutoff. Returns the number of rows removed.
func (r *JobRepository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status IN ? AND completed_at < ?",
			[]models.JobStatus{models.JobStatusCompleted, models.JobStatusFailed}, cutoff.UTC()).
		Delete(&models.Job{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete terminal jobs: %w", res.Error)
	}
	return res.RowsAffected, nil
}
