package job

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/leadstack/outreach/common"
	"github.com/leadstack/outreach/internal/dto"
	"github.com/leadstack/outreach/internal/models"
	"github.com/leadstack/outreach/internal/storage/postgres"
	"gorm.io/datatypes"
)

type JobService struct {
	repo JobRepoInterface
}

func NewJobService(repo JobRepoInterface) *JobService {
	return &JobService{repo: repo}
}

var _ JobServiceInterface = (*JobService)(nil)

var allowedJobTypes = []models.JobType{
	models.JobTypeCampaignStep,
	models.JobTypeCleanup,
}

// CreateJob validates the enqueue request, applies per-type payload
// validation, and persists a PENDING job. Payloads are checked here, on
// enqueue, so a malformed job can never reach a handler.
func (s *JobService) CreateJob(ctx context.Context, req *dto.JobCreateDTO) (*dto.JobResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request canceled or timed out")
	}

	if !json.Valid(req.Payload) {
		return nil, common.Errf(http.StatusBadRequest, "payload must be valid JSON")
	}

	jobType := models.JobType(req.Type)
	if !isAllowedType(jobType) {
		return nil, common.NewAPIError(
			http.StatusBadRequest,
			"invalid job type",
			map[string]any{
				"provided": req.Type,
				"allowed":  allowedJobTypes,
			},
		)
	}

	switch jobType {
	case models.JobTypeCampaignStep:
		if err := validatePayload[dto.CampaignStepPayload](req.Payload); err != nil {
			return nil, err
		}
	case models.JobTypeCleanup:
		if err := validatePayload[dto.CleanupPayload](req.Payload); err != nil {
			return nil, err
		}
	}

	job, err := s.repo.Enqueue(ctx, jobType, datatypes.JSON(req.Payload), postgres.EnqueueOpts{
		TenantID:    req.TenantID,
		Priority:    req.Priority,
		MaxAttempts: req.MaxAttempts,
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			return nil, common.Errf(http.StatusRequestTimeout, "request was canceled")
		case errors.Is(err, context.DeadlineExceeded):
			return nil, common.Errf(http.StatusRequestTimeout, "request timeout")
		default:
			return nil, common.Errf(http.StatusInternalServerError, "failed to enqueue job")
		}
	}

	return toResponseDTO(job), nil
}

// GetJobByID retrieves a job by its ID and maps repository errors to
// appropriate API errors.
func (s *JobService) GetJobByID(ctx context.Context, id uint) (*dto.JobResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	job, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
		}
		if strings.Contains(err.Error(), "not found") {
			return nil, common.Errf(http.StatusNotFound, "job not found")
		}
		return nil, common.Errf(http.StatusInternalServerError, "failed to get job")
	}

	return toResponseDTO(job), nil
}

// ListJobs retrieves jobs, optionally filtered by status.
func (s *JobService) ListJobs(ctx context.Context, status string) ([]dto.JobResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	if status != "" && !isValidStatus(models.JobStatus(status)) {
		return nil, common.Errf(http.StatusBadRequest, "invalid status %q", status)
	}

	jobs, err := s.repo.List(ctx, models.JobStatus(status))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
		}
		return nil, common.Errf(http.StatusInternalServerError, "failed to list jobs")
	}

	dtos := make([]dto.JobResponseDTO, len(jobs))
	for i := range jobs {
		dtos[i] = *toResponseDTO(&jobs[i])
	}
	return dtos, nil
}

// QueueStats aggregates job counts by status. This is the operator-facing
// failure surface; individual errors stay in the job rows.
func (s *JobService) QueueStats(ctx context.Context) (*dto.QueueStatsDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, common.Errf(http.StatusInternalServerError, "failed to aggregate job counts")
	}

	stats := &dto.QueueStatsDTO{Jobs: make(map[string]int, len(counts))}
	for status, count := range counts {
		stats.Jobs[string(status)] = count
	}
	return stats, nil
}

func isAllowedType(t models.JobType) bool {
	for _, allowed := range allowedJobTypes {
		if t == allowed {
			return true
		}
	}
	return false
}

func isValidStatus(s models.JobStatus) bool {
	switch s {
	case models.JobStatusPending, models.JobStatusProcessing,
		models.JobStatusCompleted, models.JobStatusFailed:
		return true
	}
	return false
}

func toResponseDTO(job *models.Job) *dto.JobResponseDTO {
	return &dto.JobResponseDTO{
		ID:          job.ID,
		TenantID:    job.TenantID,
		Type:        string(job.Type),
		Payload:     json.RawMessage(job.Payload),
		Status:      string(job.Status),
		Priority:    job.Priority,
		Attempts:    job.Attempts,
		MaxAttempts: job.MaxAttempts,
		ScheduledAt: job.ScheduledAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
		Error:       job.ErrorMessage,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
	}
}
