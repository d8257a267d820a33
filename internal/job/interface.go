package job

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/leadstack/outreach/internal/dto"
	"github.com/leadstack/outreach/internal/models"
	"github.com/leadstack/outreach/internal/storage/postgres"
	"gorm.io/datatypes"
)

// JobRepoInterface defines the contract for work-queue operations the
// API layer consumes.
type JobRepoInterface interface {
	Enqueue(ctx context.Context, jobType models.JobType, payload datatypes.JSON, opts postgres.EnqueueOpts) (*models.Job, error)
	Get(ctx context.Context, id uint) (*models.Job, error)
	List(ctx context.Context, status models.JobStatus) ([]models.Job, error)
	CountByStatus(ctx context.Context) (map[models.JobStatus]int, error)
}

// JobServiceInterface defines the contract for job business logic.
type JobServiceInterface interface {
	CreateJob(ctx context.Context, req *dto.JobCreateDTO) (*dto.JobResponseDTO, error)
	GetJobByID(ctx context.Context, id uint) (*dto.JobResponseDTO, error)
	ListJobs(ctx context.Context, status string) ([]dto.JobResponseDTO, error)
	QueueStats(ctx context.Context) (*dto.QueueStatsDTO, error)
}

// JobHandlerInterface defines the contract for HTTP request handlers.
type JobHandlerInterface interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
	List(c *gin.Context)
	Stats(c *gin.Context)
}
