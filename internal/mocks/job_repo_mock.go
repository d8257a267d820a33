package mocks

import (
	"context"

	"github.com/leadstack/outreach/internal/models"
	"github.com/leadstack/outreach/internal/storage/postgres"
	"github.com/stretchr/testify/mock"
	"gorm.io/datatypes"
)

type JobRepoMock struct {
	mock.Mock
}

func (m *JobRepoMock) Enqueue(ctx context.Context, jobType models.JobType, payload datatypes.JSON, opts postgres.EnqueueOpts) (*models.Job, error) {
	args := m.Called(ctx, jobType, payload, opts)

	job, _ := args.Get(0).(*models.Job)
	return job, args.Error(1)
}

func (m *JobRepoMock) Get(ctx context.Context, id uint) (*models.Job, error) {
	args := m.Called(ctx, id)

	job, _ := args.Get(0).(*models.Job)
	return job, args.Error(1)
}

func (m *JobRepoMock) List(ctx context.Context, status models.JobStatus) ([]models.Job, error) {
	args := m.Called(ctx, status)

	jobs, _ := args.Get(0).([]models.Job)
	return jobs, args.Error(1)
}

func (m *JobRepoMock) CountByStatus(ctx context.Context) (map[models.JobStatus]int, error) {
	args := m.Called(ctx)

	counts, _ := args.Get(0).(map[models.JobStatus]int)
	return counts, args.Error(1)
}
