package mocks

import (
	"context"

	"github.com/leadstack/outreach/internal/dto"
	"github.com/stretchr/testify/mock"
)

type JobServiceMock struct {
	mock.Mock
}

func (m *JobServiceMock) CreateJob(ctx context.Context, req *dto.JobCreateDTO) (*dto.JobResponseDTO, error) {
	args := m.Called(ctx, req)

	resp, _ := args.Get(0).(*dto.JobResponseDTO)
	return resp, args.Error(1)
}

func (m *JobServiceMock) GetJobByID(ctx context.Context, id uint) (*dto.JobResponseDTO, error) {
	args := m.Called(ctx, id)

	resp, _ := args.Get(0).(*dto.JobResponseDTO)
	return resp, args.Error(1)
}

func (m *JobServiceMock) ListJobs(ctx context.Context, status string) ([]dto.JobResponseDTO, error) {
	args := m.Called(ctx, status)

	jobs, _ := args.Get(0).([]dto.JobResponseDTO)
	return jobs, args.Error(1)
}

func (m *JobServiceMock) QueueStats(ctx context.Context) (*dto.QueueStatsDTO, error) {
	args := m.Called(ctx)

	stats, _ := args.Get(0).(*dto.QueueStatsDTO)
	return stats, args.Error(1)
}
