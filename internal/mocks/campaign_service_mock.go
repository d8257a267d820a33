package mocks

import (
	"context"
	"time"

	"github.com/leadstack/outreach/internal/dto"
	"github.com/stretchr/testify/mock"
)

type CampaignServiceMock struct {
	mock.Mock
}

func (m *CampaignServiceMock) Start(ctx context.Context, id uint, scheduledAt *time.Time) error {
	args := m.Called(ctx, id, scheduledAt)
	return args.Error(0)
}

func (m *CampaignServiceMock) Pause(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *CampaignServiceMock) Trigger(ctx context.Context, id uint) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}

func (m *CampaignServiceMock) Stats(ctx context.Context, id uint) (*dto.CampaignStatsDTO, error) {
	args := m.Called(ctx, id)

	stats, _ := args.Get(0).(*dto.CampaignStatsDTO)
	return stats, args.Error(1)
}
