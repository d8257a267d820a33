package mocks

import (
	"context"
	"time"

	"github.com/leadstack/outreach/internal/models"
	"github.com/stretchr/testify/mock"
)

type CampaignRepoMock struct {
	mock.Mock
}

func (m *CampaignRepoMock) GetCampaign(ctx context.Context, id uint) (*models.Campaign, error) {
	args := m.Called(ctx, id)

	campaign, _ := args.Get(0).(*models.Campaign)
	return campaign, args.Error(1)
}

func (m *CampaignRepoMock) UpdateCampaignStatus(ctx context.Context, id uint, status models.CampaignStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *CampaignRepoMock) InitRecipientSchedules(ctx context.Context, campaignID uint, at time.Time) (int64, error) {
	args := m.Called(ctx, campaignID, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *CampaignRepoMock) CountRecipients(ctx context.Context, campaignID uint) (int64, error) {
	args := m.Called(ctx, campaignID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *CampaignRepoMock) CountRecipientsByStatus(ctx context.Context, campaignID uint) (map[models.RecipientStatus]int, error) {
	args := m.Called(ctx, campaignID)

	counts, _ := args.Get(0).(map[models.RecipientStatus]int)
	return counts, args.Error(1)
}

type AttemptStatsMock struct {
	mock.Mock
}

func (m *AttemptStatsMock) CountByStatusForCampaign(ctx context.Context, campaignID uint) (map[models.AttemptStatus]int, error) {
	args := m.Called(ctx, campaignID)

	counts, _ := args.Get(0).(map[models.AttemptStatus]int)
	return counts, args.Error(1)
}

type SweeperMock struct {
	mock.Mock
}

func (m *SweeperMock) Sweep(ctx context.Context, campaignID uint) (int, error) {
	args := m.Called(ctx, campaignID)
	return args.Int(0), args.Error(1)
}
