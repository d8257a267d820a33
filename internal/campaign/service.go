package campaign

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/leadstack/outreach/common"
	"github.com/leadstack/outreach/internal/dto"
	"github.com/leadstack/outreach/internal/models"
)

type CampaignService struct {
	campaigns CampaignRepoInterface
	attempts  AttemptStatsInterface
	sweeper   Sweeper
	now       func() time.Time
}

func NewCampaignService(campaigns CampaignRepoInterface, attempts AttemptStatsInterface, sweeper Sweeper) *CampaignService {
	return &CampaignService{
		campaigns: campaigns,
		attempts:  attempts,
		sweeper:   sweeper,
		now:       time.Now,
	}
}

var _ CampaignServiceInterface = (*CampaignService)(nil)

// Start validates that the campaign can run, activates it, and arms the
// first action for every PENDING recipient. scheduledAt defers the first
// sweep; nil starts now.
func (s *CampaignService) Start(ctx context.Context, id uint, scheduledAt *time.Time) error {
	campaign, err := s.getCampaign(ctx, id)
	if err != nil {
		return err
	}

	if campaign.Status == models.CampaignStatusCompleted {
		return common.Errf(http.StatusConflict, "campaign %d is already completed", id)
	}
	if len(campaign.Steps) == 0 {
		return common.Errf(http.StatusBadRequest, "campaign %d has no steps", id)
	}

	recipients, err := s.campaigns.CountRecipients(ctx, id)
	if err != nil {
		return common.Errf(http.StatusInternalServerError, "failed to count recipients")
	}
	if recipients == 0 {
		return common.Errf(http.StatusBadRequest, "campaign %d has no recipients", id)
	}

	firstActionAt := s.now().UTC()
	if scheduledAt != nil {
		firstActionAt = scheduledAt.UTC()
	}

	if err := s.campaigns.UpdateCampaignStatus(ctx, id, models.CampaignStatusActive); err != nil {
		return common.Errf(http.StatusInternalServerError, "failed to activate campaign")
	}
	if _, err := s.campaigns.InitRecipientSchedules(ctx, id, firstActionAt); err != nil {
		return common.Errf(http.StatusInternalServerError, "failed to schedule recipients")
	}

	return nil
}

// Pause sets the campaign PAUSED. The pause is advisory: it stops new
// enqueues at the scheduler and makes in-flight step executions return
// without mutating state; it does not cancel channel calls already on
// the wire.
func (s *CampaignService) Pause(ctx context.Context, id uint) error {
	campaign, err := s.getCampaign(ctx, id)
	if err != nil {
		return err
	}

	if campaign.Status != models.CampaignStatusActive {
		return common.Errf(http.StatusConflict, "campaign %d is not active", id)
	}

	if err := s.campaigns.UpdateCampaignStatus(ctx, id, models.CampaignStatusPaused); err != nil {
		return common.Errf(http.StatusInternalServerError, "failed to pause campaign")
	}
	return nil
}

// Trigger forces an immediate scheduler sweep scoped to one campaign.
// Returns the number of recipients enqueued.
func (s *CampaignService) Trigger(ctx context.Context, id uint) (int, error) {
	campaign, err := s.getCampaign(ctx, id)
	if err != nil {
		return 0, err
	}

	if campaign.Status != models.CampaignStatusActive {
		return 0, common.Errf(http.StatusConflict, "campaign %d is not active", id)
	}

	count, err := s.sweeper.Sweep(ctx, id)
	if err != nil {
		return 0, common.Errf(http.StatusInternalServerError, "sweep failed")
	}
	return count, nil
}

// Stats aggregates recipient and attempt counts by status. This is the
// whole operator-facing failure surface; no stack traces leave the
// engine.
func (s *CampaignService) Stats(ctx context.Context, id uint) (*dto.CampaignStatsDTO, error) {
	campaign, err := s.getCampaign(ctx, id)
	if err != nil {
		return nil, err
	}

	recipientCounts, err := s.campaigns.CountRecipientsByStatus(ctx, id)
	if err != nil {
		return nil, common.Errf(http.StatusInternalServerError, "failed to aggregate recipients")
	}
	attemptCounts, err := s.attempts.CountByStatusForCampaign(ctx, id)
	if err != nil {
		return nil, common.Errf(http.StatusInternalServerError, "failed to aggregate attempts")
	}

	stats := &dto.CampaignStatsDTO{
		CampaignID: id,
		Status:     string(campaign.Status),
		Recipients: make(map[string]int, len(recipientCounts)),
		Attempts:   make(map[string]int, len(attemptCounts)),
	}
	for status, count := range recipientCounts {
		stats.Recipients[string(status)] = count
	}
	for status, count := range attemptCounts {
		stats.Attempts[string(status)] = count
	}
	return stats, nil
}

func (s *CampaignService) getCampaign(ctx context.Context, id uint) (*models.Campaign, error) {
	campaign, err := s.campaigns.GetCampaign(ctx, id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return nil, common.Errf(http.StatusNotFound, "campaign not found")
		}
		return nil, common.Errf(http.StatusInternalServerError, "failed to get campaign")
	}
	return campaign, nil
}
