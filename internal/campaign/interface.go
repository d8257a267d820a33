package campaign

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/leadstack/outreach/internal/dto"
	"github.com/leadstack/outreach/internal/models"
)

// CampaignRepoInterface defines the campaign persistence the control
// surface consumes.
type CampaignRepoInterface interface {
	GetCampaign(ctx context.Context, id uint) (*models.Campaign, error)
	UpdateCampaignStatus(ctx context.Context, id uint, status models.CampaignStatus) error
	InitRecipientSchedules(ctx context.Context, campaignID uint, at time.Time) (int64, error)
	CountRecipients(ctx context.Context, campaignID uint) (int64, error)
	CountRecipientsByStatus(ctx context.Context, campaignID uint) (map[models.RecipientStatus]int, error)
}

// AttemptStatsInterface supplies aggregate attempt counts.
type AttemptStatsInterface interface {
	CountByStatusForCampaign(ctx context.Context, campaignID uint) (map[models.AttemptStatus]int, error)
}

// Sweeper runs one scheduler sweep, optionally scoped to a campaign.
type Sweeper interface {
	Sweep(ctx context.Context, campaignID uint) (int, error)
}

// CampaignServiceInterface defines the contract for campaign control
// operations.
type CampaignServiceInterface interface {
	Start(ctx context.Context, id uint, scheduledAt *time.Time) error
	Pause(ctx context.Context, id uint) error
	Trigger(ctx context.Context, id uint) (int, error)
	Stats(ctx context.Context, id uint) (*dto.CampaignStatsDTO, error)
}

// CampaignHandlerInterface defines the contract for HTTP handlers.
type CampaignHandlerInterface interface {
	Start(c *gin.Context)
	Pause(c *gin.Context)
	Trigger(c *gin.Context)
	Stats(c *gin.Context)
}
