package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leadstack/outreach/internal/models"
	"gorm.io/gorm"
)

// CampaignRepository reads campaigns with their ordered steps and mutates
// recipient scheduling state. Recipient rows are written only through the
// step executor path; the scheduler reads them.
type CampaignRepository struct {
	db *gorm.DB
}

func NewCampaignRepository(db *gorm.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// GetCampaign loads a campaign with its steps in sequence order.
func (r *CampaignRepository) GetCampaign(ctx context.Context, id uint) (*models.Campaign, error) {
	var campaign models.Campaign
	err := r.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_order ASC")
		}).
		First(&campaign, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("campaign not found: %w", err)
		}
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return &campaign, nil
}

// GetRecipient loads a recipient with its contact, campaign, and the
// campaign's ordered steps including channel and template.
func (r *CampaignRepository) GetRecipient(ctx context.Context, id uint) (*models.CampaignRecipient, error) {
	var recipient models.CampaignRecipient
	err := r.db.WithContext(ctx).
		Preload("Contact").
		Preload("Campaign.Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_order ASC")
		}).
		Preload("Campaign.Steps.Channel").
		Preload("Campaign.Steps.Template").
		First(&recipient, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("recipient not found: %w", err)
		}
		return nil, fmt.Errorf("get recipient: %w", err)
	}
	return &recipient, nil
}

// DueRecipients returns recipients of ACTIVE campaigns whose next action
// is due, oldest first, in a bounded batch. campaignID narrows the sweep
// to one campaign; zero sweeps all.
func (r *CampaignRepository) DueRecipients(ctx context.Context, now time.Time, limit int, campaignID uint) ([]models.CampaignRecipient, error) {
	q := r.db.WithContext(ctx).
		Joins("JOIN campaigns ON campaigns.id = campaign_recipients.campaign_id").
		Where("campaigns.status = ?", models.CampaignStatusActive).
		Where("campaign_recipients.status IN ?",
			[]models.RecipientStatus{models.RecipientStatusPending, models.RecipientStatusInProgress}).
		Where("campaign_recipients.next_action_at IS NOT NULL AND campaign_recipients.next_action_at <= ?", now.UTC()).
		Order("campaign_recipients.next_action_at ASC").
		Limit(limit)
	if campaignID != 0 {
		q = q.Where("campaign_recipients.campaign_id = ?", campaignID)
	}

	var recipients []models.CampaignRecipient
	if err := q.Find(&recipients).Error; err != nil {
		return nil, fmt.Errorf("select due recipients: %w", err)
	}
	return recipients, nil
}

// AdvanceRecipient moves a recipient to the given step and schedules its
// next action. A nil nextActionAt clears the gate.
func (r *CampaignRepository) AdvanceRecipient(ctx context.Context, id uint, stepOrder int, status models.RecipientStatus, nextActionAt *time.Time) error {
	if err := r.db.WithContext(ctx).Model(&models.CampaignRecipient{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"current_step_order": stepOrder,
			"status":             status,
			"next_action_at":     nextActionAt,
		}).Error; err != nil {
		return fmt.Errorf("advance recipient: %w", err)
	}
	return nil
}

// CountActiveRecipients counts recipients that can still advance.
func (r *CampaignRepository) CountActiveRecipients(ctx context.Context, campaignID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.CampaignRecipient{}).
		Where("campaign_id = ? AND status IN ?", campaignID,
			[]models.RecipientStatus{models.RecipientStatusPending, models.RecipientStatusInProgress}).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count active recipients: %w", err)
	}
	return count, nil
}

// CountRecipientsByStatus aggregates recipient counts for a campaign.
func (r *CampaignRepository) CountRecipientsByStatus(ctx context.Context, campaignID uint) (map[models.RecipientStatus]int, error) {
	var rows []struct {
		Status models.RecipientStatus
		Count  int
	}
	if err := r.db.WithContext(ctx).Model(&models.CampaignRecipient{}).
		Select("status, COUNT(*) AS count").
		Where("campaign_id = ?", campaignID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count recipients by status: %w", err)
	}

	counts := make(map[models.RecipientStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// UpdateCampaignStatus transitions a campaign's lifecycle status.
func (r *CampaignRepository) UpdateCampaignStatus(ctx context.Context, id uint, status models.CampaignStatus) error {
	if err := r.db.WithContext(ctx).Model(&models.Campaign{}).
		Where("id = ?", id).
		Update("status", status).Error; err != nil {
		return fmt.Errorf("update campaign status: %w", err)
	}
	return nil
}

// InitRecipientSchedules stamps next_action_at on PENDING recipients that
// have never been scheduled, arming them for the first sweep. Returns the
// number of recipients armed.
func (r *CampaignRepository) InitRecipientSchedules(ctx context.Context, campaignID uint, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.CampaignRecipient{}).
		Where("campaign_id = ? AND status = ? AND next_action_at IS NULL",
			campaignID, models.RecipientStatusPending).
		Update("next_action_at", at.UTC())
	if res.Error != nil {
		return 0, fmt.Errorf("init recipient schedules: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// CountRecipients counts all recipients of a campaign, any status.
func (r *CampaignRepository) CountRecipients(ctx context.Context, campaignID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.CampaignRecipient{}).
		Where("campaign_id = ?", campaignID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count recipients: %w", err)
	}
	return count, nil
}
