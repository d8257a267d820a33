package postgres

import (
	"context"
	"fmt"

	"github.com/leadstack/outreach/internal/models"
	"gorm.io/gorm"
)

// AttemptRepository writes the append-only dispatch audit trail. Rows are
// never updated after creation.
type AttemptRepository struct {
	db *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// Create persists one attempt record.
func (r *AttemptRepository) Create(ctx context.Context, attempt *models.ContactAttempt) error {
	if err := r.db.WithContext(ctx).Create(attempt).Error; err != nil {
		return fmt.Errorf("create attempt: %w", err)
	}
	return nil
}

// HasSentAttempt reports whether a step already produced a successful
// dispatch for the recipient. Used to keep redelivered jobs from sending
// the same step twice.
func (r *AttemptRepository) HasSentAttempt(ctx context.Context, recipientID, stepID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.ContactAttempt{}).
		Where("recipient_id = ? AND step_id = ? AND status = ?",
			recipientID, stepID, models.AttemptStatusSent).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check sent attempt: %w", err)
	}
	return count > 0, nil
}

// ListForRecipient returns a recipient's attempts in dispatch order.
func (r *AttemptRepository) ListForRecipient(ctx context.Context, recipientID uint) ([]models.ContactAttempt, error) {
	var attempts []models.ContactAttempt
	if err := r.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("id ASC").
		Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return attempts, nil
}

// CountByStatusForCampaign aggregates attempt counts for a campaign.
func (r *AttemptRepository) CountByStatusForCampaign(ctx context.Context, campaignID uint) (map[models.AttemptStatus]int, error) {
	var rows []struct {
		Status models.AttemptStatus
		Count  int
	}
	if err := r.db.WithContext(ctx).Model(&models.ContactAttempt{}).
		Select("status, COUNT(*) AS count").
		Where("campaign_id = ?", campaignID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count attempts by status: %w", err)
	}

	counts := make(map[models.AttemptStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
