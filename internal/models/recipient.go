package models

import "time"

type RecipientStatus string

const (
	RecipientStatusPending      RecipientStatus = "PENDING"
	RecipientStatusInProgress   RecipientStatus = "IN_PROGRESS"
	RecipientStatusCompleted    RecipientStatus = "COMPLETED"
	RecipientStatusFailed       RecipientStatus = "FAILED"
	RecipientStatusUnsubscribed RecipientStatus = "UNSUBSCRIBED"
)

// CampaignRecipient pairs a contact with a campaign and tracks its progress
// through the step sequence. NextActionAt gates selection by the scheduler:
// nil means not yet scheduled.
type CampaignRecipient struct {
	ID               uint            `gorm:"primaryKey;autoIncrement"`
	TenantID         uint            `gorm:"not null;index"`
	CampaignID       uint            `gorm:"not null;index"`
	ContactID        uint            `gorm:"not null"`
	CurrentStepOrder int             `gorm:"not null;default:1"`
	Status           RecipientStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	NextActionAt     *time.Time      `gorm:"index"`
	Campaign         Campaign        `gorm:"foreignKey:CampaignID"`
	Contact          Contact         `gorm:"foreignKey:ContactID"`
	CreatedAt        time.Time       `gorm:"autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime"`
}

// Terminal reports whether the recipient can no longer advance.
func (r *CampaignRecipient) Terminal() bool {
	switch r.Status {
	case RecipientStatusCompleted, RecipientStatusFailed, RecipientStatusUnsubscribed:
		return true
	}
	return false
}
