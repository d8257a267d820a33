package models

import "time"

type AttemptStatus string

const (
	AttemptStatusSent   AttemptStatus = "SENT"
	AttemptStatusFailed AttemptStatus = "FAILED"
)

// ContactAttempt is the append-only audit record of one dispatch try.
// Rows are never updated after creation.
type ContactAttempt struct {
	ID                uint          `gorm:"primaryKey;autoIncrement"`
	TenantID          uint          `gorm:"not null;index"`
	RecipientID       uint          `gorm:"not null;index"`
	CampaignID        uint          `gorm:"not null;index"`
	ContactID         uint          `gorm:"not null"`
	StepID            uint          `gorm:"not null"`
	StepOrder         int           `gorm:"not null"`
	ChannelType       ChannelType   `gorm:"type:varchar(20);not null"`
	Status            AttemptStatus `gorm:"type:varchar(10);not null"`
	Content           string        `gorm:"type:text"`
	ExternalMessageID string        `gorm:"type:varchar(255)"`
	ErrorMessage      string        `gorm:"type:text"`
	CreatedAt         time.Time     `gorm:"autoCreateTime"`
}
