package models

import "time"

type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "DRAFT"
	CampaignStatusActive    CampaignStatus = "ACTIVE"
	CampaignStatusPaused    CampaignStatus = "PAUSED"
	CampaignStatusCompleted CampaignStatus = "COMPLETED"
)

type CampaignType string

const (
	CampaignTypeImmediate CampaignType = "IMMEDIATE"
	CampaignTypeScheduled CampaignType = "SCHEDULED"
	CampaignTypeSequence  CampaignType = "SEQUENCE"
)

type Campaign struct {
	ID          uint           `gorm:"primaryKey;autoIncrement"`
	TenantID    uint           `gorm:"not null;index"`
	Name        string         `gorm:"type:varchar(255);not null"`
	Status      CampaignStatus `gorm:"type:varchar(20);not null;default:'DRAFT'"`
	Type        CampaignType   `gorm:"type:varchar(20);not null;default:'SEQUENCE'"`
	ScheduledAt *time.Time
	Steps       []CampaignStep `gorm:"foreignKey:CampaignID"`
	CreatedAt   time.Time      `gorm:"autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime"`
}

// CampaignStep is one ordered unit of a campaign sequence. StepOrder is
// 1-based and unique within a campaign. The delay fields describe the wait
// applied before this step, relative to the previous one; step 1 is sent
// without delay when the campaign starts.
type CampaignStep struct {
	ID           uint        `gorm:"primaryKey;autoIncrement"`
	CampaignID   uint        `gorm:"not null;uniqueIndex:idx_step_campaign_order"`
	StepOrder    int         `gorm:"not null;uniqueIndex:idx_step_campaign_order"`
	ChannelType  ChannelType `gorm:"type:varchar(20);not null"`
	ChannelID    uint        `gorm:"not null"`
	TemplateID   uint        `gorm:"not null"`
	DelayDays    int         `gorm:"not null;default:0"`
	DelayHours   int         `gorm:"not null;default:0"`
	DelayMinutes int         `gorm:"not null;default:0"`
	Channel      Channel     `gorm:"foreignKey:ChannelID"`
	Template     Template    `gorm:"foreignKey:TemplateID"`
	CreatedAt    time.Time   `gorm:"autoCreateTime"`
	UpdatedAt    time.Time   `gorm:"autoUpdateTime"`
}

// Delay returns the wait before this step fires. An all-zero delay falls
// back to 24h so a misconfigured step cannot re-fire the sequence
// immediately in a tight loop.
func (s *CampaignStep) Delay() time.Duration {
	minutes := s.DelayDays*1440 + s.DelayHours*60 + s.DelayMinutes
	if minutes == 0 {
		return 24 * time.Hour
	}
	return time.Duration(minutes) * time.Minute
}
