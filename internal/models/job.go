package models

import (
	"time"

	"gorm.io/datatypes"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

type JobType string

const (
	JobTypeCampaignStep JobType = "CAMPAIGN_STEP"
	JobTypeCleanup      JobType = "CLEANUP"
)

// Campaign steps are latency-sensitive relative to background work,
// so they claim ahead of cleanup jobs.
const (
	PriorityCampaignStep = 10
	PriorityBackground   = 0
)

type Job struct {
	ID           uint           `gorm:"primaryKey;autoIncrement"`
	TenantID     uint           `gorm:"not null;index"`
	Type         JobType        `gorm:"type:varchar(50);not null"`
	Payload      datatypes.JSON `gorm:"type:jsonb"`
	Status       JobStatus      `gorm:"type:varchar(20);not null;default:'PENDING';index:idx_jobs_claim"`
	DedupeKey    string         `gorm:"type:varchar(255);index"`
	Priority     int            `gorm:"not null;default:0"`
	Attempts     int            `gorm:"not null;default:0"`
	MaxAttempts  int            `gorm:"not null;default:3"`
	ScheduledAt  time.Time      `gorm:"not null;index:idx_jobs_claim"`
	StartedAt    *time.Time
	CompletedAt  *time.Time
	ErrorMessage string    `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}
