package dto

import "time"

type CampaignStartDTO struct {
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

type CampaignStatsDTO struct {
	CampaignID uint           `json:"campaign_id"`
	Status     string         `json:"status"`
	Recipients map[string]int `json:"recipients"`
	Attempts   map[string]int `json:"attempts"`
}

type QueueStatsDTO struct {
	Jobs map[string]int `json:"jobs"`
}
