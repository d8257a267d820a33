package dto

import (
	"encoding/json"
	"time"
)

type JobCreateDTO struct {
	TenantID    uint            `json:"tenant_id" validate:"required"`
	Type        string          `json:"type" validate:"required"`
	Payload     json.RawMessage `json:"payload" validate:"required"`
	Priority    int             `json:"priority" validate:"gte=0,lte=100"`
	MaxAttempts int             `json:"max_attempts" validate:"gte=0,lte=20"`
	ScheduledAt *time.Time      `json:"scheduled_at,omitempty"`
}

type JobResponseDTO struct {
	ID           uint            `json:"id"`
	TenantID     uint            `json:"tenant_id"`
	Type         string          `json:"type"`
	Payload      json.RawMessage `json:"payload"`
	Status       string          `json:"status"`
	Priority     int             `json:"priority"`
	Attempts     int             `json:"attempts"`
	MaxAttempts  int             `json:"max_attempts"`
	ScheduledAt  time.Time       `json:"scheduled_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	Error        string          `json:"error,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
