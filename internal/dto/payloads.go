package dto

// Typed job payloads, discriminated by models.JobType. Payloads are
// validated on enqueue so a malformed job never reaches a handler.

// CampaignStepPayload drives one StepExecutor invocation.
type CampaignStepPayload struct {
	RecipientID uint `json:"recipient_id" validate:"required"`
	CampaignID  uint `json:"campaign_id" validate:"required"`
}

// CleanupPayload removes terminal jobs older than the given window.
type CleanupPayload struct {
	Days int `json:"days" validate:"required,gte=1,lte=365"`
}
