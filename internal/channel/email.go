package channel

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/leadstack/outreach/internal/models"
)

// EmailSender dispatches rendered email through the tenant's provider.
// The provider wire protocol is out of scope; this implementation
// validates inputs the way the real integration would and simulates the
// provider round trip.
type EmailSender struct{}

func (EmailSender) Type() models.ChannelType { return models.ChannelTypeEmail }

func (EmailSender) Send(ctx context.Context, creds Credentials, contact *models.Contact, content RenderedContent) SendResult {
	if creds["api_key"] == "" {
		return failure("email provider auth failed: missing api_key")
	}
	if contact.Email == "" {
		return failure("contact %d has no email address", contact.ID)
	}
	if content.Body == "" {
		return failure("refusing to send empty email body")
	}

	// Provider round trip.
	select {
	case <-time.After(50 * time.Millisecond):
	case <-ctx.Done():
		return failure("email send canceled: %v", ctx.Err())
	}

	return SendResult{
		Success:   true,
		MessageID: fmt.Sprintf("email_%s", uuid.NewString()),
	}
}
