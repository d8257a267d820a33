package channel

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/leadstack/outreach/internal/models"
)

// Credentials is a decoded provider configuration, keyed by setting name.
type Credentials map[string]string

// RenderedContent is the already-rendered message handed to a sender.
type RenderedContent struct {
	Subject string
	Body    string
}

// SendResult is the uniform outcome of one provider call. Expected
// provider errors (auth failure, invalid recipient) land here as
// Success=false; a sender never returns a Go error for them.
type SendResult struct {
	Success   bool
	MessageID string
	Error     string
}

func failure(format string, args ...any) SendResult {
	return SendResult{Error: fmt.Sprintf(format, args...)}
}

// Sender is the capability implemented once per channel type. A sender
// failure never corrupts the queue or blocks unrelated recipients; the
// executor records the result and moves on.
type Sender interface {
	Type() models.ChannelType
	Send(ctx context.Context, creds Credentials, contact *models.Contact, content RenderedContent) SendResult
}

// Registry maps channel types to their senders. Populated once at
// startup; an unknown channel type is a configuration error, not a
// retryable condition.
type Registry struct {
	senders map[models.ChannelType]Sender
}

func NewRegistry(senders ...Sender) *Registry {
	reg := &Registry{senders: make(map[models.ChannelType]Sender, len(senders))}
	for _, s := range senders {
		reg.senders[s.Type()] = s
	}
	return reg
}

func (r *Registry) Get(t models.ChannelType) (Sender, bool) {
	s, ok := r.senders[t]
	return s, ok
}

// CredentialResolver turns a channel's stored configuration into the
// credentials a sender needs. Decryption and secret management live
// behind this interface.
type CredentialResolver interface {
	Resolve(ch *models.Channel) (Credentials, error)
}

// SettingsResolver decodes the channel's JSON settings column directly.
type SettingsResolver struct{}

func (SettingsResolver) Resolve(ch *models.Channel) (Credentials, error) {
	if len(ch.Settings) == 0 {
		return nil, fmt.Errorf("channel %d has no settings", ch.ID)
	}

	var creds Credentials
	if err := json.Unmarshal(ch.Settings, &creds); err != nil {
		return nil, fmt.Errorf("decode channel %d settings: %w", ch.ID, err)
	}
	return creds, nil
}
