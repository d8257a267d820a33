package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/leadstack/outreach/internal/channel"
	"github.com/leadstack/outreach/internal/dispatch"
	"github.com/leadstack/outreach/internal/dto"
	"github.com/leadstack/outreach/internal/models"
	"github.com/leadstack/outreach/internal/render"
)

// Outcome is the result of one step execution, used for logging and
// assertions. It does not affect how the dispatcher settles the job.
type Outcome string

const (
	// OutcomeSkipped means the campaign was not ACTIVE or the recipient
	// was already terminal; nothing was mutated.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeAdvanced means the step was dispatched and the recipient
	// moved to its next step.
	OutcomeAdvanced Outcome = "advanced"
	// OutcomeCompleted means the recipient ran out of steps.
	OutcomeCompleted Outcome = "completed"
)

// CampaignStore is the recipient/campaign persistence the executor needs.
type CampaignStore interface {
	GetRecipient(ctx context.Context, id uint) (*models.CampaignRecipient, error)
	AdvanceRecipient(ctx context.Context, id uint, stepOrder int, status models.RecipientStatus, nextActionAt *time.Time) error
	CountActiveRecipients(ctx context.Context, campaignID uint) (int64, error)
	UpdateCampaignStatus(ctx context.Context, id uint, status models.CampaignStatus) error
}

// AttemptStore writes the dispatch audit trail.
type AttemptStore interface {
	Create(ctx context.Context, attempt *models.ContactAttempt) error
	HasSentAttempt(ctx context.Context, recipientID, stepID uint) (bool, error)
}

// StepExecutor handles CAMPAIGN_STEP jobs: it resolves the recipient's
// current step, renders and dispatches it, records the attempt, and
// advances the recipient. A failed send still advances the sequence:
// forward progress of the campaign is favored over redelivery of any one
// step.
type StepExecutor struct {
	campaigns CampaignStore
	attempts  AttemptStore
	senders   *channel.Registry
	creds     channel.CredentialResolver
	renderer  render.Renderer
	logger    *slog.Logger
	now       func() time.Time
}

func NewStepExecutor(
	campaigns CampaignStore,
	attempts AttemptStore,
	senders *channel.Registry,
	creds channel.CredentialResolver,
	renderer render.Renderer,
	logger *slog.Logger,
) *StepExecutor {
	return &StepExecutor{
		campaigns: campaigns,
		attempts:  attempts,
		senders:   senders,
		creds:     creds,
		renderer:  renderer,
		logger:    logger,
		now:       time.Now,
	}
}

// Handle implements dispatch.Handler for CAMPAIGN_STEP.
func (e *StepExecutor) Handle(ctx context.Context, job *models.Job) error {
	var payload dto.CampaignStepPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return dispatch.NoRetry(fmt.Errorf("decode campaign step payload: %w", err))
	}
	if payload.RecipientID == 0 {
		return dispatch.NoRetry(fmt.Errorf("campaign step payload missing recipient_id"))
	}

	outcome, err := e.Execute(ctx, payload.RecipientID)
	if err != nil {
		return err
	}

	e.logger.Info("campaign step executed",
		slog.Uint64("job_id", uint64(job.ID)),
		slog.Uint64("recipient_id", uint64(payload.RecipientID)),
		slog.String("outcome", string(outcome)),
	)
	return nil
}

// Execute drives one recipient through its current step.
func (e *StepExecutor) Execute(ctx context.Context, recipientID uint) (Outcome, error) {
	recipient, err := e.campaigns.GetRecipient(ctx, recipientID)
	if err != nil {
		return "", err
	}

	// A pause must be observable without corrupting in-flight state.
	if recipient.Campaign.Status != models.CampaignStatusActive {
		return OutcomeSkipped, nil
	}
	if recipient.Terminal() {
		return OutcomeSkipped, nil
	}

	// A duplicate delivery (a backed-off job re-claimed after its
	// original handler finished) can arrive while the recipient is
	// already waiting out the delay of a later step. The schedule gate
	// settles it: a next action still in the future means this delivery
	// is stale, and the scheduler will materialize a fresh job when the
	// step comes due.
	if recipient.NextActionAt != nil && recipient.NextActionAt.After(e.now().UTC()) {
		return OutcomeSkipped, nil
	}

	step := findStep(recipient.Campaign.Steps, recipient.CurrentStepOrder)
	if step == nil {
		// No step to run: the sequence is exhausted.
		if err := e.campaigns.AdvanceRecipient(ctx, recipient.ID, recipient.CurrentStepOrder, models.RecipientStatusCompleted, nil); err != nil {
			return "", err
		}
		if err := e.checkCampaignCompletion(ctx, recipient.CampaignID); err != nil {
			return "", err
		}
		return OutcomeCompleted, nil
	}

	// A redelivered job (e.g. after a dispatcher timeout) must not send
	// the same step twice. The audit trail is the idempotence record.
	alreadySent, err := e.attempts.HasSentAttempt(ctx, recipient.ID, step.ID)
	if err != nil {
		return "", err
	}
	if !alreadySent {
		attempt := e.dispatch(ctx, recipient, step)
		if err := e.attempts.Create(ctx, attempt); err != nil {
			return "", err
		}
	}

	return e.advance(ctx, recipient, step)
}

// dispatch renders and sends the step, returning the attempt record.
// Every dispatch yields exactly one attempt, success or failure; errors
// before the provider call (credentials, rendering, unknown channel) are
// recorded as FAILED attempts rather than surfaced as job errors.
func (e *StepExecutor) dispatch(ctx context.Context, recipient *models.CampaignRecipient, step *models.CampaignStep) *models.ContactAttempt {
	attempt := &models.ContactAttempt{
		TenantID:    recipient.TenantID,
		RecipientID: recipient.ID,
		CampaignID:  recipient.CampaignID,
		ContactID:   recipient.ContactID,
		StepID:      step.ID,
		StepOrder:   step.StepOrder,
		ChannelType: step.ChannelType,
	}

	result := e.send(ctx, recipient, step, attempt)
	if result.Success {
		attempt.Status = models.AttemptStatusSent
		attempt.ExternalMessageID = result.MessageID
	} else {
		attempt.Status = models.AttemptStatusFailed
		attempt.ErrorMessage = result.Error
		e.logger.Warn("channel send failed",
			slog.Uint64("recipient_id", uint64(recipient.ID)),
			slog.Int("step_order", step.StepOrder),
			slog.String("channel", string(step.ChannelType)),
			slog.String("error", result.Error),
		)
	}
	return attempt
}

func (e *StepExecutor) send(ctx context.Context, recipient *models.CampaignRecipient, step *models.CampaignStep, attempt *models.ContactAttempt) channel.SendResult {
	sender, ok := e.senders.Get(step.ChannelType)
	if !ok {
		return channel.SendResult{Error: fmt.Sprintf("no sender for channel type %s", step.ChannelType)}
	}

	vars := render.ContactVars(&recipient.Contact)
	body, err := e.renderer.Render(step.Template.Body, vars)
	if err != nil {
		return channel.SendResult{Error: fmt.Sprintf("render template %d: %v", step.TemplateID, err)}
	}
	subject := step.Template.Subject
	if subject != "" {
		subject, err = e.renderer.Render(subject, vars)
		if err != nil {
			return channel.SendResult{Error: fmt.Sprintf("render subject of template %d: %v", step.TemplateID, err)}
		}
	}
	attempt.Content = body

	creds, err := e.creds.Resolve(&step.Channel)
	if err != nil {
		return channel.SendResult{Error: fmt.Sprintf("resolve credentials: %v", err)}
	}

	return sender.Send(ctx, creds, &recipient.Contact, channel.RenderedContent{
		Subject: subject,
		Body:    body,
	})
}

// advance moves the recipient to the next step, or completes it when no
// step remains.
func (e *StepExecutor) advance(ctx context.Context, recipient *models.CampaignRecipient, current *models.CampaignStep) (Outcome, error) {
	next := nextStep(recipient.Campaign.Steps, current.StepOrder)
	if next == nil {
		if err := e.campaigns.AdvanceRecipient(ctx, recipient.ID, current.StepOrder, models.RecipientStatusCompleted, nil); err != nil {
			return "", err
		}
		if err := e.checkCampaignCompletion(ctx, recipient.CampaignID); err != nil {
			return "", err
		}
		return OutcomeCompleted, nil
	}

	nextActionAt := e.now().UTC().Add(next.Delay())
	if err := e.campaigns.AdvanceRecipient(ctx, recipient.ID, next.StepOrder, models.RecipientStatusInProgress, &nextActionAt); err != nil {
		return "", err
	}
	return OutcomeAdvanced, nil
}

// checkCampaignCompletion transitions the campaign to COMPLETED once no
// recipient remains PENDING or IN_PROGRESS.
func (e *StepExecutor) checkCampaignCompletion(ctx context.Context, campaignID uint) error {
	remaining, err := e.campaigns.CountActiveRecipients(ctx, campaignID)
	if err != nil {
		return err
	}
	if remaining > 0 {
		return nil
	}

	if err := e.campaigns.UpdateCampaignStatus(ctx, campaignID, models.CampaignStatusCompleted); err != nil {
		return err
	}
	e.logger.Info("campaign completed", slog.Uint64("campaign_id", uint64(campaignID)))
	return nil
}

func findStep(steps []models.CampaignStep, order int) *models.CampaignStep {
	for i := range steps {
		if steps[i].StepOrder == order {
			return &steps[i]
		}
	}
	return nil
}

// nextStep returns the lowest-ordered step after the given order. Steps
// are unique per order but not necessarily contiguous.
func nextStep(steps []models.CampaignStep, after int) *models.CampaignStep {
	var best *models.CampaignStep
	for i := range steps {
		if steps[i].StepOrder <= after {
			continue
		}
		if best == nil || steps[i].StepOrder < best.StepOrder {
			best = &steps[i]
		}
	}
	return best
}
