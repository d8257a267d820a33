package executor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/leadstack/outreach/internal/channel"
	"github.com/leadstack/outreach/internal/dispatch"
	"github.com/leadstack/outreach/internal/models"
	"github.com/leadstack/outreach/internal/render"
	"github.com/leadstack/outreach/internal/storage/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Contact{},
		&models.Channel{},
		&models.Template{},
		&models.Campaign{},
		&models.CampaignStep{},
		&models.CampaignRecipient{},
		&models.ContactAttempt{},
		&models.Job{},
	))
	return db
}

// stubSender counts its calls and succeeds or fails on demand.
type stubSender struct {
	channelType models.ChannelType
	fail        bool
	calls       int
}

func (s *stubSender) Type() models.ChannelType { return s.channelType }

func (s *stubSender) Send(_ context.Context, _ channel.Credentials, _ *models.Contact, _ channel.RenderedContent) channel.SendResult {
	s.calls++
	if s.fail {
		return channel.SendResult{Error: "provider rejected message"}
	}
	return channel.SendResult{Success: true, MessageID: fmt.Sprintf("msg_%d", s.calls)}
}

// seedSequence creates an email campaign with one step per delay (minutes)
// and one armed PENDING recipient.
func seedSequence(t *testing.T, db *gorm.DB, status models.CampaignStatus, delayMinutes ...int) *models.CampaignRecipient {
	t.Helper()

	ch := models.Channel{TenantID: 1, Name: "primary email", Type: models.ChannelTypeEmail,
		Settings: []byte(`{"api_key":"sk_test"}`)}
	require.NoError(t, db.Create(&ch).Error)

	tmpl := models.Template{TenantID: 1, Name: "intro", Subject: "Hi {{first_name}}",
		Body: "Hello {{first_name}} from {{company}}"}
	require.NoError(t, db.Create(&tmpl).Error)

	campaign := models.Campaign{TenantID: 1, Name: "outreach", Status: status}
	require.NoError(t, db.Create(&campaign).Error)

	for i, minutes := range delayMinutes {
		step := models.CampaignStep{
			CampaignID:   campaign.ID,
			StepOrder:    i + 1,
			ChannelType:  models.ChannelTypeEmail,
			ChannelID:    ch.ID,
			TemplateID:   tmpl.ID,
			DelayMinutes: minutes,
		}
		require.NoError(t, db.Create(&step).Error)
	}

	return addRecipient(t, db, campaign.ID)
}

func addRecipient(t *testing.T, db *gorm.DB, campaignID uint) *models.CampaignRecipient {
	t.Helper()

	contact := models.Contact{TenantID: 1, FirstName: "Ada", LastName: "Lovelace",
		Email: "ada@example.com", Company: "Analytical Engines"}
	require.NoError(t, db.Create(&contact).Error)

	now := time.Now().UTC()
	recipient := models.CampaignRecipient{
		TenantID:         1,
		CampaignID:       campaignID,
		ContactID:        contact.ID,
		CurrentStepOrder: 1,
		Status:           models.RecipientStatusPending,
		NextActionAt:     &now,
	}
	require.NoError(t, db.Create(&recipient).Error)
	return &recipient
}

func newExecutor(db *gorm.DB, sender channel.Sender) (*StepExecutor, *postgres.CampaignRepository, *postgres.AttemptRepository) {
	campaigns := postgres.NewCampaignRepository(db)
	attempts := postgres.NewAttemptRepository(db)
	exec := NewStepExecutor(
		campaigns,
		attempts,
		channel.NewRegistry(sender),
		channel.SettingsResolver{},
		render.VariableRenderer{},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return exec, campaigns, attempts
}

func TestStepExecutor_TwoStepSequence(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	sender := &stubSender{channelType: models.ChannelTypeEmail}
	exec, campaigns, attempts := newExecutor(db, sender)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	exec.now = func() time.Time { return now }

	recipient := seedSequence(t, db, models.CampaignStatusActive, 0, 30)
	require.NoError(t, db.Model(recipient).Update("next_action_at", now.Add(-time.Minute)).Error)

	outcome, err := exec.Execute(ctx, recipient.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAdvanced, outcome)

	mid, err := campaigns.GetRecipient(ctx, recipient.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, mid.CurrentStepOrder)
	assert.Equal(t, models.RecipientStatusInProgress, mid.Status)
	require.NotNil(t, mid.NextActionAt)
	assert.WithinDuration(t, now.Add(30*time.Minute), *mid.NextActionAt, time.Second)

	// Step 2 runs once its delay has elapsed.
	now = now.Add(31 * time.Minute)
	outcome, err = exec.Execute(ctx, recipient.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)

	final, err := campaigns.GetRecipient(ctx, recipient.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RecipientStatusCompleted, final.Status)
	assert.Nil(t, final.NextActionAt)

	trail, err := attempts.ListForRecipient(ctx, recipient.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2, "exactly one attempt per step")
	assert.Equal(t, models.AttemptStatusSent, trail[0].Status)
	assert.Equal(t, models.AttemptStatusSent, trail[1].Status)
	assert.Equal(t, "Hello Ada from Analytical Engines", trail[0].Content)
	assert.Equal(t, 2, sender.calls)
}

func TestStepExecutor_CampaignCompletionDetection(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	exec, campaigns, _ := newExecutor(db, &stubSender{channelType: models.ChannelTypeEmail})

	first := seedSequence(t, db, models.CampaignStatusActive, 0)
	second := addRecipient(t, db, first.CampaignID)
	third := addRecipient(t, db, first.CampaignID)

	for _, recipient := range []*models.CampaignRecipient{first, second} {
		outcome, err := exec.Execute(ctx, recipient.ID)
		require.NoError(t, err)
		assert.Equal(t, OutcomeCompleted, outcome)

		campaign, err := campaigns.GetCampaign(ctx, first.CampaignID)
		require.NoError(t, err)
		assert.Equal(t, models.CampaignStatusActive, campaign.Status,
			"campaign must stay ACTIVE while recipients remain")
	}

	outcome, err := exec.Execute(ctx, third.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)

	campaign, err := campaigns.GetCampaign(ctx, first.CampaignID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusCompleted, campaign.Status)
}

func TestStepExecutor_PausedCampaignSkips(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	sender := &stubSender{channelType: models.ChannelTypeEmail}
	exec, campaigns, attempts := newExecutor(db, sender)

	recipient := seedSequence(t, db, models.CampaignStatusPaused, 0)

	outcome, err := exec.Execute(ctx, recipient.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)

	reloaded, err := campaigns.GetRecipient(ctx, recipient.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RecipientStatusPending, reloaded.Status)
	assert.Equal(t, 1, reloaded.CurrentStepOrder)

	trail, err := attempts.ListForRecipient(ctx, recipient.ID)
	require.NoError(t, err)
	assert.Empty(t, trail, "a paused campaign must not produce attempts")
	assert.Zero(t, sender.calls)
}

func TestStepExecutor_TerminalRecipientSkips(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	sender := &stubSender{channelType: models.ChannelTypeEmail}
	exec, _, _ := newExecutor(db, sender)

	recipient := seedSequence(t, db, models.CampaignStatusActive, 0)
	require.NoError(t, db.Model(recipient).Update("status", models.RecipientStatusUnsubscribed).Error)

	outcome, err := exec.Execute(ctx, recipient.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Zero(t, sender.calls)
}

func TestStepExecutor_FailedSendStillAdvances(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	sender := &stubSender{channelType: models.ChannelTypeEmail, fail: true}
	exec, campaigns, attempts := newExecutor(db, sender)

	recipient := seedSequence(t, db, models.CampaignStatusActive, 0, 30)

	outcome, err := exec.Execute(ctx, recipient.ID)
	require.NoError(t, err, "a send failure is recorded, not surfaced as a job error")
	assert.Equal(t, OutcomeAdvanced, outcome)

	reloaded, err := campaigns.GetRecipient(ctx, recipient.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.CurrentStepOrder)
	assert.Equal(t, models.RecipientStatusInProgress, reloaded.Status)

	trail, err := attempts.ListForRecipient(ctx, recipient.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, models.AttemptStatusFailed, trail[0].Status)
	assert.Equal(t, "provider rejected message", trail[0].ErrorMessage)
}

func TestStepExecutor_ZeroDelayFallsBackToDaily(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	exec, campaigns, _ := newExecutor(db, &stubSender{channelType: models.ChannelTypeEmail})

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	exec.now = func() time.Time { return now }

	// Both steps carry an all-zero delay.
	recipient := seedSequence(t, db, models.CampaignStatusActive, 0, 0)
	require.NoError(t, db.Model(recipient).Update("next_action_at", now.Add(-time.Minute)).Error)

	outcome, err := exec.Execute(ctx, recipient.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAdvanced, outcome)

	reloaded, err := campaigns.GetRecipient(ctx, recipient.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.NextActionAt)
	assert.WithinDuration(t, now.Add(24*time.Hour), *reloaded.NextActionAt, time.Second)
}

func TestStepExecutor_RedeliveryDoesNotResend(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	sender := &stubSender{channelType: models.ChannelTypeEmail}
	exec, campaigns, attempts := newExecutor(db, sender)

	recipient := seedSequence(t, db, models.CampaignStatusActive, 0, 30)

	var step models.CampaignStep
	require.NoError(t, db.First(&step, "campaign_id = ? AND step_order = 1", recipient.CampaignID).Error)

	// Simulate a prior delivery that settled as a timeout: the attempt
	// exists but the job came back.
	require.NoError(t, attempts.Create(ctx, &models.ContactAttempt{
		TenantID: 1, RecipientID: recipient.ID, CampaignID: recipient.CampaignID,
		ContactID: recipient.ContactID, StepID: step.ID, StepOrder: 1,
		ChannelType: models.ChannelTypeEmail, Status: models.AttemptStatusSent,
	}))

	outcome, err := exec.Execute(ctx, recipient.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAdvanced, outcome, "redelivery still advances the sequence")
	assert.Zero(t, sender.calls, "redelivery must not contact the provider again")

	trail, err := attempts.ListForRecipient(ctx, recipient.ID)
	require.NoError(t, err)
	assert.Len(t, trail, 1, "no second attempt row")

	reloaded, err := campaigns.GetRecipient(ctx, recipient.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.CurrentStepOrder)
}

func TestStepExecutor_EarlyRedeliverySkipsUntilDue(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	sender := &stubSender{channelType: models.ChannelTypeEmail}
	exec, campaigns, attempts := newExecutor(db, sender)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	exec.now = func() time.Time { return now }

	recipient := seedSequence(t, db, models.CampaignStatusActive, 0, 60)
	require.NoError(t, db.Model(recipient).Update("next_action_at", now.Add(-time.Minute)).Error)

	outcome, err := exec.Execute(ctx, recipient.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAdvanced, outcome)

	// A backed-off duplicate of the same job lands right away, while the
	// recipient is already waiting out step 2's delay.
	outcome, err = exec.Execute(ctx, recipient.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome, "step 2 must wait out its delay")
	assert.Equal(t, 1, sender.calls, "a duplicate delivery must not send ahead of schedule")

	trail, err := attempts.ListForRecipient(ctx, recipient.ID)
	require.NoError(t, err)
	assert.Len(t, trail, 1)

	reloaded, err := campaigns.GetRecipient(ctx, recipient.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.CurrentStepOrder)
	require.NotNil(t, reloaded.NextActionAt)
	assert.WithinDuration(t, now.Add(time.Hour), *reloaded.NextActionAt, time.Second)

	// Once the delay elapses the step runs normally.
	now = now.Add(61 * time.Minute)
	outcome, err = exec.Execute(ctx, recipient.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)
	assert.Equal(t, 2, sender.calls)
}

func TestStepExecutor_MissingStepCompletesRecipient(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	exec, campaigns, attempts := newExecutor(db, &stubSender{channelType: models.ChannelTypeEmail})

	recipient := seedSequence(t, db, models.CampaignStatusActive, 0)
	require.NoError(t, db.Model(recipient).Update("current_step_order", 5).Error)

	outcome, err := exec.Execute(ctx, recipient.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)

	reloaded, err := campaigns.GetRecipient(ctx, recipient.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RecipientStatusCompleted, reloaded.Status)

	trail, err := attempts.ListForRecipient(ctx, recipient.ID)
	require.NoError(t, err)
	assert.Empty(t, trail)
}

func TestStepExecutor_Handle(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	exec, _, _ := newExecutor(db, &stubSender{channelType: models.ChannelTypeEmail})

	t.Run("malformed payload is not retryable", func(t *testing.T) {
		err := exec.Handle(ctx, &models.Job{ID: 1, Type: models.JobTypeCampaignStep,
			Payload: []byte(`{not json`)})
		require.Error(t, err)

		var nre *dispatch.NoRetryError
		assert.ErrorAs(t, err, &nre)
	})

	t.Run("missing recipient id is not retryable", func(t *testing.T) {
		err := exec.Handle(ctx, &models.Job{ID: 2, Type: models.JobTypeCampaignStep,
			Payload: []byte(`{"campaign_id":1}`)})
		require.Error(t, err)

		var nre *dispatch.NoRetryError
		assert.ErrorAs(t, err, &nre)
	})

	t.Run("valid payload executes", func(t *testing.T) {
		recipient := seedSequence(t, db, models.CampaignStatusActive, 0)
		payload := []byte(fmt.Sprintf(`{"recipient_id":%d,"campaign_id":%d}`,
			recipient.ID, recipient.CampaignID))

		err := exec.Handle(ctx, &models.Job{ID: 3, Type: models.JobTypeCampaignStep, Payload: payload})
		require.NoError(t, err)
	})
}

// failingRenderer fails on one exact template and delegates the rest.
type failingRenderer struct{ failOn string }

func (r failingRenderer) Render(body string, vars map[string]string) (string, error) {
	if body == r.failOn {
		return "", fmt.Errorf("unclosed placeholder")
	}
	return render.VariableRenderer{}.Render(body, vars)
}

func TestStepExecutor_SubjectRenderFailureRecordsFailedAttempt(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	sender := &stubSender{channelType: models.ChannelTypeEmail}
	exec, campaigns, attempts := newExecutor(db, sender)
	exec.renderer = failingRenderer{failOn: "Hi {{first_name}}"}

	recipient := seedSequence(t, db, models.CampaignStatusActive, 0)

	outcome, err := exec.Execute(ctx, recipient.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)
	assert.Zero(t, sender.calls, "a half-rendered message must not go out")

	trail, err := attempts.ListForRecipient(ctx, recipient.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, models.AttemptStatusFailed, trail[0].Status)
	assert.Contains(t, trail[0].ErrorMessage, "render subject")

	reloaded, err := campaigns.GetRecipient(ctx, recipient.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RecipientStatusCompleted, reloaded.Status)
}

func TestStepExecutor_UnknownChannelRecordsFailedAttempt(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	// Registry only knows WhatsApp; the campaign step asks for email.
	exec, campaigns, attempts := newExecutor(db, &stubSender{channelType: models.ChannelTypeWhatsApp})

	recipient := seedSequence(t, db, models.CampaignStatusActive, 0)

	outcome, err := exec.Execute(ctx, recipient.ID)
	require.NoError(t, err, "a channel misconfiguration must not wedge the recipient")
	assert.Equal(t, OutcomeCompleted, outcome)

	trail, err := attempts.ListForRecipient(ctx, recipient.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, models.AttemptStatusFailed, trail[0].Status)
	assert.Contains(t, trail[0].ErrorMessage, "no sender for channel type")

	reloaded, err := campaigns.GetRecipient(ctx, recipient.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RecipientStatusCompleted, reloaded.Status)
}
