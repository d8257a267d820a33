package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/leadstack/outreach/internal/dto"
	"github.com/leadstack/outreach/internal/models"
	"github.com/leadstack/outreach/internal/storage/postgres"
	"gorm.io/datatypes"
)

// Queue is the enqueue surface of the work queue.
type Queue interface {
	Enqueue(ctx context.Context, jobType models.JobType, payload datatypes.JSON, opts postgres.EnqueueOpts) (*models.Job, error)
}

// RecipientSource yields recipients whose next action is due.
type RecipientSource interface {
	DueRecipients(ctx context.Context, now time.Time, limit int, campaignID uint) ([]models.CampaignRecipient, error)
}

// Scheduler periodically materializes due campaign work into the queue.
// It decides what is due; the dispatcher decides who executes it. It
// never mutates recipient rows. That is strictly the step executor's
// job, so the two can never race on scheduling fields.
type Scheduler struct {
	campaigns   RecipientSource
	queue       Queue
	logger      *slog.Logger
	interval    time.Duration
	batchSize   int
	maxAttempts int
	now         func() time.Time
}

type Config struct {
	Campaigns   RecipientSource
	Queue       Queue
	Logger      *slog.Logger
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
}

func New(cfg Config) *Scheduler {
	return &Scheduler{
		campaigns:   cfg.Campaigns,
		queue:       cfg.Queue,
		logger:      cfg.Logger,
		interval:    cfg.Interval,
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxAttempts,
		now:         time.Now,
	}
}

// Start runs the sweep loop until the context is canceled. The sweep
// cadence is independent of the dispatcher's poll cadence.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("scheduler started",
		slog.Duration("interval", s.interval),
		slog.Int("batch_size", s.batchSize),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx, 0); err != nil {
				s.logger.Error("sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Sweep enqueues one CAMPAIGN_STEP job per due recipient, in a bounded
// batch. campaignID narrows the sweep to a single campaign (the manual
// "process now" path); zero sweeps everything. Returns the number of
// recipients matched.
func (s *Scheduler) Sweep(ctx context.Context, campaignID uint) (int, error) {
	now := s.now().UTC()

	recipients, err := s.campaigns.DueRecipients(ctx, now, s.batchSize, campaignID)
	if err != nil {
		return 0, err
	}

	for i := range recipients {
		if err := s.enqueueStep(ctx, &recipients[i]); err != nil {
			return i, err
		}
	}

	if len(recipients) > 0 {
		s.logger.Info("sweep enqueued due recipients",
			slog.Int("count", len(recipients)),
			slog.Uint64("campaign_id", uint64(campaignID)),
		)
	}
	return len(recipients), nil
}

func (s *Scheduler) enqueueStep(ctx context.Context, recipient *models.CampaignRecipient) error {
	payload, err := json.Marshal(dto.CampaignStepPayload{
		RecipientID: recipient.ID,
		CampaignID:  recipient.CampaignID,
	})
	if err != nil {
		return fmt.Errorf("marshal step payload: %w", err)
	}

	// The dedupe key keeps a recipient at one live job at a time even
	// when its step has not executed before the next sweep.
	_, err = s.queue.Enqueue(ctx, models.JobTypeCampaignStep, payload, postgres.EnqueueOpts{
		TenantID:    recipient.TenantID,
		Priority:    models.PriorityCampaignStep,
		MaxAttempts: s.maxAttempts,
		DedupeKey:   fmt.Sprintf("campaign_step:%d", recipient.ID),
	})
	if err != nil {
		return fmt.Errorf("enqueue step for recipient %d: %w", recipient.ID, err)
	}
	return nil
}
