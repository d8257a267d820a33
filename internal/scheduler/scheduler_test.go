package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/leadstack/outreach/internal/dto"
	"github.com/leadstack/outreach/internal/models"
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
		&models.Job{},
	))
	return db
}

func newScheduler(db *gorm.DB, batchSize int) (*Scheduler, *postgres.JobRepository) {
	queue := postgres.NewJobRepository(db)
	s := New(Config{
		Campaigns:   postgres.NewCampaignRepository(db),
		Queue:       queue,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Interval:    time.Second,
		BatchSize:   batchSize,
		MaxAttempts: 3,
	})
	return s, queue
}

// seedDue creates a campaign in the given status with n recipients whose
// next action is already due.
func seedDue(t *testing.T, db *gorm.DB, status models.CampaignStatus, n int) *models.Campaign {
	t.Helper()

	campaign := models.Campaign{TenantID: 1, Name: "outreach", Status: status}
	require.NoError(t, db.Create(&campaign).Error)

	past := time.Now().UTC().Add(-time.Minute)
	for i := 0; i < n; i++ {
		contact := models.Contact{TenantID: 1, FirstName: "Ada", Email: "ada@example.com"}
		require.NoError(t, db.Create(&contact).Error)
		require.NoError(t, db.Create(&models.CampaignRecipient{
			TenantID:         1,
			CampaignID:       campaign.ID,
			ContactID:        contact.ID,
			CurrentStepOrder: 1,
			Status:           models.RecipientStatusPending,
			NextActionAt:     &past,
		}).Error)
	}
	return &campaign
}

func TestScheduler_Sweep(t *testing.T) {
	ctx := context.Background()

	t.Run("enqueues one step job per due recipient", func(t *testing.T) {
		db := setupDB(t)
		s, queue := newScheduler(db, 100)

		campaign := seedDue(t, db, models.CampaignStatusActive, 3)

		count, err := s.Sweep(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		jobs, err := queue.List(ctx, models.JobStatusPending)
		require.NoError(t, err)
		require.Len(t, jobs, 3)

		for _, job := range jobs {
			assert.Equal(t, models.JobTypeCampaignStep, job.Type)
			assert.Equal(t, models.PriorityCampaignStep, job.Priority)

			var payload dto.CampaignStepPayload
			require.NoError(t, json.Unmarshal(job.Payload, &payload))
			assert.Equal(t, campaign.ID, payload.CampaignID)
			assert.Equal(t, fmt.Sprintf("campaign_step:%d", payload.RecipientID), job.DedupeKey)
		}
	})

	t.Run("resweeping does not duplicate live jobs", func(t *testing.T) {
		db := setupDB(t)
		s, queue := newScheduler(db, 100)

		seedDue(t, db, models.CampaignStatusActive, 2)

		count, err := s.Sweep(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		// Recipients are untouched by the sweep, so they are still due;
		// the dedupe key must absorb the second pass.
		count, err = s.Sweep(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		jobs, err := queue.List(ctx, models.JobStatusPending)
		require.NoError(t, err)
		assert.Len(t, jobs, 2)
	})

	t.Run("inactive campaigns are not swept", func(t *testing.T) {
		db := setupDB(t)
		s, queue := newScheduler(db, 100)

		seedDue(t, db, models.CampaignStatusPaused, 2)
		seedDue(t, db, models.CampaignStatusDraft, 2)
		seedDue(t, db, models.CampaignStatusCompleted, 1)

		count, err := s.Sweep(ctx, 0)
		require.NoError(t, err)
		assert.Zero(t, count)

		jobs, err := queue.List(ctx, "")
		require.NoError(t, err)
		assert.Empty(t, jobs)
	})

	t.Run("scoped sweep only touches the requested campaign", func(t *testing.T) {
		db := setupDB(t)
		s, queue := newScheduler(db, 100)

		target := seedDue(t, db, models.CampaignStatusActive, 2)
		seedDue(t, db, models.CampaignStatusActive, 3)

		count, err := s.Sweep(ctx, target.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		jobs, err := queue.List(ctx, models.JobStatusPending)
		require.NoError(t, err)
		require.Len(t, jobs, 2)
		for _, job := range jobs {
			var payload dto.CampaignStepPayload
			require.NoError(t, json.Unmarshal(job.Payload, &payload))
			assert.Equal(t, target.ID, payload.CampaignID)
		}
	})

	t.Run("sweep is bounded by batch size", func(t *testing.T) {
		db := setupDB(t)
		s, queue := newScheduler(db, 2)

		seedDue(t, db, models.CampaignStatusActive, 5)

		count, err := s.Sweep(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		jobs, err := queue.List(ctx, models.JobStatusPending)
		require.NoError(t, err)
		assert.Len(t, jobs, 2)
	})

	t.Run("sweep never mutates recipient rows", func(t *testing.T) {
		db := setupDB(t)
		s, _ := newScheduler(db, 100)

		campaign := seedDue(t, db, models.CampaignStatusActive, 1)

		var before models.CampaignRecipient
		require.NoError(t, db.First(&before, "campaign_id = ?", campaign.ID).Error)

		_, err := s.Sweep(ctx, 0)
		require.NoError(t, err)

		var after models.CampaignRecipient
		require.NoError(t, db.First(&after, "campaign_id = ?", campaign.ID).Error)
		assert.Equal(t, before.Status, after.Status)
		assert.Equal(t, before.CurrentStepOrder, after.CurrentStepOrder)
		require.NotNil(t, after.NextActionAt)
		assert.WithinDuration(t, *before.NextActionAt, *after.NextActionAt, time.Second)
	})
}
