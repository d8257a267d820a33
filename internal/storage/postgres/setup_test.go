package postgres

import (
	"testing"

	"github.com/leadstack/outreach/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func SetupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // Disable logs during tests
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.Contact{},
		&models.Channel{},
		&models.Template{},
		&models.Campaign{},
		&models.CampaignStep{},
		&models.CampaignRecipient{},
		&models.ContactAttempt{},
		&models.Job{},
	)
	require.NoError(t, err)

	// AutoMigrate cannot express the partial unique index the SQL
	// migrations put on live dedupe keys; sqlite supports the same
	// predicate syntax as postgres.
	err = db.Exec(`CREATE UNIQUE INDEX idx_jobs_dedupe_live ON jobs (dedupe_key)
		WHERE dedupe_key <> '' AND status IN ('PENDING', 'PROCESSING')`).Error
	require.NoError(t, err)

	return db
}
