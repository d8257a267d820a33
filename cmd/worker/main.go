package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/leadstack/outreach/internal/channel"
	"github.com/leadstack/outreach/internal/config"
	"github.com/leadstack/outreach/internal/dispatch"
	"github.com/leadstack/outreach/internal/dto"
	"github.com/leadstack/outreach/internal/executor"
	"github.com/leadstack/outreach/internal/logging"
	"github.com/leadstack/outreach/internal/models"
	"github.com/leadstack/outreach/internal/render"
	"github.com/leadstack/outreach/internal/scheduler"
	"github.com/leadstack/outreach/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	dbCfg, err := postgres.LoadConfigFromEnv(ctx)
	if err != nil {
		logger.Error("failed to load database config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	db, err := postgres.ConnectDB(ctx, dbCfg, logger)
	if err != nil {
		logger.Error("database connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := postgres.Migrate(db); err != nil {
		logger.Error("migration failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	jobRepo := postgres.NewJobRepository(db)
	campaignRepo := postgres.NewCampaignRepository(db)
	attemptRepo := postgres.NewAttemptRepository(db)

	senders := channel.NewRegistry(
		channel.EmailSender{},
		channel.WhatsAppSender{},
		channel.VoiceSender{},
	)

	stepExecutor := executor.NewStepExecutor(
		campaignRepo,
		attemptRepo,
		senders,
		channel.SettingsResolver{},
		render.VariableRenderer{},
		logger,
	)
	cleanupHandler := executor.NewCleanupHandler(jobRepo, logger)

	registry := dispatch.NewRegistry()
	if err := registry.Register(models.JobTypeCampaignStep, stepExecutor); err != nil {
		logger.Error("handler registration failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := registry.Register(models.JobTypeCleanup, cleanupHandler); err != nil {
		logger.Error("handler registration failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	dispatcher := dispatch.NewDispatcher(dispatch.DispatcherConfig{
		Queue:        jobRepo,
		Registry:     registry,
		Logger:       logger,
		PollInterval: cfg.PollInterval,
		JobTimeout:   cfg.JobTimeout,
		Concurrency:  cfg.Concurrency,
	})

	sched := scheduler.New(scheduler.Config{
		Campaigns:   campaignRepo,
		Queue:       jobRepo,
		Logger:      logger,
		Interval:    cfg.SchedulerInterval,
		BatchSize:   cfg.SchedulerBatch,
		MaxAttempts: cfg.MaxAttempts,
	})

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		dispatcher.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		sched.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		cleanupLoop(ctx, jobRepo, cfg, logger)
	}()

	logger.Info("worker running")
	wg.Wait()
	logger.Info("shutdown complete")
}

// cleanupLoop periodically enqueues a low-priority CLEANUP job. The
// dedupe key keeps at most one live cleanup in the queue.
func cleanupLoop(ctx context.Context, jobRepo *postgres.JobRepository, cfg *config.Config, logger *slog.Logger) {
	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			payload, err := json.Marshal(dto.CleanupPayload{Days: cfg.CleanupRetentionDays})
			if err != nil {
				logger.Error("marshal cleanup payload", slog.String("error", err.Error()))
				continue
			}
			if _, err := jobRepo.Enqueue(ctx, models.JobTypeCleanup, payload, postgres.EnqueueOpts{
				Priority:  models.PriorityBackground,
				DedupeKey: "cleanup",
			}); err != nil {
				logger.Error("enqueue cleanup", slog.String("error", err.Error()))
			}
		}
	}
}
