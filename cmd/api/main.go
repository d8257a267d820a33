package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/leadstack/outreach/internal/campaign"
	"github.com/leadstack/outreach/internal/config"
	"github.com/leadstack/outreach/internal/job"
	"github.com/leadstack/outreach/internal/logging"
	"github.com/leadstack/outreach/internal/scheduler"
	"github.com/leadstack/outreach/internal/storage/postgres"
	"github.com/leadstack/outreach/middleware"
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

	// The trigger endpoint reuses the scheduler's sweep, scoped to one
	// campaign; the periodic loop itself runs in the worker process.
	sweeper := scheduler.New(scheduler.Config{
		Campaigns:   campaignRepo,
		Queue:       jobRepo,
		Logger:      logger,
		Interval:    cfg.SchedulerInterval,
		BatchSize:   cfg.SchedulerBatch,
		MaxAttempts: cfg.MaxAttempts,
	})

	jobHandler := job.NewJobHandler(job.NewJobService(jobRepo))
	campaignHandler := campaign.NewCampaignHandler(
		campaign.NewCampaignService(campaignRepo, attemptRepo, sweeper))

	router := gin.New()
	router.Use(gin.Recovery(), middleware.ErrorHandler())

	jobs := router.Group("/jobs")
	{
		jobs.POST("", jobHandler.Create)
		jobs.GET("", jobHandler.List)
		jobs.GET("/:id", jobHandler.Get)
	}
	router.GET("/stats/queue", jobHandler.Stats)

	campaigns := router.Group("/campaigns")
	{
		campaigns.POST("/:id/start", campaignHandler.Start)
		campaigns.POST("/:id/pause", campaignHandler.Pause)
		campaigns.POST("/:id/trigger", campaignHandler.Trigger)
		campaigns.GET("/:id/stats", campaignHandler.Stats)
	}

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		logger.Info("api listening", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("api stopped")
}
