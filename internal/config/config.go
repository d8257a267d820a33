package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds the engine knobs. Everything is injected from the
// environment; nothing here is hard-coded into the components.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR,default=:8080"`

	// Dispatcher
	PollInterval time.Duration `env:"DISPATCH_POLL_INTERVAL,default=5s"`
	Concurrency  int           `env:"DISPATCH_CONCURRENCY,default=10"`
	JobTimeout   time.Duration `env:"DISPATCH_JOB_TIMEOUT,default=60s"`
	MaxAttempts  int           `env:"JOB_MAX_ATTEMPTS,default=3"`

	// Scheduler
	SchedulerInterval time.Duration `env:"SCHEDULER_INTERVAL,default=30s"`
	SchedulerBatch    int           `env:"SCHEDULER_BATCH_SIZE,default=100"`

	// Cleanup
	CleanupRetentionDays int           `env:"CLEANUP_RETENTION_DAYS,default=30"`
	CleanupInterval      time.Duration `env:"CLEANUP_INTERVAL,default=24h"`

	LogLevel string `env:"LOG_LEVEL,default=info"`
}

// to help with testing
var envProcess = envconfig.Process

func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envProcess(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	var errs []string

	if cfg.PollInterval <= 0 {
		errs = append(errs, "DISPATCH_POLL_INTERVAL must be positive")
	}
	if cfg.Concurrency < 1 {
		errs = append(errs, "DISPATCH_CONCURRENCY must be at least 1")
	}
	if cfg.JobTimeout <= 0 {
		errs = append(errs, "DISPATCH_JOB_TIMEOUT must be positive")
	}
	if cfg.MaxAttempts < 1 {
		errs = append(errs, "JOB_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.SchedulerInterval <= 0 {
		errs = append(errs, "SCHEDULER_INTERVAL must be positive")
	}
	if cfg.SchedulerBatch < 1 {
		errs = append(errs, "SCHEDULER_BATCH_SIZE must be at least 1")
	}
	if cfg.CleanupRetentionDays < 1 {
		errs = append(errs, "CLEANUP_RETENTION_DAYS must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
