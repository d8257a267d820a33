package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/leadstack/outreach/internal/models"
)

// Queue is the work-queue surface the dispatcher drives.
type Queue interface {
	ClaimBatch(ctx context.Context, limit int) ([]models.Job, error)
	Complete(ctx context.Context, id uint) error
	FailWithBackoff(ctx context.Context, id uint, jobErr error) error
	FailPermanently(ctx context.Context, id uint, errMsg string) error
}

// Dispatcher polls the queue on a fixed interval, claims due jobs in
// priority order, and runs each claimed job concurrently against a
// per-job deadline. Ticks never overlap: a tick that is still in flight
// causes the next one to be skipped.
type Dispatcher struct {
	id           string
	queue        Queue
	registry     *Registry
	logger       *slog.Logger
	pollInterval time.Duration
	jobTimeout   time.Duration
	concurrency  int

	inFlight atomic.Bool
	wg       sync.WaitGroup
}

type DispatcherConfig struct {
	Queue        Queue
	Registry     *Registry
	Logger       *slog.Logger
	PollInterval time.Duration
	JobTimeout   time.Duration
	Concurrency  int
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{
		id:           uuid.NewString(),
		queue:        cfg.Queue,
		registry:     cfg.Registry,
		logger:       cfg.Logger,
		pollInterval: cfg.PollInterval,
		jobTimeout:   cfg.JobTimeout,
		concurrency:  cfg.Concurrency,
	}
}

// Start runs the poll loop until the context is canceled, then waits for
// in-flight work to settle.
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("dispatcher started",
		slog.String("dispatcher_id", d.id),
		slog.Duration("poll_interval", d.pollInterval),
		slog.Duration("job_timeout", d.jobTimeout),
		slog.Int("concurrency", d.concurrency),
	)

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.wg.Wait()
			d.logger.Info("dispatcher stopped", slog.String("dispatcher_id", d.id))
			return
		case <-ticker.C:
			if !d.inFlight.CompareAndSwap(false, true) {
				d.logger.Debug("tick skipped, previous tick still in flight",
					slog.String("dispatcher_id", d.id))
				continue
			}
			d.wg.Add(1)
			go func() {
				defer d.wg.Done()
				defer d.inFlight.Store(false)
				d.Tick(ctx)
			}()
		}
	}
}

// Tick claims one batch and executes every claimed job concurrently,
// blocking until all of them have settled. Returns the number of jobs
// processed.
func (d *Dispatcher) Tick(ctx context.Context) int {
	jobs, err := d.queue.ClaimBatch(ctx, d.concurrency)
	if err != nil {
		d.logger.Error("claim batch failed",
			slog.String("dispatcher_id", d.id),
			slog.String("error", err.Error()),
		)
		return 0
	}
	if len(jobs) == 0 {
		return 0
	}

	var wg sync.WaitGroup
	for i := range jobs {
		wg.Add(1)
		go func(job models.Job) {
			defer wg.Done()
			d.process(ctx, &job)
		}(jobs[i])
	}
	wg.Wait()

	return len(jobs)
}

// process runs one job through its handler, racing the handler against
// the per-job deadline, and reports the outcome back to the queue.
// Handler errors and panics never escape the poll loop.
func (d *Dispatcher) process(ctx context.Context, job *models.Job) {
	handler, ok := d.registry.Resolve(job.Type)
	if !ok {
		// A missing handler will not resolve itself; no retry.
		d.logger.Error("no handler registered",
			slog.Uint64("job_id", uint64(job.ID)),
			slog.String("job_type", string(job.Type)),
		)
		d.settle(ctx, job, d.queue.FailPermanently(ctx, job.ID,
			fmt.Sprintf("no handler registered for job type %s", job.Type)))
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, d.jobTimeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errCh <- fmt.Errorf("handler panicked: %v", r)
			}
		}()
		errCh <- handler.Handle(jobCtx, job)
	}()

	var settleErr error
	select {
	case err := <-errCh:
		switch {
		case err == nil:
			settleErr = d.queue.Complete(ctx, job.ID)
		case isNoRetry(err):
			d.logger.Error("job failed permanently",
				slog.Uint64("job_id", uint64(job.ID)),
				slog.String("job_type", string(job.Type)),
				slog.String("error", err.Error()),
			)
			settleErr = d.queue.FailPermanently(ctx, job.ID, err.Error())
		default:
			d.logger.Warn("job failed, backing off",
				slog.Uint64("job_id", uint64(job.ID)),
				slog.String("job_type", string(job.Type)),
				slog.Int("attempts", job.Attempts),
				slog.String("error", err.Error()),
			)
			settleErr = d.queue.FailWithBackoff(ctx, job.ID, err)
		}
	case <-jobCtx.Done():
		// The handler may still finish underneath us; duplicate work on
		// timeout is accepted, idempotent recording absorbs it.
		d.logger.Warn("job timed out",
			slog.Uint64("job_id", uint64(job.ID)),
			slog.String("job_type", string(job.Type)),
			slog.Duration("timeout", d.jobTimeout),
		)
		settleErr = d.queue.FailWithBackoff(ctx, job.ID,
			fmt.Errorf("job timed out after %s", d.jobTimeout))
	}

	d.settle(ctx, job, settleErr)
}

func (d *Dispatcher) settle(ctx context.Context, job *models.Job, err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	d.logger.Error("failed to settle job outcome",
		slog.Uint64("job_id", uint64(job.ID)),
		slog.String("error", err.Error()),
	)
}

func isNoRetry(err error) bool {
	var nre *NoRetryError
	return errors.As(err, &nre)
}
