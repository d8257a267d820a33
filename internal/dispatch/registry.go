package dispatch

import (
	"context"
	"fmt"

	"github.com/leadstack/outreach/internal/models"
)

// Handler executes one claimed job. A nil return completes the job; an
// error sends it back through failWithBackoff, or fails it terminally
// when wrapped in NoRetry.
type Handler interface {
	Handle(ctx context.Context, job *models.Job) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, job *models.Job) error

func (f HandlerFunc) Handle(ctx context.Context, job *models.Job) error {
	return f(ctx, job)
}

// Registry is the static job-type routing table, populated once at
// startup. Registration rejects duplicates so a misconfigured wiring
// fails at boot instead of at dispatch time.
type Registry struct {
	handlers map[models.JobType]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[models.JobType]Handler)}
}

func (r *Registry) Register(jobType models.JobType, h Handler) error {
	if jobType == "" {
		return fmt.Errorf("job type must not be empty")
	}
	if h == nil {
		return fmt.Errorf("handler for %s must not be nil", jobType)
	}
	if _, exists := r.handlers[jobType]; exists {
		return fmt.Errorf("handler already registered for %s", jobType)
	}
	r.handlers[jobType] = h
	return nil
}

func (r *Registry) Resolve(jobType models.JobType) (Handler, bool) {
	h, ok := r.handlers[jobType]
	return h, ok
}

// NoRetryError marks a failure no retry can fix, such as a malformed
// payload. The dispatcher fails these jobs terminally instead of
// scheduling a backoff.
type NoRetryError struct {
	Err error
}

func (e *NoRetryError) Error() string {
	return "no retry: " + e.Err.Error()
}

func (e *NoRetryError) Unwrap() error {
	return e.Err
}

func NoRetry(err error) error {
	return &NoRetryError{Err: err}
}
