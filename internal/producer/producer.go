// Package producer enqueues notification jobs and reads their outcome.
package producer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"notification-workers/internal/common/config"
	apperrors "notification-workers/internal/common/errors"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/common/metrics"
	"notification-workers/internal/common/validation"
	"notification-workers/internal/models"
	"notification-workers/internal/queue"
)

// Result is what an enqueue call reports back to application code.
type Result struct {
	Success bool   `json:"success"`
	JobID   string `json:"jobId,omitempty"`
	Error   string `json:"error,omitempty"`

	// Err is the classified error behind Error, for errors.Is/As.
	Err error `json:"-"`
}

// Numeric queue priorities, lower runs first.
const (
	PriorityHigh   = 10
	PriorityMedium = 50
	PriorityLow    = 100
)

// Priority maps a symbolic priority to the queue scale. Unknown values
// are treated as medium.
func Priority(p models.Priority) int {
	switch p {
	case models.PriorityHigh:
		return PriorityHigh
	case models.PriorityLow:
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// RetryPolicy is applied to every job a producer enqueues.
type RetryPolicy struct {
	Attempts int
	Backoff  queue.Backoff
}

// RetryPolicyFromConfig reads the retry settings of a worker.
func RetryPolicyFromConfig(w config.WorkerConfig) RetryPolicy {
	return RetryPolicy{
		Attempts: w.Attempts,
		Backoff: queue.Backoff{
			Type:  queue.BackoffType(w.BackoffType),
			Delay: w.BackoffDelay(),
		},
	}
}

type settings struct {
	retry            RetryPolicy
	defaultRecipient string
	log              logger.Logger
}

// Option configures a producer.
type Option func(*settings)

func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *settings) { s.retry = p }
}

// WithDefaultRecipient sets the chat id or phone number used when a
// request does not name one.
func WithDefaultRecipient(r string) Option {
	return func(s *settings) { s.defaultRecipient = r }
}

func WithLogger(l logger.Logger) Option {
	return func(s *settings) { s.log = l }
}

func newSettings(opts []Option) settings {
	s := settings{
		retry: RetryPolicy{
			Attempts: 3,
			Backoff:  queue.Backoff{Type: queue.BackoffExponential, Delay: 5 * time.Second},
		},
		log: logger.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Producer enqueues envelopes of one channel on one queue. It owns the
// queue and closes it in Close.
type Producer[O any] struct {
	queue   *queue.Queue
	channel models.Channel
	schema  *validation.Schema
	settings
}

func newProducer[O any](q *queue.Queue, ch models.Channel, opts []Option) *Producer[O] {
	return &Producer[O]{
		queue:    q,
		channel:  ch,
		schema:   validation.EnvelopeSchema(string(ch)),
		settings: newSettings(opts),
	}
}

func (p *Producer[O]) invalid(details string) Result {
	metrics.JobsEnqueued.WithLabelValues(string(p.channel), "invalid").Inc()
	return Result{Error: details, Err: apperrors.NewValidationError(details)}
}

// enqueue writes the envelope durably under a fresh pinned id.
func (p *Producer[O]) enqueue(ctx context.Context, message string, opts O, priority models.Priority) Result {
	env := models.Envelope[O]{
		JobID:       uuid.NewString(),
		Type:        p.channel,
		Payload:     models.Payload[O]{Message: message, Options: opts},
		CreatedAt:   time.Now().UTC(),
		MaxAttempts: p.retry.Attempts,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return p.failed(env.JobID, apperrors.NewInvalidPayloadError(err.Error()))
	}
	// same schema the worker checks on claim
	if p.schema != nil {
		if vr := p.schema.ValidateDocument(data); !vr.Valid {
			return p.invalid(vr.Error())
		}
	}

	job, err := p.queue.Add(ctx, "send-"+string(p.channel), data, queue.JobOptions{
		JobID:    env.JobID,
		Priority: Priority(priority),
		Attempts: p.retry.Attempts,
		Backoff:  p.retry.Backoff,
	})
	switch {
	case errors.Is(err, queue.ErrQueueFull):
		metrics.JobsEnqueued.WithLabelValues(string(p.channel), "full").Inc()
		stdErr := apperrors.NewQueueFullError(p.queue.Name())
		return Result{Error: stdErr.Error(), Err: stdErr}
	case err != nil:
		return p.failed(env.JobID, apperrors.NewEnqueueFailedError(p.queue.Name(), err))
	}

	metrics.JobsEnqueued.WithLabelValues(string(p.channel), "accepted").Inc()
	p.log.Debug("Notification enqueued", map[string]interface{}{
		"jobId":    job.ID,
		"queue":    p.queue.Name(),
		"channel":  string(p.channel),
		"priority": job.Priority,
	})
	return Result{Success: true, JobID: job.ID}
}

func (p *Producer[O]) failed(jobID string, err *apperrors.StandardError) Result {
	metrics.JobsEnqueued.WithLabelValues(string(p.channel), "failed").Inc()
	p.log.Error("Failed to enqueue notification", map[string]interface{}{
		"jobId":   jobID,
		"queue":   p.queue.Name(),
		"channel": string(p.channel),
		"error":   err.Error(),
	})
	return Result{Error: err.Error(), Err: err}
}

// GetStatus returns the recorded outcome of a completed job. Jobs in any
// other state, and unknown ids, yield nil.
func (p *Producer[O]) GetStatus(ctx context.Context, jobID string) (*models.Outcome, error) {
	state, err := p.queue.GetState(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if state != queue.StateCompleted {
		return nil, nil
	}

	job, err := p.queue.GetJob(ctx, jobID)
	if errors.Is(err, queue.ErrJobNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out models.Outcome
	if err := json.Unmarshal(job.ReturnValue, &out); err != nil {
		return nil, fmt.Errorf("decode outcome of job %s: %w", jobID, err)
	}
	return &out, nil
}

// GetFailure returns the failure detail of a failed job, nil otherwise.
func (p *Producer[O]) GetFailure(ctx context.Context, jobID string) (*models.Failure, error) {
	job, err := p.queue.GetJob(ctx, jobID)
	if errors.Is(err, queue.ErrJobNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if job.State != queue.StateFailed {
		return nil, nil
	}
	return &models.Failure{
		JobID:        job.ID,
		Reason:       job.FailedReason,
		AttemptsMade: job.AttemptsMade,
		FailedAt:     job.FinishedOn,
	}, nil
}

// Counts returns the queue depth per state.
func (p *Producer[O]) Counts(ctx context.Context) (queue.Counts, error) {
	return p.queue.Counts(ctx)
}

func (p *Producer[O]) Close() error {
	return p.queue.Close()
}
