// Package queue is a Redis-backed durable job queue with pinned job ids,
// numeric priorities, retries with backoff, retention of finished jobs
// and lock-based stalled job recovery.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Retention bounds how many finished jobs are kept. Zero values keep everything.
type Retention struct {
	Count int
	Age   time.Duration
}

func (r Retention) args() (string, string) {
	return strconv.Itoa(r.Count), strconv.FormatInt(r.Age.Milliseconds(), 10)
}

// Counts is the number of jobs per state.
type Counts struct {
	Waiting   int64 `json:"waiting"`
	Delayed   int64 `json:"delayed"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// Queue is one named queue. It is safe for concurrent use.
type Queue struct {
	name       string
	client     redis.UniversalClient
	keys       keys
	maxWaiting int
	now        func() time.Time
}

// Option configures a Queue.
type Option func(*Queue)

// WithMaxWaiting rejects new jobs once waiting+delayed reaches n. Zero disables the limit.
func WithMaxWaiting(n int) Option {
	return func(q *Queue) { q.maxWaiting = n }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// New binds a queue name to a Redis connection. The queue owns the
// connection and closes it in Close.
func New(client redis.UniversalClient, name string, opts ...Option) *Queue {
	q := &Queue{
		name:   name,
		client: client,
		keys:   newKeys(name),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *Queue) Name() string { return q.name }

// Add stores a job durably before returning. When opts.JobID is empty a
// uuid is generated.
func (q *Queue) Add(ctx context.Context, name string, data []byte, opts JobOptions) (*Job, error) {
	id := opts.JobID
	if id == "" {
		id = uuid.NewString()
	}
	if opts.Priority < 0 || opts.Priority > MaxPriority {
		return nil, fmt.Errorf("queue %s: priority %d out of range", q.name, opts.Priority)
	}
	attempts := opts.Attempts
	if attempts < 1 {
		attempts = 1
	}
	backoffType := opts.Backoff.Type
	if backoffType == "" {
		backoffType = BackoffExponential
	}

	now := q.now()
	res, err := addJobScript.Run(ctx, q.client,
		[]string{q.keys.job(id), q.keys.wait, q.keys.delayed, q.keys.seq},
		id, name, string(data), opts.Priority,
		attempts, string(backoffType), opts.Backoff.Delay.Milliseconds(),
		now.UnixMilli(), opts.Delay.Milliseconds(), q.maxWaiting,
	).Int64()
	if err != nil {
		return nil, fmt.Errorf("queue %s: add job: %w", q.name, err)
	}
	switch res {
	case -1:
		return nil, ErrDuplicateJob
	case -2:
		return nil, ErrQueueFull
	}

	state := StateWaiting
	if opts.Delay > 0 {
		state = StateDelayed
	}
	return &Job{
		ID:        id,
		Name:      name,
		Data:      data,
		Priority:  opts.Priority,
		Attempts:  attempts,
		Backoff:   Backoff{Type: backoffType, Delay: opts.Backoff.Delay},
		State:     state,
		Timestamp: time.UnixMilli(now.UnixMilli()).UTC(),
	}, nil
}

// GetJob loads a job snapshot. ErrJobNotFound is returned for unknown
// or already removed ids.
func (q *Queue) GetJob(ctx context.Context, id string) (*Job, error) {
	fields, err := q.client.HGetAll(ctx, q.keys.job(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("queue %s: get job: %w", q.name, err)
	}
	if len(fields) == 0 {
		return nil, ErrJobNotFound
	}
	return parseJob(fields)
}

// GetState returns StateUnknown for ids the queue does not know.
func (q *Queue) GetState(ctx context.Context, id string) (State, error) {
	state, err := q.client.HGet(ctx, q.keys.job(id), "state").Result()
	if errors.Is(err, redis.Nil) {
		return StateUnknown, nil
	}
	if err != nil {
		return StateUnknown, fmt.Errorf("queue %s: get state: %w", q.name, err)
	}
	return State(state), nil
}

func (q *Queue) Counts(ctx context.Context) (Counts, error) {
	pipe := q.client.Pipeline()
	waiting := pipe.ZCard(ctx, q.keys.wait)
	delayed := pipe.ZCard(ctx, q.keys.delayed)
	active := pipe.ZCard(ctx, q.keys.active)
	completed := pipe.ZCard(ctx, q.keys.completed)
	failed := pipe.ZCard(ctx, q.keys.failed)
	if _, err := pipe.Exec(ctx); err != nil {
		return Counts{}, fmt.Errorf("queue %s: counts: %w", q.name, err)
	}
	return Counts{
		Waiting:   waiting.Val(),
		Delayed:   delayed.Val(),
		Active:    active.Val(),
		Completed: completed.Val(),
		Failed:    failed.Val(),
	}, nil
}

func (q *Queue) Ping(ctx context.Context) error {
	if err := q.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("queue %s: ping: %w", q.name, err)
	}
	return nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

func (q *Queue) claim(ctx context.Context, token string, lock time.Duration) (*Job, error) {
	reply, err := claimScript.Run(ctx, q.client,
		[]string{q.keys.wait, q.keys.delayed, q.keys.active, q.keys.seq},
		q.now().UnixMilli(), lock.Milliseconds(), token, q.keys.jobPrefix(),
	).Slice()
	if errors.Is(err, redis.Nil) {
		return nil, errNoJob
	}
	if err != nil {
		return nil, fmt.Errorf("queue %s: claim: %w", q.name, err)
	}
	return parseJob(pairsToMap(reply))
}

func (q *Queue) complete(ctx context.Context, job *Job, result []byte, keep Retention) error {
	count, age := keep.args()
	now := q.now()
	res, err := completeScript.Run(ctx, q.client,
		[]string{q.keys.job(job.ID), q.keys.active, q.keys.completed},
		job.ID, job.token, string(result), now.UnixMilli(), count, age, q.keys.jobPrefix(),
	).Int64()
	if err != nil {
		return fmt.Errorf("queue %s: complete job %s: %w", q.name, job.ID, err)
	}
	if res < 0 {
		return ErrLockLost
	}
	job.State = StateCompleted
	job.ReturnValue = result
	job.FinishedOn = time.UnixMilli(now.UnixMilli()).UTC()
	return nil
}

// fail returns true when the job moved to the failed state.
func (q *Queue) fail(ctx context.Context, job *Job, cause error, retryDelay time.Duration, keep Retention) (bool, error) {
	count, age := keep.args()
	unrecoverable := "0"
	if IsUnrecoverable(cause) {
		unrecoverable = "1"
	}
	now := q.now()
	res, err := failScript.Run(ctx, q.client,
		[]string{q.keys.job(job.ID), q.keys.active, q.keys.delayed, q.keys.failed},
		job.ID, job.token, cause.Error(), now.UnixMilli(), retryDelay.Milliseconds(),
		unrecoverable, count, age, q.keys.jobPrefix(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("queue %s: fail job %s: %w", q.name, job.ID, err)
	}
	if res < 0 {
		return false, ErrLockLost
	}
	job.FailedReason = cause.Error()
	if res == 1 {
		job.State = StateFailed
		job.FinishedOn = time.UnixMilli(now.UnixMilli()).UTC()
		return true, nil
	}
	job.State = StateDelayed
	return false, nil
}

func (q *Queue) extendLock(ctx context.Context, job *Job, lock time.Duration) error {
	res, err := extendLockScript.Run(ctx, q.client,
		[]string{q.keys.job(job.ID), q.keys.active},
		job.ID, job.token, q.now().Add(lock).UnixMilli(),
	).Int64()
	if err != nil {
		return fmt.Errorf("queue %s: extend lock %s: %w", q.name, job.ID, err)
	}
	if res == 0 {
		return ErrLockLost
	}
	return nil
}

// recoverStalled requeues active jobs whose lock expired and fails the
// ones without attempts left. It returns the requeued count and failed ids.
func (q *Queue) recoverStalled(ctx context.Context, keep Retention) (int64, []string, error) {
	count, age := keep.args()
	reply, err := recoverStalledScript.Run(ctx, q.client,
		[]string{q.keys.active, q.keys.wait, q.keys.failed, q.keys.seq},
		q.now().UnixMilli(), q.keys.jobPrefix(), count, age, ErrStalled.Error(),
	).Slice()
	if err != nil {
		return 0, nil, fmt.Errorf("queue %s: recover stalled: %w", q.name, err)
	}
	if len(reply) == 0 {
		return 0, nil, nil
	}
	requeued, _ := reply[0].(int64)
	failed := make([]string, 0, len(reply)-1)
	for _, v := range reply[1:] {
		if id, ok := v.(string); ok {
			failed = append(failed, id)
		}
	}
	return requeued, failed, nil
}
