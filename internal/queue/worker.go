package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"notification-workers/internal/common/logger"
	"notification-workers/internal/common/metrics"
)

// ProcessFunc handles one attempt of a job. A nil error completes the job
// with the JSON encoding of the returned value as its return value. An
// error schedules a retry unless attempts are exhausted or the error was
// wrapped with Unrecoverable.
type ProcessFunc func(ctx context.Context, job *Job) (any, error)

// RateLimit allows at most Max job starts per Duration.
type RateLimit struct {
	Max      int
	Duration time.Duration
}

// Worker consumes one queue with bounded concurrency.
type Worker struct {
	queue   *Queue
	process ProcessFunc
	logger  logger.Logger
	tracer  trace.Tracer

	concurrency      int
	limiter          *rate.Limiter
	lockDuration     time.Duration
	stalledInterval  time.Duration
	pollInterval     time.Duration
	bookkeepTimeout  time.Duration
	removeOnComplete Retention
	removeOnFail     Retention

	onCompleted func(job *Job, result []byte)
	onFailed    func(job *Job, err error)
	onError     func(err error)

	sem        chan struct{}
	stopCh     chan struct{}
	stopCtx    context.Context
	stopFn     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
	activeJobs map[string]context.CancelFunc
	activeMu   sync.Mutex
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

func WithConcurrency(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// WithRateLimit spaces job starts evenly at Duration/Max with no burst.
func WithRateLimit(rl RateLimit) WorkerOption {
	return func(w *Worker) {
		if rl.Max <= 0 || rl.Duration <= 0 {
			w.limiter = nil
			return
		}
		w.limiter = rate.NewLimiter(rate.Every(rl.Duration/time.Duration(rl.Max)), 1)
	}
}

// WithLockDuration sets how long a claimed job stays locked without renewal.
func WithLockDuration(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.lockDuration = d
		}
	}
}

// WithStalledInterval sets how often expired locks are checked. Zero disables the check.
func WithStalledInterval(d time.Duration) WorkerOption {
	return func(w *Worker) { w.stalledInterval = d }
}

func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

func WithRetention(onComplete, onFail Retention) WorkerOption {
	return func(w *Worker) {
		w.removeOnComplete = onComplete
		w.removeOnFail = onFail
	}
}

func WithLogger(l logger.Logger) WorkerOption {
	return func(w *Worker) { w.logger = l }
}

func WithTracer(t trace.Tracer) WorkerOption {
	return func(w *Worker) { w.tracer = t }
}

// OnCompleted registers the completed event handler.
func OnCompleted(fn func(job *Job, result []byte)) WorkerOption {
	return func(w *Worker) { w.onCompleted = fn }
}

// OnFailed registers the handler called once when a job fails for good.
func OnFailed(fn func(job *Job, err error)) WorkerOption {
	return func(w *Worker) { w.onFailed = fn }
}

// OnError registers the handler for worker level errors.
func OnError(fn func(err error)) WorkerOption {
	return func(w *Worker) { w.onError = fn }
}

func NewWorker(q *Queue, process ProcessFunc, opts ...WorkerOption) *Worker {
	w := &Worker{
		queue:           q,
		process:         process,
		logger:          logger.NewNoOpLogger(),
		tracer:          otel.Tracer("notification-workers/queue"),
		concurrency:     1,
		lockDuration:    30 * time.Second,
		stalledInterval: 30 * time.Second,
		pollInterval:    time.Second,
		bookkeepTimeout: 5 * time.Second,
		activeJobs:      make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the fetch loop and the stalled job checker. It returns immediately.
func (w *Worker) Start(_ context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}
	w.running = true
	w.sem = make(chan struct{}, w.concurrency)
	w.stopCh = make(chan struct{})
	w.stopCtx, w.stopFn = context.WithCancel(context.Background())

	w.logger.Info("worker starting", map[string]interface{}{
		"queue":       w.queue.Name(),
		"concurrency": w.concurrency,
	})

	w.wg.Add(1)
	go w.fetchLoop()

	if w.stalledInterval > 0 {
		w.wg.Add(1)
		go w.stalledLoop()
	}
	return nil
}

// Close stops claiming jobs and waits for in-flight jobs to finish. When
// ctx ends first, in-flight jobs are cancelled and awaited.
func (w *Worker) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopping", map[string]interface{}{"queue": w.queue.Name()})

	close(w.stopCh)
	w.stopFn()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("worker stopped gracefully", map[string]interface{}{"queue": w.queue.Name()})
		return nil
	case <-ctx.Done():
		w.logger.Warn("worker shutdown timed out, cancelling active jobs", map[string]interface{}{
			"queue": w.queue.Name(),
		})
		w.cancelActiveJobs()
		<-done
		return ctx.Err()
	}
}

func (w *Worker) fetchLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopCh:
			return
		case w.sem <- struct{}{}:
		}

		if w.limiter != nil {
			if err := w.limiter.Wait(w.stopCtx); err != nil {
				<-w.sem
				return
			}
		}

		select {
		case <-w.stopCh:
			<-w.sem
			return
		default:
		}

		job, err := w.claimNext()
		if err != nil {
			<-w.sem
			if !errors.Is(err, errNoJob) {
				w.emitError(err)
			}
			select {
			case <-w.stopCh:
				return
			case <-time.After(w.pollInterval):
			}
			continue
		}

		w.wg.Add(1)
		go w.run(job)
	}
}

// claimNext is not tied to the stop signal. A claim the server committed
// must reach run, or the job would sit in active with an orphaned lock.
func (w *Worker) claimNext() (*Job, error) {
	ctx, cancel := context.WithTimeout(context.Background(), w.bookkeepTimeout)
	defer cancel()
	return w.queue.claim(ctx, uuid.NewString(), w.lockDuration)
}

func (w *Worker) run(job *Job) {
	defer w.wg.Done()
	defer func() { <-w.sem }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.trackJob(job.ID, cancel)
	defer w.untrackJob(job.ID)

	queueName := w.queue.Name()
	metrics.QueueJobsActive.WithLabelValues(queueName).Inc()
	defer metrics.QueueJobsActive.WithLabelValues(queueName).Dec()

	ctx, span := w.tracer.Start(ctx, "queue.process", trace.WithAttributes(
		attribute.String("queue.name", queueName),
		attribute.String("job.id", job.ID),
		attribute.String("job.name", job.Name),
		attribute.Int("job.attempt", job.AttemptsMade),
	))
	defer span.End()

	stopRenew := w.renewLock(ctx, job)
	start := time.Now()
	result, err := w.safeProcess(ctx, job)
	stopRenew()
	metrics.QueueJobDuration.WithLabelValues(queueName).Observe(time.Since(start).Seconds())

	if err == nil {
		payload, mErr := json.Marshal(result)
		if mErr != nil {
			err = Unrecoverable(fmt.Errorf("encode return value: %w", mErr))
		} else {
			w.completeJob(job, payload)
			return
		}
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	w.failJob(job, err)
}

func (w *Worker) completeJob(job *Job, payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), w.bookkeepTimeout)
	defer cancel()

	if err := w.queue.complete(ctx, job, payload, w.removeOnComplete); err != nil {
		w.emitError(err)
		return
	}
	metrics.QueueJobsCompleted.WithLabelValues(w.queue.Name()).Inc()
	if w.onCompleted != nil {
		w.onCompleted(job, payload)
	}
}

func (w *Worker) failJob(job *Job, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), w.bookkeepTimeout)
	defer cancel()

	terminal, err := w.queue.fail(ctx, job, cause, job.Backoff.Next(job.AttemptsMade), w.removeOnFail)
	if err != nil {
		w.emitError(err)
		return
	}
	if !terminal {
		metrics.QueueJobRetries.WithLabelValues(w.queue.Name()).Inc()
		w.logger.Debug("job scheduled for retry", map[string]interface{}{
			"queue":        w.queue.Name(),
			"jobId":        job.ID,
			"attemptsMade": job.AttemptsMade,
			"maxAttempts":  job.Attempts,
			"error":        cause.Error(),
		})
		return
	}
	metrics.QueueJobsFailed.WithLabelValues(w.queue.Name()).Inc()
	if w.onFailed != nil {
		w.onFailed(job, cause)
	}
}

func (w *Worker) safeProcess(ctx context.Context, job *Job) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processor panic: %v", r)
		}
	}()
	return w.process(ctx, job)
}

// renewLock extends the job lock every half lock period until stopped.
func (w *Worker) renewLock(ctx context.Context, job *Job) func() {
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(w.lockDuration / 2)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				rctx, cancel := context.WithTimeout(context.Background(), w.bookkeepTimeout)
				err := w.queue.extendLock(rctx, job, w.lockDuration)
				cancel()
				if errors.Is(err, ErrLockLost) {
					w.logger.Warn("job lock lost", map[string]interface{}{
						"queue": w.queue.Name(),
						"jobId": job.ID,
					})
					return
				}
				if err != nil {
					w.emitError(err)
				}
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}

func (w *Worker) stalledLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.stalledInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.checkStalled()
		}
	}
}

func (w *Worker) checkStalled() {
	ctx, cancel := context.WithTimeout(context.Background(), w.bookkeepTimeout)
	defer cancel()

	requeued, failed, err := w.queue.recoverStalled(ctx, w.removeOnFail)
	if err != nil {
		w.emitError(err)
		return
	}
	if requeued > 0 || len(failed) > 0 {
		w.logger.Warn("recovered stalled jobs", map[string]interface{}{
			"queue":    w.queue.Name(),
			"requeued": requeued,
			"failed":   len(failed),
		})
	}
	for _, id := range failed {
		metrics.QueueJobsFailed.WithLabelValues(w.queue.Name()).Inc()
		job, err := w.queue.GetJob(ctx, id)
		if err != nil {
			continue
		}
		if w.onFailed != nil {
			w.onFailed(job, ErrStalled)
		}
	}
}

func (w *Worker) emitError(err error) {
	if w.onError != nil {
		w.onError(err)
		return
	}
	w.logger.Error("worker error", map[string]interface{}{
		"queue": w.queue.Name(),
		"error": err.Error(),
	})
}

func (w *Worker) trackJob(id string, cancel context.CancelFunc) {
	w.activeMu.Lock()
	w.activeJobs[id] = cancel
	w.activeMu.Unlock()
}

func (w *Worker) untrackJob(id string) {
	w.activeMu.Lock()
	delete(w.activeJobs, id)
	w.activeMu.Unlock()
}

func (w *Worker) cancelActiveJobs() {
	w.activeMu.Lock()
	defer w.activeMu.Unlock()
	for _, cancel := range w.activeJobs {
		cancel()
	}
}
