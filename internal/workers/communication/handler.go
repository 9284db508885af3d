package communication

import (
	"context"
	"encoding/json"
	"time"

	"notification-workers/internal/common/config"
	apperrors "notification-workers/internal/common/errors"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/common/metrics"
	"notification-workers/internal/common/observability"
	"notification-workers/internal/common/validation"
	"notification-workers/internal/deliverylog"
	"notification-workers/internal/models"
	"notification-workers/internal/queue"
)

// ChannelOptions is implemented by every channel's send options.
type ChannelOptions interface {
	Recipient() string
}

// Sender is a delivery channel adapter.
type Sender[O ChannelOptions] interface {
	Send(ctx context.Context, message string, opts O) (*models.Outcome, error)
	VerifyConnection(ctx context.Context) bool
}

// Profile describes one channel worker.
type Profile[O ChannelOptions] struct {
	TaskType string
	Channel  models.Channel
	Schema   *validation.Schema
	// Normalize fills channel defaults into the job options.
	Normalize func(O) O
	// AlertFor builds the administrator message for a failed job.
	AlertFor func(a Alert, adminRecipient string) (string, O)
}

// Dependencies are the shared services a handler reports to.
type Dependencies struct {
	Logger        logger.Logger
	Recorder      deliverylog.Recorder
	Observability *observability.Observability
}

// Handler processes the jobs of one channel queue.
type Handler[O ChannelOptions] struct {
	profile  Profile[O]
	cfg      config.WorkerConfig
	sender   Sender[O]
	logger   logger.Logger
	errors   *apperrors.ErrorHandler
	recorder deliverylog.Recorder
	obs      *observability.Observability
}

func NewHandler[O ChannelOptions](profile Profile[O], cfg config.WorkerConfig, sender Sender[O], deps Dependencies) *Handler[O] {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	log = log.WithFields(map[string]interface{}{"taskType": profile.TaskType, "queue": cfg.QueueName})

	recorder := deps.Recorder
	if recorder == nil {
		recorder = deliverylog.Nop{}
	}
	return &Handler[O]{
		profile:  profile,
		cfg:      cfg,
		sender:   sender,
		logger:   log,
		errors:   apperrors.NewErrorHandler(log),
		recorder: recorder,
		obs:      deps.Observability,
	}
}

// decode validates the job data against the channel schema. Malformed
// data fails the job without retries.
func (h *Handler[O]) decode(job *queue.Job) (*models.Envelope[O], error) {
	if h.profile.Schema != nil {
		if vr := h.profile.Schema.ValidateDocument(job.Data); !vr.Valid {
			return nil, queue.Unrecoverable(apperrors.NewInvalidPayloadError(vr.Error()))
		}
	}
	var env models.Envelope[O]
	if err := json.Unmarshal(job.Data, &env); err != nil {
		return nil, queue.Unrecoverable(apperrors.NewInvalidPayloadError(err.Error()))
	}
	return &env, nil
}

// Process runs one delivery attempt. Permanent delivery failures complete
// the job with a failed outcome; transient ones are returned for retry.
func (h *Handler[O]) Process(ctx context.Context, job *queue.Job) (any, error) {
	env, err := h.decode(job)
	if err != nil {
		return nil, err
	}
	opts := env.Payload.Options
	if h.profile.Normalize != nil {
		opts = h.profile.Normalize(opts)
	}

	if timeout := config.GetDuration(h.cfg.Timeout); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	h.logger.Debug("Processing job", map[string]interface{}{
		"jobId":     job.ID,
		"recipient": opts.Recipient(),
		"attempt":   job.AttemptsMade,
	})

	out, err := h.sender.Send(ctx, env.Payload.Message, opts)
	if err != nil {
		metrics.DeliveryOutcomes.WithLabelValues(string(h.profile.Channel), "error").Inc()
		if job.AttemptsMade < job.Attempts {
			h.errors.JobAttemptFailed(job.ID, job.AttemptsMade, job.Attempts, err, map[string]interface{}{
				"recipient": opts.Recipient(),
			})
		}
		return nil, err
	}

	out.Attempt = job.AttemptsMade
	if out.Success {
		metrics.DeliveryOutcomes.WithLabelValues(string(h.profile.Channel), "delivered").Inc()
	} else {
		metrics.DeliveryOutcomes.WithLabelValues(string(h.profile.Channel), "rejected").Inc()
		h.logger.Warn("Delivery rejected", map[string]interface{}{
			"jobId":     job.ID,
			"recipient": opts.Recipient(),
			"error":     out.Error,
		})
	}
	return out, nil
}

// OnCompleted logs and records a completed job.
func (h *Handler[O]) OnCompleted(job *queue.Job, result []byte) {
	duration := time.Since(job.ProcessedOn)

	var out models.Outcome
	_ = json.Unmarshal(result, &out)
	status := deliverylog.StatusDelivered
	if !out.Success {
		status = deliverylog.StatusRejected
	}

	recipient := ""
	if env, err := h.decode(job); err == nil {
		recipient = env.Payload.Options.Recipient()
	}

	h.logger.Info("Job completed", map[string]interface{}{
		"jobId":     job.ID,
		"recipient": recipient,
		"success":   out.Success,
		"messageId": out.MessageID,
		"duration":  duration.String(),
	})

	ctx := context.Background()
	h.obs.RecordJobProcessed(ctx, h.cfg.QueueName, status)
	h.obs.RecordJobDuration(ctx, h.cfg.QueueName, duration, status)

	h.record(deliverylog.Record{
		JobID:     job.ID,
		Channel:   string(h.profile.Channel),
		Recipient: recipient,
		Status:    status,
		MessageID: out.MessageID,
		Error:     out.Error,
		Attempts:  job.AttemptsMade,
	})
}

// OnFailed logs a job that exhausted its attempts, records it and sends
// the administrator alert when one is configured.
func (h *Handler[O]) OnFailed(job *queue.Job, cause error) {
	var recipient, content string
	if env, err := h.decode(job); err == nil {
		recipient = env.Payload.Options.Recipient()
		content = env.Payload.Message
	}

	fields := map[string]interface{}{"recipient": recipient}
	var duration time.Duration
	if !job.ProcessedOn.IsZero() {
		duration = time.Since(job.ProcessedOn)
		fields["duration"] = duration.String()
	}
	h.errors.JobFailed(job.ID, job.AttemptsMade, cause, fields)

	ctx := context.Background()
	h.obs.RecordJobProcessed(ctx, h.cfg.QueueName, deliverylog.StatusFailed)
	if !job.ProcessedOn.IsZero() {
		h.obs.RecordJobDuration(ctx, h.cfg.QueueName, duration, deliverylog.StatusFailed)
	}

	h.record(deliverylog.Record{
		JobID:     job.ID,
		Channel:   string(h.profile.Channel),
		Recipient: recipient,
		Status:    deliverylog.StatusFailed,
		Error:     cause.Error(),
		Attempts:  job.AttemptsMade,
	})

	h.notifyAdmin(NewAlert(job.ID, h.profile.Channel, recipient, content, job.AttemptsMade, cause))
}

// notifyAdmin sends the alert through the channel's own adapter. Its
// failure is logged and goes no further.
func (h *Handler[O]) notifyAdmin(a Alert) {
	if h.cfg.AdminRecipient == "" || h.profile.AlertFor == nil {
		return
	}
	message, opts := h.profile.AlertFor(a, h.cfg.AdminRecipient)

	ctx, cancel := context.WithTimeout(context.Background(), h.alertTimeout())
	defer cancel()

	h.logger.Info("Sending admin alert", map[string]interface{}{
		"jobId":          a.JobID,
		"adminRecipient": h.cfg.AdminRecipient,
	})

	out, err := h.sender.Send(ctx, message, opts)
	if err == nil && out != nil && !out.Success {
		err = apperrors.NewPermanentDeliveryError(string(h.profile.Channel), errorText(out.Error))
	}
	if err != nil {
		metrics.AdminAlerts.WithLabelValues(string(h.profile.Channel), "failed").Inc()
		alertErr := apperrors.NewAdminAlertFailedError(a.JobID, err)
		h.logger.Error("Admin alert failed", map[string]interface{}{
			"jobId":     a.JobID,
			"errorCode": string(alertErr.Code),
			"error":     err.Error(),
		})
		return
	}
	metrics.AdminAlerts.WithLabelValues(string(h.profile.Channel), "sent").Inc()
}

func (h *Handler[O]) alertTimeout() time.Duration {
	if d := config.GetDuration(h.cfg.Timeout); d > 0 {
		return d
	}
	return 30 * time.Second
}

func (h *Handler[O]) record(r deliverylog.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.recorder.Record(ctx, r); err != nil {
		h.logger.Warn("Delivery log write failed", map[string]interface{}{
			"jobId": r.JobID,
			"error": err.Error(),
		})
	}
}

// OnError logs worker level errors such as lost Redis connections.
func (h *Handler[O]) OnError(err error) {
	h.logger.Error("Worker error", map[string]interface{}{"error": err.Error()})
}

// VerifyConnection checks the adapter. The worker starts either way.
func (h *Handler[O]) VerifyConnection(ctx context.Context) bool {
	return h.sender.VerifyConnection(ctx)
}

// WorkerOptions turns the worker configuration into queue worker options
// wired to this handler's events.
func (h *Handler[O]) WorkerOptions() []queue.WorkerOption {
	return []queue.WorkerOption{
		queue.WithConcurrency(h.cfg.Concurrency),
		queue.WithRateLimit(queue.RateLimit{Max: h.cfg.RateLimit.Max, Duration: h.cfg.RateLimitDuration()}),
		queue.WithLockDuration(h.cfg.LockDuration()),
		queue.WithStalledInterval(h.cfg.StalledInterval()),
		queue.WithPollInterval(h.cfg.PollInterval()),
		queue.WithRetention(
			queue.Retention{Count: int(h.cfg.RemoveOnComplete.Count), Age: h.cfg.RemoveOnComplete.Age()},
			queue.Retention{Count: int(h.cfg.RemoveOnFail.Count), Age: h.cfg.RemoveOnFail.Age()},
		),
		queue.WithLogger(h.logger),
		queue.WithTracer(h.obs.Tracer("notification-workers/" + h.profile.TaskType)),
		queue.OnCompleted(h.OnCompleted),
		queue.OnFailed(h.OnFailed),
		queue.OnError(h.OnError),
	}
}

type errorText string

func (e errorText) Error() string { return string(e) }
