package producer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notification-workers/internal/common/config"
	apperrors "notification-workers/internal/common/errors"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/models"
	"notification-workers/internal/queue"
)

func newTestQueue(t *testing.T, name string, opts ...queue.Option) *queue.Queue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	q := queue.New(client, name, opts...)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func depth(t *testing.T, q *queue.Queue) int64 {
	t.Helper()
	c, err := q.Counts(context.Background())
	require.NoError(t, err)
	return c.Waiting + c.Delayed + c.Active + c.Completed + c.Failed
}

func runWorker(t *testing.T, q *queue.Queue, fn queue.ProcessFunc) {
	t.Helper()
	w := queue.NewWorker(q, fn,
		queue.WithPollInterval(5*time.Millisecond),
		queue.WithStalledInterval(0),
		queue.WithLogger(logger.NewTestLogger(t)),
	)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Close(context.Background()) })
}

func TestSendEmail_ReturnsPinnedJobID(t *testing.T) {
	q := newTestQueue(t, "email-queue")
	p := NewEmailProducer(q)

	res := p.SendEmail(context.Background(), "<p>hi</p>", models.EmailOptions{
		To:       []string{"a@x.com"},
		Subject:  "Hi",
		Priority: models.PriorityHigh,
	})
	require.True(t, res.Success, res.Error)
	_, err := uuid.Parse(res.JobID)
	require.NoError(t, err)

	job, err := q.GetJob(context.Background(), res.JobID)
	require.NoError(t, err)
	assert.Equal(t, res.JobID, job.ID)
	assert.Equal(t, PriorityHigh, job.Priority)
	assert.Equal(t, 3, job.Attempts)

	var env models.Envelope[models.EmailOptions]
	require.NoError(t, json.Unmarshal(job.Data, &env))
	assert.Equal(t, res.JobID, env.JobID)
	assert.Equal(t, models.ChannelEmail, env.Type)
	assert.Equal(t, "<p>hi</p>", env.Payload.Message)
	assert.Equal(t, []string{"a@x.com"}, env.Payload.Options.To)
	assert.Equal(t, 3, env.MaxAttempts)

	// attempt counting lives on the job hash, not in the envelope
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(job.Data, &raw))
	assert.NotContains(t, raw, "attempts")
}

func TestPriorityMapping(t *testing.T) {
	q := newTestQueue(t, "email-queue")
	p := NewEmailProducer(q)

	cases := map[models.Priority]int{
		models.PriorityHigh:   10,
		models.PriorityMedium: 50,
		models.PriorityLow:    100,
		"":                    50,
		"urgent":              50,
	}
	for prio, want := range cases {
		res := p.SendEmail(context.Background(), "body", models.EmailOptions{
			To: []string{"a@x.com"}, Subject: "s", Priority: prio,
		})
		require.True(t, res.Success)

		job, err := q.GetJob(context.Background(), res.JobID)
		require.NoError(t, err)
		assert.Equal(t, want, job.Priority, "priority %q", prio)
	}
}

func TestSendEmail_ValidationDoesNotEnqueue(t *testing.T) {
	q := newTestQueue(t, "email-queue")
	p := NewEmailProducer(q)

	res := p.SendEmail(context.Background(), "body", models.EmailOptions{Subject: "Hi"})
	assert.False(t, res.Success)
	assert.Empty(t, res.JobID)
	assert.Equal(t, "Recipient email is required", res.Error)

	res = p.SendEmail(context.Background(), "body", models.EmailOptions{To: []string{"a@x.com"}, Subject: "  "})
	assert.False(t, res.Success)
	assert.Equal(t, "Subject is required", res.Error)

	std := apperrors.AsStandard(res.Err)
	assert.Equal(t, apperrors.ErrCodeValidationFailed, std.Code)
	assert.Zero(t, depth(t, q))
}

func TestSendEmail_SchemaViolationsDoNotEnqueue(t *testing.T) {
	q := newTestQueue(t, "email-queue")
	p := NewEmailProducer(q)

	res := p.SendEmail(context.Background(), "body", models.EmailOptions{
		To: []string{"a@x.com", ""}, Subject: "Hi",
	})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "to.1")
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.AsStandard(res.Err).Code)

	res = p.SendEmail(context.Background(), "body", models.EmailOptions{
		To: []string{"a@x.com"}, Subject: strings.Repeat("s", 999),
	})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "subject")

	assert.Zero(t, depth(t, q))
}

func TestSendMessage_EmptyMessageDoesNotEnqueue(t *testing.T) {
	q := newTestQueue(t, "telegram-queue")
	res := NewTelegramProducer(q).SendMessage(context.Background(), "", models.ChatOptions{RecipientID: "42"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "message")
	assert.Zero(t, depth(t, q))
}

func TestSendMessage_RequiresRecipient(t *testing.T) {
	q := newTestQueue(t, "telegram-queue")

	res := NewTelegramProducer(q).SendMessage(context.Background(), "hello", models.ChatOptions{})
	assert.False(t, res.Success)
	assert.Equal(t, "Recipient ID is required", res.Error)
	assert.Zero(t, depth(t, q))
}

func TestSendMessage_UsesDefaultRecipient(t *testing.T) {
	q := newTestQueue(t, "telegram-queue")
	p := NewTelegramProducer(q, WithDefaultRecipient("-100200"))

	res := p.SendMessage(context.Background(), "hello", models.ChatOptions{})
	require.True(t, res.Success)

	job, err := q.GetJob(context.Background(), res.JobID)
	require.NoError(t, err)
	var env models.Envelope[models.ChatOptions]
	require.NoError(t, json.Unmarshal(job.Data, &env))
	assert.Equal(t, "-100200", env.Payload.Options.RecipientID)
	assert.Equal(t, models.ChannelTelegram, env.Type)
}

func TestSendSMS_Validation(t *testing.T) {
	q := newTestQueue(t, "sms-queue")
	p := NewSMSProducer(q)

	assert.Equal(t, "Phone number is required", p.SendSMS(context.Background(), "code", models.SMSOptions{}).Error)
	assert.Equal(t, "Phone number must be in E.164 format",
		p.SendSMS(context.Background(), "code", models.SMSOptions{PhoneNumber: "555-0100"}).Error)
	assert.Zero(t, depth(t, q))

	res := p.SendSMS(context.Background(), "code 1234", models.SMSOptions{PhoneNumber: "+14155550100", Priority: models.PriorityLow})
	require.True(t, res.Success)
	job, err := q.GetJob(context.Background(), res.JobID)
	require.NoError(t, err)
	assert.Equal(t, PriorityLow, job.Priority)
}

func TestSend_QueueFull(t *testing.T) {
	q := newTestQueue(t, "email-queue", queue.WithMaxWaiting(1))
	p := NewEmailProducer(q)
	opts := models.EmailOptions{To: []string{"a@x.com"}, Subject: "s"}

	require.True(t, p.SendEmail(context.Background(), "1", opts).Success)
	res := p.SendEmail(context.Background(), "2", opts)
	assert.False(t, res.Success)
	assert.Equal(t, apperrors.ErrCodeQueueFull, apperrors.AsStandard(res.Err).Code)
	assert.True(t, apperrors.IsRetryable(res.Err))
}

func TestSend_RedisDownReportsEnqueueFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	p := NewEmailProducer(queue.New(client, "email-queue"), WithLogger(logger.NewTestLogger(t)))
	t.Cleanup(func() { _ = p.Close() })
	mr.Close()

	res := p.SendEmail(context.Background(), "body", models.EmailOptions{To: []string{"a@x.com"}, Subject: "s"})
	assert.False(t, res.Success)
	assert.Equal(t, apperrors.ErrCodeEnqueueFailed, apperrors.AsStandard(res.Err).Code)
}

func TestGetStatus(t *testing.T) {
	q := newTestQueue(t, "email-queue")
	p := NewEmailProducer(q)
	ctx := context.Background()

	out, err := p.GetStatus(ctx, "no-such-job")
	require.NoError(t, err)
	assert.Nil(t, out)

	res := p.SendEmail(ctx, "body", models.EmailOptions{To: []string{"a@x.com"}, Subject: "s"})
	require.True(t, res.Success)

	// still waiting
	out, err = p.GetStatus(ctx, res.JobID)
	require.NoError(t, err)
	assert.Nil(t, out)

	delivered := models.Delivered(models.ChannelEmail, "<m-1@x.com>")
	runWorker(t, q, func(ctx context.Context, job *queue.Job) (any, error) {
		return delivered, nil
	})

	require.Eventually(t, func() bool {
		out, err = p.GetStatus(ctx, res.JobID)
		return err == nil && out != nil
	}, 3*time.Second, 5*time.Millisecond)
	assert.True(t, out.Success)
	assert.Equal(t, "<m-1@x.com>", out.MessageID)
	assert.True(t, delivered.Timestamp.Equal(out.Timestamp))
}

func TestGetFailure(t *testing.T) {
	q := newTestQueue(t, "telegram-queue")
	p := NewTelegramProducer(q, WithRetryPolicy(RetryPolicy{Attempts: 1}))
	ctx := context.Background()

	res := p.SendMessage(ctx, "hello", models.ChatOptions{RecipientID: "1"})
	require.True(t, res.Success)

	f, err := p.GetFailure(ctx, res.JobID)
	require.NoError(t, err)
	assert.Nil(t, f)

	runWorker(t, q, func(ctx context.Context, job *queue.Job) (any, error) {
		return nil, errors.New("telegram 502: bad gateway")
	})

	require.Eventually(t, func() bool {
		f, err = p.GetFailure(ctx, res.JobID)
		return err == nil && f != nil
	}, 3*time.Second, 5*time.Millisecond)
	assert.Equal(t, res.JobID, f.JobID)
	assert.Equal(t, "telegram 502: bad gateway", f.Reason)
	assert.Equal(t, 1, f.AttemptsMade)
	assert.False(t, f.FailedAt.IsZero())

	out, err := p.GetStatus(ctx, res.JobID)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestRetryPolicyFromConfig(t *testing.T) {
	p := RetryPolicyFromConfig(config.WorkerConfig{Attempts: 4, BackoffType: "fixed", BackoffDelayMs: 250})
	assert.Equal(t, 4, p.Attempts)
	assert.Equal(t, queue.BackoffFixed, p.Backoff.Type)
	assert.Equal(t, 250*time.Millisecond, p.Backoff.Delay)
}
