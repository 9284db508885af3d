package communication

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"notification-workers/internal/common/config"
	apperrors "notification-workers/internal/common/errors"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/common/validation"
	"notification-workers/internal/deliverylog"
	"notification-workers/internal/models"
	"notification-workers/internal/queue"
)

// ==========================
// Mocks
// ==========================

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, message string, opts models.SMSOptions) (*models.Outcome, error) {
	args := m.Called(ctx, message, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Outcome), args.Error(1)
}

func (m *MockSender) VerifyConnection(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []deliverylog.Record
}

func (f *fakeRecorder) Record(_ context.Context, r deliverylog.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, r)
	return nil
}

func (f *fakeRecorder) Ping(context.Context) error { return nil }
func (f *fakeRecorder) Close() error               { return nil }

func (f *fakeRecorder) all() []deliverylog.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]deliverylog.Record(nil), f.records...)
}

// ==========================
// Helpers
// ==========================

var testSchema = validation.MustCompileSchema(`{
  "type": "object",
  "required": ["jobId", "payload"],
  "properties": {
    "payload": {
      "type": "object",
      "required": ["message", "options"],
      "properties": {"options": {"type": "object", "required": ["phoneNumber"]}}
    }
  }
}`)

func testProfile() Profile[models.SMSOptions] {
	return Profile[models.SMSOptions]{
		TaskType: "sms-send",
		Channel:  models.ChannelSMS,
		Schema:   testSchema,
		Normalize: func(o models.SMSOptions) models.SMSOptions {
			if o.SenderID == "" {
				o.SenderID = "ACME"
			}
			return o
		},
		AlertFor: func(a Alert, admin string) (string, models.SMSOptions) {
			return a.Text(), models.SMSOptions{PhoneNumber: admin}
		},
	}
}

func newTestHandler(t *testing.T, sender *MockSender, cfg config.WorkerConfig) (*Handler[models.SMSOptions], *fakeRecorder) {
	t.Helper()
	rec := &fakeRecorder{}
	h := NewHandler(testProfile(), cfg, sender, Dependencies{
		Logger:   logger.NewTestLogger(t),
		Recorder: rec,
	})
	return h, rec
}

func envelopeJob(t *testing.T, id, message, phone string) *queue.Job {
	t.Helper()
	data, err := json.Marshal(models.Envelope[models.SMSOptions]{
		JobID:   id,
		Type:    models.ChannelSMS,
		Payload: models.Payload[models.SMSOptions]{Message: message, Options: models.SMSOptions{PhoneNumber: phone}},
	})
	require.NoError(t, err)
	return &queue.Job{ID: id, Data: data, Attempts: 3, AttemptsMade: 1, ProcessedOn: time.Now()}
}

// ==========================
// Process
// ==========================

func TestHandler_ProcessDelivered(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", mock.Anything, "code 1234", models.SMSOptions{PhoneNumber: "+14155550100", SenderID: "ACME"}).
		Return(models.Delivered(models.ChannelSMS, "sns-1"), nil)

	h, _ := newTestHandler(t, sender, config.WorkerConfig{QueueName: "sms-queue"})
	result, err := h.Process(context.Background(), envelopeJob(t, "job-1", "code 1234", "+14155550100"))
	require.NoError(t, err)

	out := result.(*models.Outcome)
	assert.True(t, out.Success)
	assert.Equal(t, "sns-1", out.MessageID)
	assert.Equal(t, 1, out.Attempt)
	sender.AssertExpectations(t)
}

func TestHandler_ProcessRejectedCompletes(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything).
		Return(models.Rejected(models.ChannelSMS, errors.New("OptedOut")), nil)

	h, _ := newTestHandler(t, sender, config.WorkerConfig{})
	result, err := h.Process(context.Background(), envelopeJob(t, "job-1", "hi", "+14155550100"))
	require.NoError(t, err)
	assert.False(t, result.(*models.Outcome).Success)
	assert.Equal(t, "OptedOut", result.(*models.Outcome).Error)
}

func TestHandler_ProcessTransientReturnsError(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, apperrors.NewTransientDeliveryError("sms", errors.New("throttled")))

	h, _ := newTestHandler(t, sender, config.WorkerConfig{})
	result, err := h.Process(context.Background(), envelopeJob(t, "job-1", "hi", "+14155550100"))
	assert.Nil(t, result)
	require.Error(t, err)
	assert.False(t, queue.IsUnrecoverable(err))
}

func TestHandler_ProcessInvalidPayloadIsUnrecoverable(t *testing.T) {
	sender := new(MockSender)
	h, _ := newTestHandler(t, sender, config.WorkerConfig{})

	for name, data := range map[string]string{
		"not json":        `{{{`,
		"missing options": `{"jobId":"j","payload":{"message":"hi"}}`,
		"wrong type":      `{"jobId":"j","payload":{"message":"hi","options":{"phoneNumber":42}}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := h.Process(context.Background(), &queue.Job{ID: "j", Data: []byte(data)})
			require.Error(t, err)
			assert.True(t, queue.IsUnrecoverable(err))
			assert.Equal(t, apperrors.ErrCodeInvalidPayload, apperrors.AsStandard(err).Code)
		})
	}
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_ProcessAppliesTimeout(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return ok
	}), mock.Anything, mock.Anything).Return(models.Delivered(models.ChannelSMS, "x"), nil)

	h, _ := newTestHandler(t, sender, config.WorkerConfig{Timeout: 1000})
	_, err := h.Process(context.Background(), envelopeJob(t, "job-1", "hi", "+14155550100"))
	require.NoError(t, err)
	sender.AssertExpectations(t)
}

// ==========================
// Events
// ==========================

func TestHandler_OnCompletedRecords(t *testing.T) {
	h, rec := newTestHandler(t, new(MockSender), config.WorkerConfig{})
	job := envelopeJob(t, "job-1", "hi", "+14155550100")
	result, _ := json.Marshal(models.Delivered(models.ChannelSMS, "sns-1"))

	h.OnCompleted(job, result)

	records := rec.all()
	require.Len(t, records, 1)
	assert.Equal(t, "job-1", records[0].JobID)
	assert.Equal(t, "+14155550100", records[0].Recipient)
	assert.Equal(t, deliverylog.StatusDelivered, records[0].Status)
	assert.Equal(t, "sns-1", records[0].MessageID)
}

func TestHandler_OnFailedAlertsAdmin(t *testing.T) {
	long := strings.Repeat("é", 300)
	sender := new(MockSender)
	sender.On("Send", mock.Anything, mock.MatchedBy(func(msg string) bool {
		return strings.Contains(msg, "job-9") &&
			strings.Contains(msg, "network down") &&
			strings.Contains(msg, Truncate(long, MaxAlertContent)) &&
			!strings.Contains(msg, long)
	}), models.SMSOptions{PhoneNumber: "+14155550199"}).
		Return(models.Delivered(models.ChannelSMS, "alert-1"), nil).Once()

	core, logs := observer.New(zap.InfoLevel)
	rec := &fakeRecorder{}
	h := NewHandler(testProfile(), config.WorkerConfig{AdminRecipient: "+14155550199"}, sender, Dependencies{
		Logger:   logger.NewZapAdapter(zap.New(core)),
		Recorder: rec,
	})
	job := envelopeJob(t, "job-9", long, "+14155550100")
	job.AttemptsMade = 3
	job.ProcessedOn = time.Now().Add(-2 * time.Second)

	h.OnFailed(job, errors.New("network down"))

	sender.AssertExpectations(t)

	failed := logs.FilterMessage("Job failed").All()
	require.Len(t, failed, 1)
	fields := failed[0].ContextMap()
	assert.Equal(t, "job-9", fields["jobId"])
	assert.Equal(t, "+14155550100", fields["recipient"])
	assert.Equal(t, int64(3), fields["attemptsMade"])
	d, err := time.ParseDuration(fields["duration"].(string))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, d, 2*time.Second)

	records := rec.all()
	require.Len(t, records, 1)
	assert.Equal(t, deliverylog.StatusFailed, records[0].Status)
	assert.Equal(t, "network down", records[0].Error)
	assert.Equal(t, 3, records[0].Attempts)
}

func TestHandler_OnFailedAlertFailureIsSwallowed(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("still down")).Once()

	h, _ := newTestHandler(t, sender, config.WorkerConfig{AdminRecipient: "+14155550199"})
	assert.NotPanics(t, func() {
		h.OnFailed(envelopeJob(t, "job-1", "hi", "+14155550100"), errors.New("network down"))
	})
	sender.AssertNumberOfCalls(t, "Send", 1)
}

func TestHandler_OnFailedWithoutAdmin(t *testing.T) {
	sender := new(MockSender)
	h, _ := newTestHandler(t, sender, config.WorkerConfig{})

	h.OnFailed(envelopeJob(t, "job-1", "hi", "+14155550100"), errors.New("network down"))
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_VerifyConnection(t *testing.T) {
	sender := new(MockSender)
	sender.On("VerifyConnection", mock.Anything).Return(false)

	h, _ := newTestHandler(t, sender, config.WorkerConfig{})
	assert.False(t, h.VerifyConnection(context.Background()))
}

// ==========================
// Worker integration
// ==========================

func TestHandler_ExhaustedRetriesSendOneAlert(t *testing.T) {
	mr := miniredis.RunT(t)
	q := queue.New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "sms-queue")
	t.Cleanup(func() { _ = q.Close() })

	var alerts sync.WaitGroup
	alerts.Add(1)
	sender := new(MockSender)
	sender.On("Send", mock.Anything, "hi", mock.Anything).
		Return(nil, errors.New("throttled")).Times(2)
	sender.On("Send", mock.Anything, mock.MatchedBy(func(msg string) bool { return strings.Contains(msg, "job-d") }),
		models.SMSOptions{PhoneNumber: "+14155550199"}).
		Run(func(mock.Arguments) { alerts.Done() }).
		Return(models.Delivered(models.ChannelSMS, "alert"), nil).Once()

	cfg := config.WorkerConfig{QueueName: "sms-queue", Concurrency: 1, PollIntervalMs: 5, AdminRecipient: "+14155550199"}
	h, rec := newTestHandler(t, sender, cfg)

	w := queue.NewWorker(q, h.Process, append(h.WorkerOptions(), queue.WithStalledInterval(0))...)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Close(context.Background()) })

	data, _ := json.Marshal(models.Envelope[models.SMSOptions]{
		JobID:   "job-d",
		Type:    models.ChannelSMS,
		Payload: models.Payload[models.SMSOptions]{Message: "hi", Options: models.SMSOptions{PhoneNumber: "+14155550100"}},
	})
	_, err := q.Add(context.Background(), "send-sms", data, queue.JobOptions{
		JobID:    "job-d",
		Attempts: 2,
		Backoff:  queue.Backoff{Delay: time.Millisecond},
	})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() { alerts.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("admin alert not sent")
	}

	state, err := q.GetState(context.Background(), "job-d")
	require.NoError(t, err)
	assert.Equal(t, queue.StateFailed, state)
	sender.AssertExpectations(t)

	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, time.Second, 5*time.Millisecond)
}

// ==========================
// Alert
// ==========================

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 200))
	assert.Equal(t, "abcd...", Truncate("abcdefghij", 7))
	assert.Len(t, []rune(Truncate(strings.Repeat("ж", 500), 200)), 200)
}

func TestAlert_Render(t *testing.T) {
	a := NewAlert("job-1", models.ChannelEmail, "a@x.com", "<script>x</script>", 3, errors.New("550 <no such user>"))

	assert.Contains(t, a.Subject(), "job-1")
	assert.Contains(t, a.Text(), "Error: 550 <no such user>")
	assert.Contains(t, a.Text(), a.Time.Format(time.RFC3339))
	assert.NotContains(t, a.HTML(), "<script>")
	assert.Contains(t, a.HTML(), "&lt;no such user&gt;")
	assert.NotContains(t, a.ChatHTML(), "<script>")
	assert.Contains(t, a.ChatHTML(), "<code>job-1</code>")
}
