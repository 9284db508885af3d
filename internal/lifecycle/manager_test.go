package lifecycle

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"notification-workers/internal/common/logger"
	"notification-workers/internal/queue"
)

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Start(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *MockRunner) Close(ctx context.Context) error { return m.Called(ctx).Error(0) }

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) VerifyConnection(ctx context.Context) bool { return m.Called(ctx).Bool(0) }

func TestManager_StartStop(t *testing.T) {
	runner := new(MockRunner)
	runner.On("Start", mock.Anything).Return(nil).Once()
	runner.On("Close", mock.Anything).Return(nil).Once()

	m := New("email-send", runner, WithLogger(logger.NewTestLogger(t)))
	assert.Equal(t, StateStopped, m.State())

	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, StateRunning, m.State())

	require.NoError(t, m.Stop(context.Background()))
	assert.Equal(t, StateStopped, m.State())
	runner.AssertExpectations(t)
}

func TestManager_RepeatedCallsAreNoOps(t *testing.T) {
	runner := new(MockRunner)
	runner.On("Start", mock.Anything).Return(nil).Once()
	runner.On("Close", mock.Anything).Return(nil).Once()

	m := New("sms-send", runner)
	assert.NoError(t, m.Stop(context.Background()))

	require.NoError(t, m.Start(context.Background()))
	assert.NoError(t, m.Start(context.Background()))
	assert.Equal(t, StateRunning, m.State())

	require.NoError(t, m.Stop(context.Background()))
	assert.NoError(t, m.Stop(context.Background()))
	runner.AssertExpectations(t)
}

func TestManager_FailedVerificationStillStarts(t *testing.T) {
	runner := new(MockRunner)
	runner.On("Start", mock.Anything).Return(nil)
	verifier := new(MockVerifier)
	verifier.On("VerifyConnection", mock.Anything).Return(false).Once()

	m := New("telegram-send", runner, WithVerifier(verifier))
	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, StateRunning, m.State())
	verifier.AssertExpectations(t)
}

func TestManager_StartErrorReturnsToStopped(t *testing.T) {
	runner := new(MockRunner)
	runner.On("Start", mock.Anything).Return(errors.New("boom"))

	m := New("email-send", runner)
	err := m.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email-send")
	assert.Equal(t, StateStopped, m.State())
}

func TestManager_StopReportsCloseError(t *testing.T) {
	runner := new(MockRunner)
	runner.On("Start", mock.Anything).Return(nil)
	runner.On("Close", mock.Anything).Return(context.DeadlineExceeded)

	m := New("email-send", runner)
	require.NoError(t, m.Start(context.Background()))
	err := m.Stop(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateStopped, m.State())
}

func TestManager_RunStopsOnCancel(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	q := queue.New(client, "email-queue")
	t.Cleanup(func() { _ = q.Close() })

	var processed atomic.Int32
	w := queue.NewWorker(q, func(ctx context.Context, job *queue.Job) (any, error) {
		processed.Add(1)
		return "ok", nil
	}, queue.WithPollInterval(5*time.Millisecond), queue.WithStalledInterval(0))

	m := New("email-send", w, WithShutdownTimeout(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	_, err := q.Add(context.Background(), "send-email", []byte(`{}`), queue.JobOptions{JobID: "job-1"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return processed.Load() == 1 }, 3*time.Second, 5*time.Millisecond)
	assert.Equal(t, StateRunning, m.State())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, StateStopped, m.State())
}
