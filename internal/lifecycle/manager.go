// Package lifecycle runs one channel worker through its
// stopped, starting, running and stopping states.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"notification-workers/internal/common/logger"
)

type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// Runner is the queue consumer being managed.
type Runner interface {
	Start(ctx context.Context) error
	Close(ctx context.Context) error
}

// Verifier checks the delivery adapter before the worker starts.
type Verifier interface {
	VerifyConnection(ctx context.Context) bool
}

type Option func(*Manager)

// WithVerifier makes Start check the adapter connection first. A failed
// check is logged and the worker starts anyway.
func WithVerifier(v Verifier) Option {
	return func(m *Manager) { m.verifier = v }
}

// WithShutdownTimeout bounds how long Run waits for in-flight jobs.
func WithShutdownTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.shutdownTimeout = d
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// Manager owns one Runner.
type Manager struct {
	name            string
	runner          Runner
	verifier        Verifier
	shutdownTimeout time.Duration
	log             logger.Logger

	mu    sync.Mutex
	state State
}

func New(name string, runner Runner, opts ...Option) *Manager {
	m := &Manager{
		name:            name,
		runner:          runner,
		shutdownTimeout: 30 * time.Second,
		log:             logger.NewNoOpLogger(),
		state:           StateStopped,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.WithFields(map[string]interface{}{"worker": name})
	return m
}

func (m *Manager) Name() string { return m.name }

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// transition moves from one state to another and reports whether the
// current state was from.
func (m *Manager) transition(from, to State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != from {
		return false
	}
	m.state = to
	return true
}

func (m *Manager) set(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Start starts the worker. Calling it on a worker that is not stopped
// only logs a warning.
func (m *Manager) Start(ctx context.Context) error {
	if !m.transition(StateStopped, StateStarting) {
		m.log.Warn("Worker already started", map[string]interface{}{"state": string(m.State())})
		return nil
	}
	m.log.Info("Starting worker", nil)

	if m.verifier != nil {
		if m.verifier.VerifyConnection(ctx) {
			m.log.Info("Connection verified", nil)
		} else {
			m.log.Warn("Connection verification failed, starting anyway", nil)
		}
	}

	if err := m.runner.Start(ctx); err != nil {
		m.set(StateStopped)
		return fmt.Errorf("start %s: %w", m.name, err)
	}
	m.set(StateRunning)
	m.log.Info("Worker running", nil)
	return nil
}

// Stop closes the worker, waiting for in-flight jobs until ctx ends.
// Calling it on a worker that is not running only logs a warning.
func (m *Manager) Stop(ctx context.Context) error {
	if !m.transition(StateRunning, StateStopping) {
		m.log.Warn("Worker not running", map[string]interface{}{"state": string(m.State())})
		return nil
	}
	m.log.Info("Stopping worker", nil)

	err := m.runner.Close(ctx)
	m.set(StateStopped)
	if err != nil {
		m.log.Error("Worker stopped with error", map[string]interface{}{"error": err.Error()})
		return fmt.Errorf("stop %s: %w", m.name, err)
	}
	m.log.Info("Worker stopped", nil)
	return nil
}

// Run starts the worker, blocks until ctx is cancelled and then stops it
// within the shutdown timeout.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), m.shutdownTimeout)
	defer cancel()
	return m.Stop(stopCtx)
}
