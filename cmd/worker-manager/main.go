// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"notification-workers/internal/common/config"
	"notification-workers/internal/common/database"
	"notification-workers/internal/common/health"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/common/observability"
	"notification-workers/internal/deliverylog"
	"notification-workers/internal/lifecycle"
	"notification-workers/internal/queue"
	"notification-workers/internal/workers/communication"

	es "notification-workers/internal/workers/communication/email-send"
	ss "notification-workers/internal/workers/communication/sms-send"
	ts "notification-workers/internal/workers/communication/telegram-send"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()

	defer func() {
		if r := recover(); r != nil {
			zapLog.Error("worker manager panicked", zap.Any("panic", r), zap.Stack("stack"))
			_ = zapLog.Sync()
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, cfg, zapLog); err != nil {
		zapLog.Error("worker manager failed", zap.Error(err))
		_ = zapLog.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, zapLog *zap.Logger) error {
	log := logger.NewZapAdapter(zapLog)
	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
	)

	obs, err := observability.New(cfg.Observability.ServiceName,
		observability.WithSampleRatio(cfg.Observability.TraceSampleRatio),
		observability.WithOTLPEndpoint(cfg.Observability.TraceEndpoint, cfg.Observability.TraceInsecure))
	if err != nil {
		zapLog.Warn("observability init failed, continuing without otel metrics", zap.Error(err))
		obs = nil
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	// --- Redis ---
	rc := database.NewRedis(cfg.Database.Redis)
	if err := database.ConnectRedis(ctx, rc, 10, 2*time.Second); err != nil {
		return err
	}
	defer rc.Close()
	zapLog.Info("Redis connected successfully", zap.String("address", cfg.Database.Redis.Address))

	// --- Delivery log ---
	recorder, err := deliverylog.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("delivery log: %w", err)
	}
	defer recorder.Close()
	zapLog.Info("Delivery log ready", zap.String("backend", cfg.DeliveryLog.Backend))

	deps := communication.Dependencies{
		Logger:        log,
		Recorder:      recorder,
		Observability: obs,
	}

	checks := health.New(3*time.Second, map[string]health.CheckFunc{
		"redis":        rc.Ping,
		"delivery_log": recorder.Ping,
	})

	// --- Workers ---
	managers, err := buildManagers(ctx, cfg, rc, deps, log)
	if err != nil {
		return err
	}
	if len(managers) == 0 {
		return errors.New("no workers enabled")
	}

	readiness := health.New(3*time.Second, map[string]health.CheckFunc{
		"redis":   rc.Ping,
		"workers": workersRunning(managers),
	})

	// --- Health & Metrics Server ---
	http.Handle("/health", checks.Handler())
	http.Handle("/ready", readiness.Handler())
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/workers", func(w http.ResponseWriter, r *http.Request) {
		states := make(map[string]lifecycle.State, len(managers))
		for _, m := range managers {
			states[m.Name()] = m.State()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(states)
	})

	srv := &http.Server{Addr: cfg.Server.Address, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	var wg sync.WaitGroup
	errCh := make(chan error, len(managers))
	for _, m := range managers {
		wg.Add(1)
		go func(m *lifecycle.Manager) {
			defer wg.Done()
			if err := m.Run(ctx); err != nil {
				errCh <- err
			}
		}(m)
	}
	zapLog.Info("All workers registered", zap.Int("count", len(managers)))

	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping workers...")
	wg.Wait()
	close(errCh)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeoutMs))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error closing Health/Metrics server", zap.Error(err))
	}

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	zapLog.Info("Worker manager stopped gracefully")
	return nil
}

// buildManagers wires one lifecycle manager per enabled channel worker.
func buildManagers(ctx context.Context, cfg *config.Config, rc *database.RedisClient, deps communication.Dependencies, log logger.Logger) ([]*lifecycle.Manager, error) {
	var managers []*lifecycle.Manager

	// Email Send
	if config.IsWorkerEnabled(cfg, es.TaskType) {
		wcfg := es.FromAppConfig(cfg)
		if err := wcfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid %s config: %w", es.TaskType, err)
		}
		transport, err := es.NewTransport(ctx, wcfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s transport: %w", es.TaskType, err)
		}
		mailer, err := es.NewService(wcfg, transport, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s service: %w", es.TaskType, err)
		}
		h := es.NewHandler(wcfg, mailer, deps)
		managers = append(managers, newManager(es.TaskType, wcfg.Worker, rc, h.Process, h.WorkerOptions(), h, log))
	}

	// Telegram Send
	if config.IsWorkerEnabled(cfg, ts.TaskType) {
		wcfg := ts.FromAppConfig(cfg)
		if err := wcfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid %s config: %w", ts.TaskType, err)
		}
		h := ts.NewHandler(wcfg, ts.NewService(wcfg, log), deps)
		managers = append(managers, newManager(ts.TaskType, wcfg.Worker, rc, h.Process, h.WorkerOptions(), h, log))
	}

	// SMS Send
	if config.IsWorkerEnabled(cfg, ss.TaskType) {
		wcfg := ss.FromAppConfig(cfg)
		if err := wcfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid %s config: %w", ss.TaskType, err)
		}
		sender, err := ss.NewService(ctx, wcfg, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s service: %w", ss.TaskType, err)
		}
		h := ss.NewHandler(wcfg, sender, deps)
		managers = append(managers, newManager(ss.TaskType, wcfg.Worker, rc, h.Process, h.WorkerOptions(), h, log))
	}

	return managers, nil
}

func newManager(taskType string, wcfg config.WorkerConfig, rc *database.RedisClient, process queue.ProcessFunc, opts []queue.WorkerOption, verifier lifecycle.Verifier, log logger.Logger) *lifecycle.Manager {
	q := queue.New(rc.Client, wcfg.QueueName)
	worker := queue.NewWorker(q, process, opts...)

	mopts := []lifecycle.Option{
		lifecycle.WithShutdownTimeout(wcfg.ShutdownTimeout()),
		lifecycle.WithLogger(log),
	}
	if wcfg.VerifyOnStart {
		mopts = append(mopts, lifecycle.WithVerifier(verifier))
	}

	log.Info("worker registered", map[string]interface{}{
		"taskType":    taskType,
		"queue":       wcfg.QueueName,
		"concurrency": wcfg.Concurrency,
		"timeout_ms":  wcfg.Timeout,
	})
	return lifecycle.New(taskType, worker, mopts...)
}

func workersRunning(managers []*lifecycle.Manager) health.CheckFunc {
	return func(context.Context) error {
		for _, m := range managers {
			if s := m.State(); s != lifecycle.StateRunning {
				return fmt.Errorf("%s is %s", m.Name(), s)
			}
		}
		return nil
	}
}
