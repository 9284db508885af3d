// internal/common/config/loader.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Worker names, used as keys under workers: in the configuration.
const (
	WorkerEmailSend    = "email-send"
	WorkerTelegramSend = "telegram-send"
	WorkerSMSSend      = "sms-send"
)

var defaultQueueNames = map[string]string{
	WorkerEmailSend:    "email-queue",
	WorkerTelegramSend: "telegram-queue",
	WorkerSMSSend:      "sms-queue",
}

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml over it
// and applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // env file is optional

	return build(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return build(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	// DATABASE_REDIS_ADDRESS overrides database.redis.address
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func build(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env", // test/e2e
	}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills credentials left empty after expansion from
// well-known environment variables.
func overrideEmptyConfig(cfg *Config) {
	setIfEmpty(&cfg.Database.Redis.Password, "REDIS_PASSWORD")
	setIfEmpty(&cfg.Database.Postgres.User, "DB_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "DB_PASSWORD")

	setIfEmpty(&cfg.Channels.SMTP.Username, "SMTP_USERNAME")
	setIfEmpty(&cfg.Channels.SMTP.Password, "SMTP_PASSWORD")
	setIfEmpty(&cfg.Channels.Postmark.ServerToken, "POSTMARK_SERVER_TOKEN")
	setIfEmpty(&cfg.Channels.Postmark.AccountToken, "POSTMARK_ACCOUNT_TOKEN")
	setIfEmpty(&cfg.Channels.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	setIfEmpty(&cfg.Channels.Telegram.DefaultRecipientID, "TELEGRAM_DEFAULT_RECIPIENT_ID")

	setIfEmpty(&cfg.AWS.Region, "AWS_REGION")
}

func setIfEmpty(field *string, envKey string) {
	if *field != "" {
		return
	}
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "notification-workers"
	}

	// Database defaults
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}
	if cfg.Database.Redis.Address == "" {
		cfg.Database.Redis.Address = "localhost:6379"
	}

	// Channel defaults
	if cfg.Channels.Email.Transport == "" {
		cfg.Channels.Email.Transport = "smtp"
	}
	if cfg.Channels.SMTP.Port == 0 {
		cfg.Channels.SMTP.Port = 587
	}
	if cfg.Channels.SMTP.TimeoutMs == 0 {
		cfg.Channels.SMTP.TimeoutMs = 15000
	}
	if cfg.Channels.Telegram.ParseMode == "" {
		cfg.Channels.Telegram.ParseMode = "HTML"
	}
	if cfg.Channels.Telegram.TimeoutMs == 0 {
		cfg.Channels.Telegram.TimeoutMs = 10000
	}
	if cfg.Channels.SMS.SMSType == "" {
		cfg.Channels.SMS.SMSType = "Transactional"
	}
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = "us-east-1"
	}

	if cfg.DeliveryLog.Backend == "" {
		cfg.DeliveryLog.Backend = "none"
	}
	if cfg.DeliveryLog.Table == "" {
		cfg.DeliveryLog.Table = "delivery_log"
	}
	if cfg.DeliveryLog.Index == "" {
		cfg.DeliveryLog.Index = "delivery-log"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ShutdownTimeoutMs == 0 {
		cfg.Server.ShutdownTimeoutMs = 10000
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = cfg.App.Name
	}
	if cfg.Observability.TraceSampleRatio == 0 {
		cfg.Observability.TraceSampleRatio = 1
	}

	if cfg.Workers == nil {
		cfg.Workers = make(map[string]WorkerConfig)
	}
	for key, worker := range cfg.Workers {
		cfg.Workers[key] = applyWorkerDefaults(key, worker)
	}
}

func applyWorkerDefaults(name string, w WorkerConfig) WorkerConfig {
	if w.QueueName == "" {
		if q, ok := defaultQueueNames[name]; ok {
			w.QueueName = q
		} else {
			w.QueueName = name
		}
	}
	if w.Concurrency == 0 {
		w.Concurrency = 5
	}
	if w.RateLimit.Max == 0 {
		w.RateLimit.Max = 10
	}
	if w.RateLimit.DurationMs == 0 {
		w.RateLimit.DurationMs = 1000
	}
	if w.Attempts == 0 {
		w.Attempts = 3
	}
	if w.BackoffType == "" {
		w.BackoffType = "exponential"
	}
	if w.BackoffDelayMs == 0 {
		w.BackoffDelayMs = 5000
	}
	if w.RemoveOnComplete.Count == 0 {
		w.RemoveOnComplete.Count = 1000
	}
	if w.RemoveOnComplete.AgeSeconds == 0 {
		w.RemoveOnComplete.AgeSeconds = 24 * 3600
	}
	if w.RemoveOnFail.Count == 0 {
		w.RemoveOnFail.Count = 5000
	}
	if w.RemoveOnFail.AgeSeconds == 0 {
		w.RemoveOnFail.AgeSeconds = 7 * 24 * 3600
	}
	if w.LockDurationMs == 0 {
		w.LockDurationMs = 30000
	}
	if w.StalledIntervalMs == 0 {
		w.StalledIntervalMs = 30000
	}
	if w.PollIntervalMs == 0 {
		w.PollIntervalMs = 1000
	}
	if w.Timeout == 0 {
		w.Timeout = 30000
	}
	if w.ShutdownTimeoutMs == 0 {
		w.ShutdownTimeoutMs = 30000
	}
	return w
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	switch cfg.Channels.Email.Transport {
	case "smtp", "ses", "postmark":
	default:
		return fmt.Errorf("channels.email.transport must be smtp, ses or postmark, got %q", cfg.Channels.Email.Transport)
	}

	switch cfg.DeliveryLog.Backend {
	case "none":
	case "postgres":
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required for the postgres delivery log")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required for the postgres delivery log")
		}
	case "elasticsearch":
		if cfg.Database.Elasticsearch.GetURL() == "" {
			return fmt.Errorf("database.elasticsearch.addresses or url is required for the elasticsearch delivery log")
		}
	default:
		return fmt.Errorf("delivery_log.backend must be none, postgres or elasticsearch, got %q", cfg.DeliveryLog.Backend)
	}

	for name, w := range cfg.Workers {
		switch w.BackoffType {
		case "exponential", "fixed":
		default:
			return fmt.Errorf("workers.%s.backoff_type must be exponential or fixed, got %q", name, w.BackoffType)
		}
		if w.Concurrency < 0 || w.Attempts < 0 || w.RateLimit.Max < 0 {
			return fmt.Errorf("workers.%s: concurrency, attempts and rate_limit.max must not be negative", name)
		}
	}

	if cfg.Queue.MaxWaiting < 0 {
		return fmt.Errorf("queue.max_waiting must not be negative")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return applyWorkerDefaults(workerName, WorkerConfig{Enabled: true})
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
