// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Queue         QueueConfig             `mapstructure:"queue"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Channels      ChannelsConfig          `mapstructure:"channels"`
	AWS           AWSConfig               `mapstructure:"aws"`
	DeliveryLog   DeliveryLogConfig       `mapstructure:"delivery_log"`
	Server        ServerConfig            `mapstructure:"server"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// QueueConfig holds producer-side admission settings shared by all queues.
type QueueConfig struct {
	// MaxWaiting rejects enqueue once waiting+delayed reaches it. 0 disables.
	MaxWaiting int64 `mapstructure:"max_waiting"`
}

// --- Worker Config ---

// RateLimitConfig caps job starts to Max per DurationMs window.
type RateLimitConfig struct {
	Max        int `mapstructure:"max"`
	DurationMs int `mapstructure:"duration_ms"`
}

// RetentionConfig bounds how many terminal jobs are kept and for how long.
type RetentionConfig struct {
	Count      int64 `mapstructure:"count"`
	AgeSeconds int64 `mapstructure:"age_seconds"`
}

// WorkerConfig holds the settings applicable to every delivery worker.
type WorkerConfig struct {
	Enabled           bool            `mapstructure:"enabled"`
	QueueName         string          `mapstructure:"queue_name"`
	Concurrency       int             `mapstructure:"concurrency"`
	RateLimit         RateLimitConfig `mapstructure:"rate_limit"`
	Attempts          int             `mapstructure:"attempts"`
	BackoffType       string          `mapstructure:"backoff_type"`
	BackoffDelayMs    int             `mapstructure:"backoff_delay_ms"`
	RemoveOnComplete  RetentionConfig `mapstructure:"remove_on_complete"`
	RemoveOnFail      RetentionConfig `mapstructure:"remove_on_fail"`
	LockDurationMs    int             `mapstructure:"lock_duration_ms"`
	StalledIntervalMs int             `mapstructure:"stalled_interval_ms"`
	PollIntervalMs    int             `mapstructure:"poll_interval_ms"`
	Timeout           int             `mapstructure:"timeout"` // milliseconds
	VerifyOnStart     bool            `mapstructure:"verify_on_start"`
	AdminRecipient    string          `mapstructure:"admin_recipient"`
	ShutdownTimeoutMs int             `mapstructure:"shutdown_timeout_ms"`
}

// --- Channel Config ---

type ChannelsConfig struct {
	Email    EmailConfig    `mapstructure:"email"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Postmark PostmarkConfig `mapstructure:"postmark"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	SMS      SMSConfig      `mapstructure:"sms"`
}

// EmailConfig selects the mail transport. Transport is smtp, ses or postmark.
type EmailConfig struct {
	Transport    string `mapstructure:"transport"`
	DefaultFrom  string `mapstructure:"default_from"`
	TemplatesDir string `mapstructure:"templates_dir"`
}

type SMTPConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	UseTLS    bool   `mapstructure:"use_tls"`
	TimeoutMs int    `mapstructure:"timeout_ms"`
}

type PostmarkConfig struct {
	ServerToken  string `mapstructure:"server_token"`
	AccountToken string `mapstructure:"account_token"`
}

type TelegramConfig struct {
	BotToken           string `mapstructure:"bot_token"`
	DefaultRecipientID string `mapstructure:"default_recipient_id"`
	ParseMode          string `mapstructure:"parse_mode"`
	APIEndpoint        string `mapstructure:"api_endpoint"`
	TimeoutMs          int    `mapstructure:"timeout_ms"`
}

type SMSConfig struct {
	SenderID     string `mapstructure:"sender_id"`
	SMSType      string `mapstructure:"sms_type"`
	DefaultPhone string `mapstructure:"default_phone"`
}

type AWSConfig struct {
	Region string `mapstructure:"region"`
}

// DeliveryLogConfig selects where terminal outcomes are recorded.
// Backend is none, postgres or elasticsearch.
type DeliveryLogConfig struct {
	Backend string `mapstructure:"backend"`
	Table   string `mapstructure:"table"`
	Index   string `mapstructure:"index"`
}

type ServerConfig struct {
	Address           string `mapstructure:"address"`
	ShutdownTimeoutMs int    `mapstructure:"shutdown_timeout_ms"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type ObservabilityConfig struct {
	ServiceName      string  `mapstructure:"service_name"`
	TraceSampleRatio float64 `mapstructure:"trace_sample_ratio"`
	// TraceEndpoint is an OTLP/HTTP collector host:port; empty disables export.
	TraceEndpoint string `mapstructure:"trace_endpoint"`
	TraceInsecure bool   `mapstructure:"trace_insecure"`
}

// RateLimitDuration returns the rate limit window.
func (w WorkerConfig) RateLimitDuration() time.Duration {
	return GetDuration(w.RateLimit.DurationMs)
}

// BackoffDelay returns the base retry delay.
func (w WorkerConfig) BackoffDelay() time.Duration {
	return GetDuration(w.BackoffDelayMs)
}

func (w WorkerConfig) LockDuration() time.Duration    { return GetDuration(w.LockDurationMs) }
func (w WorkerConfig) StalledInterval() time.Duration { return GetDuration(w.StalledIntervalMs) }
func (w WorkerConfig) PollInterval() time.Duration    { return GetDuration(w.PollIntervalMs) }
func (w WorkerConfig) ShutdownTimeout() time.Duration { return GetDuration(w.ShutdownTimeoutMs) }

// Age returns the retention age window.
func (r RetentionConfig) Age() time.Duration {
	return time.Duration(r.AgeSeconds) * time.Second
}
