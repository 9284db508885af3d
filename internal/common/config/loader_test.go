package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_DefaultsAndExpansion(t *testing.T) {
	t.Setenv("TEST_SMTP_HOST", "smtp.example.com")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")

	path := writeConfig(t, `
app:
  name: notification-workers
channels:
  email:
    default_from: noreply@example.com
  smtp:
    host: ${TEST_SMTP_HOST}
workers:
  email-send:
    enabled: true
    concurrency: 3
    admin_recipient: ops@example.com
  telegram-send:
    enabled: true
    rate_limit:
      max: 30
      duration_ms: 1000
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com", cfg.Channels.SMTP.Host)
	assert.Equal(t, "123:abc", cfg.Channels.Telegram.BotToken)
	assert.Equal(t, "smtp", cfg.Channels.Email.Transport)
	assert.Equal(t, "HTML", cfg.Channels.Telegram.ParseMode)
	assert.Equal(t, "none", cfg.DeliveryLog.Backend)
	assert.Equal(t, ":8080", cfg.Server.Address)

	email := cfg.Workers[WorkerEmailSend]
	assert.Equal(t, "email-queue", email.QueueName)
	assert.Equal(t, 3, email.Concurrency)
	assert.Equal(t, 3, email.Attempts)
	assert.Equal(t, "exponential", email.BackoffType)
	assert.Equal(t, 5*time.Second, email.BackoffDelay())
	assert.Equal(t, int64(1000), email.RemoveOnComplete.Count)
	assert.Equal(t, 24*time.Hour, email.RemoveOnComplete.Age())
	assert.Equal(t, int64(5000), email.RemoveOnFail.Count)
	assert.Equal(t, "ops@example.com", email.AdminRecipient)

	tg := cfg.Workers[WorkerTelegramSend]
	assert.Equal(t, "telegram-queue", tg.QueueName)
	assert.Equal(t, 30, tg.RateLimit.Max)
	assert.Equal(t, time.Second, tg.RateLimitDuration())
}

func TestLoadFromFile_RejectsUnknownTransport(t *testing.T) {
	path := writeConfig(t, `
channels:
  email:
    transport: pigeon
`)

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channels.email.transport")
}

func TestLoadFromFile_PostgresLogNeedsHost(t *testing.T) {
	path := writeConfig(t, `
delivery_log:
  backend: postgres
`)

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.postgres.host")
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestGetWorkerConfig_FallsBackToDefaults(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{}}

	w := GetWorkerConfig(cfg, WorkerSMSSend)
	assert.True(t, w.Enabled)
	assert.Equal(t, "sms-queue", w.QueueName)
	assert.Equal(t, 30*time.Second, w.LockDuration())
	assert.True(t, IsWorkerEnabled(cfg, WorkerSMSSend))
}

func TestPostgresConfig_GetDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "notify", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=notify sslmode=disable", p.GetDSN())
}
