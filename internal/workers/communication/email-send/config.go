package emailsend

import (
	"fmt"
	"time"

	"notification-workers/internal/common/config"
)

// Config is the email worker configuration.
type Config struct {
	Worker    config.WorkerConfig
	Email     config.EmailConfig
	SMTP      config.SMTPConfig
	Postmark  config.PostmarkConfig
	AWSRegion string
}

// FromAppConfig extracts the email worker settings.
func FromAppConfig(cfg *config.Config) *Config {
	return &Config{
		Worker:    config.GetWorkerConfig(cfg, TaskType),
		Email:     cfg.Channels.Email,
		SMTP:      cfg.Channels.SMTP,
		Postmark:  cfg.Channels.Postmark,
		AWSRegion: cfg.AWS.Region,
	}
}

func (c *Config) Validate() error {
	if c.Worker.QueueName == "" {
		return fmt.Errorf("queue_name is required")
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	switch c.Email.Transport {
	case "smtp":
		if c.SMTP.Host == "" {
			return fmt.Errorf("smtp host is required")
		}
		if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
			return fmt.Errorf("smtp port must be between 1 and 65535")
		}
	case "ses":
		if c.AWSRegion == "" {
			return fmt.Errorf("aws region is required for the ses transport")
		}
	case "postmark":
		if c.Postmark.ServerToken == "" {
			return fmt.Errorf("postmark server_token is required")
		}
	default:
		return fmt.Errorf("unknown email transport %q", c.Email.Transport)
	}
	return nil
}

func (c *Config) smtpTimeout() time.Duration {
	return config.GetDuration(c.SMTP.TimeoutMs)
}
