package smssend

import (
	"fmt"

	"notification-workers/internal/common/config"
)

// Config is the sms worker configuration.
type Config struct {
	Worker    config.WorkerConfig
	SMS       config.SMSConfig
	AWSRegion string
}

func FromAppConfig(cfg *config.Config) *Config {
	return &Config{
		Worker:    config.GetWorkerConfig(cfg, TaskType),
		SMS:       cfg.Channels.SMS,
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
	if c.AWSRegion == "" {
		return fmt.Errorf("aws region is required for sms")
	}
	switch c.SMS.SMSType {
	case "", "Transactional", "Promotional":
	default:
		return fmt.Errorf("sms_type must be Transactional or Promotional, got %q", c.SMS.SMSType)
	}
	return nil
}
