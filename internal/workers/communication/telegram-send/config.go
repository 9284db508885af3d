package telegramsend

import (
	"fmt"

	"notification-workers/internal/common/config"
)

// Config is the telegram worker configuration.
type Config struct {
	Worker   config.WorkerConfig
	Telegram config.TelegramConfig
}

func FromAppConfig(cfg *config.Config) *Config {
	return &Config{
		Worker:   config.GetWorkerConfig(cfg, TaskType),
		Telegram: cfg.Channels.Telegram,
	}
}

func (c *Config) Validate() error {
	if c.Worker.QueueName == "" {
		return fmt.Errorf("queue_name is required")
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram bot_token is required")
	}
	return nil
}
