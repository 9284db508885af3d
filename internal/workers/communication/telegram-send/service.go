package telegramsend

import (
	"notification-workers/internal/channel/telegram"
	"notification-workers/internal/common/config"
	"notification-workers/internal/common/logger"
)

// NewService builds the bot sender from the configuration.
func NewService(cfg *Config, log logger.Logger) *telegram.Sender {
	bot := telegram.NewBot(telegram.BotConfig{
		Token:       cfg.Telegram.BotToken,
		APIEndpoint: cfg.Telegram.APIEndpoint,
		Timeout:     config.GetDuration(cfg.Telegram.TimeoutMs),
	})
	return telegram.NewSender(bot,
		telegram.WithParseMode(cfg.Telegram.ParseMode),
		telegram.WithLogger(log),
	)
}
