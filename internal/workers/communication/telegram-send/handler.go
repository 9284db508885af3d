package telegramsend

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"notification-workers/internal/common/config"
	"notification-workers/internal/common/validation"
	"notification-workers/internal/models"
	"notification-workers/internal/workers/communication"
)

const TaskType = config.WorkerTelegramSend

// Handler processes telegram-queue jobs.
type Handler = communication.Handler[models.ChatOptions]

func NewHandler(cfg *Config, sender communication.Sender[models.ChatOptions], deps communication.Dependencies) *Handler {
	return communication.NewHandler(communication.Profile[models.ChatOptions]{
		TaskType:  TaskType,
		Channel:   models.ChannelTelegram,
		Schema:    validation.TelegramEnvelope,
		Normalize: normalize(cfg),
		AlertFor:  alertFor,
	}, cfg.Worker, sender, deps)
}

func normalize(cfg *Config) func(models.ChatOptions) models.ChatOptions {
	return func(o models.ChatOptions) models.ChatOptions {
		if o.RecipientID == "" {
			o.RecipientID = cfg.Telegram.DefaultRecipientID
		}
		if o.ParseMode == "" {
			o.ParseMode = cfg.Telegram.ParseMode
		}
		return o
	}
}

func alertFor(a communication.Alert, admin string) (string, models.ChatOptions) {
	return a.ChatHTML(), models.ChatOptions{
		RecipientID: admin,
		ParseMode:   tgbotapi.ModeHTML,
		Priority:    models.PriorityHigh,
		Category:    models.CategoryError,
	}
}
