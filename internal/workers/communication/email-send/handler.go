package emailsend

import (
	"notification-workers/internal/common/config"
	"notification-workers/internal/common/validation"
	"notification-workers/internal/models"
	"notification-workers/internal/workers/communication"
)

const TaskType = config.WorkerEmailSend

// Handler processes email-queue jobs.
type Handler = communication.Handler[models.EmailOptions]

func NewHandler(cfg *Config, sender communication.Sender[models.EmailOptions], deps communication.Dependencies) *Handler {
	return communication.NewHandler(communication.Profile[models.EmailOptions]{
		TaskType:  TaskType,
		Channel:   models.ChannelEmail,
		Schema:    validation.EmailEnvelope,
		Normalize: normalize(cfg),
		AlertFor:  alertFor,
	}, cfg.Worker, sender, deps)
}

func normalize(cfg *Config) func(models.EmailOptions) models.EmailOptions {
	return func(o models.EmailOptions) models.EmailOptions {
		if o.From == "" {
			o.From = cfg.Email.DefaultFrom
		}
		return o
	}
}

func alertFor(a communication.Alert, admin string) (string, models.EmailOptions) {
	return a.HTML(), models.EmailOptions{
		To:       []string{admin},
		Subject:  a.Subject(),
		Tag:      "admin-alert",
		Priority: models.PriorityHigh,
		Category: models.CategoryError,
	}
}
