package smssend

import (
	"notification-workers/internal/common/config"
	"notification-workers/internal/common/validation"
	"notification-workers/internal/models"
	"notification-workers/internal/workers/communication"
)

const TaskType = config.WorkerSMSSend

// Handler processes sms-queue jobs.
type Handler = communication.Handler[models.SMSOptions]

func NewHandler(cfg *Config, sender communication.Sender[models.SMSOptions], deps communication.Dependencies) *Handler {
	return communication.NewHandler(communication.Profile[models.SMSOptions]{
		TaskType:  TaskType,
		Channel:   models.ChannelSMS,
		Schema:    validation.SMSEnvelope,
		Normalize: normalize(cfg),
		AlertFor:  alertFor,
	}, cfg.Worker, sender, deps)
}

func normalize(cfg *Config) func(models.SMSOptions) models.SMSOptions {
	return func(o models.SMSOptions) models.SMSOptions {
		if o.PhoneNumber == "" {
			o.PhoneNumber = cfg.SMS.DefaultPhone
		}
		if o.SenderID == "" {
			o.SenderID = cfg.SMS.SenderID
		}
		return o
	}
}

func alertFor(a communication.Alert, admin string) (string, models.SMSOptions) {
	return a.Text(), models.SMSOptions{
		PhoneNumber: admin,
		Priority:    models.PriorityHigh,
		Category:    models.CategoryError,
	}
}
