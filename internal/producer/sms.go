package producer

import (
	"context"

	"notification-workers/internal/common/validation"
	"notification-workers/internal/models"
	"notification-workers/internal/queue"
)

// SMSProducer enqueues text messages.
type SMSProducer struct {
	*Producer[models.SMSOptions]
}

func NewSMSProducer(q *queue.Queue, opts ...Option) *SMSProducer {
	return &SMSProducer{newProducer[models.SMSOptions](q, models.ChannelSMS, opts)}
}

// SendSMS enqueues message for opts.PhoneNumber, or the default number.
func (p *SMSProducer) SendSMS(ctx context.Context, message string, opts models.SMSOptions) Result {
	if opts.PhoneNumber == "" {
		opts.PhoneNumber = p.defaultRecipient
	}
	if opts.PhoneNumber == "" {
		return p.invalid("Phone number is required")
	}
	if !validation.ValidatePhone(opts.PhoneNumber) {
		return p.invalid("Phone number must be in E.164 format")
	}
	if message == "" {
		return p.invalid("Message is required")
	}
	return p.enqueue(ctx, message, opts, opts.Priority)
}
