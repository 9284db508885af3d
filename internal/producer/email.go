package producer

import (
	"context"
	"strings"

	"notification-workers/internal/models"
	"notification-workers/internal/queue"
)

// EmailProducer enqueues email notifications.
type EmailProducer struct {
	*Producer[models.EmailOptions]
}

func NewEmailProducer(q *queue.Queue, opts ...Option) *EmailProducer {
	return &EmailProducer{newProducer[models.EmailOptions](q, models.ChannelEmail, opts)}
}

// SendEmail enqueues an email whose HTML body is message.
func (p *EmailProducer) SendEmail(ctx context.Context, message string, opts models.EmailOptions) Result {
	if len(opts.To) == 0 || strings.TrimSpace(opts.To[0]) == "" {
		return p.invalid("Recipient email is required")
	}
	if strings.TrimSpace(opts.Subject) == "" {
		return p.invalid("Subject is required")
	}
	return p.enqueue(ctx, message, opts, opts.Priority)
}
