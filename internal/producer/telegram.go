package producer

import (
	"context"

	"notification-workers/internal/models"
	"notification-workers/internal/queue"
)

// TelegramProducer enqueues chat messages.
type TelegramProducer struct {
	*Producer[models.ChatOptions]
}

func NewTelegramProducer(q *queue.Queue, opts ...Option) *TelegramProducer {
	return &TelegramProducer{newProducer[models.ChatOptions](q, models.ChannelTelegram, opts)}
}

// SendMessage enqueues message for opts.RecipientID, or the default
// recipient when none is given.
func (p *TelegramProducer) SendMessage(ctx context.Context, message string, opts models.ChatOptions) Result {
	if opts.RecipientID == "" {
		opts.RecipientID = p.defaultRecipient
	}
	if opts.RecipientID == "" {
		return p.invalid("Recipient ID is required")
	}
	return p.enqueue(ctx, message, opts, opts.Priority)
}
