// internal/models/notification.go
package models

import "time"

// Channel identifies the delivery transport a job is bound to.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelTelegram Channel = "telegram"
	ChannelSMS      Channel = "sms"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// CategoryError marks administrator alerts about failed deliveries.
const CategoryError = "ERROR"

// Envelope is the unit of work stored as queue job data.
// It is written once by the producer and never rewritten afterwards.
type Envelope[O any] struct {
	JobID       string     `json:"jobId"`
	Type        Channel    `json:"type"`
	Payload     Payload[O] `json:"payload"`
	CreatedAt   time.Time  `json:"createdAt"`
	MaxAttempts int        `json:"maxAttempts"`
}

type Payload[O any] struct {
	Message string `json:"message"`
	Options O      `json:"options"`
}

// EmailOptions carries the send parameters for the email channel.
type EmailOptions struct {
	To          []string     `json:"to"`
	Cc          []string     `json:"cc,omitempty"`
	Bcc         []string     `json:"bcc,omitempty"`
	From        string       `json:"from,omitempty"`
	ReplyTo     string       `json:"replyTo,omitempty"`
	Subject     string       `json:"subject"`
	Text        string       `json:"text,omitempty"` // Markdown
	Template    *Template    `json:"template,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Tag         string       `json:"tag,omitempty"`
	Priority    Priority     `json:"priority,omitempty"`
	Category    string       `json:"category,omitempty"`
}

type Template struct {
	Name string                 `json:"name"`
	Data map[string]interface{} `json:"data,omitempty"`
}

type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType,omitempty"`
	Content     string `json:"content"` // Base64 encoded
}

// ChatOptions carries the send parameters for the telegram channel.
type ChatOptions struct {
	RecipientID         string                 `json:"recipientId"`
	ParseMode           string                 `json:"parseMode,omitempty"`
	ReplyToMessageID    int                    `json:"replyToMessageId,omitempty"`
	DisableNotification bool                   `json:"disableNotification,omitempty"`
	Extra               map[string]interface{} `json:"extra,omitempty"`
	Priority            Priority               `json:"priority,omitempty"`
	Category            string                 `json:"category,omitempty"`
}

// SMSOptions carries the send parameters for the sms channel.
type SMSOptions struct {
	PhoneNumber string   `json:"phoneNumber"`
	SenderID    string   `json:"senderId,omitempty"`
	SMSType     string   `json:"smsType,omitempty"`
	Priority    Priority `json:"priority,omitempty"`
	Category    string   `json:"category,omitempty"`
}

// Recipient returns the primary recipient for logs and alerts.
func (o EmailOptions) Recipient() string {
	if len(o.To) == 0 {
		return ""
	}
	return o.To[0]
}

func (o ChatOptions) Recipient() string { return o.RecipientID }

func (o SMSOptions) Recipient() string { return o.PhoneNumber }
