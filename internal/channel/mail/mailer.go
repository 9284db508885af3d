// Package mail delivers email notifications over SMTP, SES or Postmark.
package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"notification-workers/internal/channel"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/models"
)

// Transport hands a composed message to a mail provider.
type Transport interface {
	Name() string
	// Send returns the provider message id. Errors wrapped with
	// channel.Permanent are not retried.
	Send(ctx context.Context, msg *Message) (string, error)
	Verify(ctx context.Context) error
}

// Mailer composes email options into a Message and sends it.
type Mailer struct {
	transport   Transport
	defaultFrom string
	templates   *Templates
	markdown    goldmark.Markdown
	log         logger.Logger
}

type Option func(*Mailer)

func WithDefaultFrom(from string) Option {
	return func(m *Mailer) { m.defaultFrom = from }
}

func WithTemplates(t *Templates) Option {
	return func(m *Mailer) { m.templates = t }
}

func WithLogger(l logger.Logger) Option {
	return func(m *Mailer) { m.log = l }
}

// NewMailer creates a Mailer over transport.
func NewMailer(transport Transport, opts ...Option) *Mailer {
	m := &Mailer{
		transport: transport,
		markdown:  goldmark.New(goldmark.WithExtensions(extension.GFM)),
		log:       logger.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Send delivers message with opts. Permanent failures come back as a
// rejected outcome with a nil error; transient ones as an error.
func (m *Mailer) Send(ctx context.Context, message string, opts models.EmailOptions) (*models.Outcome, error) {
	msg, err := m.Compose(message, opts)
	if err != nil {
		return channel.Result(models.ChannelEmail, "", err)
	}

	start := time.Now()
	id, err := m.transport.Send(ctx, msg)
	m.log.Debug("Email transport call finished", map[string]interface{}{
		"transport":  m.transport.Name(),
		"recipients": len(msg.Recipients()),
		"duration":   time.Since(start).String(),
		"error":      errString(err),
	})
	return channel.Result(models.ChannelEmail, id, err)
}

// Compose resolves sender, body and attachments. Body precedence is
// template, then Markdown text, then the raw HTML message.
func (m *Mailer) Compose(message string, opts models.EmailOptions) (*Message, error) {
	msg := &Message{
		From:     opts.From,
		To:       opts.To,
		Cc:       opts.Cc,
		Bcc:      opts.Bcc,
		ReplyTo:  opts.ReplyTo,
		Subject:  opts.Subject,
		Text:     opts.Text,
		Tag:      opts.Tag,
		Priority: opts.Priority,
	}
	if msg.From == "" {
		msg.From = m.defaultFrom
	}
	if msg.From == "" {
		return nil, channel.Permanent(errors.New("no sender address configured"))
	}
	if len(msg.To) == 0 {
		return nil, channel.Permanent(errors.New("no recipient address"))
	}

	switch {
	case opts.Template != nil && opts.Template.Name != "":
		html, err := m.templates.Render(opts.Template.Name, opts.Template.Data)
		if err != nil {
			return nil, channel.Permanent(err)
		}
		msg.HTML = html
	case opts.Text != "":
		var buf bytes.Buffer
		if err := m.markdown.Convert([]byte(opts.Text), &buf); err != nil {
			return nil, channel.Permanent(fmt.Errorf("render markdown: %w", err))
		}
		msg.HTML = buf.String()
	default:
		msg.HTML = message
	}

	for _, a := range opts.Attachments {
		data, err := base64.StdEncoding.DecodeString(a.Content)
		if err != nil {
			return nil, channel.Permanent(fmt.Errorf("attachment %s is not valid base64: %w", a.Filename, err))
		}
		msg.Attachments = append(msg.Attachments, Attachment{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Data:        data,
		})
	}

	// address syntax is checked for every transport, not only MIME ones
	if _, err := msg.MIME(); err != nil {
		return nil, err
	}
	return msg, nil
}

// VerifyConnection checks the transport. A failure is logged and reported
// as false; it never stops the worker.
func (m *Mailer) VerifyConnection(ctx context.Context) bool {
	if err := m.transport.Verify(ctx); err != nil {
		m.log.Warn("Email transport verification failed", map[string]interface{}{
			"transport": m.transport.Name(),
			"error":     err.Error(),
		})
		return false
	}
	m.log.Info("Email transport verified", map[string]interface{}{"transport": m.transport.Name()})
	return true
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
