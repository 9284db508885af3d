package emailsend

import (
	"context"
	"fmt"

	"notification-workers/internal/channel/mail"
	"notification-workers/internal/common/aws"
	"notification-workers/internal/common/logger"
)

// NewTransport builds the mail transport selected by the configuration.
func NewTransport(ctx context.Context, cfg *Config) (mail.Transport, error) {
	switch cfg.Email.Transport {
	case "smtp":
		return mail.NewSMTPTransport(mail.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			UseTLS:   cfg.SMTP.UseTLS,
			Timeout:  cfg.smtpTimeout(),
		}), nil
	case "ses":
		awsCfg, err := aws.LoadConfig(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		return mail.NewSESTransport(aws.NewSESClient(awsCfg)), nil
	case "postmark":
		return mail.NewPostmarkTransport(mail.NewPostmarkClient(cfg.Postmark.ServerToken, cfg.Postmark.AccountToken)), nil
	default:
		return nil, fmt.Errorf("unknown email transport %q", cfg.Email.Transport)
	}
}

// NewService builds the mailer over transport, loading the templates
// directory when one is configured.
func NewService(cfg *Config, transport mail.Transport, log logger.Logger) (*mail.Mailer, error) {
	templates, err := mail.LoadTemplates(cfg.Email.TemplatesDir)
	if err != nil {
		return nil, fmt.Errorf("load email templates: %w", err)
	}
	return mail.NewMailer(transport,
		mail.WithDefaultFrom(cfg.Email.DefaultFrom),
		mail.WithTemplates(templates),
		mail.WithLogger(log),
	), nil
}
