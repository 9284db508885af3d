package mail

import (
	"context"
	"errors"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"

	"notification-workers/internal/channel"
)

// SMTPConfig holds the SMTP relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	UseTLS   bool
	Timeout  time.Duration
}

// SMTPTransport sends through an SMTP relay, one connection per message.
type SMTPTransport struct {
	cfg SMTPConfig
}

func NewSMTPTransport(cfg SMTPConfig) *SMTPTransport {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SMTPTransport{cfg: cfg}
}

func (t *SMTPTransport) Name() string { return "smtp" }

func (t *SMTPTransport) client() (*gomail.Client, error) {
	policy := gomail.NoTLS
	if t.cfg.UseTLS {
		policy = gomail.TLSMandatory
	}
	opts := []gomail.Option{
		gomail.WithTimeout(t.cfg.Timeout),
		gomail.WithTLSPolicy(policy),
	}
	if t.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(t.cfg.Username),
			gomail.WithPassword(t.cfg.Password),
		)
	}
	opts = append(opts, gomail.WithPort(t.cfg.Port))
	return gomail.NewClient(t.cfg.Host, opts...)
}

func (t *SMTPTransport) Send(ctx context.Context, msg *Message) (string, error) {
	m, err := msg.MIME()
	if err != nil {
		return "", err
	}
	c, err := t.client()
	if err != nil {
		return "", fmt.Errorf("smtp client: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return "", classifySMTP(err)
	}
	return messageID(m), nil
}

func (t *SMTPTransport) Verify(ctx context.Context) error {
	c, err := t.client()
	if err != nil {
		return err
	}
	if err := c.DialWithContext(ctx); err != nil {
		return fmt.Errorf("smtp dial %s:%d: %w", t.cfg.Host, t.cfg.Port, err)
	}
	return c.Close()
}

// classifySMTP marks envelope and data rejections that the server did not
// flag as temporary (5xx replies) as permanent.
func classifySMTP(err error) error {
	var se *gomail.SendError
	if !errors.As(err, &se) || se.IsTemp() {
		return err
	}
	switch se.Reason {
	case gomail.ErrGetSender, gomail.ErrGetRcpts,
		gomail.ErrSMTPMailFrom, gomail.ErrSMTPRcptTo,
		gomail.ErrSMTPData, gomail.ErrSMTPDataClose:
		return channel.Permanent(err)
	}
	return err
}
