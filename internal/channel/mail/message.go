package mail

import (
	"bytes"
	"fmt"

	gomail "github.com/wneessen/go-mail"

	"notification-workers/internal/channel"
	"notification-workers/internal/models"
)

// Message is a fully resolved email, independent of the transport.
type Message struct {
	From        string
	To          []string
	Cc          []string
	Bcc         []string
	ReplyTo     string
	Subject     string
	HTML        string
	Text        string
	Tag         string
	Priority    models.Priority
	Attachments []Attachment
}

// Attachment is a decoded file attachment.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Recipients returns every envelope recipient, Bcc included.
func (m *Message) Recipients() []string {
	out := make([]string, 0, len(m.To)+len(m.Cc)+len(m.Bcc))
	out = append(out, m.To...)
	out = append(out, m.Cc...)
	return append(out, m.Bcc...)
}

// MIME builds the go-mail message. Address errors are permanent.
func (m *Message) MIME() (*gomail.Msg, error) {
	msg := gomail.NewMsg()

	if err := msg.From(m.From); err != nil {
		return nil, channel.Permanent(fmt.Errorf("invalid from address %q: %w", m.From, err))
	}
	if err := msg.To(m.To...); err != nil {
		return nil, channel.Permanent(fmt.Errorf("invalid to address: %w", err))
	}
	if len(m.Cc) > 0 {
		if err := msg.Cc(m.Cc...); err != nil {
			return nil, channel.Permanent(fmt.Errorf("invalid cc address: %w", err))
		}
	}
	if len(m.Bcc) > 0 {
		if err := msg.Bcc(m.Bcc...); err != nil {
			return nil, channel.Permanent(fmt.Errorf("invalid bcc address: %w", err))
		}
	}
	if m.ReplyTo != "" {
		if err := msg.ReplyTo(m.ReplyTo); err != nil {
			return nil, channel.Permanent(fmt.Errorf("invalid reply-to address %q: %w", m.ReplyTo, err))
		}
	}

	msg.Subject(m.Subject)
	msg.SetMessageID()
	msg.SetDate()

	switch m.Priority {
	case models.PriorityHigh:
		msg.SetImportance(gomail.ImportanceHigh)
	case models.PriorityLow:
		msg.SetImportance(gomail.ImportanceLow)
	}
	if m.Tag != "" {
		msg.SetGenHeader("X-Mail-Tag", m.Tag)
	}

	if m.Text != "" {
		msg.SetBodyString(gomail.TypeTextPlain, m.Text)
		msg.AddAlternativeString(gomail.TypeTextHTML, m.HTML)
	} else {
		msg.SetBodyString(gomail.TypeTextHTML, m.HTML)
	}

	for _, a := range m.Attachments {
		var opts []gomail.FileOption
		if a.ContentType != "" {
			opts = append(opts, gomail.WithFileContentType(gomail.ContentType(a.ContentType)))
		}
		if err := msg.AttachReader(a.Filename, bytes.NewReader(a.Data), opts...); err != nil {
			return nil, channel.Permanent(fmt.Errorf("attach %s: %w", a.Filename, err))
		}
	}

	return msg, nil
}

// messageID returns the Message-ID header set by MIME.
func messageID(msg *gomail.Msg) string {
	if ids := msg.GetGenHeader(gomail.HeaderMessageID); len(ids) > 0 {
		return ids[0]
	}
	return ""
}
