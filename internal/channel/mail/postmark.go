package mail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/mrz1836/postmark"

	"notification-workers/internal/channel"
)

// PostmarkAPI is the part of the Postmark client used here.
type PostmarkAPI interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
	GetCurrentServer(ctx context.Context) (postmark.Server, error)
}

// Postmark error codes that retrying cannot fix: invalid email request and
// inactive recipient.
const (
	postmarkInvalidRequest    = 300
	postmarkInactiveRecipient = 406
)

// PostmarkTransport sends through the Postmark API.
type PostmarkTransport struct {
	client PostmarkAPI
}

func NewPostmarkTransport(client PostmarkAPI) *PostmarkTransport {
	return &PostmarkTransport{client: client}
}

// NewPostmarkClient returns an API client for the given tokens.
func NewPostmarkClient(serverToken, accountToken string) *postmark.Client {
	return postmark.NewClient(serverToken, accountToken)
}

func (t *PostmarkTransport) Name() string { return "postmark" }

func (t *PostmarkTransport) Send(ctx context.Context, msg *Message) (string, error) {
	email := postmark.Email{
		From:     msg.From,
		To:       strings.Join(msg.To, ","),
		Cc:       strings.Join(msg.Cc, ","),
		Bcc:      strings.Join(msg.Bcc, ","),
		Subject:  msg.Subject,
		Tag:      msg.Tag,
		HTMLBody: msg.HTML,
		TextBody: msg.Text,
		ReplyTo:  msg.ReplyTo,
	}
	for _, a := range msg.Attachments {
		email.Attachments = append(email.Attachments, postmark.Attachment{
			Name:        a.Filename,
			Content:     base64.StdEncoding.EncodeToString(a.Data),
			ContentType: a.ContentType,
		})
	}

	resp, err := t.client.SendEmail(ctx, email)
	switch resp.ErrorCode {
	case 0:
	case postmarkInvalidRequest, postmarkInactiveRecipient:
		return "", channel.Permanent(fmt.Errorf("postmark error %d: %s", resp.ErrorCode, resp.Message))
	default:
		return "", fmt.Errorf("postmark error %d: %s", resp.ErrorCode, resp.Message)
	}
	if err != nil {
		return "", fmt.Errorf("postmark send: %w", err)
	}
	return resp.MessageID, nil
}

func (t *PostmarkTransport) Verify(ctx context.Context) error {
	if _, err := t.client.GetCurrentServer(ctx); err != nil {
		return fmt.Errorf("postmark get server: %w", err)
	}
	return nil
}
