// Package sms delivers text messages through Amazon SNS.
package sms

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/smithy-go"

	"notification-workers/internal/channel"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/common/validation"
	"notification-workers/internal/models"
)

const (
	attrSenderID = "AWS.SNS.SMS.SenderID"
	attrSMSType  = "AWS.SNS.SMS.SMSType"

	defaultSMSType = "Transactional"
)

// SNSAPI is the part of the SNS client used for SMS.
type SNSAPI interface {
	Publish(ctx context.Context, input *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	GetSMSAttributes(ctx context.Context, input *sns.GetSMSAttributesInput, optFns ...func(*sns.Options)) (*sns.GetSMSAttributesOutput, error)
}

// Sender publishes SMS messages directly to phone numbers.
type Sender struct {
	client   SNSAPI
	senderID string
	smsType  string
	log      logger.Logger
}

type Option func(*Sender)

// WithSenderID sets the sender id used when a job does not carry one.
func WithSenderID(id string) Option {
	return func(s *Sender) { s.senderID = id }
}

// WithSMSType sets the default SMS type, Transactional or Promotional.
func WithSMSType(t string) Option {
	return func(s *Sender) { s.smsType = t }
}

func WithLogger(l logger.Logger) Option {
	return func(s *Sender) { s.log = l }
}

func NewSender(client SNSAPI, opts ...Option) *Sender {
	s := &Sender{
		client:  client,
		smsType: defaultSMSType,
		log:     logger.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send publishes message to opts.PhoneNumber.
func (s *Sender) Send(ctx context.Context, message string, opts models.SMSOptions) (*models.Outcome, error) {
	if !validation.ValidatePhone(opts.PhoneNumber) {
		return channel.Result(models.ChannelSMS, "", channel.Permanent(fmt.Errorf("invalid phone number %q", opts.PhoneNumber)))
	}

	senderID := opts.SenderID
	if senderID == "" {
		senderID = s.senderID
	}
	smsType := opts.SMSType
	if smsType == "" {
		smsType = s.smsType
	}

	attrs := map[string]types.MessageAttributeValue{
		attrSMSType: {DataType: aws.String("String"), StringValue: aws.String(smsType)},
	}
	if senderID != "" {
		attrs[attrSenderID] = types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(senderID)}
	}

	out, err := s.client.Publish(ctx, &sns.PublishInput{
		Message:           aws.String(message),
		PhoneNumber:       aws.String(opts.PhoneNumber),
		MessageAttributes: attrs,
	})
	if err != nil {
		return channel.Result(models.ChannelSMS, "", classify(err))
	}
	return channel.Result(models.ChannelSMS, aws.ToString(out.MessageId), nil)
}

func classify(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	code := apiErr.ErrorCode()
	switch {
	case code == "InvalidParameter", code == "InvalidParameterValue",
		strings.Contains(code, "OptedOut"):
		return channel.Permanent(fmt.Errorf("sns %s: %s", code, apiErr.ErrorMessage()))
	}
	return err
}

// VerifyConnection reads the account SMS attributes. A failure is logged
// and reported as false.
func (s *Sender) VerifyConnection(ctx context.Context) bool {
	out, err := s.client.GetSMSAttributes(ctx, &sns.GetSMSAttributesInput{})
	if err != nil {
		s.log.Warn("SNS verification failed", map[string]interface{}{"error": err.Error()})
		return false
	}
	s.log.Info("SNS verified", map[string]interface{}{"defaultSMSType": out.Attributes["DefaultSMSType"]})
	return true
}
