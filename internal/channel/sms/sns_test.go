package sms

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"notification-workers/internal/common/logger"
	"notification-workers/internal/models"
)

type mockSNS struct {
	mock.Mock
}

func (m *mockSNS) Publish(ctx context.Context, input *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, input)
	if out := args.Get(0); out != nil {
		return out.(*sns.PublishOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSNS) GetSMSAttributes(ctx context.Context, input *sns.GetSMSAttributesInput, optFns ...func(*sns.Options)) (*sns.GetSMSAttributesOutput, error) {
	args := m.Called(ctx, input)
	if out := args.Get(0); out != nil {
		return out.(*sns.GetSMSAttributesOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestSender_PublishesWithAttributes(t *testing.T) {
	client := new(mockSNS)
	client.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		return aws.ToString(in.PhoneNumber) == "+14155550100" &&
			aws.ToString(in.Message) == "Your code is 1234" &&
			aws.ToString(in.MessageAttributes[attrSenderID].StringValue) == "ACME" &&
			aws.ToString(in.MessageAttributes[attrSMSType].StringValue) == "Transactional"
	})).Return(&sns.PublishOutput{MessageId: aws.String("sns-1")}, nil)

	s := NewSender(client, WithSenderID("ACME"), WithLogger(logger.NewTestLogger(t)))
	out, err := s.Send(context.Background(), "Your code is 1234", models.SMSOptions{PhoneNumber: "+14155550100"})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, "sns-1", out.MessageID)
	assert.Equal(t, models.ChannelSMS, out.Channel)
	client.AssertExpectations(t)
}

func TestSender_JobOptionsOverrideDefaults(t *testing.T) {
	client := new(mockSNS)
	client.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		return aws.ToString(in.MessageAttributes[attrSenderID].StringValue) == "SHOP" &&
			aws.ToString(in.MessageAttributes[attrSMSType].StringValue) == "Promotional"
	})).Return(&sns.PublishOutput{MessageId: aws.String("sns-2")}, nil)

	s := NewSender(client, WithSenderID("ACME"))
	_, err := s.Send(context.Background(), "Sale", models.SMSOptions{
		PhoneNumber: "+14155550100",
		SenderID:    "SHOP",
		SMSType:     "Promotional",
	})
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestSender_InvalidPhoneRejected(t *testing.T) {
	client := new(mockSNS)
	out, err := NewSender(client).Send(context.Background(), "hi", models.SMSOptions{PhoneNumber: "0800"})
	require.NoError(t, err)
	assert.False(t, out.Success)
	client.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestSender_Classification(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		permanent bool
	}{
		{"invalid parameter", &smithy.GenericAPIError{Code: "InvalidParameter", Message: "Invalid parameter: PhoneNumber"}, true},
		{"opted out", &smithy.GenericAPIError{Code: "OptedOutException"}, true},
		{"throttled", &smithy.GenericAPIError{Code: "Throttling"}, false},
		{"network", errors.New("dial tcp: i/o timeout"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := new(mockSNS)
			client.On("Publish", mock.Anything, mock.Anything).Return(nil, tc.err)

			out, err := NewSender(client).Send(context.Background(), "hi", models.SMSOptions{PhoneNumber: "+14155550100"})
			if tc.permanent {
				require.NoError(t, err)
				assert.False(t, out.Success)
				return
			}
			assert.Nil(t, out)
			assert.Error(t, err)
		})
	}
}

func TestSender_VerifyConnection(t *testing.T) {
	client := new(mockSNS)
	client.On("GetSMSAttributes", mock.Anything, mock.Anything).
		Return(&sns.GetSMSAttributesOutput{Attributes: map[string]string{"DefaultSMSType": "Transactional"}}, nil).Once()
	client.On("GetSMSAttributes", mock.Anything, mock.Anything).
		Return(nil, errors.New("access denied")).Once()

	s := NewSender(client)
	assert.True(t, s.VerifyConnection(context.Background()))
	assert.False(t, s.VerifyConnection(context.Background()))
}
