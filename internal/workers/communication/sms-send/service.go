package smssend

import (
	"context"

	"notification-workers/internal/channel/sms"
	"notification-workers/internal/common/aws"
	"notification-workers/internal/common/logger"
)

// NewService builds the SNS backed sender for the configured region.
func NewService(ctx context.Context, cfg *Config, log logger.Logger) (*sms.Sender, error) {
	awsCfg, err := aws.LoadConfig(ctx, cfg.AWSRegion)
	if err != nil {
		return nil, err
	}
	return newSender(cfg, aws.NewSNSClient(awsCfg), log), nil
}

func newSender(cfg *Config, client sms.SNSAPI, log logger.Logger) *sms.Sender {
	opts := []sms.Option{
		sms.WithSenderID(cfg.SMS.SenderID),
		sms.WithLogger(log),
	}
	if cfg.SMS.SMSType != "" {
		opts = append(opts, sms.WithSMSType(cfg.SMS.SMSType))
	}
	return sms.NewSender(client, opts...)
}
