package notification

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"Fixer-backend/internal/model"
)

// SESService is the part of the SES client used for mail.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SNSService is the part of the SNS client used for text messages.
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// LoadAWSConfig resolves credentials the standard AWS way for region.
func LoadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
}

// EmailChannel mails payment notifications through SES.
type EmailChannel struct {
	client SESService
	from   string
}

func NewEmailChannel(cfg aws.Config, from string) *EmailChannel {
	return NewEmailChannelWithClient(ses.NewFromConfig(cfg), from)
}

func NewEmailChannelWithClient(client SESService, from string) *EmailChannel {
	return &EmailChannel{client: client, from: from}
}

func (e *EmailChannel) Name() string { return "email" }

func (e *EmailChannel) Accepts(t model.NotificationType) bool {
	switch t {
	case model.NotificationPaymentReceived,
		model.NotificationPaymentSent,
		model.NotificationPaymentReleased,
		model.NotificationPaymentFailed,
		model.NotificationPaymentReversed:
		return true
	}
	return false
}

// Deliver skips recipients without an e-mail address.
func (e *EmailChannel) Deliver(ctx context.Context, recipient *model.User, n *model.Notification) error {
	if recipient == nil || recipient.Email == nil || *recipient.Email == "" {
		return nil
	}
	_, err := e.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{*recipient.Email},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(n.Title)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(n.Message)},
			},
		},
		Source: aws.String(e.from),
	})
	return err
}

// SMSChannel texts workers and posters when a payout fails.
type SMSChannel struct {
	client SNSService
}

func NewSMSChannel(cfg aws.Config) *SMSChannel {
	return NewSMSChannelWithClient(sns.NewFromConfig(cfg))
}

func NewSMSChannelWithClient(client SNSService) *SMSChannel {
	return &SMSChannel{client: client}
}

func (s *SMSChannel) Name() string { return "sms" }

func (s *SMSChannel) Accepts(t model.NotificationType) bool {
	return t == model.NotificationPaymentFailed
}

func (s *SMSChannel) Deliver(ctx context.Context, recipient *model.User, n *model.Notification) error {
	if recipient == nil || recipient.Phone == nil || *recipient.Phone == "" {
		return nil
	}
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: recipient.Phone,
		Message:     aws.String(n.Title + ": " + n.Message),
	})
	return err
}
