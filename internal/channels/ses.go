package channels

import (
	"context"
	"fmt"

	"bookverse-notifications/internal/common/logger"
	"bookverse-notifications/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESTransport sends rendered EmailMessages through Amazon SES. Delivery
// status beyond acceptance arrives later through SES event callbacks.
type SESTransport struct {
	client           SESService
	fromEmail        string
	configurationSet string
	logger           logger.Logger
}

func NewSESTransport(client SESService, fromEmail, configurationSet string, log logger.Logger) *SESTransport {
	return &SESTransport{
		client:           client,
		fromEmail:        fromEmail,
		configurationSet: configurationSet,
		logger:           logger.Component(log, "ses"),
	}
}

func (t *SESTransport) Send(ctx context.Context, msg *models.EmailMessage) error {
	if msg.Recipient == "" {
		return fmt.Errorf("email %s has no recipient", msg.ID)
	}

	input := &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{msg.Recipient},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(StripTags(msg.Body))},
				Html: &types.Content{Data: aws.String(msg.Body)},
			},
		},
		Source: aws.String(t.fromEmail),
		Tags: []types.MessageTag{
			{Name: aws.String("messageId"), Value: aws.String(msg.ID)},
			{Name: aws.String("category"), Value: aws.String(string(msg.Category))},
		},
	}
	if t.configurationSet != "" {
		input.ConfigurationSetName = aws.String(t.configurationSet)
	}

	if _, err := t.client.SendEmail(ctx, input); err != nil {
		t.logger.Error("email send failed", map[string]interface{}{
			"messageId": msg.ID,
			"error":     err,
		})
		return err
	}
	return nil
}
