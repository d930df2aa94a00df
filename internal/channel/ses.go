package channel

import (
	"context"
	"fmt"

	"lead-intake-workers/internal/common/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESAPI is the subset of the SES client used for sending.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SES delivers email through Amazon SES.
type SES struct {
	client    SESAPI
	fromEmail string
}

func NewSES(client SESAPI, fromEmail string) *SES {
	return &SES{client: client, fromEmail: fromEmail}
}

func (s *SES) Send(ctx context.Context, msg Message) (Receipt, error) {
	if msg.To == "" {
		return Receipt{}, fmt.Errorf("ses: empty recipient: %w", ErrInvalidAddress)
	}

	out, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{ToAddresses: []string{msg.To}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(msg.Body), Charset: aws.String("UTF-8")},
			},
		},
		Source: aws.String(s.fromEmail),
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("ses send: %w", err)
	}
	return Receipt{Transport: config.TransportSES, MessageID: aws.ToString(out.MessageId)}, nil
}
