package channel

import (
	"context"
	"fmt"
	"strings"

	"lead-intake-workers/internal/common/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/nyaruka/phonenumbers"
)

// SNSAPI is the subset of the SNS client used for SMS.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNS delivers SMS through Amazon SNS direct publish.
type SNS struct {
	client        SNSAPI
	senderID      string
	defaultRegion string
}

func NewSNS(client SNSAPI, senderID, defaultRegion string) *SNS {
	return &SNS{client: client, senderID: senderID, defaultRegion: defaultRegion}
}

// NormalizeE164 parses a free-form phone number, resolving local numbers
// against region, and formats it as E.164.
func NormalizeE164(raw, region string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("empty phone number: %w", ErrInvalidAddress)
	}
	num, err := phonenumbers.Parse(trimmed, region)
	if err != nil {
		return "", fmt.Errorf("parse phone %q: %w", trimmed, ErrInvalidAddress)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("phone %q is not a valid number: %w", trimmed, ErrInvalidAddress)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func (s *SNS) Send(ctx context.Context, msg Message) (Receipt, error) {
	to, err := NormalizeE164(msg.To, s.defaultRegion)
	if err != nil {
		return Receipt{}, err
	}

	input := &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(msg.Body),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
		},
	}
	if s.senderID != "" {
		input.MessageAttributes["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(s.senderID),
		}
	}

	out, err := s.client.Publish(ctx, input)
	if err != nil {
		return Receipt{}, fmt.Errorf("sns publish: %w", err)
	}
	return Receipt{Transport: config.TransportSNS, MessageID: aws.ToString(out.MessageId)}, nil
}
