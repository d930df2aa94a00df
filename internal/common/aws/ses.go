// internal/common/aws/ses.go
package aws

import (
	"context"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
)

// SESClient is the email transport used by the ses channel sender.
type SESClient struct {
	client *ses.Client
}

func NewSESClient(ctx context.Context, region string) (*SESClient, error) {
	cfg, err := LoadConfig(ctx, region)
	if err != nil {
		return nil, err
	}
	return NewSESClientFromConfig(cfg), nil
}

func NewSESClientFromConfig(cfg awsv2.Config) *SESClient {
	return &SESClient{client: ses.NewFromConfig(cfg)}
}

func (s *SESClient) SendEmail(ctx context.Context, input *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	return s.client.SendEmail(ctx, input, optFns...)
}
