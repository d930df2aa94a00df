// internal/common/aws/aws.go
package aws

import (
	"context"
	"fmt"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
)

// LoadConfig resolves credentials from the default chain for the given region.
func LoadConfig(ctx context.Context, region string) (awsv2.Config, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return awsv2.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}
