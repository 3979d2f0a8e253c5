// Package awsboot builds the AWS SDK clients used by optional CLI features:
// S3 artifact delivery, DynamoDB history and SSM credential lookup. Clients
// are created only when a command needs them.
package awsboot

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/noteppt-cli/internal/delivery"
	"github.com/fpang/noteppt-cli/internal/history"
)

// Settings selects the AWS region and shared-config profile. Empty values
// fall back to the SDK's default resolution chain.
type Settings struct {
	Region  string
	Profile string
}

// LoadConfig loads the AWS config for s.
func LoadConfig(ctx context.Context, s Settings) (aws.Config, error) {
	start := time.Now()
	var opts []func(*awsconfig.LoadOptions) error
	if s.Region != "" {
		opts = append(opts, awsconfig.WithRegion(s.Region))
	}
	if s.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(s.Profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}
	log.Debug().Str("region", cfg.Region).Dur("elapsed", time.Since(start)).Msg("AWS config loaded")
	return cfg, nil
}

// S3Sink creates an S3 delivery sink for bucket.
func S3Sink(cfg aws.Config, bucket, prefix string, presignTTL time.Duration) delivery.S3Sink {
	client := s3.NewFromConfig(cfg)
	return delivery.S3Sink{
		Client:     client,
		Presigner:  s3.NewPresignClient(client),
		Bucket:     bucket,
		Prefix:     prefix,
		PresignTTL: presignTTL,
	}
}

// SSM creates an SSM client for parameter lookups.
func SSM(cfg aws.Config) *ssm.Client {
	return ssm.NewFromConfig(cfg)
}

// DynamoHistory creates a DynamoDB-backed history store for table.
func DynamoHistory(cfg aws.Config, table string) *history.DynamoStore {
	return history.NewDynamoStore(dynamodb.NewFromConfig(cfg), table)
}
