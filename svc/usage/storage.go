package usage

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/cenety/saascore/pkg/limits"
)

const mebibyte = 1 << 20

// ObjectLister is the part of the S3 API the storage counter needs.
type ObjectLister interface {
	s3.ListObjectsV2APIClient
}

// StorageConfig configures the bucket tenant uploads live in.
type StorageConfig struct {
	Bucket         string `env:"S3_BUCKET"`
	Region         string `env:"S3_REGION" envDefault:"us-east-1"`
	AccessKeyID    string `env:"S3_ACCESS_KEY_ID"`
	SecretKey      string `env:"S3_SECRET_KEY"`
	Endpoint       string `env:"S3_ENDPOINT"` // S3-compatible services such as MinIO
	ForcePathStyle bool   `env:"S3_FORCE_PATH_STYLE" envDefault:"false"`
}

// NewS3Client builds a client from cfg. Static credentials are used when
// both keys are set, otherwise the default AWS chain applies.
func NewS3Client(ctx context.Context, cfg StorageConfig) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	}), nil
}

// StorageCounter sums object sizes under the tenant's prefix and reports
// whole MiB, rounded up.
type StorageCounter struct {
	client ObjectLister
	bucket string
}

func NewStorageCounter(client ObjectLister, bucket string) *StorageCounter {
	return &StorageCounter{client: client, bucket: bucket}
}

func (c *StorageCounter) Count(ctx context.Context, tenantID uuid.UUID, _ limits.Window) (int64, error) {
	p := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(tenantID.String() + "/"),
	})

	var bytes int64
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			var apiErr smithy.APIError
			if errors.As(err, &apiErr) {
				return 0, fmt.Errorf("%w: s3 %s: %s", ErrFailedToCount, apiErr.ErrorCode(), apiErr.ErrorMessage())
			}
			return 0, errors.Join(ErrFailedToCount, err)
		}
		for _, obj := range page.Contents {
			bytes += aws.ToInt64(obj.Size)
		}
	}
	return (bytes + mebibyte - 1) / mebibyte, nil
}
