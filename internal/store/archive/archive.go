// Package archive uploads trade ledgers to an S3-compatible bucket.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"spread-backtester/internal/models"
	"spread-backtester/internal/store/csvfiles"
)

// Config describes the target bucket. Endpoint is empty for AWS S3 and set
// for MinIO, R2 and other compatible providers.
type Config struct {
	Endpoint       string
	Region         string
	Bucket         string
	Prefix         string
	AccessKey      string
	SecretKey      string
	UseSSL         bool
	ForcePathStyle bool
}

// Uploader is the subset of the S3 upload manager the archive needs.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Archive writes one CSV object per run.
type Archive struct {
	uploader Uploader
	bucket   string
	prefix   string
}

// New builds an S3 client from cfg.
func New(ctx context.Context, cfg Config) (*Archive, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive: bucket name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("archive: region is required")
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("archive: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(normaliseEndpoint(cfg.Endpoint, cfg.UseSSL))
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return NewWithUploader(manager.NewUploader(client), cfg.Bucket, cfg.Prefix), nil
}

// NewWithUploader wraps an existing uploader.
func NewWithUploader(u Uploader, bucket, prefix string) *Archive {
	return &Archive{uploader: u, bucket: bucket, prefix: prefix}
}

// Key is the object key of a run's ledger.
func (a *Archive) Key(run models.BacktestRun) string {
	return path.Join(a.prefix, run.Ticker, csvfiles.LedgerFileName(run.Date, run.Model))
}

// SaveLedger uploads the ledger as CSV.
func (a *Archive) SaveLedger(ctx context.Context, run models.BacktestRun, ledger models.Ledger) error {
	var buf bytes.Buffer
	if err := csvfiles.EncodeLedger(&buf, ledger); err != nil {
		return err
	}

	key := a.Key(run)
	_, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("text/csv"),
		Metadata: map[string]string{
			"run-id": run.ID,
			"model":  fmt.Sprintf("%d", run.Model),
		},
	})
	if err != nil {
		return fmt.Errorf("archive: upload %s: %w", key, err)
	}
	return nil
}

func normaliseEndpoint(endpoint string, useSSL bool) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}
