package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config contains S3 storage configuration
type S3Config struct {
	Endpoint        string // Optional: Custom endpoint for MinIO or DigitalOcean Spaces
	Region          string // AWS region or DO region (e.g., "us-east-1" or "sfo3")
	Bucket          string // S3 bucket name
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool   // Use path-style addressing (required for MinIO)
	Prefix          string // Optional key prefix inside the bucket
}

// S3Storage handles S3-compatible object storage operations
type S3Storage struct {
	client *s3.Client
	bucket string
	config S3Config
	now    func() time.Time
}

// NewS3Storage creates a new S3Storage instance
func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("S3 region is required")
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("S3 credentials are required")
	}

	awsConfig, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Storage{
		client: client,
		bucket: cfg.Bucket,
		config: cfg,
		now:    time.Now,
	}, nil
}

// Save uploads data under [prefix/]reports/YYYY/MM/name.ext and returns the key.
// Keys embed the report ID, so existing objects are overwritten rather than renamed.
func (s *S3Storage) Save(ctx context.Context, data []byte, name, contentType string) (string, error) {
	ext := extensionFromContentType(contentType)
	if ext == "" {
		ext = ".json"
	}
	key := s.key(path.Join(datedDir(s.now()), name+ext))

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(ContentType(key)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload report to S3: %w", err)
	}
	return key, nil
}

// Read downloads an object
func (s *S3Storage) Read(ctx context.Context, key string) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get report from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read report data from S3: %w", err)
	}
	return data, nil
}

// Delete removes an object
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete report from S3: %w", err)
	}
	return nil
}

// GetFullPath returns the s3:// URI of a key
func (s *S3Storage) GetFullPath(key string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, key)
}

func (s *S3Storage) key(rel string) string {
	prefix := strings.Trim(s.config.Prefix, "/")
	if prefix == "" {
		return rel
	}
	return prefix + "/" + rel
}
