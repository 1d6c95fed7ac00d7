package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/aws/smithy-go/logging"
	"github.com/ohong/poof/internal/config"
)

// S3Service stores blobs in an S3-compatible bucket.
type S3Service struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

func NewS3Service(ctx context.Context, cfg *config.Config) (*S3Service, error) {
	client, err := buildClient(ctx, cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKeyID, cfg.S3SecretAccessKey, cfg.S3UsePathStyle)
	if err != nil {
		return nil, err
	}
	return &S3Service{
		client:    client,
		bucket:    cfg.S3Bucket,
		publicURL: s3PublicBase(cfg),
	}, nil
}

func buildClient(ctx context.Context, endpoint, region, key, secret string, pathStyle bool) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
		awsconfig.WithLogger(logging.NewStandardLogger(os.Stderr)),
	}
	if key != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(key, secret, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = pathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return client, nil
}

func s3PublicBase(cfg *config.Config) string {
	switch {
	case cfg.StoragePublicURL != "":
		return cfg.StoragePublicURL
	case cfg.S3Endpoint != "":
		return fmt.Sprintf("%s/%s", cfg.S3Endpoint, cfg.S3Bucket)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.S3Bucket, cfg.S3Region)
	}
}

// Put uploads with If-None-Match: * so an existing key is never replaced.
func (s *S3Service) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		IfNoneMatch:   aws.String("*"),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "PreconditionFailed" || apiErr.ErrorCode() == "ConditionalRequestConflict") {
			return "", fmt.Errorf("%s: %w", key, ErrBlobExists)
		}
		return "", fmt.Errorf("put s3 object %s: %w", key, err)
	}
	slog.Debug("blob stored", "driver", "s3", "bucket", s.bucket, "key", key, "bytes", len(data))
	return s.PublicURL(key), nil
}

func (s *S3Service) PublicURL(key string) string {
	return joinURL(s.publicURL, key)
}
