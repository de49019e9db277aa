// Package s3 хранит изображения проектов в S3-совместимом бакете за CDN изображений.
package s3

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"arcfolio/internal/storage/blob"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
)

type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
	UsePathStyle    bool
}

type Store struct {
	client        *s3.Client
	uploader      *manager.Uploader
	bucket        string
	publicBaseURL string
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	const op = "storage.blob.s3.New"

	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%s: bucket is required", op)
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		// повторы решает вызывающий
		awsconfig.WithRetryMaxAttempts(1),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	publicBaseURL := cfg.PublicBaseURL
	if publicBaseURL == "" {
		publicBaseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}

	return NewFromClient(client, cfg.Bucket, publicBaseURL), nil
}

func NewFromClient(client *s3.Client, bucket, publicBaseURL string) *Store {
	return &Store{
		client:        client,
		uploader:      manager.NewUploader(client),
		bucket:        bucket,
		publicBaseURL: publicBaseURL,
	}
}

// Upload кладёт объект под ключом <folder>/<uuid><ext>; ключ и есть public_id
func (s *Store) Upload(ctx context.Context, file blob.File, folder string, transforms []blob.Transform) (blob.UploadResult, error) {
	const op = "storage.blob.s3.Upload"

	key := path.Join(strings.Trim(folder, "/"), uuid.NewString()+file.Extension)

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          file.Reader(),
		ContentType:   aws.String(file.ContentType),
		ContentLength: aws.Int64(file.Size()),
		Metadata: map[string]string{
			"original-filename": file.Filename,
		},
	})
	if err != nil {
		return blob.UploadResult{}, &blob.UploadError{
			Filename: file.Filename,
			Err:      fmt.Errorf("%s: %w", op, err),
		}
	}

	return blob.UploadResult{
		URL:      blob.DeliveryURL(s.publicBaseURL, key, transforms),
		PublicID: key,
	}, nil
}

func (s *Store) Delete(ctx context.Context, publicID string) error {
	const op = "storage.blob.s3.Delete"

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(publicID),
	})
	if err == nil {
		return nil
	}

	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return fmt.Errorf("%s: %w", op, blob.ErrNotFound)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%s: %w", op, blob.ErrNotFound)
		}
	}

	return fmt.Errorf("%s: %w: %v", op, blob.ErrTransient, err)
}
