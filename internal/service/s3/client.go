package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

const (
	defaultTimeout  = 30 * time.Second
	transferTimeout = 10 * time.Minute
)

// Client предоставляет методы для работы с S3-совместимым хранилищем блобов.
type Client struct {
	client *s3.Client
	bucket string
}

func NewClient(conf *Config) (*Client, error) {
	if conf == nil {
		return nil, fmt.Errorf("configuration is required")
	}

	creds := aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
		conf.AccessKeyID,
		conf.SecretAccessKey,
		"",
	))

	opts := s3.Options{
		Region:           conf.Region,
		Credentials:      creds,
		RetryMode:        aws.RetryModeAdaptive,
		RetryMaxAttempts: 3,
	}
	if conf.Endpoint != "" {
		opts.BaseEndpoint = aws.String(conf.Endpoint)
		opts.UsePathStyle = true
	}
	client := s3.New(opts)

	s3Client := &Client{
		client: client,
		bucket: conf.Bucket,
	}

	// Проверяем доступность бакета
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	if _, err := s3Client.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(conf.Bucket),
	}); err != nil {
		return nil, fmt.Errorf("unable to access bucket %s: %w", conf.Bucket, err)
	}

	return s3Client, nil
}

func (h *Client) Write(ctx context.Context, blobID string, data io.Reader) error {
	if blobID == "" {
		return fmt.Errorf("blob id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, transferTimeout)
	defer cancel()

	_, err := h.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(blobID),
		Body:   data,
	})
	if err != nil {
		return fmt.Errorf("failed to upload blob to S3: %w", err)
	}
	return nil
}

func (h *Client) GetObject(ctx context.Context, blobID string) (Object, error) {
	result, err := h.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(blobID),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("blob not found: %s", blobID)
		}
		return nil, fmt.Errorf("failed to get blob from S3: %w", err)
	}

	obj := &s3Object{ReadCloser: result.Body}
	if result.ContentLength != nil {
		obj.contentLength = *result.ContentLength
	}
	if result.ContentType != nil {
		obj.contentType = *result.ContentType
	}
	return obj, nil
}

// Copy дублирует блоб серверным CopyObject и возвращает id новой копии.
func (h *Client) Copy(ctx context.Context, blobID string) (string, error) {
	if blobID == "" {
		return "", fmt.Errorf("blob id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, transferTimeout)
	defer cancel()

	newID := uuid.New().String()
	_, err := h.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(h.bucket),
		CopySource: aws.String(h.bucket + "/" + blobID),
		Key:        aws.String(newID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to copy blob %s: %w", blobID, err)
	}
	return newID, nil
}

func (h *Client) Remove(ctx context.Context, blobID string) error {
	if blobID == "" {
		return fmt.Errorf("blob id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := h.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(blobID),
	})
	if err != nil {
		return fmt.Errorf("failed to delete blob from S3: %w", err)
	}
	return nil
}

// RemoveMany удаляет набор блобов одним batch-запросом.
func (h *Client) RemoveMany(ctx context.Context, blobIDs []string) error {
	if len(blobIDs) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, transferTimeout)
	defer cancel()

	objects := make([]types.ObjectIdentifier, 0, len(blobIDs))
	for _, id := range blobIDs {
		if id == "" {
			continue
		}
		objects = append(objects, types.ObjectIdentifier{Key: aws.String(id)})
	}
	if len(objects) == 0 {
		return nil
	}

	_, err := h.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(h.bucket),
		Delete: &types.Delete{
			Objects: objects,
			Quiet:   aws.Bool(true),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete blobs from S3: %w", err)
	}
	return nil
}

// WriteToFile выгружает блоб в локальный файл, создавая каталоги по пути.
func (h *Client) WriteToFile(ctx context.Context, blobID string, path string) error {
	obj, err := h.GetObject(ctx, blobID)
	if err != nil {
		return err
	}
	defer obj.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directories for %s: %w", path, err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", path, err)
	}
	defer file.Close()

	if _, err := io.Copy(file, obj); err != nil {
		return fmt.Errorf("failed to write blob %s to %s: %w", blobID, path, err)
	}
	return nil
}
