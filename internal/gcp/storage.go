package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// NewStorageClient creates a Cloud Storage client using ambient credentials.
func NewStorageClient(ctx context.Context) (*storage.Client, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return client, nil
}

// BucketStore writes extraction documents to a single bucket.
type BucketStore struct {
	bucket *storage.BucketHandle
	name   string
	logger *slog.Logger
}

// NewBucketStore returns a store writing to the named bucket.
func NewBucketStore(client *storage.Client, bucket string, logger *slog.Logger) (*BucketStore, error) {
	if bucket == "" {
		return nil, errors.New("bucket name must be provided")
	}
	return &BucketStore{bucket: client.Bucket(bucket), name: bucket, logger: logger}, nil
}

// Put writes body to objectName as JSON, replacing any existing object.
func (s *BucketStore) Put(ctx context.Context, objectName string, body []byte) error {
	writer := s.bucket.Object(objectName).NewWriter(ctx)
	writer.ContentType = "application/json"

	if _, err := io.Copy(writer, bytes.NewReader(body)); err != nil {
		_ = writer.Close()
		s.logger.Error("Failed to copy content to GCS object", "bucket", s.name, "object", objectName, "error", err)
		return fmt.Errorf("failed to write to GCS: %w", describe(err))
	}
	if err := writer.Close(); err != nil {
		s.logger.Error("Failed to close GCS writer", "bucket", s.name, "object", objectName, "error", err)
		return fmt.Errorf("failed to finalize GCS write: %w", describe(err))
	}
	s.logger.Info("Saved object to GCS.", "uri", fmt.Sprintf("gs://%s/%s", s.name, objectName), "bytes", len(body))
	return nil
}

// describe adds a hint for the googleapi errors an operator can act on.
func describe(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}
	switch gerr.Code {
	case http.StatusForbidden:
		return fmt.Errorf("permission denied on bucket (check the service account's storage.objects.create role): %w", err)
	case http.StatusNotFound:
		return fmt.Errorf("bucket does not exist: %w", err)
	default:
		return err
	}
}
