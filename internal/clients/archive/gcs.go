package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/cibics-tracking-backend/internal/pkg/logger"
)

type gcsArchive struct {
	log    *logger.Logger
	client *storage.Client
	bucket string
	prefix string
}

func NewGCSArchive(ctx context.Context, cfg Config, log *logger.Logger) (Archive, error) {
	opts := clientOptions(cfg)
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &gcsArchive{
		log:    log.With("service", "GCSArchive"),
		client: client,
		bucket: strings.TrimSpace(cfg.Bucket),
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func clientOptions(cfg Config) []option.ClientOption {
	opts := []option.ClientOption{}
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	return opts
}

func (a *gcsArchive) object(key string) string {
	if a.prefix == "" {
		return key
	}
	return a.prefix + "/" + key
}

func (a *gcsArchive) Put(ctx context.Context, key string, data []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := a.client.Bucket(a.bucket).Object(a.object(key)).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

func (a *gcsArchive) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	r, err := a.client.Bucket(a.bucket).Object(a.object(key)).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open GCS object %q: %w", key, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (a *gcsArchive) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	err := a.client.Bucket(a.bucket).Object(a.object(key)).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete GCS object %q: %w", key, err)
	}
	return nil
}

func (a *gcsArchive) Location(key string) string {
	return "gs://" + a.bucket + "/" + a.object(key)
}
