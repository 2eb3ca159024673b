// Package s3 keeps parquet query-result exports in an S3-compatible bucket.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/duckmesh/mesquery/internal/storage"
)

// rowsMetaKey is sent as the X-Amz-Meta-Rows header.
const rowsMetaKey = "Rows"

type Config struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

// objectAPI is the part of *minio.Client the export store calls.
type objectAPI interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
}

// Store writes exports into one bucket under an optional prefix.
type Store struct {
	api    objectAPI
	bucket string
	prefix string
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New("export bucket is required")
	}
	host, secure, err := endpointHost(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	region := strings.TrimSpace(cfg.Region)
	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	store := newStore(client, bucket, cfg.Prefix)
	if cfg.AutoCreateBucket {
		if err := store.ensureBucket(ctx, region); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func newStore(api objectAPI, bucket, prefix string) *Store {
	return &Store{
		api:    api,
		bucket: bucket,
		prefix: strings.Trim(path.Clean("/"+strings.TrimSpace(prefix)), "/"),
	}
}

func (s *Store) Bucket() string {
	return s.bucket
}

// PutExport uploads one parquet export. The row count travels with the
// object as user metadata so Stat can report it later.
func (s *Store) PutExport(ctx context.Context, export storage.Export) (storage.ObjectInfo, error) {
	object, err := s.objectName(export.Key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	if len(export.Body) == 0 {
		return storage.ObjectInfo{}, fmt.Errorf("export %q has no body", export.Key)
	}

	uploaded, err := s.api.PutObject(ctx, s.bucket, object, bytes.NewReader(export.Body), int64(len(export.Body)), minio.PutObjectOptions{
		ContentType:  storage.ParquetContentType,
		UserMetadata: map[string]string{rowsMetaKey: strconv.Itoa(export.Rows)},
	})
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("put export %q: %w", object, classify(err))
	}
	return storage.ObjectInfo{
		Key:          export.Key,
		Size:         uploaded.Size,
		Rows:         export.Rows,
		ContentType:  storage.ParquetContentType,
		ETag:         uploaded.ETag,
		LastModified: uploaded.LastModified,
	}, nil
}

func (s *Store) Stat(ctx context.Context, key string) (storage.ObjectInfo, error) {
	object, err := s.objectName(key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	info, err := s.api.StatObject(ctx, s.bucket, object, minio.StatObjectOptions{})
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("stat export %q: %w", object, classify(err))
	}
	return storage.ObjectInfo{
		Key:          key,
		Size:         info.Size,
		Rows:         rowsFromMetadata(info.UserMetadata),
		ContentType:  info.ContentType,
		ETag:         info.ETag,
		LastModified: info.LastModified,
	}, nil
}

// HealthCheck verifies the export bucket is reachable and exists.
func (s *Store) HealthCheck(ctx context.Context) error {
	exists, err := s.api.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", s.bucket, classify(err))
	}
	if !exists {
		return fmt.Errorf("bucket %q does not exist", s.bucket)
	}
	return nil
}

func (s *Store) ensureBucket(ctx context.Context, region string) error {
	exists, err := s.api.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", s.bucket, classify(err))
	}
	if exists {
		return nil
	}
	if err := s.api.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("create bucket %q: %w", s.bucket, classify(err))
	}
	return nil
}

// objectName validates an export key and places it under the prefix.
func (s *Store) objectName(key string) (string, error) {
	if _, err := storage.ParseExportKey(key); err != nil {
		return "", err
	}
	if s.prefix == "" {
		return key, nil
	}
	return s.prefix + "/" + key, nil
}

func rowsFromMetadata(meta map[string]string) int {
	for k, v := range meta {
		if strings.EqualFold(k, rowsMetaKey) || strings.EqualFold(k, "X-Amz-Meta-"+rowsMetaKey) {
			rows, err := strconv.Atoi(v)
			if err != nil {
				return 0
			}
			return rows
		}
	}
	return 0
}

// endpointHost accepts host:port or a URL. An https URL forces TLS.
func endpointHost(raw string, useSSL bool) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, errors.New("export endpoint is required")
	}
	if !strings.Contains(raw, "://") {
		return raw, useSSL, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("parse export endpoint: %w", err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("export endpoint %q has no host", raw)
	}
	return u.Host, useSSL || u.Scheme == "https", nil
}

func classify(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return fmt.Errorf("%w: %v", storage.ErrObjectNotFound, err)
	}
	return err
}
