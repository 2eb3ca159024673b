//go:build integration

package s3

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/duckmesh/mesquery/internal/storage"
)

func TestStorePutExportAndStatAgainstMinIO(t *testing.T) {
	endpoint := envOr("MESQUERY_TEST_S3_ENDPOINT", "")
	if endpoint == "" {
		t.Skip("MESQUERY_TEST_S3_ENDPOINT is not set")
	}

	cfg := Config{
		Endpoint:         endpoint,
		Region:           envOr("MESQUERY_TEST_S3_REGION", "us-east-1"),
		Bucket:           envOr("MESQUERY_TEST_S3_BUCKET", "mesquery-it"),
		AccessKeyID:      envOr("MESQUERY_TEST_S3_ACCESS_KEY", "minio"),
		SecretAccessKey:  envOr("MESQUERY_TEST_S3_SECRET_KEY", "miniostorage"),
		UseSSL:           false,
		Prefix:           "integration-tests",
		AutoCreateBucket: true,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	store, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}

	key, err := storage.BuildExportKey(time.Now(), "roundtrip")
	if err != nil {
		t.Fatalf("BuildExportKey() error = %v", err)
	}
	payload := []byte("mesquery-integration")
	if _, err := store.PutExport(ctx, storage.Export{Key: key, Body: payload, Rows: 3}); err != nil {
		t.Fatalf("PutExport() error = %v", err)
	}

	stat, err := store.Stat(ctx, key)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if stat.Size != int64(len(payload)) || stat.Rows != 3 || stat.ContentType != storage.ParquetContentType {
		t.Fatalf("Stat() = %+v", stat)
	}
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
