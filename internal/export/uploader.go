package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sschnei8/predictionMarketExploro/internal/config"
	"github.com/sschnei8/predictionMarketExploro/internal/metrics"
)

// ParquetContentType is set on every uploaded object.
const ParquetContentType = "application/vnd.apache.parquet"

// ErrExport marks a failed upload.
var ErrExport = errors.New("export failed")

// Object describes an uploaded file.
type Object struct {
	Bucket string
	Key    string
	Size   int64
	ETag   string
}

// Uploader copies local files into a bucket under a key prefix.
type Uploader struct {
	client *minio.Client
	bucket string
	prefix string
	region string
	logger *slog.Logger
}

// NewUploader creates an Uploader from export settings. It does not contact
// the server; EnsureBucket does.
func NewUploader(cfg config.ExportConfig, logger *slog.Logger) (*Uploader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}
	return &Uploader{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		region: cfg.Region,
		logger: logger,
	}, nil
}

// Bucket returns the target bucket.
func (u *Uploader) Bucket() string { return u.bucket }

// EnsureBucket creates the bucket when it does not exist.
func (u *Uploader) EnsureBucket(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("%w: check bucket %s: %w", ErrExport, u.bucket, err)
	}
	if exists {
		return nil
	}
	if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{Region: u.region}); err != nil {
		return fmt.Errorf("%w: create bucket %s: %w", ErrExport, u.bucket, err)
	}
	u.logger.Info("created bucket", "bucket", u.bucket)
	return nil
}

// Key returns the object key a local file is stored under.
func (u *Uploader) Key(localPath string) string {
	return ObjectKey(u.prefix, localPath)
}

// ObjectKey joins prefix and the base name of localPath.
func ObjectKey(prefix, localPath string) string {
	name := filepath.Base(localPath)
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// Upload copies localPath into the bucket. meta is stored as user metadata.
func (u *Uploader) Upload(ctx context.Context, localPath string, meta map[string]string) (Object, error) {
	start := time.Now()
	key := u.Key(localPath)

	info, err := u.client.FPutObject(ctx, u.bucket, key, localPath, minio.PutObjectOptions{
		ContentType:  ParquetContentType,
		UserMetadata: meta,
	})
	if err != nil {
		metrics.ExportsTotal.WithLabelValues("failure").Inc()
		return Object{}, fmt.Errorf("%w: upload %s to %s/%s: %w", ErrExport, localPath, u.bucket, key, err)
	}

	metrics.ExportsTotal.WithLabelValues("success").Inc()
	metrics.ExportBytesTotal.Add(float64(info.Size))
	u.logger.Info("uploaded file",
		"bucket", u.bucket,
		"key", key,
		"bytes", info.Size,
		"duration", time.Since(start),
	)
	return Object{Bucket: u.bucket, Key: key, Size: info.Size, ETag: info.ETag}, nil
}
