package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/quillpad/blogsvc/internal/blog"
	"github.com/quillpad/blogsvc/internal/config"
	"github.com/quillpad/blogsvc/pkg/logger"
)

// Snapshot is the document written for each export.
type Snapshot struct {
	ExportedAt time.Time    `json:"exportedAt"`
	Count      int          `json:"count"`
	Blogs      []*blog.Blog `json:"blogs"`
}

// Exporter writes blog snapshots to a MinIO (or any S3 compatible) bucket.
type Exporter struct {
	client *minio.Client
	bucket string
	expiry time.Duration
	now    func() time.Time
}

// NewExporter builds the client. It does not contact the server; call
// EnsureBucket for that.
func NewExporter(cfg config.MinIOConfig) (*Exporter, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio config missing")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &Exporter{client: mc, bucket: cfg.Bucket, expiry: expiry, now: time.Now}, nil
}

// EnsureBucket creates the bucket unless it already exists.
func (e *Exporter) EnsureBucket(ctx context.Context) error {
	if err := e.client.MakeBucket(ctx, e.bucket, minio.MakeBucketOptions{}); err != nil {
		exists, xerr := e.client.BucketExists(ctx, e.bucket)
		if xerr != nil || !exists {
			return fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return nil
}

func snapshotKey(t time.Time) string {
	return "snapshots/blogs-" + t.UTC().Format("20060102T150405.000Z") + ".json"
}

func encodeSnapshot(blogs []*blog.Blog, at time.Time) ([]byte, error) {
	if blogs == nil {
		blogs = []*blog.Blog{}
	}
	return json.MarshalIndent(Snapshot{ExportedAt: at.UTC(), Count: len(blogs), Blogs: blogs}, "", "  ")
}

// Export uploads blogs as one JSON object and returns its key and a
// presigned download URL.
func (e *Exporter) Export(ctx context.Context, blogs []*blog.Blog) (string, string, error) {
	now := e.now()
	data, err := encodeSnapshot(blogs, now)
	if err != nil {
		return "", "", fmt.Errorf("encode snapshot: %w", err)
	}
	key := snapshotKey(now)
	_, err = e.client.PutObject(ctx, e.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return "", "", fmt.Errorf("upload %s: %w", key, err)
	}
	u, err := e.client.PresignedGetObject(ctx, e.bucket, key, e.expiry, nil)
	if err != nil {
		return "", "", fmt.Errorf("presign %s: %w", key, err)
	}
	logger.Infof("exported %d blogs to %s/%s", len(blogs), e.bucket, key)
	return key, u.String(), nil
}
