package archive

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Connection settings for the object store.
type Config struct {
	Endpoint  string // Host and optional port, without scheme.
	Bucket    string // Destination bucket.
	Region    string // Bucket region. Optional.
	Prefix    string // Key prefix for every object.
	AccessKey string // Access key ID.
	SecretKey string // Secret access key.
	Secure    bool   // Use TLS.
}

// Checks that the required settings are present.
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("%w: endpoint is required", ErrConfig)
	}
	if c.Bucket == "" {
		return fmt.Errorf("%w: bucket is required", ErrConfig)
	}
	return nil
}

// Subset of [minio.Client] used by the archiver.
type objectClient interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Uploaded object.
type Object struct {
	Key  string // Object key.
	Size int64  // Bytes uploaded.
	ETag string // ETag reported by the store.
}

// Uploads files to a bucket.
type Archiver struct {
	client objectClient // Object store client.
	bucket string       // Destination bucket.
	region string       // Region used when creating the bucket.
	prefix string       // Key prefix.
}

// Creates an archiver connected to the configured endpoint.
func New(cfg Config) (*Archiver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return newArchiver(client, cfg), nil
}

// Creates an archiver over an existing client.
func newArchiver(client objectClient, cfg Config) *Archiver {
	return &Archiver{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.Region,
		prefix: cfg.Prefix,
	}
}

// Creates the bucket if it does not exist.
func (a *Archiver) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("%w: bucket %s: %w", ErrUpload, a.bucket, err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{Region: a.region}); err != nil {
		return fmt.Errorf("%w: create bucket %s: %w", ErrUpload, a.bucket, err)
	}
	return nil
}

// Uploads files under "<prefix>/<key>/<basename>".
//
// Stops at the first failure and returns the objects uploaded so far.
func (a *Archiver) Upload(ctx context.Context, key string, files ...string) ([]Object, error) {
	var objects []Object
	for _, f := range files {
		name := path.Join(a.prefix, key, filepath.Base(f))
		info, err := a.client.FPutObject(ctx, a.bucket, name, f, minio.PutObjectOptions{
			ContentType: contentType(f),
		})
		if err != nil {
			return objects, fmt.Errorf("%w: %s: %w", ErrUpload, name, err)
		}
		slog.Debug("uploaded", "bucket", a.bucket, "key", name, "size", info.Size)
		objects = append(objects, Object{Key: name, Size: info.Size, ETag: info.ETag})
	}
	return objects, nil
}

// Returns the content type for an artifact by extension.
func contentType(file string) string {
	switch filepath.Ext(file) {
	case ".jsonl":
		return "application/x-ndjson"
	case ".json":
		return "application/json"
	case ".tar":
		return "application/x-tar"
	case ".log", ".txt":
		return "text/plain; charset=utf-8"
	}
	return "application/octet-stream"
}
