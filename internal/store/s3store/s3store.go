// Package s3store stores artifacts as objects in an S3-compatible bucket
// through minio-go. A single PUT is atomic, so readers never see partial
// objects. Publish is a conditional PUT with If-None-Match: *, so among
// racing publishers exactly one creates the object and the rest get
// store.ErrAlreadyExists. The server must support conditional writes
// (AWS S3 and MinIO releases since 2024 do).
package s3store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ahrav/go-scriptbench/internal/domain"
	"github.com/ahrav/go-scriptbench/internal/store"
)

const (
	ext         = ".json"
	contentType = "application/json"
)

// Backend is an object-store backend.
type Backend struct {
	client *minio.Client
	bucket string
	region string
	prefix string

	bucketOnce sync.Once
	bucketErr  error
}

var _ store.Backend = (*Backend)(nil)

// New wraps an existing minio client.
func New(client *minio.Client, bucket, region, prefix string) *Backend {
	return &Backend{client: client, bucket: bucket, region: region, prefix: prefix}
}

// Open builds a client from cfg. Access keys are resolved through secrets.
func Open(cfg store.S3Config, secrets store.Secrets) (*Backend, error) {
	var access, secret string
	if secrets != nil {
		access, _ = secrets.Lookup(cfg.AccessKeyRef)
		secret, _ = secrets.Lookup(cfg.SecretKeyRef)
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}
	return New(client, cfg.Bucket, cfg.Region, cfg.Prefix), nil
}

func (b *Backend) ensureBucket(ctx context.Context) error {
	b.bucketOnce.Do(func() {
		exists, err := b.client.BucketExists(ctx, b.bucket)
		if err != nil {
			b.bucketErr = fmt.Errorf("check bucket %s: %w", b.bucket, err)
			return
		}
		if exists {
			return
		}
		if err := b.client.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{Region: b.region}); err != nil {
			resp := minio.ToErrorResponse(err)
			if resp.Code == "BucketAlreadyOwnedByYou" || resp.Code == "BucketAlreadyExists" {
				return
			}
			b.bucketErr = fmt.Errorf("create bucket %s: %w", b.bucket, err)
		}
	})
	return b.bucketErr
}

func (b *Backend) object(key domain.UnitKey) string { return b.prefix + key.String() + ext }

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchBucket"
}

// isAlreadyExists matches a failed If-None-Match precondition. S3 answers
// 409 ConditionalRequestConflict when a competing conditional write is
// still in flight.
func isAlreadyExists(err error) bool {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "PreconditionFailed", "ConditionalRequestConflict":
		return true
	}
	return resp.StatusCode == http.StatusPreconditionFailed
}

func (b *Backend) Exists(ctx context.Context, key domain.UnitKey) (bool, error) {
	if err := b.ensureBucket(ctx); err != nil {
		return false, err
	}
	_, err := b.client.StatObject(ctx, b.bucket, b.object(key), minio.StatObjectOptions{})
	switch {
	case err == nil:
		return true, nil
	case isNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

func (b *Backend) Get(ctx context.Context, key domain.UnitKey) ([]byte, error) {
	if err := b.ensureBucket(ctx); err != nil {
		return nil, err
	}
	obj, err := b.client.GetObject(ctx, b.bucket, b.object(key), minio.GetObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	defer func() { _ = obj.Close() }()

	// GetObject is lazy; a missing key surfaces on the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (b *Backend) Publish(ctx context.Context, key domain.UnitKey, data []byte) error {
	exists, err := b.Exists(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		return store.ErrAlreadyExists
	}

	opts := minio.PutObjectOptions{ContentType: contentType}
	opts.SetMatchETagExcept("*")
	_, err = b.client.PutObject(ctx, b.bucket, b.object(key), bytes.NewReader(data), int64(len(data)), opts)
	switch {
	case err == nil:
		return nil
	case isAlreadyExists(err):
		return store.ErrAlreadyExists
	default:
		return fmt.Errorf("put %s: %w", b.object(key), err)
	}
}

func (b *Backend) List(ctx context.Context, kind domain.UnitKind) ([]domain.UnitKey, error) {
	if err := b.ensureBucket(ctx); err != nil {
		return nil, err
	}
	prefix := b.prefix + string(kind) + "/"
	var keys []domain.UnitKey
	for info := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if info.Err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, info.Err)
		}
		if !strings.HasSuffix(info.Key, ext) {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(info.Key, b.prefix), ext)
		key, err := domain.ParseUnitKey(name)
		if err != nil || key.Kind != kind {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (b *Backend) Close() error { return nil }
