package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/options"
)

const objectBackend = "s3"

// Blobs is the byte level object API the ObjectStore runs on.
type Blobs interface {
	Get(ctx context.Context, key string) ([]byte, error) // ErrNotFound when missing
	Put(ctx context.Context, key string, data []byte, contentType string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// ObjectStore keeps encoded batches as objects in one bucket.
type ObjectStore struct {
	blobs Blobs
	codec Codec
}

// NewObjectStore builds a store over blobs. A nil codec stores plain JSON.
func NewObjectStore(blobs Blobs, codec Codec) *ObjectStore {
	if codec == nil {
		codec = JSONCodec{}
	}
	return &ObjectStore{blobs: blobs, codec: codec}
}

// Load implements BatchStore.
func (s *ObjectStore) Load(ctx context.Context, key string) (options.Result, error) {
	data, err := s.blobs.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return options.Empty(), nil
	}
	if err != nil {
		return loadFailed(objectBackend, key, err)
	}
	return decodeResult(objectBackend, key, s.codec, data)
}

// LoadDataset implements DatasetLoader by reading the object store key.
func (s *ObjectStore) LoadDataset(ctx context.Context, keys options.DatasetKeys) (options.Result, error) {
	return s.Load(ctx, keys.S3)
}

// Save implements BatchStore.
func (s *ObjectStore) Save(ctx context.Context, key string, batch options.Batch) error {
	data, err := s.codec.Encode(batch)
	if err != nil {
		return &CacheError{Backend: objectBackend, Op: "encode", Key: key, Err: err}
	}
	if err := s.blobs.Put(ctx, key, data, contentType(s.codec)); err != nil {
		return &CacheError{Backend: objectBackend, Op: "save", Key: key, Err: err}
	}
	logx.WithContext(ctx).Debugf("store: s3 saved key=%s rows=%d bytes=%d", key, len(batch), len(data))
	return nil
}

// Raw returns the stored bytes of key, or ErrNotFound.
func (s *ObjectStore) Raw(ctx context.Context, key string) ([]byte, error) {
	return s.blobs.Get(ctx, key)
}

// List implements Lister.
func (s *ObjectStore) List(ctx context.Context, prefix string) ([]string, error) {
	keys, err := s.blobs.List(ctx, prefix)
	if err != nil {
		return nil, &CacheError{Backend: objectBackend, Op: "list", Key: prefix, Err: err}
	}
	return keys, nil
}

func contentType(c Codec) string {
	switch c.Name() {
	case "json":
		return "application/json"
	case "msgpack":
		return "application/msgpack"
	default:
		return "application/octet-stream"
	}
}

// MinioConfig addresses an S3 compatible bucket.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	Secure    bool
}

// MinioBlobs implements Blobs with minio-go.
type MinioBlobs struct {
	client *minio.Client
	bucket string
	region string
}

// NewMinioBlobs connects to the endpoint and ensures the bucket exists.
func NewMinioBlobs(ctx context.Context, cfg MinioConfig) (*MinioBlobs, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("store: s3 bucket is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("store: s3 client: %w", err)
	}
	b := &MinioBlobs{client: client, bucket: cfg.Bucket, region: cfg.Region}
	if err := b.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *MinioBlobs) ensureBucket(ctx context.Context) error {
	exists, err := b.client.BucketExists(ctx, b.bucket)
	if err != nil {
		return fmt.Errorf("store: s3 bucket %s: %w", b.bucket, err)
	}
	if exists {
		return nil
	}
	if err := b.client.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{Region: b.region}); err != nil {
		return fmt.Errorf("store: s3 create bucket %s: %w", b.bucket, err)
	}
	logx.WithContext(ctx).Infof("store: created s3 bucket %s", b.bucket)
	return nil
}

// Get implements Blobs.
func (b *MinioBlobs) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, notFoundOr(err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return data, nil
}

// Put implements Blobs.
func (b *MinioBlobs) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := b.client.PutObject(ctx, b.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	return err
}

// List implements Blobs.
func (b *MinioBlobs) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for obj := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

func notFoundOr(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return err
}
