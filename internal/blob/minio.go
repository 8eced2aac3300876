package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/fieldform/inspection-api/internal/config"
)

type MinioOpts func(c *minioConfig)

type minioConfig struct {
	endpoint        string
	bucket          string
	accessKey       string
	secretAccessKey string
	useSSL          bool
}

func WithEndpoint(endpoint string) MinioOpts {
	return func(c *minioConfig) {
		c.endpoint = endpoint
	}
}

func WithBucket(bucket string) MinioOpts {
	return func(c *minioConfig) {
		c.bucket = bucket
	}
}

func WithCredentials(accessKey, secretAccessKey string) MinioOpts {
	return func(c *minioConfig) {
		c.accessKey = accessKey
		c.secretAccessKey = secretAccessKey
	}
}

func WithSSL(useSSL bool) MinioOpts {
	return func(c *minioConfig) {
		c.useSSL = useSSL
	}
}

func newConfig(opts ...MinioOpts) *minioConfig {
	cfg := &minioConfig{
		useSSL: false,
	}

	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

type MinioStore struct {
	cfg    *minioConfig
	client *minio.Client
}

var _ Store = (*MinioStore)(nil)

func NewMinioStore(opts ...MinioOpts) (*MinioStore, error) {
	cfg := newConfig(opts...)

	minioClient, err := minio.New(cfg.endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.accessKey, cfg.secretAccessKey, ""),
		Secure: cfg.useSSL,
	})
	if err != nil {
		return nil, err
	}

	return &MinioStore{cfg: cfg, client: minioClient}, nil
}

// NewMinioStoreFromConfig returns nil without error when no blob endpoint is
// configured; callers treat a nil store as "attachments disabled".
func NewMinioStoreFromConfig(cfg *config.Config) (*MinioStore, error) {
	if cfg.Blob.Endpoint == "" {
		return nil, nil
	}
	return NewMinioStore(
		WithEndpoint(cfg.Blob.Endpoint),
		WithBucket(cfg.Blob.Bucket),
		WithCredentials(cfg.Blob.AccessKey, cfg.Blob.SecretKey),
		WithSSL(cfg.Blob.UseSSL),
	)
}

func (s *MinioStore) Put(ctx context.Context, data []byte, contentType string) (*StoredObject, error) {
	objectName := fmt.Sprintf("reports/%s", uuid.New().String())

	_, err := s.client.PutObject(ctx, s.cfg.bucket, objectName,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return nil, err
	}

	return &StoredObject{
		Ref:           objectName,
		PublicLocator: fmt.Sprintf("%s/%s/%s", s.client.EndpointURL().String(), s.cfg.bucket, objectName),
	}, nil
}

func (s *MinioStore) Get(ctx context.Context, ref string) ([]byte, error) {
	object, err := s.client.GetObject(ctx, s.cfg.bucket, ref, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer object.Close()
	return io.ReadAll(object)
}

func (s *MinioStore) Delete(ctx context.Context, ref string) error {
	return s.client.RemoveObject(ctx, s.cfg.bucket, ref, minio.RemoveObjectOptions{})
}
