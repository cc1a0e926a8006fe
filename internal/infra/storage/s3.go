package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/polaris/gateway/internal/domain/gateway"
)

// S3 is an ObjectStore backed by an S3-compatible bucket (Cloudflare R2, MinIO, or AWS
// S3 itself), grounded on the teacher's uploadask R2Storage adapter. Locate always
// reports storedName itself as the address, since an S3 key needs no filesystem search.
type S3 struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// NewS3 constructs the S3-backed object store and ensures bucket exists.
func NewS3(ctx context.Context, endpoint, accessKey, secretKey, bucket, region string, logger *slog.Logger) (*S3, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cleanEndpoint := sanitizeEndpoint(endpoint)
	useSSL := strings.HasPrefix(strings.ToLower(endpoint), "https")
	client, err := minio.New(cleanEndpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure:       useSSL,
		Region:       region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	s := &S3{client: client, bucket: bucket, logger: logger.With("component", "storage.s3")}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}
	return s, nil
}

func (s *S3) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err == nil && exists {
		return nil
	}
	err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: ""})
	if err != nil && minio.ToErrorResponse(err).Code != "BucketAlreadyOwnedByYou" {
		return err
	}
	return nil
}

func (s *S3) Save(ctx context.Context, storedName string, r io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, s.bucket, storedName, r, size, minio.PutObjectOptions{
		DisableMultipart: size > 0 && size < 5*1024*1024,
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", storedName, err)
	}
	return nil
}

func (s *S3) Open(ctx context.Context, storedName string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, storedName, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	if _, statErr := obj.Stat(); statErr != nil {
		if errResp := minio.ToErrorResponse(statErr); errResp.Code == "NoSuchKey" {
			return nil, gateway.ErrObjectNotFound
		}
		return nil, statErr
	}
	return obj, nil
}

// Locate reports storedName itself: an S3 key needs no filesystem search path, unlike
// Local's Docker host-path remapping.
func (s *S3) Locate(storedName string) (string, bool) {
	if storedName == "" || storedName == gateway.AddressDeleted {
		return "", false
	}
	return storedName, true
}

func sanitizeEndpoint(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	if strings.Contains(raw, "/") {
		parts := strings.Split(raw, "/")
		raw = parts[0]
	}
	return raw
}

var _ gateway.ObjectStore = (*S3)(nil)
