package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinIOOpts struct {
	Endpoint, AccessKey, SecretKey, Bucket string
	UseTLS                                 bool
	URLExpiry                              time.Duration
}

// MinIOStore keeps objects in an S3-compatible bucket and hands out presigned
// GET URLs.
type MinIOStore struct {
	mc     *minio.Client
	bucket string
	prefix string
	expiry time.Duration
	logger *slog.Logger
}

// NewMinIOClient connects to the endpoint and makes sure the bucket exists.
func NewMinIOClient(ctx context.Context, o MinIOOpts) (*minio.Client, error) {
	mc, err := minio.New(o.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(o.AccessKey, o.SecretKey, ""),
		Secure: o.UseTLS,
	})
	if err != nil {
		return nil, err
	}
	exists, err := mc.BucketExists(ctx, o.Bucket)
	if err != nil {
		return nil, fmt.Errorf("bucket exists %s: %w", o.Bucket, err)
	}
	if !exists {
		if err := mc.MakeBucket(ctx, o.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("make bucket %s: %w", o.Bucket, err)
		}
	}
	return mc, nil
}

// NewMinIOStore stores objects under prefix/ in bucket.
func NewMinIOStore(mc *minio.Client, bucket, prefix string, expiry time.Duration, logger *slog.Logger) *MinIOStore {
	if logger == nil {
		logger = slog.Default()
	}
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &MinIOStore{mc: mc, bucket: bucket, prefix: strings.Trim(prefix, "/"), expiry: expiry, logger: logger}
}

func (s *MinIOStore) objectName(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

// Put uploads the object and returns a presigned GET URL for delivery. The
// Ref is the unsigned path-style object URL, which does not expire.
func (s *MinIOStore) Put(ctx context.Context, key string, data []byte, contentType string) (Object, error) {
	name, err := cleanKey(key)
	if err != nil {
		return Object{}, err
	}
	object := s.objectName(name)
	_, err = s.mc.PutObject(ctx, s.bucket, object, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		s.logger.Error("media.minio.put_failed", "object", object, "error", err)
		return Object{}, fmt.Errorf("minio put %s: %w", object, err)
	}
	u, err := s.mc.PresignedGetObject(ctx, s.bucket, object, s.expiry, nil)
	if err != nil {
		return Object{}, fmt.Errorf("minio presign %s: %w", object, err)
	}
	return Object{Ref: s.objectURL(object), URL: u.String()}, nil
}

func (s *MinIOStore) objectURL(object string) string {
	u := *s.mc.EndpointURL()
	u.Path = "/" + path.Join(s.bucket, object)
	u.RawQuery = ""
	return u.String()
}
