package asset_service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/serisow/vibeveed/pipeline_type"
)

type minioAPI interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

// MinioStore targets any S3 compatible server reachable by the vendors.
type MinioStore struct {
	client minioAPI
	bucket string
	urlTTL time.Duration
	logger *slog.Logger
}

func NewMinioStore(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool, urlTTL time.Duration, logger *slog.Logger) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("error checking bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
		logger.Info("Created MinIO bucket", slog.String("bucket", bucket))
	}

	return &MinioStore{client: client, bucket: bucket, urlTTL: urlTTL, logger: logger}, nil
}

func (s *MinioStore) Upload(ctx context.Context, req pipeline_type.UploadRequest) (pipeline_type.UploadResult, error) {
	body, size, err := openBody(req)
	if err != nil {
		return pipeline_type.UploadResult{}, err
	}
	defer body.Close()

	if size <= 0 {
		size = -1
	}

	key := objectKey(req.Folder, uploadFilename(req))
	if _, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{ContentType: contentType(req)}); err != nil {
		return pipeline_type.UploadResult{}, fmt.Errorf("failed to store object in MinIO: %w", err)
	}

	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.urlTTL, url.Values{})
	if err != nil {
		return pipeline_type.UploadResult{}, fmt.Errorf("failed to presign %s: %w", key, err)
	}

	s.logger.Info("Uploaded asset to MinIO",
		slog.String("bucket", s.bucket),
		slog.String("key", key))

	return pipeline_type.UploadResult{SecureURL: presigned.String(), PublicID: key}, nil
}
