package asset_service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/serisow/vibeveed/pipeline_type"
)

type s3PutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type s3PresignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Store puts assets in a private bucket and hands out presigned GET URLs so
// fal.ai can fetch them.
type S3Store struct {
	client    s3PutAPI
	presigner s3PresignAPI
	bucket    string
	urlTTL    time.Duration
	logger    *slog.Logger
}

func NewS3Store(ctx context.Context, bucket, region string, urlTTL time.Duration, logger *slog.Logger) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Store{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
		urlTTL:    urlTTL,
		logger:    logger,
	}, nil
}

func (s *S3Store) Upload(ctx context.Context, req pipeline_type.UploadRequest) (pipeline_type.UploadResult, error) {
	body, size, err := openBody(req)
	if err != nil {
		return pipeline_type.UploadResult{}, err
	}
	defer body.Close()

	key := objectKey(req.Folder, uploadFilename(req))
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType(req)),
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return pipeline_type.UploadResult{}, fmt.Errorf("couldn't upload object with key: %s, AWS error: %w", key, err)
	}

	presigned, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.urlTTL))
	if err != nil {
		return pipeline_type.UploadResult{}, fmt.Errorf("failed to presign %s: %w", key, err)
	}

	s.logger.Info("Uploaded asset to S3",
		slog.String("bucket", s.bucket),
		slog.String("key", key))

	return pipeline_type.UploadResult{SecureURL: presigned.URL, PublicID: key}, nil
}
