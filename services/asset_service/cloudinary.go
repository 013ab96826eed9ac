package asset_service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"github.com/serisow/vibeveed/pipeline_type"
)

type cloudinaryUploader interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
}

// CloudinaryStore uploads assets to Cloudinary and returns their secure URL.
type CloudinaryStore struct {
	uploader cloudinaryUploader
	logger   *slog.Logger
}

func NewCloudinaryStore(cloudName, apiKey, apiSecret string, logger *slog.Logger) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloudinary client: %w", err)
	}
	return &CloudinaryStore{uploader: &cld.Upload, logger: logger}, nil
}

func (s *CloudinaryStore) Upload(ctx context.Context, req pipeline_type.UploadRequest) (pipeline_type.UploadResult, error) {
	body, _, err := openBody(req)
	if err != nil {
		return pipeline_type.UploadResult{}, err
	}
	defer body.Close()

	resourceType := req.ResourceType
	if resourceType == "" {
		resourceType = pipeline_type.ResourceTypeImage
	}

	resp, err := s.uploader.Upload(ctx, body, uploader.UploadParams{
		Folder:       req.Folder,
		ResourceType: resourceType,
	})
	if err != nil {
		return pipeline_type.UploadResult{}, fmt.Errorf("cloudinary upload failed: %w", err)
	}
	if resp.Error.Message != "" {
		return pipeline_type.UploadResult{}, fmt.Errorf("cloudinary upload failed: %s", resp.Error.Message)
	}
	if strings.TrimSpace(resp.SecureURL) == "" {
		return pipeline_type.UploadResult{}, fmt.Errorf("cloudinary upload returned no secure_url")
	}

	s.logger.Info("Uploaded asset to Cloudinary",
		slog.String("file", uploadFilename(req)),
		slog.String("public_id", resp.PublicID),
		slog.String("resource_type", resourceType))

	return pipeline_type.UploadResult{SecureURL: resp.SecureURL, PublicID: resp.PublicID}, nil
}
