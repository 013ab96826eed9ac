package pipeline_type

import "io"

// Resource types understood by the asset stores. Audio is stored as "video"
// the same way Cloudinary expects it.
const (
	ResourceTypeImage = "image"
	ResourceTypeVideo = "video"
)

// UploadRequest describes one file handed to an asset store. Exactly one of
// Path or Reader is set.
type UploadRequest struct {
	Path         string
	Reader       io.Reader
	Size         int64
	Filename     string
	ContentType  string
	Folder       string
	ResourceType string
}

type UploadResult struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
}

// RunRequest is the input of one pipeline run. Empty prompts skip the stages
// that need them. ImageName overrides the name derived from ImagePath.
type RunRequest struct {
	ImagePath     string
	ImageName     string
	EffectsPrompt string
	Message       string
}

// FileRef is the {"url": ...} object fal returns for images and videos.
type FileRef struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
	FileName    string `json:"file_name,omitempty"`
	FileSize    int64  `json:"file_size,omitempty"`
}

type BackgroundRemovalRequest struct {
	ImageURL string `json:"image_url"`
}

type BackgroundRemovalResponse struct {
	Image *FileRef `json:"image"`
}

type ImageToVideoRequest struct {
	ImageURL string `json:"image_url"`
	Prompt   string `json:"prompt"`
}

type VideoResponse struct {
	Video *FileRef `json:"video"`
}

type LipSyncRequest struct {
	VideoURL string `json:"video_url"`
	AudioURL string `json:"audio_url"`
}
