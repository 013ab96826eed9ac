package pipeline_type

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ProcessingResult tracks a single pipeline run. Stage URLs stay nil until the
// stage that produces them succeeds, so they serialize as null.
type ProcessingResult struct {
	ID                   string  `json:"id"`
	ImageName            string  `json:"image_name"`
	Timestamp            string  `json:"timestamp"`
	CloudinaryURL        *string `json:"cloudinary_url"`
	BackgroundRemovedURL *string `json:"background_removed_url"`
	EffectsVideoURL      *string `json:"effects_video_url"`
	AudioURL             *string `json:"audio_url"`
	FinalVideoURL        *string `json:"final_video_url"`
	Status               Status  `json:"status"`
	Error                *string `json:"error"`
	CompletedAt          string  `json:"completed_at,omitempty"`
}

// NewProcessingResult starts a pending run for the image at imagePath.
func NewProcessingResult(imagePath string, now time.Time) *ProcessingResult {
	base := filepath.Base(imagePath)
	return &ProcessingResult{
		ID:        uuid.NewString(),
		ImageName: strings.TrimSuffix(base, filepath.Ext(base)),
		Timestamp: now.Format(time.RFC3339),
		Status:    StatusPending,
	}
}

func (r *ProcessingResult) Complete(now time.Time) {
	r.Status = StatusCompleted
	r.Error = nil
	r.CompletedAt = now.Format(time.RFC3339)
}

func (r *ProcessingResult) Fail(message string, now time.Time) {
	r.Status = StatusFailed
	r.Error = &message
	r.CompletedAt = now.Format(time.RFC3339)
}

// ProcessingSteps is the per-stage URL summary returned by the HTTP API.
type ProcessingSteps struct {
	CloudinaryURL        string `json:"cloudinary_url"`
	BackgroundRemovedURL string `json:"background_removed_url"`
	EffectsVideoURL      string `json:"effects_video_url"`
	AudioURL             string `json:"audio_url"`
}

func (r *ProcessingResult) Steps() ProcessingSteps {
	return ProcessingSteps{
		CloudinaryURL:        Deref(r.CloudinaryURL),
		BackgroundRemovedURL: Deref(r.BackgroundRemovedURL),
		EffectsVideoURL:      Deref(r.EffectsVideoURL),
		AudioURL:             Deref(r.AudioURL),
	}
}

// Clone returns a copy that shares no pointers with r.
func (r *ProcessingResult) Clone() *ProcessingResult {
	c := *r
	c.CloudinaryURL = clonePtr(r.CloudinaryURL)
	c.BackgroundRemovedURL = clonePtr(r.BackgroundRemovedURL)
	c.EffectsVideoURL = clonePtr(r.EffectsVideoURL)
	c.AudioURL = clonePtr(r.AudioURL)
	c.FinalVideoURL = clonePtr(r.FinalVideoURL)
	c.Error = clonePtr(r.Error)
	return &c
}

func StringPtr(s string) *string {
	return &s
}

func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func clonePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
