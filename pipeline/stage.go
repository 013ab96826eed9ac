package pipeline

import (
	"context"
	"fmt"

	"github.com/serisow/vibeveed/pipeline_type"
)

type StageName string

const (
	StageUpload            StageName = "upload"
	StageBackgroundRemoval StageName = "background_removal"
	StageEffects           StageName = "effects"
	StageAudio             StageName = "audio"
	StageLipSync           StageName = "lipsync"
)

// AssetStore uploads a file and returns a URL other vendors can fetch.
type AssetStore interface {
	Upload(ctx context.Context, req pipeline_type.UploadRequest) (pipeline_type.UploadResult, error)
}

type BackgroundRemover interface {
	RemoveBackground(ctx context.Context, imageURL string) (string, error)
}

type EffectsGenerator interface {
	GenerateVideo(ctx context.Context, imageURL, prompt string) (string, error)
}

type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

type LipSyncCompositor interface {
	Compose(ctx context.Context, videoURL, audioURL string) (string, error)
}

// Recorder receives every finished run, failed or not.
type Recorder interface {
	Record(ctx context.Context, result *pipeline_type.ProcessingResult)
}

// StageError is returned when a stage halts the run. Message is safe to show
// to API clients; Err carries the vendor detail.
type StageError struct {
	Stage   StageName
	Message string
	Err     error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

var stageMessages = map[StageName]string{
	StageUpload:            "Failed to upload image to Cloudinary",
	StageBackgroundRemoval: "Failed to remove background",
	StageEffects:           "Failed to generate video effects",
	StageAudio:             "Failed to generate audio",
	StageLipSync:           "Failed to sync lips",
}

func newStageError(stage StageName, err error) *StageError {
	return &StageError{Stage: stage, Message: stageMessages[stage], Err: err}
}
