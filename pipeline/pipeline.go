package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/serisow/vibeveed/pipeline_type"
)

const recordTimeout = time.Minute

type Stages struct {
	Assets     AssetStore
	Remover    BackgroundRemover
	Effects    EffectsGenerator
	Speech     SpeechSynthesizer
	Compositor LipSyncCompositor
}

type Orchestrator struct {
	stages      Stages
	imageFolder string
	audioFolder string
	recorder    Recorder
	logger      *slog.Logger
}

type Option func(*Orchestrator)

func WithFolders(imageFolder, audioFolder string) Option {
	return func(o *Orchestrator) {
		o.imageFolder = imageFolder
		o.audioFolder = audioFolder
	}
}

func WithRecorder(recorder Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = recorder
	}
}

func NewOrchestrator(stages Stages, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		stages:      stages,
		imageFolder: "uploaded_images",
		audioFolder: "generated_audio",
		logger:      logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes upload, background removal, effects, audio and lip-sync in
// that order and stops at the first stage that fails. Effects and audio only
// run when their prompt is set; lip-sync only runs when both produced a URL.
// The returned result is always non-nil and has already been recorded. The
// error, when set, is a *StageError.
func (o *Orchestrator) Run(ctx context.Context, req pipeline_type.RunRequest) (*pipeline_type.ProcessingResult, error) {
	result := pipeline_type.NewProcessingResult(req.ImagePath, timeProvider.Now())
	if req.ImageName != "" {
		result.ImageName = req.ImageName
	}
	logger := o.logger.With(slog.String("run_id", result.ID), slog.String("image", result.ImageName))
	logger.Info("Starting pipeline run",
		slog.Bool("effects_requested", req.EffectsPrompt != ""),
		slog.Bool("audio_requested", req.Message != ""))

	err := o.execute(ctx, req, result, logger)
	if err != nil {
		result.Fail(err.Error(), timeProvider.Now())
		logger.Error("Pipeline run failed", slog.String("error", err.Error()))
	} else {
		result.Complete(timeProvider.Now())
		logger.Info("Pipeline run completed",
			slog.String("final_video_url", pipeline_type.Deref(result.FinalVideoURL)))
	}

	if o.recorder != nil {
		// the run is over; a caller that went away must not stop it being stored
		recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
		o.recorder.Record(recordCtx, result)
		cancel()
	}

	return result, err
}

func (o *Orchestrator) execute(ctx context.Context, req pipeline_type.RunRequest, result *pipeline_type.ProcessingResult, logger *slog.Logger) (err error) {
	current := StageUpload
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Stage panicked", slog.String("stage", string(current)), slog.Any("panic", r))
			err = newStageError(current, fmt.Errorf("unexpected error: %v", r))
		}
	}()

	// Step 1: upload the source image
	logger.Info("Step 1: Uploading image", slog.String("path", req.ImagePath))
	if req.ImagePath == "" {
		return newStageError(StageUpload, errors.New("image path is empty"))
	}
	uploaded, uploadErr := o.stages.Assets.Upload(ctx, pipeline_type.UploadRequest{
		Path:         req.ImagePath,
		Filename:     filepath.Base(req.ImagePath),
		Folder:       o.imageFolder,
		ResourceType: pipeline_type.ResourceTypeImage,
	})
	if uploadErr != nil {
		return newStageError(StageUpload, uploadErr)
	}
	if uploaded.SecureURL == "" {
		return newStageError(StageUpload, errors.New("asset store returned no url"))
	}
	result.CloudinaryURL = pipeline_type.StringPtr(uploaded.SecureURL)

	// Step 2: remove the background
	current = StageBackgroundRemoval
	logger.Info("Step 2: Removing background")
	bgURL, bgErr := o.stages.Remover.RemoveBackground(ctx, uploaded.SecureURL)
	if bgErr != nil {
		return newStageError(StageBackgroundRemoval, bgErr)
	}
	if bgURL == "" {
		return newStageError(StageBackgroundRemoval, errors.New("response has no image url"))
	}
	result.BackgroundRemovedURL = pipeline_type.StringPtr(bgURL)

	// Step 3: generate the effects video
	if req.EffectsPrompt != "" {
		current = StageEffects
		logger.Info("Step 3: Generating video with effects")
		videoURL, videoErr := o.stages.Effects.GenerateVideo(ctx, bgURL, req.EffectsPrompt)
		if videoErr != nil {
			return newStageError(StageEffects, videoErr)
		}
		if videoURL == "" {
			return newStageError(StageEffects, errors.New("response has no video url"))
		}
		result.EffectsVideoURL = pipeline_type.StringPtr(videoURL)
	}

	// Step 4: synthesize speech and make it addressable
	if req.Message != "" {
		current = StageAudio
		logger.Info("Step 4: Generating audio")
		audioURL, audioErr := o.generateAudio(ctx, req.Message)
		if audioErr != nil {
			return newStageError(StageAudio, audioErr)
		}
		result.AudioURL = pipeline_type.StringPtr(audioURL)
	}

	// Step 5: lip-sync the video to the audio
	if result.EffectsVideoURL != nil && result.AudioURL != nil {
		current = StageLipSync
		logger.Info("Step 5: Syncing lips")
		finalURL, syncErr := o.stages.Compositor.Compose(ctx, *result.EffectsVideoURL, *result.AudioURL)
		if syncErr != nil {
			return newStageError(StageLipSync, syncErr)
		}
		if finalURL == "" {
			return newStageError(StageLipSync, errors.New("response has no video url"))
		}
		result.FinalVideoURL = pipeline_type.StringPtr(finalURL)
	}

	return nil
}

func (o *Orchestrator) generateAudio(ctx context.Context, message string) (string, error) {
	audio, err := o.stages.Speech.Synthesize(ctx, message)
	if err != nil {
		return "", err
	}
	if len(audio) == 0 {
		return "", errors.New("speech synthesizer returned no audio")
	}

	uploaded, err := o.stages.Assets.Upload(ctx, pipeline_type.UploadRequest{
		Reader:       bytes.NewReader(audio),
		Size:         int64(len(audio)),
		Filename:     "speech.mp3",
		ContentType:  "audio/mpeg",
		Folder:       o.audioFolder,
		ResourceType: pipeline_type.ResourceTypeVideo,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload audio: %w", err)
	}
	if uploaded.SecureURL == "" {
		return "", errors.New("asset store returned no url for audio")
	}
	return uploaded.SecureURL, nil
}
