package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serisow/vibeveed/pipeline_type"
)

type fakeStages struct {
	calls []string

	uploadErr   error
	audioUpErr  error
	bgURL       string
	bgErr       error
	videoURL    string
	videoErr    error
	audio       []byte
	speechErr   error
	finalURL    string
	lipSyncErr  error
	panicOn     string
	uploads     []pipeline_type.UploadRequest
	lipSyncArgs [2]string
}

func newFakeStages() *fakeStages {
	return &fakeStages{
		bgURL:    "https://fal.media/bg.png",
		videoURL: "https://fal.media/effects.mp4",
		audio:    []byte("ID3audio"),
		finalURL: "https://fal.media/final.mp4",
	}
}

func (f *fakeStages) Upload(_ context.Context, req pipeline_type.UploadRequest) (pipeline_type.UploadResult, error) {
	f.uploads = append(f.uploads, req)
	if req.ResourceType == pipeline_type.ResourceTypeVideo {
		f.calls = append(f.calls, "upload_audio")
		if f.audioUpErr != nil {
			return pipeline_type.UploadResult{}, f.audioUpErr
		}
		if req.Reader != nil {
			_, _ = io.ReadAll(req.Reader)
		}
		return pipeline_type.UploadResult{SecureURL: "https://res.cloudinary.com/demo/video/upload/speech.mp3"}, nil
	}
	f.calls = append(f.calls, "upload")
	if f.uploadErr != nil {
		return pipeline_type.UploadResult{}, f.uploadErr
	}
	return pipeline_type.UploadResult{SecureURL: "https://res.cloudinary.com/demo/image/upload/cat.jpg"}, nil
}

func (f *fakeStages) RemoveBackground(_ context.Context, imageURL string) (string, error) {
	f.calls = append(f.calls, "background")
	if f.panicOn == "background" {
		panic("boom")
	}
	return f.bgURL, f.bgErr
}

func (f *fakeStages) GenerateVideo(_ context.Context, imageURL, prompt string) (string, error) {
	f.calls = append(f.calls, "effects")
	return f.videoURL, f.videoErr
}

func (f *fakeStages) Synthesize(_ context.Context, text string) ([]byte, error) {
	f.calls = append(f.calls, "speech")
	return f.audio, f.speechErr
}

func (f *fakeStages) Compose(_ context.Context, videoURL, audioURL string) (string, error) {
	f.calls = append(f.calls, "lipsync")
	f.lipSyncArgs = [2]string{videoURL, audioURL}
	return f.finalURL, f.lipSyncErr
}

type captureRecorder struct {
	results []*pipeline_type.ProcessingResult
}

func (c *captureRecorder) Record(_ context.Context, result *pipeline_type.ProcessingResult) {
	c.results = append(c.results, result.Clone())
}

func newTestOrchestrator(f *fakeStages, rec Recorder) *Orchestrator {
	stages := Stages{Assets: f, Remover: f, Effects: f, Speech: f, Compositor: f}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewOrchestrator(stages, logger, WithRecorder(rec))
}

func fullRequest() pipeline_type.RunRequest {
	return pipeline_type.RunRequest{
		ImagePath:     "/tmp/assets/cat.jpg",
		EffectsPrompt: "rainbow unicorns and bubbles",
		Message:       "Hello there",
	}
}

func TestRun_AllStagesSucceed(t *testing.T) {
	f := newFakeStages()
	rec := &captureRecorder{}

	result, err := newTestOrchestrator(f, rec).Run(context.Background(), fullRequest())

	require.NoError(t, err)
	assert.Equal(t, []string{"upload", "background", "effects", "speech", "upload_audio", "lipsync"}, f.calls)
	assert.Equal(t, pipeline_type.StatusCompleted, result.Status)
	assert.Equal(t, "cat", result.ImageName)
	assert.Equal(t, "https://res.cloudinary.com/demo/image/upload/cat.jpg", pipeline_type.Deref(result.CloudinaryURL))
	assert.Equal(t, "https://fal.media/bg.png", pipeline_type.Deref(result.BackgroundRemovedURL))
	assert.Equal(t, "https://fal.media/effects.mp4", pipeline_type.Deref(result.EffectsVideoURL))
	assert.Equal(t, "https://res.cloudinary.com/demo/video/upload/speech.mp3", pipeline_type.Deref(result.AudioURL))
	assert.Equal(t, "https://fal.media/final.mp4", pipeline_type.Deref(result.FinalVideoURL))
	assert.Nil(t, result.Error)
	assert.NotEmpty(t, result.CompletedAt)

	assert.Equal(t, [2]string{"https://fal.media/effects.mp4", "https://res.cloudinary.com/demo/video/upload/speech.mp3"}, f.lipSyncArgs)

	require.Len(t, f.uploads, 2)
	assert.Equal(t, "uploaded_images", f.uploads[0].Folder)
	assert.Equal(t, "generated_audio", f.uploads[1].Folder)
	assert.Equal(t, pipeline_type.ResourceTypeVideo, f.uploads[1].ResourceType)

	require.Len(t, rec.results, 1)
	assert.Equal(t, result.ID, rec.results[0].ID)
	assert.Equal(t, pipeline_type.StatusCompleted, rec.results[0].Status)
}

func TestRun_StageFailureHaltsPipeline(t *testing.T) {
	vendorErr := errors.New("vendor exploded")

	tests := []struct {
		name          string
		configure     func(f *fakeStages)
		expectedStage StageName
		expectedCalls []string
	}{
		{
			name:          "upload fails",
			configure:     func(f *fakeStages) { f.uploadErr = vendorErr },
			expectedStage: StageUpload,
			expectedCalls: []string{"upload"},
		},
		{
			name:          "background removal fails",
			configure:     func(f *fakeStages) { f.bgErr = vendorErr },
			expectedStage: StageBackgroundRemoval,
			expectedCalls: []string{"upload", "background"},
		},
		{
			name:          "background removal response missing url",
			configure:     func(f *fakeStages) { f.bgURL = "" },
			expectedStage: StageBackgroundRemoval,
			expectedCalls: []string{"upload", "background"},
		},
		{
			name:          "effects fail",
			configure:     func(f *fakeStages) { f.videoErr = vendorErr },
			expectedStage: StageEffects,
			expectedCalls: []string{"upload", "background", "effects"},
		},
		{
			name:          "speech fails",
			configure:     func(f *fakeStages) { f.speechErr = vendorErr },
			expectedStage: StageAudio,
			expectedCalls: []string{"upload", "background", "effects", "speech"},
		},
		{
			name:          "speech returns no audio",
			configure:     func(f *fakeStages) { f.audio = nil },
			expectedStage: StageAudio,
			expectedCalls: []string{"upload", "background", "effects", "speech"},
		},
		{
			name:          "audio upload fails",
			configure:     func(f *fakeStages) { f.audioUpErr = vendorErr },
			expectedStage: StageAudio,
			expectedCalls: []string{"upload", "background", "effects", "speech", "upload_audio"},
		},
		{
			name:          "lipsync fails",
			configure:     func(f *fakeStages) { f.lipSyncErr = vendorErr },
			expectedStage: StageLipSync,
			expectedCalls: []string{"upload", "background", "effects", "speech", "upload_audio", "lipsync"},
		},
		{
			name:          "stage panic is recorded as failure",
			configure:     func(f *fakeStages) { f.panicOn = "background" },
			expectedStage: StageBackgroundRemoval,
			expectedCalls: []string{"upload", "background"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeStages()
			tt.configure(f)
			rec := &captureRecorder{}

			result, err := newTestOrchestrator(f, rec).Run(context.Background(), fullRequest())

			require.Error(t, err)
			var stageErr *StageError
			require.ErrorAs(t, err, &stageErr)
			assert.Equal(t, tt.expectedStage, stageErr.Stage)
			assert.Equal(t, stageMessages[tt.expectedStage], stageErr.Message)

			assert.Equal(t, tt.expectedCalls, f.calls)
			assert.Equal(t, pipeline_type.StatusFailed, result.Status)
			require.NotNil(t, result.Error)
			assert.Contains(t, *result.Error, stageMessages[tt.expectedStage])
			assert.Nil(t, result.FinalVideoURL)

			require.Len(t, rec.results, 1)
			assert.Equal(t, pipeline_type.StatusFailed, rec.results[0].Status)
		})
	}
}

func TestRun_WithoutEffectsPromptSkipsEffectsAndLipSync(t *testing.T) {
	f := newFakeStages()
	req := fullRequest()
	req.EffectsPrompt = ""

	result, err := newTestOrchestrator(f, nil).Run(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, []string{"upload", "background", "speech", "upload_audio"}, f.calls)
	assert.Nil(t, result.EffectsVideoURL)
	assert.NotNil(t, result.AudioURL)
	assert.Nil(t, result.FinalVideoURL)
	assert.Equal(t, pipeline_type.StatusCompleted, result.Status)
}

func TestRun_WithoutMessageSkipsAudioAndLipSync(t *testing.T) {
	f := newFakeStages()
	req := fullRequest()
	req.Message = ""

	result, err := newTestOrchestrator(f, nil).Run(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, []string{"upload", "background", "effects"}, f.calls)
	assert.NotNil(t, result.EffectsVideoURL)
	assert.Nil(t, result.AudioURL)
	assert.Nil(t, result.FinalVideoURL)
}

func TestRun_UploadAndBackgroundOnly(t *testing.T) {
	f := newFakeStages()

	result, err := newTestOrchestrator(f, nil).Run(context.Background(), pipeline_type.RunRequest{ImagePath: "cat.jpg"})

	require.NoError(t, err)
	assert.Equal(t, []string{"upload", "background"}, f.calls)
	assert.NotNil(t, result.CloudinaryURL)
	assert.NotNil(t, result.BackgroundRemovedURL)
	assert.Equal(t, pipeline_type.StatusCompleted, result.Status)
}

func TestRun_EmptyImagePathFailsBeforeUpload(t *testing.T) {
	f := newFakeStages()

	result, err := newTestOrchestrator(f, nil).Run(context.Background(), pipeline_type.RunRequest{})

	require.Error(t, err)
	assert.Empty(t, f.calls)
	assert.Equal(t, pipeline_type.StatusFailed, result.Status)
}

type ctxCheckingRecorder struct {
	ctxErr      error
	hasDeadline bool
	calls       int
}

func (c *ctxCheckingRecorder) Record(ctx context.Context, _ *pipeline_type.ProcessingResult) {
	c.calls++
	c.ctxErr = ctx.Err()
	_, c.hasDeadline = ctx.Deadline()
}

func TestRun_RecordsAfterCallerCancels(t *testing.T) {
	f := newFakeStages()
	rec := &ctxCheckingRecorder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := newTestOrchestrator(f, rec).Run(ctx, fullRequest())

	require.NoError(t, err)
	assert.Equal(t, pipeline_type.StatusCompleted, result.Status)
	require.Equal(t, 1, rec.calls)
	assert.NoError(t, rec.ctxErr)
	assert.True(t, rec.hasDeadline)
}

func TestRun_UsesTimeProvider(t *testing.T) {
	start := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	mtp := &mockTimeProvider{currentTime: start}
	timeProvider = mtp
	defer func() { timeProvider = &realTimeProvider{} }()

	result, err := newTestOrchestrator(newFakeStages(), nil).Run(context.Background(), fullRequest())

	require.NoError(t, err)
	assert.Equal(t, "2025-03-14T09:26:53Z", result.Timestamp)
	assert.Equal(t, "2025-03-14T09:26:53Z", result.CompletedAt)
}
