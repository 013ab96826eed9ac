package fal_service

import (
	"context"
	"fmt"

	"github.com/serisow/vibeveed/pipeline_type"
)

// BackgroundRemover runs the bria background removal app.
type BackgroundRemover struct {
	client *Client
	appID  string
}

func NewBackgroundRemover(client *Client, appID string) *BackgroundRemover {
	return &BackgroundRemover{client: client, appID: appID}
}

func (b *BackgroundRemover) RemoveBackground(ctx context.Context, imageURL string) (string, error) {
	if imageURL == "" {
		return "", fmt.Errorf("image url is required")
	}

	var resp pipeline_type.BackgroundRemovalResponse
	err := b.client.Subscribe(ctx, b.appID, pipeline_type.BackgroundRemovalRequest{ImageURL: imageURL}, &resp)
	if err != nil {
		return "", fmt.Errorf("error removing background: %w", err)
	}
	if resp.Image == nil || resp.Image.URL == "" {
		return "", fmt.Errorf("%w: missing image.url", ErrMalformedResponse)
	}
	return resp.Image.URL, nil
}

// EffectsGenerator turns a still image into a short video guided by a prompt.
type EffectsGenerator struct {
	client *Client
	appID  string
}

func NewEffectsGenerator(client *Client, appID string) *EffectsGenerator {
	return &EffectsGenerator{client: client, appID: appID}
}

func (g *EffectsGenerator) GenerateVideo(ctx context.Context, imageURL, prompt string) (string, error) {
	if imageURL == "" {
		return "", fmt.Errorf("image url is required")
	}
	if prompt == "" {
		return "", fmt.Errorf("effects prompt is required")
	}

	var resp pipeline_type.VideoResponse
	err := g.client.Subscribe(ctx, g.appID, pipeline_type.ImageToVideoRequest{ImageURL: imageURL, Prompt: prompt}, &resp)
	if err != nil {
		return "", fmt.Errorf("error generating video effects: %w", err)
	}
	if resp.Video == nil || resp.Video.URL == "" {
		return "", fmt.Errorf("%w: missing video.url", ErrMalformedResponse)
	}
	return resp.Video.URL, nil
}

// LipSyncCompositor syncs the lips in a video to an audio track.
type LipSyncCompositor struct {
	client *Client
	appID  string
}

func NewLipSyncCompositor(client *Client, appID string) *LipSyncCompositor {
	return &LipSyncCompositor{client: client, appID: appID}
}

func (l *LipSyncCompositor) Compose(ctx context.Context, videoURL, audioURL string) (string, error) {
	if videoURL == "" || audioURL == "" {
		return "", fmt.Errorf("video url and audio url are required")
	}

	var resp pipeline_type.VideoResponse
	err := l.client.Subscribe(ctx, l.appID, pipeline_type.LipSyncRequest{VideoURL: videoURL, AudioURL: audioURL}, &resp)
	if err != nil {
		return "", fmt.Errorf("error syncing lips: %w", err)
	}
	if resp.Video == nil || resp.Video.URL == "" {
		return "", fmt.Errorf("%w: missing video.url", ErrMalformedResponse)
	}
	return resp.Video.URL, nil
}
