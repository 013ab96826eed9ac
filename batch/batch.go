package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/serisow/vibeveed/pipeline_type"
	"github.com/serisow/vibeveed/uploads"
)

type PipelineRunner interface {
	Run(ctx context.Context, req pipeline_type.RunRequest) (*pipeline_type.ProcessingResult, error)
}

type Options struct {
	AssetsDir     string
	EffectsPrompt string
	Message       string
	Delay         time.Duration
}

type Summary struct {
	Results   []*pipeline_type.ProcessingResult
	Completed int
	Failed    int
}

// Runner feeds every image of a directory through the pipeline, one
// submission per Delay, with at most pool-capacity runs in flight.
type Runner struct {
	pipeline PipelineRunner
	pool     *ants.Pool
	logger   *slog.Logger
}

func NewRunner(pipeline PipelineRunner, pool *ants.Pool, logger *slog.Logger) *Runner {
	return &Runner{pipeline: pipeline, pool: pool, logger: logger}
}

// FindImages lists the files in dir with an allowed image extension, sorted
// by name.
func FindImages(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("assets directory %s not found: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("assets path %s is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read assets directory: %w", err)
	}

	var images []string
	for _, entry := range entries {
		if entry.IsDir() || !uploads.AllowedFile(entry.Name()) {
			continue
		}
		images = append(images, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(images)
	return images, nil
}

func (r *Runner) Run(ctx context.Context, opts Options) (*Summary, error) {
	images, err := FindImages(opts.AssetsDir)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		r.logger.Warn("No images found", slog.String("assets_dir", opts.AssetsDir))
		return &Summary{}, nil
	}

	r.logger.Info(fmt.Sprintf("Found %d images to process", len(images)))

	results := make([]*pipeline_type.ProcessingResult, len(images))
	var wg sync.WaitGroup

submit:
	for i, imagePath := range images {
		if i > 0 && opts.Delay > 0 {
			select {
			case <-ctx.Done():
				break submit
			case <-time.After(opts.Delay):
			}
		}
		if ctx.Err() != nil {
			break
		}

		r.logger.Info(fmt.Sprintf("Processing %d/%d", i+1, len(images)), slog.String("image", imagePath))

		wg.Add(1)
		idx, path := i, imagePath
		err := r.pool.Submit(func() {
			defer wg.Done()
			result, _ := r.pipeline.Run(ctx, pipeline_type.RunRequest{
				ImagePath:     path,
				EffectsPrompt: opts.EffectsPrompt,
				Message:       opts.Message,
			})
			results[idx] = result
		})
		if err != nil {
			wg.Done()
			r.logger.Error("Failed to submit image", slog.String("image", path), slog.String("error", err.Error()))
		}
	}
	wg.Wait()

	summary := &Summary{}
	for _, result := range results {
		if result == nil {
			continue
		}
		summary.Results = append(summary.Results, result)
		if result.Status == pipeline_type.StatusCompleted {
			summary.Completed++
		} else {
			summary.Failed++
		}
	}

	r.logger.Info("Batch finished",
		slog.Int("completed", summary.Completed),
		slog.Int("failed", summary.Failed),
		slog.Int("skipped", len(images)-len(summary.Results)))

	return summary, ctx.Err()
}
