package pipeline

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/serisow/vibeveed/pipeline_type"
)

// RunStore keeps finished runs in memory so GET /runs/{id} can report them.
// Runs are stored as copies; the orchestrating call keeps sole ownership of
// the result it is mutating.
var (
	RunStore = struct {
		sync.RWMutex
		Runs map[string]*pipeline_type.ProcessingResult
	}{
		Runs: make(map[string]*pipeline_type.ProcessingResult),
	}
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
)

// StartRunStoreCleanup starts a goroutine that periodically drops runs that
// completed more than threshold ago.
func StartRunStoreCleanup(threshold time.Duration, cleanupInterval time.Duration) {
	stopCleanup = make(chan struct{})
	cleanupTicker = time.NewTicker(cleanupInterval)

	go func() {
		for {
			select {
			case <-cleanupTicker.C:
				performCleanup(threshold)
			case <-stopCleanup:
				cleanupTicker.Stop()
				return
			}
		}
	}()
}

func StopRunStoreCleanup() {
	if stopCleanup != nil {
		close(stopCleanup)
	}
}

func performCleanup(threshold time.Duration) {
	now := timeProvider.Now()
	RunStore.Lock()
	defer RunStore.Unlock()

	for runID, run := range RunStore.Runs {
		if run.CompletedAt != "" {
			completedAt, err := time.Parse(time.RFC3339, run.CompletedAt)
			if err == nil && now.Sub(completedAt) > threshold {
				delete(RunStore.Runs, runID)
				log.Printf("Deleted run %s due to expiration", runID)
			}
		}
	}
}

func AddRun(result *pipeline_type.ProcessingResult) {
	RunStore.Lock()
	defer RunStore.Unlock()
	RunStore.Runs[result.ID] = result.Clone()
}

func GetRun(runID string) (*pipeline_type.ProcessingResult, bool) {
	RunStore.RLock()
	defer RunStore.RUnlock()
	result, exists := RunStore.Runs[runID]
	if !exists {
		return nil, false
	}
	return result.Clone(), true
}

// RunStoreRecorder indexes every finished run in RunStore.
type RunStoreRecorder struct{}

func (RunStoreRecorder) Record(_ context.Context, result *pipeline_type.ProcessingResult) {
	AddRun(result)
}

// MultiRecorder hands a finished run to each recorder in order.
type MultiRecorder []Recorder

func (m MultiRecorder) Record(ctx context.Context, result *pipeline_type.ProcessingResult) {
	for _, r := range m {
		r.Record(ctx, result)
	}
}
