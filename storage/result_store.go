package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/serisow/vibeveed/pipeline_type"
)

// ResultStore persists a finished run and returns where it was written.
type ResultStore interface {
	Save(ctx context.Context, result *pipeline_type.ProcessingResult) (string, error)
}

// MultiResultStore saves to every store, returning the joined locations. It
// keeps going past a failing store and reports the first error.
type MultiResultStore []ResultStore

func (m MultiResultStore) Save(ctx context.Context, result *pipeline_type.ProcessingResult) (string, error) {
	var locations []string
	var firstErr error
	for _, store := range m {
		location, err := store.Save(ctx, result)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		locations = append(locations, location)
	}
	return strings.Join(locations, ", "), firstErr
}

// StoreRecorder persists every finished run. Persistence errors are logged,
// the run itself is already decided by then.
type StoreRecorder struct {
	store  ResultStore
	logger *slog.Logger
}

func NewStoreRecorder(store ResultStore, logger *slog.Logger) *StoreRecorder {
	return &StoreRecorder{store: store, logger: logger}
}

func (r *StoreRecorder) Record(ctx context.Context, result *pipeline_type.ProcessingResult) {
	location, err := r.store.Save(ctx, result)
	if err != nil {
		r.logger.Error("Failed to persist run result",
			slog.String("run_id", result.ID),
			slog.String("error", err.Error()))
	}
	if location != "" {
		r.logger.Info(fmt.Sprintf("Results saved to: %s", location), slog.String("run_id", result.ID))
	}
}
