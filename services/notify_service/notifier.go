package notify_service

import (
	"context"
	"log/slog"

	"github.com/serisow/vibeveed/pipeline_type"
)

// Notifier tells an outside party that a run finished.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, result *pipeline_type.ProcessingResult) error
}

// NotifierRecorder sends every finished run to its notifiers. A failing
// notifier is logged and never affects the run or the other notifiers.
type NotifierRecorder struct {
	notifiers []Notifier
	logger    *slog.Logger
}

func NewNotifierRecorder(logger *slog.Logger, notifiers ...Notifier) *NotifierRecorder {
	return &NotifierRecorder{notifiers: notifiers, logger: logger}
}

func (r *NotifierRecorder) Record(ctx context.Context, result *pipeline_type.ProcessingResult) {
	for _, n := range r.notifiers {
		if err := n.Notify(ctx, result); err != nil {
			r.logger.Error("Failed to notify run result",
				slog.String("notifier", n.Name()),
				slog.String("run_id", result.ID),
				slog.String("error", err.Error()))
			continue
		}
		r.logger.Debug("Run result notified",
			slog.String("notifier", n.Name()),
			slog.String("run_id", result.ID))
	}
}
