package uploads

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CleanupService removes temp uploads left behind by requests that never
// reached their own cleanup, e.g. after a crash.
type CleanupService struct {
	logger    *slog.Logger
	dir       string
	retention time.Duration
	stop      chan struct{}
}

func NewCleanupService(logger *slog.Logger, retention time.Duration) *CleanupService {
	return &CleanupService{
		logger:    logger,
		dir:       os.TempDir(),
		retention: retention,
	}
}

// StartCleanupSchedule begins regular cleanup of stale uploads
func (s *CleanupService) StartCleanupSchedule(interval time.Duration) {
	ticker := time.NewTicker(interval)
	s.stop = make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.PerformCleanup()
			case <-s.stop:
				return
			}
		}
	}()

	s.logger.Info("Upload cleanup service started",
		slog.Duration("retention", s.retention),
		slog.Duration("interval", interval))
}

func (s *CleanupService) Stop() {
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}

// PerformCleanup removes uploads older than the retention period and returns
// how many were removed.
func (s *CleanupService) PerformCleanup() int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Error("Error during upload cleanup", slog.String("error", err.Error()))
		return 0
	}

	cutoffTime := time.Now().Add(-s.retention)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), TempPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoffTime) {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		s.logger.Info("Removing stale upload",
			slog.String("path", path),
			slog.Time("modified_time", info.ModTime()),
			slog.Time("cutoff_time", cutoffTime))
		if err := os.Remove(path); err != nil {
			s.logger.Error("Failed to remove stale upload",
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}
		removed++
	}
	return removed
}
