package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/serisow/vibeveed/pipeline_type"
)

const resultFileTimeLayout = "20060102_150405"

// FileResultStore writes each run as indented JSON to
// <dir>/<image_name>_<YYYYMMDD_HHMMSS>.json. A name already taken gets the
// first eight characters of the run id appended, so no run overwrites another.
type FileResultStore struct {
	dir string
	now func() time.Time
}

func NewFileResultStore(dir string) *FileResultStore {
	return &FileResultStore{dir: dir, now: time.Now}
}

func (s *FileResultStore) Save(_ context.Context, result *pipeline_type.ProcessingResult) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create results directory: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}

	stamp := s.now().Format(resultFileTimeLayout)
	path := filepath.Join(s.dir, fmt.Sprintf("%s_%s.json", result.ImageName, stamp))
	err = writeExclusive(path, data)
	if os.IsExist(err) {
		// another run on the same image finished within the same second
		path = filepath.Join(s.dir, fmt.Sprintf("%s_%s_%s.json", result.ImageName, stamp, shortID(result.ID)))
		err = writeExclusive(path, data)
	}
	if err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
