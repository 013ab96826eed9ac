package uploads

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// TempPrefix marks every file this package writes to the temp dir.
const TempPrefix = "vibeveed-upload-"

var AllowedExtensions = []string{"png", "jpg", "jpeg", "gif", "webp"}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// AllowedFile reports whether filename has one of the AllowedExtensions,
// compared case-insensitively.
func AllowedFile(filename string) bool {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return false
	}
	ext := strings.ToLower(filename[idx+1:])
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// SecureFilename reduces a client supplied name to a flat ASCII file name
// that is safe to use on the local filesystem.
func SecureFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "\\", "/")
	filename = filepath.Base(filename)
	filename = strings.Join(strings.Fields(filename), "_")
	filename = unsafeFilenameChars.ReplaceAllString(filename, "")
	filename = strings.Trim(filename, "._")
	if filename == "" {
		return "upload"
	}
	return filename
}

// Stem returns the file name without directory and extension.
func Stem(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SaveTemp copies src into a new temp file whose name ends with the
// sanitized filename and returns its path. The caller removes it.
func SaveTemp(src io.Reader, filename string) (string, error) {
	tmp, err := os.CreateTemp("", TempPrefix+"*-"+SecureFilename(filename))
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	return tmp.Name(), nil
}
