package asset_service

import (
	"fmt"
	"io"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/serisow/vibeveed/pipeline_type"
)

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// objectKey builds a collision free key under folder for the given file name.
func objectKey(folder, filename string) string {
	name := unsafeKeyChars.ReplaceAllString(path.Base(filename), "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "file"
	}
	key := uuid.NewString() + "-" + name
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return key
	}
	return folder + "/" + key
}

// openBody returns the content of an upload request along with its size.
// The caller must close the returned reader.
func openBody(req pipeline_type.UploadRequest) (io.ReadCloser, int64, error) {
	if req.Reader != nil {
		return io.NopCloser(req.Reader), req.Size, nil
	}
	if req.Path == "" {
		return nil, 0, fmt.Errorf("upload request has neither a path nor a reader")
	}

	file, err := os.Open(req.Path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open %s: %w", req.Path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, fmt.Errorf("failed to stat %s: %w", req.Path, err)
	}
	return file, info.Size(), nil
}

func uploadFilename(req pipeline_type.UploadRequest) string {
	if req.Filename != "" {
		return req.Filename
	}
	if req.Path != "" {
		return path.Base(strings.ReplaceAll(req.Path, "\\", "/"))
	}
	return "upload"
}

var contentTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".mp3":  "audio/mpeg",
	".mp4":  "video/mp4",
}

func contentType(req pipeline_type.UploadRequest) string {
	if req.ContentType != "" {
		return req.ContentType
	}
	if ct, ok := contentTypes[strings.ToLower(path.Ext(uploadFilename(req)))]; ok {
		return ct
	}
	return "application/octet-stream"
}
