package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/mux"

	"github.com/serisow/vibeveed/pipeline"
	"github.com/serisow/vibeveed/pipeline_type"
	"github.com/serisow/vibeveed/uploads"
)

// PipelineRunner runs the full media chain for one uploaded image.
type PipelineRunner interface {
	Run(ctx context.Context, req pipeline_type.RunRequest) (*pipeline_type.ProcessingResult, error)
}

type VideoHandler struct {
	runner         PipelineRunner
	maxUploadBytes int64
	logger         *slog.Logger
}

type processVideoResponse struct {
	Success         bool                          `json:"success"`
	RunID           string                        `json:"run_id"`
	FinalVideoURL   string                        `json:"final_video_url"`
	ProcessingSteps pipeline_type.ProcessingSteps `json:"processing_steps"`
}

func NewVideoHandler(runner PipelineRunner, maxUploadBytes int64, logger *slog.Logger) *VideoHandler {
	return &VideoHandler{
		runner:         runner,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// ProcessVideo accepts a multipart form with an image file, an effects
// prompt and a message, runs the whole pipeline and answers with every
// intermediate URL.
func (h *VideoHandler) ProcessVideo(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Received process-video request")

	if r.ContentLength > h.maxUploadBytes {
		h.writeTooLarge(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		switch {
		case isTooLarge(err):
			h.writeTooLarge(w)
		case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
			writeJSONError(w, "No image file provided", http.StatusBadRequest)
		default:
			writeJSONError(w, "Failed to parse multipart form", http.StatusBadRequest)
		}
		return
	}
	defer r.MultipartForm.RemoveAll()

	form := r.MultipartForm
	files := form.File["image"]
	// a part sent with an empty filename is parsed as a plain value
	_, emptyFilePart := form.Value["image"]
	if len(files) == 0 && !emptyFilePart {
		writeJSONError(w, "No image file provided", http.StatusBadRequest)
		return
	}

	effectsPrompt, ok := formValue(form, "effects_prompt")
	if !ok {
		writeJSONError(w, "No effects_prompt provided", http.StatusBadRequest)
		return
	}
	message, ok := formValue(form, "message")
	if !ok {
		writeJSONError(w, "No message provided", http.StatusBadRequest)
		return
	}

	if len(files) == 0 || files[0].Filename == "" {
		writeJSONError(w, "No file selected", http.StatusBadRequest)
		return
	}
	header := files[0]
	if !uploads.AllowedFile(header.Filename) {
		writeJSONError(w, "Invalid file type. Allowed: "+strings.Join(uploads.AllowedExtensions, ", "), http.StatusBadRequest)
		return
	}

	tempPath, err := saveUpload(header)
	if err != nil {
		h.logger.Error("Failed to store upload", slog.String("error", err.Error()))
		writeJSONError(w, "Internal server error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	defer h.removeTemp(tempPath)

	result, err := h.runner.Run(r.Context(), pipeline_type.RunRequest{
		ImagePath:     tempPath,
		ImageName:     uploads.Stem(uploads.SecureFilename(header.Filename)),
		EffectsPrompt: effectsPrompt,
		Message:       message,
	})
	if err != nil {
		var stageErr *pipeline.StageError
		if errors.As(err, &stageErr) {
			writeJSONError(w, stageErr.Message, http.StatusInternalServerError)
			return
		}
		writeJSONError(w, "Internal server error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, processVideoResponse{
		Success:         true,
		RunID:           result.ID,
		FinalVideoURL:   pipeline_type.Deref(result.FinalVideoURL),
		ProcessingSteps: result.Steps(),
	})
}

// GetRun reports a recent run by id.
func (h *VideoHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	result, ok := pipeline.GetRun(runID)
	if !ok {
		writeJSONError(w, "Run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"message": "Video processing server is running",
	})
}

func Home(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Video Processing API",
		"endpoints": map[string]string{
			"process_video": "POST /process-video - Upload image, effects prompt, and message",
			"health":        "GET /health - Health check",
			"runs":          "GET /runs/{id} - Status of a recent run",
		},
		"required_params": map[string]string{
			"image":          "File upload (png, jpg, jpeg, gif, webp)",
			"effects_prompt": "String - Video effects description",
			"message":        "String - Text to convert to speech",
		},
	})
}

func (h *VideoHandler) writeTooLarge(w http.ResponseWriter) {
	writeJSONError(w, fmt.Sprintf("File too large. Maximum size is %dMB", h.maxUploadBytes>>20), http.StatusRequestEntityTooLarge)
}

func isTooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	// multipart does not always wrap the body error
	return errors.As(err, &maxBytesErr) || strings.Contains(err.Error(), "request body too large")
}

func (h *VideoHandler) removeTemp(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		h.logger.Error("Failed to remove temp upload",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
}

func saveUpload(header *multipart.FileHeader) (string, error) {
	file, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer file.Close()
	return uploads.SaveTemp(file, header.Filename)
}

// formValue reports the first value for key and whether the field was sent
// at all. An empty value still counts as sent.
func formValue(form *multipart.Form, key string) (string, bool) {
	values := form.Value[key]
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func writeJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
