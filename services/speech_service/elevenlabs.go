package speech_service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type ElevenLabsService struct {
	apiURL     string
	apiKey     string
	voiceID    string
	modelID    string
	settings   VoiceSettings
	httpClient *http.Client
	logger     *slog.Logger
}

type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

func NewElevenLabsService(apiURL, apiKey, voiceID, modelID string, logger *slog.Logger) *ElevenLabsService {
	return &ElevenLabsService{
		apiURL:  strings.TrimRight(apiURL, "/"),
		apiKey:  apiKey,
		voiceID: voiceID,
		modelID: modelID,
		settings: VoiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.5,
		},
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     logger,
	}
}

// Synthesize converts text to MP3 audio and returns the raw bytes.
func (s *ElevenLabsService) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("ELEVENLABS_API_KEY is not configured")
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text is empty")
	}

	audio, err := s.callElevenLabs(ctx, text)
	if err != nil {
		if httpErr, ok := err.(*ElevenLabsHttpError); ok {
			s.logger.Error("ElevenLabs API error",
				slog.Int("status_code", httpErr.StatusCode),
				slog.String("error_type", httpErr.ErrorType),
				slog.String("error_message", httpErr.Message),
				slog.String("voice_id", s.voiceID))
		}
		return nil, err
	}

	s.logger.Debug("ElevenLabs audio generated",
		slog.String("voice_id", s.voiceID),
		slog.Int("bytes", len(audio)))
	return audio, nil
}

func (s *ElevenLabsService) callElevenLabs(ctx context.Context, text string) ([]byte, error) {
	requestBody, err := json.Marshal(ttsRequest{
		Text:          text,
		ModelID:       s.modelID,
		VoiceSettings: s.settings,
	})
	if err != nil {
		return nil, fmt.Errorf("error marshaling request body: %w", err)
	}

	fullURL := fmt.Sprintf("%s/%s", s.apiURL, s.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("xi-api-key", s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}
	return audio, nil
}

func handleErrorResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ElevenLabsHttpError{
			StatusCode: resp.StatusCode,
			Message:    "Failed to read error response",
			ErrorType:  "unknown",
		}
	}

	var errorResp struct {
		Detail struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"detail"`
	}
	if err := json.Unmarshal(body, &errorResp); err != nil || errorResp.Detail.Message == "" {
		return &ElevenLabsHttpError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			ErrorType:  "unknown",
			RawBody:    string(body),
		}
	}

	return &ElevenLabsHttpError{
		StatusCode: resp.StatusCode,
		Message:    errorResp.Detail.Message,
		ErrorType:  errorResp.Detail.Status,
		RawBody:    string(body),
	}
}

type ElevenLabsHttpError struct {
	StatusCode int
	Message    string
	ErrorType  string
	RawBody    string
}

func (e *ElevenLabsHttpError) Error() string {
	return fmt.Sprintf("ElevenLabs API error (HTTP %d): %s (Type: %s)", e.StatusCode, e.Message, e.ErrorType)
}
