package speech_service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSynthesize_Success(t *testing.T) {
	var gotPath, gotKey, gotAccept string
	var gotBody ttsRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		gotAccept = r.Header.Get("Accept")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3fakeaudio"))
	}))
	defer server.Close()

	svc := NewElevenLabsService(server.URL+"/v1/text-to-speech", "el-key", "voice-123", "eleven_monolingual_v1", discardLogger())
	audio, err := svc.Synthesize(context.Background(), "Hello there")

	require.NoError(t, err)
	assert.Equal(t, []byte("ID3fakeaudio"), audio)
	assert.Equal(t, "/v1/text-to-speech/voice-123", gotPath)
	assert.Equal(t, "el-key", gotKey)
	assert.Equal(t, "audio/mpeg", gotAccept)
	assert.Equal(t, "Hello there", gotBody.Text)
	assert.Equal(t, "eleven_monolingual_v1", gotBody.ModelID)
	assert.Equal(t, 0.5, gotBody.VoiceSettings.Stability)
	assert.Equal(t, 0.5, gotBody.VoiceSettings.SimilarityBoost)
}

func TestSynthesize_APIError(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		expectedMsg  string
		expectedType string
	}{
		{
			name:         "structured detail",
			status:       http.StatusUnauthorized,
			body:         `{"detail":{"status":"invalid_api_key","message":"Invalid API key"}}`,
			expectedMsg:  "Invalid API key",
			expectedType: "invalid_api_key",
		},
		{
			name:         "plain body",
			status:       http.StatusInternalServerError,
			body:         "upstream unavailable",
			expectedMsg:  "upstream unavailable",
			expectedType: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			svc := NewElevenLabsService(server.URL, "el-key", "voice", "model", discardLogger())
			_, err := svc.Synthesize(context.Background(), "hi")

			var httpErr *ElevenLabsHttpError
			require.True(t, errors.As(err, &httpErr))
			assert.Equal(t, tt.status, httpErr.StatusCode)
			assert.Equal(t, tt.expectedMsg, httpErr.Message)
			assert.Equal(t, tt.expectedType, httpErr.ErrorType)
		})
	}
}

func TestSynthesize_RejectsMissingKeyAndEmptyText(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	_, err := NewElevenLabsService(server.URL, "", "voice", "model", discardLogger()).
		Synthesize(context.Background(), "hi")
	assert.Error(t, err)

	_, err = NewElevenLabsService(server.URL, "el-key", "voice", "model", discardLogger()).
		Synthesize(context.Background(), "   ")
	assert.Error(t, err)

	assert.Equal(t, 0, calls)
}
