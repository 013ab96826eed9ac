package notify_service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/serisow/vibeveed/pipeline_type"
)

const WebhookNotifierName = "webhook"

type webhookPayload struct {
	Event     string                          `json:"event"`
	Timestamp int64                           `json:"timestamp"`
	Data      *pipeline_type.ProcessingResult `json:"data"`
}

// WebhookNotifier POSTs the finished run as JSON to a fixed URL.
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (w *WebhookNotifier) Name() string {
	return WebhookNotifierName
}

func (w *WebhookNotifier) Notify(ctx context.Context, result *pipeline_type.ProcessingResult) error {
	payloadBytes, err := json.Marshal(webhookPayload{
		Event:     "run." + string(result.Status),
		Timestamp: time.Now().Unix(),
		Data:      result,
	})
	if err != nil {
		return fmt.Errorf("error marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Vibeveed-Webhook/1.0")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook returned non-2xx status: %d, body: %s", resp.StatusCode, string(body))
	}
	return nil
}
