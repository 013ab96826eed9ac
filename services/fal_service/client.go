package fal_service

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

const (
	statusInQueue    = "IN_QUEUE"
	statusInProgress = "IN_PROGRESS"
	statusCompleted  = "COMPLETED"
)

// Client talks to the fal.ai queue API: a request is submitted, its status
// polled until completion, then the result fetched from the response URL.
type Client struct {
	apiKey       string
	queueURL     string
	pollInterval time.Duration
	httpClient   *http.Client
	logger       *slog.Logger
}

type submitResponse struct {
	RequestID   string `json:"request_id"`
	ResponseURL string `json:"response_url"`
	StatusURL   string `json:"status_url"`
	CancelURL   string `json:"cancel_url"`
}

type queueLog struct {
	Message   string `json:"message"`
	Level     string `json:"level"`
	Timestamp string `json:"timestamp"`
}

type queueStatus struct {
	Status        string     `json:"status"`
	QueuePosition *int       `json:"queue_position,omitempty"`
	ResponseURL   string     `json:"response_url"`
	Logs          []queueLog `json:"logs"`
	Error         string     `json:"error,omitempty"`
}

func NewClient(apiKey, queueURL string, pollInterval time.Duration, logger *slog.Logger) *Client {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Client{
		apiKey:       apiKey,
		queueURL:     strings.TrimRight(queueURL, "/"),
		pollInterval: pollInterval,
		httpClient:   &http.Client{},
		logger:       logger,
	}
}

// Subscribe submits args to the fal app and blocks until the result is
// available, decoding it into out. Queue log lines are forwarded to the logger
// as they arrive.
func (c *Client) Subscribe(ctx context.Context, appID string, args interface{}, out interface{}) error {
	if c.apiKey == "" {
		return fmt.Errorf("FAL_KEY is not configured")
	}

	submitted, err := c.submit(ctx, appID, args)
	if err != nil {
		return err
	}

	c.logger.Debug("fal.ai request queued",
		slog.String("app", appID),
		slog.String("request_id", submitted.RequestID))

	responseURL, err := c.waitForCompletion(ctx, appID, submitted)
	if err != nil {
		return err
	}

	return c.fetchResult(ctx, responseURL, out)
}

func (c *Client) submit(ctx context.Context, appID string, args interface{}) (*submitResponse, error) {
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.queueURL+"/"+appID, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var submitted submitResponse
	if err := c.doJSON(req, &submitted); err != nil {
		return nil, fmt.Errorf("error submitting to %s: %w", appID, err)
	}
	if submitted.RequestID == "" && submitted.StatusURL == "" {
		return nil, fmt.Errorf("submit to %s returned no request id", appID)
	}
	return &submitted, nil
}

func (c *Client) waitForCompletion(ctx context.Context, appID string, submitted *submitResponse) (string, error) {
	statusURL := submitted.StatusURL
	if statusURL == "" {
		statusURL = fmt.Sprintf("%s/%s/requests/%s/status", c.queueURL, appBase(appID), submitted.RequestID)
	}
	responseURL := submitted.ResponseURL
	if responseURL == "" {
		responseURL = fmt.Sprintf("%s/%s/requests/%s", c.queueURL, appBase(appID), submitted.RequestID)
	}

	seenLogs := 0
	for {
		status, err := c.status(ctx, statusURL)
		if err != nil {
			return "", err
		}

		// logs=1 returns the whole log so far
		for _, entry := range status.Logs[min(seenLogs, len(status.Logs)):] {
			c.logger.Info(entry.Message, slog.String("app", appID), slog.String("request_id", submitted.RequestID))
		}
		seenLogs = max(seenLogs, len(status.Logs))

		switch status.Status {
		case statusCompleted:
			if status.Error != "" {
				return "", fmt.Errorf("fal.ai request %s failed: %s", submitted.RequestID, status.Error)
			}
			if status.ResponseURL != "" {
				responseURL = status.ResponseURL
			}
			return responseURL, nil
		case statusInQueue, statusInProgress:
		default:
			return "", fmt.Errorf("unknown fal.ai queue status %q", status.Status)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

func (c *Client) status(ctx context.Context, statusURL string) (*queueStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating status request: %w", err)
	}
	q := req.URL.Query()
	q.Set("logs", "1")
	req.URL.RawQuery = q.Encode()

	var status queueStatus
	if err := c.doJSON(req, &status); err != nil {
		return nil, fmt.Errorf("error polling status: %w", err)
	}
	return &status, nil
}

func (c *Client) fetchResult(ctx context.Context, responseURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, responseURL, nil)
	if err != nil {
		return fmt.Errorf("error creating result request: %w", err)
	}
	if err := c.doJSON(req, out); err != nil {
		return fmt.Errorf("error fetching result: %w", err)
	}
	return nil
}

func (c *Client) doJSON(req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Key "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response: %w", err)
	}

	// 202 is returned by the status endpoint while the request is still queued
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return parseAPIError(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}

// appBase keeps owner/alias of an app id; queue status and result URLs do not
// include the sub path ("fal-ai/bria/background/remove" -> "fal-ai/bria").
func appBase(appID string) string {
	parts := strings.SplitN(appID, "/", 3)
	if len(parts) < 2 {
		return appID
	}
	return parts[0] + "/" + parts[1]
}
