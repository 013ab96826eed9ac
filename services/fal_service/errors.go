package fal_service

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedResponse is returned when a fal app answers without the field
// the pipeline needs (image.url or video.url).
var ErrMalformedResponse = errors.New("unexpected response format from fal.ai")

type APIError struct {
	StatusCode int
	Detail     string
	RawBody    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fal.ai API error (HTTP %d): %s", e.StatusCode, e.Detail)
}

func parseAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: statusCode,
		Detail:     string(body),
		RawBody:    string(body),
	}

	var errorResp struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &errorResp); err != nil || len(errorResp.Detail) == 0 {
		return apiErr
	}

	// detail is either a plain string or a list of validation errors
	var detail string
	if err := json.Unmarshal(errorResp.Detail, &detail); err == nil {
		apiErr.Detail = detail
		return apiErr
	}
	var validation []struct {
		Msg string `json:"msg"`
		Loc []any  `json:"loc"`
	}
	if err := json.Unmarshal(errorResp.Detail, &validation); err == nil && len(validation) > 0 {
		apiErr.Detail = fmt.Sprintf("%s (at %v)", validation[0].Msg, validation[0].Loc)
		return apiErr
	}
	apiErr.Detail = string(errorResp.Detail)
	return apiErr
}
