package backlog

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ErrorDetail is one entry of the API's error envelope.
type ErrorDetail struct {
	Message  string `json:"message"`
	Code     int    `json:"code"`
	MoreInfo string `json:"moreInfo"`
}

// APIError is returned for any non-2xx response other than 429.
type APIError struct {
	StatusCode int
	Errors     []ErrorDetail
	// Raw holds the body when it was not a recognisable error envelope.
	Raw string
}

func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		if e.Raw == "" {
			return fmt.Sprintf("backlog API error: HTTP %d", e.StatusCode)
		}
		return fmt.Sprintf("backlog API error: HTTP %d: %s", e.StatusCode, e.Raw)
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, d := range e.Errors {
		if d.MoreInfo != "" {
			msgs = append(msgs, fmt.Sprintf("%s (code %d, %s)", d.Message, d.Code, d.MoreInfo))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s (code %d)", d.Message, d.Code))
		}
	}
	return fmt.Sprintf("backlog API error: HTTP %d: %s", e.StatusCode, strings.Join(msgs, "; "))
}

func newAPIError(status int, body []byte) *APIError {
	var env struct {
		Errors []ErrorDetail `json:"errors"`
	}
	if err := json.Unmarshal(body, &env); err == nil && len(env.Errors) > 0 {
		return &APIError{StatusCode: status, Errors: env.Errors}
	}
	raw := strings.TrimSpace(string(body))
	if len(raw) > 512 {
		raw = raw[:512] + "..."
	}
	return &APIError{StatusCode: status, Raw: raw}
}

// DownloadError reports a download that did not yield binary content.
type DownloadError struct {
	Path   string
	Reason string
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("downloading %s: %s", e.Path, e.Reason)
}
