// Package upstream is the HTTP client for the admin dashboard API that
// ultimately stores submitted form data.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/formrelay-systems/formrelay/internal/metrics"
	"github.com/formrelay-systems/formrelay/internal/models"
)

// Upstream error bodies are surfaced to callers verbatim but bounded.
const maxResponseBody = 64 * 1024

type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	PathPrefix string
}

// Client posts enriched submissions to the upstream collection endpoints.
// It performs single attempts; the retry policy lives in the relay service.
type Client struct {
	baseURL    string
	pathPrefix string
	apiKey     string
	httpClient *http.Client
}

// New constructs a new Client.
func New(cfg Config) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		pathPrefix: cfg.PathPrefix,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Endpoint resolves the collection URL for a form type.
func (c *Client) Endpoint(formType models.FormType) string {
	return c.baseURL + c.pathPrefix + "/" + string(formType)
}

// Forward POSTs the payload as JSON and reports the attempt's outcome.
// It never returns an error: every failure mode is folded into the
// ForwardResult so the caller can classify it as retryable or terminal.
func (c *Client) Forward(ctx context.Context, formType models.FormType, payload map[string]any) models.ForwardResult {
	endpoint := c.Endpoint(formType)
	result := models.ForwardResult{Endpoint: endpoint}

	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		result.Err = "marshal payload: " + err.Error()
		metrics.ForwardAttempts.WithLabelValues(metrics.StatusClass(0)).Inc()
		return result
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		result.Err = "build request: " + err.Error()
		metrics.ForwardAttempts.WithLabelValues(metrics.StatusClass(0)).Inc()
		return result
	}
	request.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		request.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(request)
	metrics.UpstreamDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		// Timeouts and connection failures land here; both are retryable.
		result.Err = "send request: " + err.Error()
		metrics.ForwardAttempts.WithLabelValues(metrics.StatusClass(0)).Inc()
		return result
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

	result.StatusCode = resp.StatusCode
	result.Body = string(respBody)
	result.OK = resp.StatusCode >= 200 && resp.StatusCode < 300
	metrics.ForwardAttempts.WithLabelValues(metrics.StatusClass(resp.StatusCode)).Inc()

	if result.OK {
		result.UpstreamID = extractUpstreamID(respBody)
	}

	return result
}

// extractUpstreamID pulls the identifier the upstream assigned, when the
// response is JSON and carries one. An empty 200 body is a valid success.
func extractUpstreamID(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var parsed struct {
		ID           string `json:"id"`
		SubmissionID string `json:"submissionId"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	if parsed.ID != "" {
		return parsed.ID
	}
	return parsed.SubmissionID
}
