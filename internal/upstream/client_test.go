package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formrelay-systems/formrelay/internal/models"
)

func newTestClient(serverURL string) *Client {
	return New(Config{
		BaseURL:    serverURL,
		APIKey:     "test-api-key",
		Timeout:    2 * time.Second,
		PathPrefix: "/api/submissions",
	})
}

func TestForward_Success(t *testing.T) {
	var gotPath, gotAuth, gotContentType string
	var gotPayload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"up-42"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	result := client.Forward(context.Background(), models.FormNewsletterSignup, map[string]any{
		"email":        "a@b.com",
		"submissionId": "sub-1",
	})

	assert.True(t, result.OK)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, "up-42", result.UpstreamID)
	assert.False(t, result.Retryable())

	assert.Equal(t, "/api/submissions/newsletter-signup", gotPath)
	assert.Equal(t, "Bearer test-api-key", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "a@b.com", gotPayload["email"])
}

func TestForward_EmptySuccessBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	result := newTestClient(server.URL).Forward(context.Background(), models.FormDemoRequest, map[string]any{})

	assert.True(t, result.OK)
	assert.Empty(t, result.UpstreamID)
}

func TestForward_ClientError_NotRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"email is invalid"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	result := newTestClient(server.URL).Forward(context.Background(), models.FormContactSales, map[string]any{})

	assert.False(t, result.OK)
	assert.Equal(t, http.StatusBadRequest, result.StatusCode)
	assert.Contains(t, result.Body, "email is invalid")
	assert.False(t, result.Retryable())
}

func TestForward_ServerError_Retryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}))
	defer server.Close()

	result := newTestClient(server.URL).Forward(context.Background(), models.FormJobApplication, map[string]any{})

	assert.False(t, result.OK)
	assert.Equal(t, http.StatusInternalServerError, result.StatusCode)
	assert.True(t, result.Retryable())
}

func TestForward_NetworkError_Retryable(t *testing.T) {
	// Point at a server that is already closed.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	result := newTestClient(server.URL).Forward(context.Background(), models.FormDemoRequest, map[string]any{})

	assert.False(t, result.OK)
	assert.Zero(t, result.StatusCode)
	assert.NotEmpty(t, result.Err)
	assert.True(t, result.Retryable())
}

func TestForward_Timeout_Retryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := New(Config{
		BaseURL:    server.URL,
		Timeout:    20 * time.Millisecond,
		PathPrefix: "/api/submissions",
	})

	result := client.Forward(context.Background(), models.FormDemoRequest, map[string]any{})

	assert.False(t, result.OK)
	assert.True(t, result.Retryable())
}

func TestForward_NoAPIKey_NoAuthHeader(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(Config{
		BaseURL:    server.URL,
		Timeout:    time.Second,
		PathPrefix: "/api/submissions",
	})
	client.Forward(context.Background(), models.FormDemoRequest, map[string]any{})

	assert.Empty(t, gotAuth)
}

func TestEndpoint_TrimsTrailingSlash(t *testing.T) {
	client := New(Config{
		BaseURL:    "http://dash.example.com/",
		PathPrefix: "/api/submissions",
		Timeout:    time.Second,
	})
	assert.Equal(t,
		"http://dash.example.com/api/submissions/demo-request",
		client.Endpoint(models.FormDemoRequest),
	)
}
