package perplexity

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatCompletion(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantErr     string
		wantID      string
		wantSources int
		wantLegacy  int
	}{
		{
			name:   "success_with_search_results",
			status: http.StatusOK,
			body: `{
				"id": "cmpl-123",
				"choices": [{"index": 0, "message": {"role": "assistant", "content": "Acme leads the market."}}],
				"search_results": [
					{"title": "Acme review", "url": "https://reviews.example/acme", "date": "2026-04-01"},
					{"title": "Vendor report", "url": "https://reports.example/top"}
				],
				"usage": {"prompt_tokens": 10, "completion_tokens": 5}
			}`,
			wantID:      "cmpl-123",
			wantSources: 2,
		},
		{
			name:   "legacy_citations_only",
			status: http.StatusOK,
			body: `{
				"id": "cmpl-456",
				"choices": [{"index": 0, "message": {"role": "assistant", "content": "Answer"}}],
				"citations": ["https://a.example", "https://b.example", "https://c.example"]
			}`,
			wantID:     "cmpl-456",
			wantLegacy: 3,
		},
		{
			name:    "rate_limit",
			status:  http.StatusTooManyRequests,
			body:    `{"error": "rate limit exceeded"}`,
			wantErr: "unexpected status 429",
		},
		{
			name:    "malformed_response",
			status:  http.StatusOK,
			body:    `{invalid json`,
			wantErr: "unmarshal response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/chat/completions", r.URL.Path)
				assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

				var req ChatCompletionRequest
				data, _ := io.ReadAll(r.Body)
				require.NoError(t, json.Unmarshal(data, &req))
				assert.Equal(t, "sonar-pro", req.Model, "default model applied")

				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient("test-key", WithBaseURL(srv.URL))
			resp, err := c.ChatCompletion(context.Background(), ChatCompletionRequest{
				Messages: []Message{{Role: "user", Content: "Who leads project tooling?"}},
			})

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, resp.ID)
			assert.Len(t, resp.SearchResults, tt.wantSources)
			assert.Len(t, resp.Citations, tt.wantLegacy)
		})
	}
}

func TestChatCompletion_ExplicitModelWins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatCompletionRequest
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &req))
		assert.Equal(t, "sonar", req.Model)
		_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL), WithModel("sonar-pro"))
	_, err := c.ChatCompletion(context.Background(), ChatCompletionRequest{Model: "sonar"})
	require.NoError(t, err)
}
