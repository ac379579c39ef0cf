package gemini

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

func TestGenerateContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.0-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		var wire map[string]any
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &wire))
		tools, ok := wire["tools"].([]any)
		require.True(t, ok, "google_search tool must be declared")
		require.Len(t, tools, 1)

		_, _ = w.Write([]byte(`{
			"candidates": [{
				"content": {"parts": [{"text": "Acme and "}, {"text": "Globex lead."}]},
				"groundingMetadata": {
					"groundingChunks": [
						{"web": {"uri": "https://vertexaisearch.cloud.google.com/grounding-api-redirect/a1", "title": "Acme Corp (acme.com)"}},
						{"web": {"uri": "https://vertexaisearch.cloud.google.com/grounding-api-redirect/b2", "title": "globex.com"}}
					],
					"webSearchQueries": ["widget market leaders"]
				}
			}]
		}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := c.GenerateContent(context.Background(), GenerateRequest{
		Prompt:       "Who leads widgets?",
		GoogleSearch: true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Candidates, 1)

	cand := resp.Candidates[0]
	assert.Equal(t, "Acme and Globex lead.", cand.Text())
	require.NotNil(t, cand.GroundingMetadata)
	require.Len(t, cand.GroundingMetadata.GroundingChunks, 2)
	assert.Equal(t, "Acme Corp (acme.com)", cand.GroundingMetadata.GroundingChunks[0].Web.Title)
}

func TestGenerateContent_NoGrounding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var wire map[string]any
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &wire))
		_, hasTools := wire["tools"]
		assert.False(t, hasTools)

		_, _ = w.Write([]byte(`{"candidates": [{"content": {"parts": [{"text": "Plain."}]}}]}`))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	resp, err := c.GenerateContent(context.Background(), GenerateRequest{Prompt: "x"})
	require.NoError(t, err)
	assert.Nil(t, resp.Candidates[0].GroundingMetadata)
}

func TestGenerateContent_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": {"message": "API key invalid"}}`))
	}))
	defer srv.Close()

	c := NewClient("bad", WithBaseURL(srv.URL))
	_, err := c.GenerateContent(context.Background(), GenerateRequest{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 403")
}
