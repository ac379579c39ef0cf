// Package gemini provides a client for the Gemini generateContent API with
// Google Search grounding. Grounded citations arrive as grounding metadata on
// the first candidate; the URIs point at a redirect service and must be
// resolved before use.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.0-flash"
)

// Client performs Gemini API operations.
type Client interface {
	GenerateContent(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// GenerateRequest is our request shape for models/{model}:generateContent.
type GenerateRequest struct {
	Model        string
	Prompt       string
	Temperature  *float64
	GoogleSearch bool
}

// wireRequest is the JSON body actually sent.
type wireRequest struct {
	Contents         []content         `json:"contents"`
	Tools            []tool            `json:"tools,omitempty"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type Part struct {
	Text string `json:"text"`
}

type tool struct {
	GoogleSearch *struct{} `json:"google_search,omitempty"`
}

type generationConfig struct {
	Temperature *float64 `json:"temperature,omitempty"`
}

// GenerateResponse is the response from generateContent.
type GenerateResponse struct {
	Candidates []Candidate `json:"candidates"`
}

// Candidate is one generated candidate with its grounding metadata.
type Candidate struct {
	Content           CandidateContent   `json:"content"`
	GroundingMetadata *GroundingMetadata `json:"groundingMetadata,omitempty"`
}

// CandidateContent holds the generated parts.
type CandidateContent struct {
	Parts []Part `json:"parts"`
}

// Text concatenates the candidate's text parts.
func (c Candidate) Text() string {
	var out string
	for _, p := range c.Content.Parts {
		out += p.Text
	}
	return out
}

// GroundingMetadata carries the search-grounding citation structure.
type GroundingMetadata struct {
	GroundingChunks  []GroundingChunk `json:"groundingChunks,omitempty"`
	WebSearchQueries []string         `json:"webSearchQueries,omitempty"`
}

// GroundingChunk is a single grounded source.
type GroundingChunk struct {
	Web *WebSource `json:"web,omitempty"`
}

// WebSource is a grounded web source; URI points at the redirect service.
type WebSource struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *httpClient) {
		c.model = model
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

// NewClient creates a Gemini API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   defaultModel,
		http: &http.Client{
			Timeout: 90 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) GenerateContent(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	wire := wireRequest{
		Contents: []content{{Role: "user", Parts: []Part{{Text: req.Prompt}}}},
	}
	if req.GoogleSearch {
		wire.Tools = []tool{{GoogleSearch: &struct{}{}}}
	}
	if req.Temperature != nil {
		wire.GenerationConfig = &generationConfig{Temperature: req.Temperature}
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: marshal request")
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("gemini: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result GenerateResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "gemini: unmarshal response")
	}

	return &result, nil
}
