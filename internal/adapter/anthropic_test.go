package adapter

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianlabs/visibility-cli/pkg/anthropic"
)

func TestAnthropic_Invoke_MergesBothCitationSources(t *testing.T) {
	client := &fakeAnthropic{
		createFn: func(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			assert.True(t, req.WebSearch)
			return &anthropic.MessageResponse{
				Content: []anthropic.ContentBlock{
					{Type: "text", Text: "Let me look that up."},
					{Type: "server_tool_use", ToolName: "web_search", Query: "widget market leaders 2026"},
					{Type: "web_search_tool_result", Results: []anthropic.SearchResult{
						{URL: "https://reports.example/widgets", Title: "Widget report"},
						{URL: "https://news.example/acme", Title: "Acme"},
					}},
					{Type: "text", Text: " Acme leads the market.", Citations: []anthropic.Citation{
						{Type: "web_search_result_location", URL: "https://news.example/acme"},
						{Type: "web_search_result_location", URL: "https://blog.example/analysis"},
					}},
				},
			}, nil
		},
	}

	a := NewAnthropic(client, "claude-sonnet-4-5-20250929", "Claude Sonnet")
	ans, err := a.Invoke(context.Background(), "Who leads widgets?", 0.7)
	require.NoError(t, err)

	assert.Contains(t, ans.Text, "[Searching for: widget market leaders 2026]")
	assert.Contains(t, ans.Text, "Acme leads the market.")
	assert.ElementsMatch(t, []string{
		"https://news.example/acme",
		"https://blog.example/analysis",
		"https://reports.example/widgets",
	}, ans.Sources, "inline citations and tool results merged, deduplicated")
}

func TestAnthropic_Invoke_TransportError(t *testing.T) {
	client := &fakeAnthropic{
		createFn: func(context.Context, anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			return nil, eris.New("anthropic: create message: 429")
		},
	}

	a := NewAnthropic(client, "claude-sonnet-4-5-20250929", "Claude Sonnet")
	_, err := a.Invoke(context.Background(), "x", 0.7)
	require.Error(t, err)
}

func TestAnthropic_Invoke_NoTextIsError(t *testing.T) {
	client := &fakeAnthropic{
		createFn: func(context.Context, anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			return &anthropic.MessageResponse{
				Content: []anthropic.ContentBlock{
					{Type: "web_search_tool_result", Results: []anthropic.SearchResult{{URL: "https://a.example"}}},
				},
			}, nil
		},
	}

	a := NewAnthropic(client, "claude-sonnet-4-5-20250929", "Claude Sonnet")
	_, err := a.Invoke(context.Background(), "x", 0.7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty response")
}
