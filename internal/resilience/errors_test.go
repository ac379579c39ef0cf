package resilience

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit transient", NewTransientError(errors.New("x"), 503), true},
		{"wrapped transient", fmt.Errorf("call: %w", NewTransientError(errors.New("x"), 0)), true},
		{"connection reset string", errors.New("read tcp: connection reset by peer"), true},
		{"dns failure string", errors.New("dial tcp: lookup api.example: no such host"), true},
		{"deadline", errors.New("context deadline exceeded"), true},
		{"plain error", errors.New("invalid request body"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("expected %d to be transient", code)
		}
	}
	for _, code := range []int{200, 400, 401, 403, 404, 422} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("expected %d to be non-transient", code)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ErrorKind("")},
		{"rate limited", errors.New("openai: unexpected status 429: slow down"), KindTransient},
		{"server error", errors.New("mistral: unexpected status 502"), KindTransient},
		{"bad key", errors.New("perplexity: unexpected status 401: invalid key"), KindAuth},
		{"forbidden", errors.New("xai: unexpected status 403"), KindAuth},
		{"bad request", errors.New("gemini: unexpected status 400: bad payload"), KindPermanent},
		{"network", errors.New("dial tcp: i/o timeout"), KindTransient},
		{"other", errors.New("empty response from gpt-4o"), KindPermanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
