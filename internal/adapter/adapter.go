// Package adapter normalizes heterogeneous LLM providers behind a single
// contract: one prompt in, one RawAnswer (text plus consulted URLs) out.
// Each provider encodes citations differently — inline annotations, tool
// result blocks, grounding metadata, flat citation lists, or nothing at all —
// and none of those shapes may leak past this package.
package adapter

import (
	"context"

	"github.com/meridianlabs/visibility-cli/internal/model"
)

// Adapter is one registered provider/model target.
type Adapter interface {
	// Config identifies the provider and model this adapter dispatches to.
	Config() model.ModelConfig
	// Invoke sends the prompt and returns the normalized answer. Transport
	// and auth failures return an error; an adapter never silently returns
	// empty text.
	Invoke(ctx context.Context, prompt string, temperature float64) (model.RawAnswer, error)
}
