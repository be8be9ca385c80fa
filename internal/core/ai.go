package core

import "context"

// LLMProvider answers a fully assembled prompt using the given API credential.
// Implementations classify failures into ErrAuth, ErrRateLimit, ErrRefused or
// ErrTransport and never retry.
type LLMProvider interface {
	Name() string
	Generate(ctx context.Context, apiKey, prompt string) (string, error)
}
