// Package backend defines the suggestion backend protocol and its
// adapters. A backend receives the paragraph text up to the cursor and
// returns a continuation; model choice and prompting are internal to each
// adapter. Calls carry the caller's context so that retriggering or
// navigating away cancels any pending round trip.
package backend

import (
	"context"
	"errors"
	"fmt"
)

// Errors returned by backends.
var (
	ErrEmptyCompletion = errors.New("backend: empty completion")
	ErrUnknownBackend  = errors.New("backend: unknown backend")
)

// Request carries the suggestion context.
type Request struct {
	// Context is the paragraph text up to the cursor.
	Context string

	// Position is the absolute cursor offset, for backends that want it.
	Position int
}

// Response is the suggested continuation.
type Response struct {
	Text string
}

// Backend produces ghost-text continuations.
type Backend interface {
	// Name identifies the backend in configuration and logs.
	Name() string

	// Complete returns a continuation of the request context. It must
	// respect context cancellation.
	Complete(ctx context.Context, req Request) (Response, error)
}

// systemPrompt is shared by the model-backed adapters.
const systemPrompt = "You are an inline writing assistant. Continue the " +
	"user's text naturally from exactly where it stops. Reply with only " +
	"the continuation, no preamble and no quotation marks. Keep it under " +
	"one sentence."

// New creates a backend by configuration name: "openai", "anthropic",
// "gemini", or "static".
func New(ctx context.Context, name, apiKey, model string) (Backend, error) {
	switch name {
	case "openai":
		return NewOpenAI(apiKey, model), nil
	case "anthropic":
		return NewAnthropic(apiKey, model), nil
	case "gemini":
		return NewGemini(ctx, apiKey, model)
	case "static", "":
		return NewStatic(0), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
}
