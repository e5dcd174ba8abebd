package backend

import (
	"context"
	"strings"
	"time"
)

// continuations are canned completions keyed by the trailing words of the
// context. The fallback keeps the demo and tests deterministic.
var continuations = map[string]string{
	"the quick brown fox": " jumps over the lazy dog.",
	"once upon a time":    " there was a quiet village by the sea.",
}

const defaultContinuation = " and the rest follows naturally."

// Static is an offline backend with deterministic output. It is the
// default so the engine works without credentials, and it is what the
// controller tests run against.
type Static struct {
	delay time.Duration
}

// NewStatic creates a static backend. A non-zero delay simulates network
// latency; the delay honors context cancellation.
func NewStatic(delay time.Duration) *Static {
	return &Static{delay: delay}
}

// Name implements Backend.
func (s *Static) Name() string { return "static" }

// Complete implements Backend.
func (s *Static) Complete(ctx context.Context, req Request) (Response, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}

	trimmed := strings.ToLower(strings.TrimSpace(req.Context))
	for suffix, cont := range continuations {
		if strings.HasSuffix(trimmed, suffix) {
			return Response{Text: cont}, nil
		}
	}
	return Response{Text: defaultContinuation}, nil
}
