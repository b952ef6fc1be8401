// Package oracle wraps the text-generation service the pipeline prompts.
package oracle

import (
	"context"
	"errors"
)

// ErrEmptyCompletion is returned when the service answered without text.
var ErrEmptyCompletion = errors.New("oracle returned no text")

// Params are the sampling parameters of one generation. Nil fields are left
// to the backend default.
type Params struct {
	Temperature *float32
	TopK        *int
	TopP        *float32
	MaxTokens   *int
}

// Oracle generates text for a prompt.
type Oracle interface {
	Generate(ctx context.Context, prompt string, params Params) (string, error)
}

// Float32 returns a pointer to v.
func Float32(v float32) *float32 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// AttemptRecorder runs before each oracle attempt. attempt starts at 1.
type AttemptRecorder func(ctx context.Context, attempt int)

type recorderKey struct{}

// WithAttemptRecorder returns a context carrying fn. Resilient calls fn before
// every attempt it makes on that context.
func WithAttemptRecorder(ctx context.Context, fn AttemptRecorder) context.Context {
	if fn == nil {
		return ctx
	}
	return context.WithValue(ctx, recorderKey{}, fn)
}

func attemptRecorder(ctx context.Context) AttemptRecorder {
	fn, _ := ctx.Value(recorderKey{}).(AttemptRecorder)
	return fn
}
