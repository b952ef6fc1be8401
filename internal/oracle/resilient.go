package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ashureev/tutorpipe/internal/metrics"
)

// ResilientConfig bounds each oracle call.
type ResilientConfig struct {
	// Timeout caps a single attempt.
	Timeout time.Duration
	// MaxRetries is the number of attempts after the first.
	MaxRetries int
	// BaseDelay is the first backoff; it doubles per retry plus jitter.
	BaseDelay time.Duration
}

// Resilient wraps an Oracle with per-attempt timeouts and retries on
// transient failures.
type Resilient struct {
	next    Oracle
	cfg     ResilientConfig
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewResilient wraps next.
func NewResilient(next Oracle, cfg ResilientConfig, m *metrics.Metrics, logger *slog.Logger) *Resilient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resilient{next: next, cfg: cfg, logger: logger, metrics: m}
}

// Generate implements Oracle. Whitespace-only completions count as
// ErrEmptyCompletion and are retried like transport failures.
func (r *Resilient) Generate(ctx context.Context, prompt string, params Params) (string, error) {
	record := attemptRecorder(ctx)
	delay := r.cfg.BaseDelay

	var err error
	for attempt := 1; attempt <= r.cfg.MaxRetries+1; attempt++ {
		if record != nil {
			record(ctx, attempt)
		}

		var text string
		text, err = r.attempt(ctx, prompt, params)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("oracle call canceled: %w", ctx.Err())
		}
		if !IsTransient(err) || attempt > r.cfg.MaxRetries {
			break
		}

		jitter := time.Duration(rand.Int64N(int64(delay))) //nolint:gosec // jitter doesn't need crypto-strength randomness
		r.logger.Warn("Oracle attempt failed, retrying", "attempt", attempt, "delay", delay+jitter, "error", err)
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("oracle call canceled: %w", ctx.Err())
		case <-time.After(delay + jitter):
		}
		delay *= 2
	}
	return "", err
}

func (r *Resilient) attempt(ctx context.Context, prompt string, params Params) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	start := time.Now()
	text, err := r.next.Generate(attemptCtx, prompt, params)
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyCompletion
	}

	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		result = "timeout"
	case errors.Is(err, ErrEmptyCompletion):
		result = "empty"
	default:
		result = "error"
	}
	r.metrics.ObserveOracle(result, time.Since(start))
	return text, err
}

// IsTransient reports failures worth retrying: timeouts, empty completions,
// network errors, rate limiting and server-side errors.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrEmptyCompletion) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
