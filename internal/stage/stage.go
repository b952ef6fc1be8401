// Package stage implements the three pipeline stages: content generation,
// assessment and evaluation. Stages never call each other; they leave a trail
// of agent messages instead.
package stage

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/tutorpipe/internal/bus"
	"github.com/ashureev/tutorpipe/internal/domain"
	"github.com/ashureev/tutorpipe/internal/metrics"
	"github.com/ashureev/tutorpipe/internal/oracle"
	"github.com/ashureev/tutorpipe/internal/store"
)

// Sampling parameters per stage.
var (
	contentParams = oracle.Params{
		Temperature: oracle.Float32(0.7),
		TopK:        oracle.Int(40),
		TopP:        oracle.Float32(0.95),
		MaxTokens:   oracle.Int(2048),
	}
	assessmentParams = oracle.Params{
		Temperature: oracle.Float32(0.3),
		TopK:        oracle.Int(40),
		TopP:        oracle.Float32(0.95),
		MaxTokens:   oracle.Int(2048),
	}
	evaluationParams = oracle.Params{
		Temperature: oracle.Float32(0.4),
		TopK:        oracle.Int(40),
		TopP:        oracle.Float32(0.95),
		MaxTokens:   oracle.Int(1536),
	}
)

// Config holds the collaborators shared by every stage.
type Config struct {
	Repo    store.Repository
	Oracle  oracle.Oracle
	Bus     *bus.Bus
	Metrics *metrics.Metrics
	Logger  *slog.Logger

	// Model is recorded in artifact and question metadata.
	Model string
	// RecordAttempts publishes an oracle_attempt message before each
	// oracle attempt.
	RecordAttempts bool
}

// Pipeline runs the stages.
type Pipeline struct {
	repo           store.Repository
	oracle         oracle.Oracle
	bus            *bus.Bus
	metrics        *metrics.Metrics
	logger         *slog.Logger
	model          string
	recordAttempts bool
	now            func() time.Time
}

// New creates a pipeline.
func New(cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	b := cfg.Bus
	if b == nil {
		b = bus.New(cfg.Repo, cfg.Metrics, logger)
	}
	return &Pipeline{
		repo:           cfg.Repo,
		oracle:         cfg.Oracle,
		bus:            b,
		metrics:        cfg.Metrics,
		logger:         logger,
		model:          cfg.Model,
		recordAttempts: cfg.RecordAttempts,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

type sessionContext struct {
	title      string
	objectives []string
}

// sessionContext loads the title and objectives used in prompts. A missing
// session or a failed read falls back to generic wording.
func (p *Pipeline) sessionContext(ctx context.Context, sessionID string) sessionContext {
	sc := sessionContext{title: defaultSessionTitle}
	session, err := p.repo.GetSession(ctx, sessionID)
	if err != nil {
		p.logger.Warn("Failed to load session context", "session_id", sessionID, "error", err)
		return sc
	}
	if session == nil {
		return sc
	}
	if session.Title != "" {
		sc.title = session.Title
	}
	sc.objectives = session.Objectives
	return sc
}

// generate calls the oracle, recording an attempt marker per try when enabled.
func (p *Pipeline) generate(ctx context.Context, sessionID string, tag domain.StageTag, purpose, prompt string, params oracle.Params) (string, error) {
	if p.recordAttempts {
		ctx = oracle.WithAttemptRecorder(ctx, func(ctx context.Context, attempt int) {
			p.bus.Send(ctx, sessionID, bus.Message{
				From: tag,
				To:   tag,
				Type: domain.MsgOracleAttempt,
				Payload: map[string]any{
					"attempt": attempt,
					"purpose": purpose,
				},
			})
		})
	}
	return p.oracle.Generate(ctx, prompt, params)
}

func (p *Pipeline) observe(tag domain.StageTag, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	p.metrics.ObserveStage(string(tag), outcome, time.Since(start))
}
