// Package bus records inter-stage messages. Messages are an append-only audit
// trail: nothing in the service consumes them, and recording one never fails
// the stage that sent it.
package bus

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/ashureev/tutorpipe/internal/domain"
	"github.com/ashureev/tutorpipe/internal/metrics"
)

// MessageStore is the slice of the repository the bus writes to.
type MessageStore interface {
	CreateAgentMessage(ctx context.Context, msg *domain.AgentMessage) error
}

// Message is one outgoing message.
type Message struct {
	From    domain.StageTag
	To      domain.StageTag
	Type    domain.MessageType
	Payload map[string]any
}

// Bus publishes AgentMessages for a session.
type Bus struct {
	store   MessageStore
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a bus writing to store.
func New(store MessageStore, m *metrics.Metrics, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{store: store, metrics: m, logger: logger}
}

// Publish appends one message with status sent.
func (b *Bus) Publish(ctx context.Context, sessionID string, msg Message) error {
	rec := &domain.AgentMessage{
		SessionID:   sessionID,
		FromAgent:   msg.From,
		ToAgent:     msg.To,
		MessageType: msg.Type,
		Payload:     msg.Payload,
		Status:      domain.MessageSent,
	}
	if rec.Payload == nil {
		rec.Payload = map[string]any{}
	}
	if err := b.store.CreateAgentMessage(ctx, rec); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Type, err)
	}
	return nil
}

// Send publishes msgs concurrently and waits for all of them. Failures are
// logged and counted, never returned.
func (b *Bus) Send(ctx context.Context, sessionID string, msgs ...Message) {
	var g errgroup.Group
	for _, msg := range msgs {
		g.Go(func() error {
			if err := b.Publish(ctx, sessionID, msg); err != nil {
				b.logger.Warn("Failed to publish agent message",
					"session_id", sessionID,
					"message_type", msg.Type,
					"from", msg.From,
					"to", msg.To,
					"error", err)
				b.metrics.PublishFailed(string(msg.Type))
			}
			return nil
		})
	}
	_ = g.Wait()
}
