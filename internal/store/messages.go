package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/tutorpipe/internal/domain"
)

// CreateAgentMessage appends one inter-stage message to the trail.
func (s *SQLStore) CreateAgentMessage(ctx context.Context, msg *domain.AgentMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Status == "" {
		msg.Status = domain.MessageSent
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	payload, err := marshalJSON(msg.Payload, "{}")
	if err != nil {
		return err
	}

	query := `
		INSERT INTO agent_communications (
			id, session_id, from_agent, to_agent, message_type, payload, status, created_at, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.exec(ctx, query,
		msg.ID, msg.SessionID, string(msg.FromAgent), string(msg.ToAgent), string(msg.MessageType),
		payload, string(msg.Status), toMillis(msg.CreatedAt), nullMillis(msg.ProcessedAt),
	)
	if err != nil {
		return fmt.Errorf("insert agent message: %w", err)
	}
	return nil
}

// ListAgentMessages returns a session's message trail in creation order.
func (s *SQLStore) ListAgentMessages(ctx context.Context, sessionID string) ([]*domain.AgentMessage, error) {
	rows, err := s.query(ctx, `
		SELECT id, session_id, from_agent, to_agent, message_type, payload, status, created_at, processed_at
		FROM agent_communications WHERE session_id = ?
		ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query agent messages: %w", err)
	}
	defer closeRows(rows, "agent messages")

	messages := []*domain.AgentMessage{}
	for rows.Next() {
		var msg domain.AgentMessage
		var from, to, msgType, payload, status string
		var createdAt int64
		var processedAt sql.NullInt64
		if err := rows.Scan(&msg.ID, &msg.SessionID, &from, &to, &msgType, &payload, &status,
			&createdAt, &processedAt); err != nil {
			return nil, fmt.Errorf("scan agent message row: %w", err)
		}
		msg.FromAgent = domain.StageTag(from)
		msg.ToAgent = domain.StageTag(to)
		msg.MessageType = domain.MessageType(msgType)
		msg.Status = domain.MessageStatus(status)
		msg.CreatedAt = fromMillis(createdAt)
		msg.ProcessedAt = timePtr(processedAt)
		if err := unmarshalJSON(payload, &msg.Payload); err != nil {
			return nil, err
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agent messages: %w", err)
	}
	return messages, nil
}
