package domain

import (
	"time"
)

// StageTag names a pipeline stage as sender or receiver of a message.
type StageTag string

const (
	StageContent    StageTag = "content_generator"
	StageAssessment StageTag = "question_setter"
	StageEvaluation StageTag = "feedback_evaluator"
)

// MessageType tags the event an AgentMessage describes.
type MessageType string

const (
	MsgContentPreview    MessageType = "content_preview"
	MsgContentReady      MessageType = "content_ready"
	MsgLearningContext   MessageType = "learning_context"
	MsgQuestionsPreview  MessageType = "questions_preview"
	MsgAssessmentReady   MessageType = "assessment_ready"
	MsgQuestionsReady    MessageType = "questions_ready"
	MsgEvaluationStarted MessageType = "evaluation_started"
	MsgResponseAnalyzed  MessageType = "response_analyzed"
	MsgFeedbackComplete  MessageType = "feedback_complete"
	MsgPerformanceUpdate MessageType = "performance_update"
	MsgOracleAttempt     MessageType = "oracle_attempt"
)

// MessageStatus is the delivery state of an AgentMessage. Nothing in this
// service moves a message past MessageSent.
type MessageStatus string

const MessageSent MessageStatus = "sent"

// AgentMessage is one entry in the append-only inter-stage trail.
type AgentMessage struct {
	ID          string         `json:"id"`
	SessionID   string         `json:"session_id"`
	FromAgent   StageTag       `json:"from_agent"`
	ToAgent     StageTag       `json:"to_agent"`
	MessageType MessageType    `json:"message_type"`
	Payload     map[string]any `json:"payload"`
	Status      MessageStatus  `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	ProcessedAt *time.Time     `json:"processed_at,omitempty"`
}
