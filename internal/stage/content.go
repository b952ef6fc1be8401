package stage

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ashureev/tutorpipe/internal/apperr"
	"github.com/ashureev/tutorpipe/internal/bus"
	"github.com/ashureev/tutorpipe/internal/domain"
)

const defaultContentType = "explanation"

// ContentRequest asks for one learning artifact.
type ContentRequest struct {
	SessionID          string
	UserID             string
	Topic              string
	LearningObjectives []string
	DifficultyLevel    int
	ContentType        string
}

// GenerateContent prompts the oracle for learning material on a topic and
// stores it as an artifact.
func (p *Pipeline) GenerateContent(ctx context.Context, req ContentRequest) (artifact *domain.Artifact, err error) {
	start := time.Now()
	defer func() { p.observe(domain.StageContent, start, err) }()

	objectives := req.LearningObjectives
	if objectives == nil {
		objectives = []string{}
	}
	contentType := strings.TrimSpace(req.ContentType)
	title := req.Topic + " - " + contentType
	if contentType == "" {
		contentType = defaultContentType
		title = req.Topic + " - Explanation"
	}

	p.bus.Send(ctx, req.SessionID, bus.Message{
		From: domain.StageContent,
		To:   domain.StageAssessment,
		Type: domain.MsgContentPreview,
		Payload: map[string]any{
			"topic":              req.Topic,
			"learningObjectives": objectives,
			"difficultyLevel":    req.DifficultyLevel,
		},
	})

	prompt := contentPrompt(req.Topic, objectives, req.DifficultyLevel, contentType)
	text, err := p.generate(ctx, req.SessionID, domain.StageContent, "content", prompt, contentParams)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindOracle, err, "generate content")
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperr.New(apperr.KindOracle, "generate content: oracle returned no text")
	}

	length := utf8.RuneCountInString(text)
	artifact = &domain.Artifact{
		SessionID:         req.SessionID,
		UserID:            req.UserID,
		AgentType:         domain.StageContent,
		ContentType:       contentType,
		Title:             title,
		Content:           text,
		DifficultyLevel:   req.DifficultyLevel,
		EstimatedReadTime: domain.EstimateReadTime(length),
		Metadata: map[string]any{
			"learning_objectives": objectives,
			"generated_at":        p.now().Format(time.RFC3339),
			"model":               p.model,
		},
	}
	if err := p.repo.CreateArtifact(ctx, artifact); err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, err, "store content")
	}

	p.bus.Send(ctx, req.SessionID,
		bus.Message{
			From: domain.StageContent,
			To:   domain.StageAssessment,
			Type: domain.MsgContentReady,
			Payload: map[string]any{
				"contentId":       artifact.ID,
				"topic":           req.Topic,
				"difficultyLevel": req.DifficultyLevel,
				"contentLength":   length,
			},
		},
		bus.Message{
			From: domain.StageContent,
			To:   domain.StageEvaluation,
			Type: domain.MsgLearningContext,
			Payload: map[string]any{
				"contentId":          artifact.ID,
				"topic":              req.Topic,
				"learningObjectives": objectives,
				"difficultyLevel":    req.DifficultyLevel,
			},
		},
	)

	p.logger.Info("Content generated", "session_id", req.SessionID, "content_id", artifact.ID, "length", length)
	return artifact, nil
}
