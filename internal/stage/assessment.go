package stage

import (
	"context"
	"time"

	"github.com/ashureev/tutorpipe/internal/apperr"
	"github.com/ashureev/tutorpipe/internal/bus"
	"github.com/ashureev/tutorpipe/internal/domain"
	"github.com/ashureev/tutorpipe/internal/parser"
)

// AssessmentRequest asks for a batch of questions.
type AssessmentRequest struct {
	SessionID         string
	UserID            string
	ContentID         string
	QuestionType      domain.QuestionType
	NumberOfQuestions int
	DifficultyLevel   int
}

// GenerateQuestions prompts the oracle for a question batch and stores it.
// Output that does not decode into valid questions fails the request; no
// questions are invented in its place.
func (p *Pipeline) GenerateQuestions(ctx context.Context, req AssessmentRequest) (questions []*domain.Question, err error) {
	start := time.Now()
	defer func() { p.observe(domain.StageAssessment, start, err) }()

	if req.QuestionType == "" {
		req.QuestionType = domain.QuestionMCQ
	}

	contentText := p.contentBody(ctx, req.SessionID, req.ContentID)
	session := p.sessionContext(ctx, req.SessionID)

	p.bus.Send(ctx, req.SessionID, bus.Message{
		From: domain.StageAssessment,
		To:   domain.StageEvaluation,
		Type: domain.MsgQuestionsPreview,
		Payload: map[string]any{
			"questionType":      req.QuestionType,
			"numberOfQuestions": req.NumberOfQuestions,
			"difficultyLevel":   req.DifficultyLevel,
			"contentId":         req.ContentID,
		},
	})

	prompt := assessmentPrompt(req, contentText, session)
	text, err := p.generate(ctx, req.SessionID, domain.StageAssessment, "questions", prompt, assessmentParams)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindOracle, err, "generate questions")
	}

	drafts, err := parser.DecodeQuestions(text, parser.QuestionDefaults{
		Type:       req.QuestionType,
		Difficulty: req.DifficultyLevel,
		Points:     1,
	})
	if err != nil {
		p.logger.Warn("Failed to parse generated questions", "session_id", req.SessionID, "error", err)
		return nil, apperr.Wrap(apperr.KindParse, err, "parse generated questions")
	}
	if req.NumberOfQuestions > 0 && len(drafts) > req.NumberOfQuestions {
		drafts = drafts[:req.NumberOfQuestions]
	} else if len(drafts) < req.NumberOfQuestions {
		p.logger.Warn("Oracle returned fewer questions than requested",
			"session_id", req.SessionID, "requested", req.NumberOfQuestions, "got", len(drafts))
	}

	metadata := map[string]any{
		"content_id":   nullable(req.ContentID),
		"generated_at": p.now().Format(time.RFC3339),
		"model":        p.model,
	}
	questions = make([]*domain.Question, len(drafts))
	for i := range drafts {
		q := drafts[i]
		q.SessionID = req.SessionID
		q.UserID = req.UserID
		q.AgentType = domain.StageAssessment
		q.Metadata = metadata
		questions[i] = &q
	}

	if err := p.repo.CreateQuestions(ctx, questions); err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, err, "store questions")
	}

	ids := make([]string, len(questions))
	totalPoints := 0
	var types []domain.QuestionType
	seen := make(map[domain.QuestionType]bool)
	for i, q := range questions {
		ids[i] = q.ID
		totalPoints += q.Points
		if !seen[q.QuestionType] {
			seen[q.QuestionType] = true
			types = append(types, q.QuestionType)
		}
	}

	p.bus.Send(ctx, req.SessionID,
		bus.Message{
			From: domain.StageAssessment,
			To:   domain.StageContent,
			Type: domain.MsgAssessmentReady,
			Payload: map[string]any{
				"questionCount": len(questions),
				"questionTypes": types,
				"totalPoints":   totalPoints,
			},
		},
		bus.Message{
			From: domain.StageAssessment,
			To:   domain.StageEvaluation,
			Type: domain.MsgQuestionsReady,
			Payload: map[string]any{
				"questionIds":     ids,
				"difficultyLevel": req.DifficultyLevel,
				"assessmentType":  req.QuestionType,
			},
		},
	)

	p.logger.Info("Questions generated", "session_id", req.SessionID, "count", len(questions), "total_points", totalPoints)
	return questions, nil
}

// contentBody returns the artifact text to base questions on. Unknown ids and
// artifacts of other sessions yield an empty body.
func (p *Pipeline) contentBody(ctx context.Context, sessionID, contentID string) string {
	if contentID == "" {
		return ""
	}
	artifact, err := p.repo.GetArtifact(ctx, contentID)
	if err != nil {
		p.logger.Warn("Failed to load content for assessment", "content_id", contentID, "error", err)
		return ""
	}
	if artifact == nil || artifact.SessionID != sessionID {
		return ""
	}
	return artifact.Content
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
