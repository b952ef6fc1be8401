package stage

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/ashureev/tutorpipe/internal/adaptive"
	"github.com/ashureev/tutorpipe/internal/apperr"
	"github.com/ashureev/tutorpipe/internal/bus"
	"github.com/ashureev/tutorpipe/internal/domain"
	"github.com/ashureev/tutorpipe/internal/parser"
)

// EvaluationRequest asks for feedback on one submitted answer.
type EvaluationRequest struct {
	SessionID  string
	UserID     string
	ResponseID string
}

// Evaluation is the stored feedback plus the running performance snapshot.
type Evaluation struct {
	Feedback    *domain.Feedback
	Performance domain.Performance
	Directive   adaptive.Directive
}

// Evaluate prompts the oracle for feedback on a response and stores it. When
// the oracle's output does not decode, deterministic feedback derived from the
// response's correctness is stored instead.
func (p *Pipeline) Evaluate(ctx context.Context, req EvaluationRequest) (eval *Evaluation, err error) {
	start := time.Now()
	defer func() { p.observe(domain.StageEvaluation, start, err) }()

	response, question, err := p.repo.GetResponse(ctx, req.ResponseID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, err, "load response")
	}
	if response == nil || response.SessionID != req.SessionID || response.UserID != req.UserID {
		return nil, apperr.NotFound("response not found")
	}

	session := p.sessionContext(ctx, req.SessionID)

	prior, err := p.repo.ListPriorResponses(ctx, req.UserID, req.SessionID, req.ResponseID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, err, "load response history")
	}
	var history domain.History
	for _, r := range prior {
		history.Add(r)
	}

	performanceIndicator := "incorrect"
	if response.IsCorrect {
		performanceIndicator = "correct"
	}
	p.bus.Send(ctx, req.SessionID,
		bus.Message{
			From: domain.StageEvaluation,
			To:   domain.StageContent,
			Type: domain.MsgEvaluationStarted,
			Payload: map[string]any{
				"responseId":   response.ID,
				"questionType": question.QuestionType,
				"isCorrect":    response.IsCorrect,
			},
		},
		bus.Message{
			From: domain.StageEvaluation,
			To:   domain.StageAssessment,
			Type: domain.MsgResponseAnalyzed,
			Payload: map[string]any{
				"responseId":           response.ID,
				"difficultyLevel":      question.DifficultyLevel,
				"performanceIndicator": performanceIndicator,
			},
		},
	)

	// Prior correct answers over all answers including this one.
	totalCount := history.PriorCount + 1
	accuracy := float64(history.CorrectCount) / float64(totalCount)
	averageTime := float64(history.TotalTime+response.TimeSpent) / float64(totalCount)

	prompt := evaluationPrompt(question, response, session, history, averageTime)
	text, err := p.generate(ctx, req.SessionID, domain.StageEvaluation, "feedback", prompt, evaluationParams)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindOracle, err, "generate feedback")
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperr.New(apperr.KindOracle, "generate feedback: oracle returned no text")
	}

	feedback, err := parser.DecodeFeedback(text)
	if err != nil {
		p.logger.Warn("Failed to parse feedback, using fallback",
			"session_id", req.SessionID, "response_id", req.ResponseID, "error", err)
		p.metrics.FallbackUsed()
		feedback = fallbackFeedback(text, response.IsCorrect)
	}
	feedback.ResponseID = response.ID
	feedback.UserID = req.UserID
	feedback.AgentType = domain.StageEvaluation

	if err := p.repo.CreateFeedback(ctx, &feedback); err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, err, "store feedback")
	}

	directive := adaptive.DirectiveFor(feedback.Score)

	p.bus.Send(ctx, req.SessionID,
		bus.Message{
			From: domain.StageEvaluation,
			To:   domain.StageContent,
			Type: domain.MsgFeedbackComplete,
			Payload: map[string]any{
				"feedbackId":       feedback.ID,
				"score":            feedback.Score,
				"needsRemediation": feedback.NeedsRemediation(),
				"learningGaps":     feedback.Improvements,
			},
		},
		bus.Message{
			From: domain.StageEvaluation,
			To:   domain.StageAssessment,
			Type: domain.MsgPerformanceUpdate,
			Payload: map[string]any{
				"studentPerformance": map[string]any{
					"currentScore":        feedback.Score,
					"overallAccuracy":     accuracy,
					"averageResponseTime": averageTime,
				},
				"adaptationNeeded": directive,
			},
		},
	)

	p.logger.Info("Feedback generated",
		"session_id", req.SessionID,
		"response_id", req.ResponseID,
		"score", feedback.Score,
		"fallback", feedback.Fallback,
		"directive", directive)

	return &Evaluation{
		Feedback: &feedback,
		Performance: domain.Performance{
			Score:       feedback.Score,
			Accuracy:    accuracy,
			AverageTime: math.Round(averageTime),
		},
		Directive: directive,
	}, nil
}

// fallbackFeedback is stored when the oracle's feedback cannot be decoded.
// The score follows the stored correctness flag exactly.
func fallbackFeedback(raw string, correct bool) domain.Feedback {
	fb := domain.Feedback{
		FeedbackText: strings.TrimSpace(raw),
		NextSteps:    []string{"Continue practicing similar questions"},
		LearningPathRecommendations: domain.LearningPath{
			Immediate: []string{"Review explanation"},
			Future:    []string{"Practice more questions"},
			Resources: []string{"Study materials"},
		},
		Fallback: true,
	}
	if correct {
		fb.Score = 100
		fb.Strengths = []string{"Correct answer"}
		fb.Improvements = []string{}
	} else {
		fb.Score = 0
		fb.Strengths = []string{"Attempted the question"}
		fb.Improvements = []string{"Review the correct answer and explanation"}
	}
	if parser.StripFences(raw) == "" {
		fb.FeedbackText = "Your answer is incorrect. Review the explanation and try a similar question."
		if correct {
			fb.FeedbackText = "Your answer is correct. Well done."
		}
	}
	return fb
}
