package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ashureev/tutorpipe/internal/apperr"
	"github.com/ashureev/tutorpipe/internal/domain"
	"github.com/ashureev/tutorpipe/internal/identity"
	"github.com/ashureev/tutorpipe/internal/lock"
	"github.com/ashureev/tutorpipe/internal/stage"
	"github.com/go-chi/chi/v5"
)

type contentStageRequest struct {
	SessionID          string   `json:"sessionId" validate:"required"`
	Topic              string   `json:"topic" validate:"required"`
	LearningObjectives []string `json:"learningObjectives" validate:"required"`
	DifficultyLevel    int      `json:"difficultyLevel" validate:"required,min=1,max=5"`
	ContentType        string   `json:"contentType"`
}

type assessmentStageRequest struct {
	SessionID         string `json:"sessionId" validate:"required"`
	ContentID         string `json:"contentId"`
	QuestionType      string `json:"questionType"`
	NumberOfQuestions int    `json:"numberOfQuestions" validate:"required,min=1,max=20"`
	DifficultyLevel   int    `json:"difficultyLevel" validate:"required,min=1,max=5"`
}

type evaluationStageRequest struct {
	ResponseID string `json:"responseId" validate:"required"`
	SessionID  string `json:"sessionId" validate:"required"`
}

// RegisterStages registers the stage endpoints. Callers mount them behind
// identity.Middleware.
func (h *Handler) RegisterStages(r chi.Router) {
	r.Route("/stages", func(r chi.Router) {
		r.Post("/content", h.RunContentStage)
		r.Post("/assessment", h.RunAssessmentStage)
		r.Post("/evaluation", h.RunEvaluationStage)
	})
}

// RunContentStage generates learning content for a session.
func (h *Handler) RunContentStage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := identity.UserIDFromContext(ctx)

	var req contentStageRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, "content", err)
		return
	}
	if _, err := h.ownedSession(ctx, req.SessionID, userID); err != nil {
		h.fail(w, r, "content", err)
		return
	}

	release, err := h.acquire(ctx, domain.StageContent, lock.ContentKey(req.SessionID))
	if err != nil {
		h.fail(w, r, "content", err)
		return
	}
	defer release()

	artifact, err := h.stages.GenerateContent(ctx, stage.ContentRequest{
		SessionID:          req.SessionID,
		UserID:             userID,
		Topic:              req.Topic,
		LearningObjectives: req.LearningObjectives,
		DifficultyLevel:    req.DifficultyLevel,
		ContentType:        req.ContentType,
	})
	if err != nil {
		h.fail(w, r, "content", err)
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"content": artifact,
		"message": "Educational content generated successfully",
	})
}

// RunAssessmentStage generates a question batch for a session.
func (h *Handler) RunAssessmentStage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := identity.UserIDFromContext(ctx)

	var req assessmentStageRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, "assessment", err)
		return
	}
	questionType := domain.QuestionMCQ
	if req.QuestionType != "" {
		qt, ok := domain.ParseQuestionType(req.QuestionType)
		if !ok {
			h.fail(w, r, "assessment", apperr.Validation("questionType must be one of [mcq open]"))
			return
		}
		questionType = qt
	}
	session, err := h.ownedSession(ctx, req.SessionID, userID)
	if err != nil {
		h.fail(w, r, "assessment", err)
		return
	}

	release, err := h.acquire(ctx, domain.StageAssessment, lock.AssessmentKey(req.SessionID))
	if err != nil {
		h.fail(w, r, "assessment", err)
		return
	}
	defer release()

	questions, err := h.stages.GenerateQuestions(ctx, stage.AssessmentRequest{
		SessionID:         req.SessionID,
		UserID:            userID,
		ContentID:         req.ContentID,
		QuestionType:      questionType,
		NumberOfQuestions: req.NumberOfQuestions,
		DifficultyLevel:   req.DifficultyLevel,
	})
	if err != nil {
		h.fail(w, r, "assessment", err)
		return
	}

	h.refreshProgress(ctx, session)

	JSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"questions": questions,
		"message":   fmt.Sprintf("%d questions generated successfully", len(questions)),
	})
}

// RunEvaluationStage evaluates one submitted answer and refreshes the
// session's progress.
func (h *Handler) RunEvaluationStage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := identity.UserIDFromContext(ctx)

	var req evaluationStageRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, "evaluation", err)
		return
	}
	session, err := h.ownedSession(ctx, req.SessionID, userID)
	if err != nil {
		h.fail(w, r, "evaluation", err)
		return
	}

	release, err := h.acquire(ctx, domain.StageEvaluation, lock.EvaluationKey(req.ResponseID))
	if err != nil {
		h.fail(w, r, "evaluation", err)
		return
	}
	defer release()

	eval, err := h.stages.Evaluate(ctx, stage.EvaluationRequest{
		SessionID:  req.SessionID,
		UserID:     userID,
		ResponseID: req.ResponseID,
	})
	if err != nil {
		h.fail(w, r, "evaluation", err)
		return
	}

	h.refreshProgress(ctx, session)

	JSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"feedback":    eval.Feedback,
		"performance": eval.Performance,
		"message":     "Feedback generated successfully",
	})
}

// acquire takes the advisory lock for one stage run.
func (h *Handler) acquire(ctx context.Context, tag domain.StageTag, key string) (func(), error) {
	release, err := h.locker.TryAcquire(ctx, key)
	if errors.Is(err, lock.ErrHeld) {
		h.metrics.LockConflict(string(tag))
		return nil, apperr.Conflict("%s is already running for this session", tag)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "acquire stage lock")
	}
	return release, nil
}

// refreshProgress recomputes progress from answered and total questions.
// Reaching 100 completes the session; a completed session whose progress
// drops below 100 because new questions arrived is reopened. Failures are
// logged only; the stage output has already been stored.
func (h *Handler) refreshProgress(ctx context.Context, session *domain.Session) {
	answered, total, err := h.repo.SessionProgress(ctx, session.ID)
	if err != nil {
		h.logger.Error("Failed to count session progress", "session_id", session.ID, "error", err)
		return
	}

	progress := domain.ProgressFor(answered, total)
	status := session.Status
	switch {
	case progress == 100:
		status = domain.SessionCompleted
	case session.Status == domain.SessionCompleted && session.Progress == 100:
		status = domain.SessionActive
	}
	if progress == session.Progress && status == session.Status {
		return
	}
	if err := h.repo.UpdateSessionProgress(ctx, session.ID, progress, status); err != nil {
		h.logger.Error("Failed to update session progress", "session_id", session.ID, "error", err)
		return
	}
	switch {
	case status == session.Status:
	case status == domain.SessionCompleted:
		h.logger.Info("Session completed", "session_id", session.ID)
	default:
		h.logger.Info("Session reopened", "session_id", session.ID, "progress", progress)
	}
}
