package api

import (
	"errors"
	"net/http"

	"github.com/ashureev/tutorpipe/internal/apperr"
	"github.com/ashureev/tutorpipe/internal/domain"
	"github.com/ashureev/tutorpipe/internal/identity"
	"github.com/ashureev/tutorpipe/internal/store"
	"github.com/go-chi/chi/v5"
)

type createSessionRequest struct {
	Title      string   `json:"title" validate:"required"`
	SubjectID  string   `json:"subjectId"`
	Objectives []string `json:"objectives"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active paused completed"`
}

type submitResponseRequest struct {
	QuestionID string `json:"questionId" validate:"required"`
	Answer     string `json:"answer"`
	TimeSpent  int    `json:"timeSpent" validate:"min=0"`
}

type createSubjectRequest struct {
	Name            string `json:"name" validate:"required"`
	Category        string `json:"category"`
	Description     string `json:"description"`
	DifficultyLevel int    `json:"difficultyLevel" validate:"omitempty,min=1,max=5"`
}

// RegisterSessions registers the session and subject routes.
func (h *Handler) RegisterSessions(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.CreateSession)
		r.Get("/", h.ListSessions)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Patch("/status", h.UpdateSessionStatus)
			r.Get("/questions", h.ListQuestions)
			r.Post("/responses", h.SubmitResponse)
			r.Get("/messages", h.ListMessages)
		})
	})
	r.Get("/subjects", h.ListSubjects)
	r.Post("/subjects", h.CreateSubject)
}

// CreateSession starts a new active session for the principal.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, "create session", err)
		return
	}

	objectives := req.Objectives
	if objectives == nil {
		objectives = []string{}
	}
	session := &domain.Session{
		UserID:     identity.UserIDFromContext(r.Context()),
		SubjectID:  req.SubjectID,
		Title:      req.Title,
		Objectives: objectives,
		Status:     domain.SessionActive,
	}
	if err := h.repo.CreateSession(r.Context(), session); err != nil {
		h.fail(w, r, "create session", apperr.Wrap(apperr.KindPersistence, err, "create session"))
		return
	}

	h.logger.Info("Session created", "session_id", session.ID, "user_id", session.UserID)
	JSON(w, http.StatusCreated, map[string]interface{}{"success": true, "session": session})
}

// ListSessions returns the principal's sessions, most recent first.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.repo.ListSessions(r.Context(), identity.UserIDFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, "list sessions", apperr.Wrap(apperr.KindPersistence, err, "list sessions"))
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"success": true, "sessions": sessions})
}

// GetSession returns one of the principal's sessions.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.ownedSession(r.Context(), chi.URLParam(r, "sessionID"), identity.UserIDFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, "get session", err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"success": true, "session": session})
}

// UpdateSessionStatus moves a session between active, paused and completed.
func (h *Handler) UpdateSessionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req updateStatusRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, "update status", err)
		return
	}
	session, err := h.ownedSession(ctx, chi.URLParam(r, "sessionID"), identity.UserIDFromContext(ctx))
	if err != nil {
		h.fail(w, r, "update status", err)
		return
	}

	status := domain.SessionStatus(req.Status)
	if err := h.repo.UpdateSessionStatus(ctx, session.ID, status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.fail(w, r, "update status", apperr.NotFound("session not found"))
			return
		}
		h.fail(w, r, "update status", apperr.Wrap(apperr.KindPersistence, err, "update session status"))
		return
	}

	updated, err := h.repo.GetSession(ctx, session.ID)
	if err != nil {
		h.fail(w, r, "update status", apperr.Wrap(apperr.KindPersistence, err, "reload session"))
		return
	}
	if updated == nil {
		h.fail(w, r, "update status", apperr.NotFound("session not found"))
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"success": true, "session": updated})
}

// ListQuestions returns a session's questions in creation order.
func (h *Handler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, err := h.ownedSession(ctx, chi.URLParam(r, "sessionID"), identity.UserIDFromContext(ctx))
	if err != nil {
		h.fail(w, r, "list questions", err)
		return
	}
	questions, err := h.repo.ListQuestions(ctx, session.ID)
	if err != nil {
		h.fail(w, r, "list questions", apperr.Wrap(apperr.KindPersistence, err, "list questions"))
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"success": true, "questions": questions})
}

// SubmitResponse records an answer. Correctness is decided here by exact
// match against the stored answer, never by the caller.
func (h *Handler) SubmitResponse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := identity.UserIDFromContext(ctx)

	var req submitResponseRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, "submit response", err)
		return
	}
	session, err := h.ownedSession(ctx, chi.URLParam(r, "sessionID"), userID)
	if err != nil {
		h.fail(w, r, "submit response", err)
		return
	}

	question, err := h.repo.GetQuestion(ctx, req.QuestionID)
	if err != nil {
		h.fail(w, r, "submit response", apperr.Wrap(apperr.KindPersistence, err, "load question"))
		return
	}
	if question == nil || question.SessionID != session.ID {
		h.fail(w, r, "submit response", apperr.NotFound("question not found"))
		return
	}

	response := &domain.UserResponse{
		QuestionID: question.ID,
		SessionID:  session.ID,
		UserID:     userID,
		Answer:     req.Answer,
		IsCorrect:  question.IsCorrect(req.Answer),
		TimeSpent:  req.TimeSpent,
	}
	if err := h.repo.CreateResponse(ctx, response); err != nil {
		h.fail(w, r, "submit response", apperr.Wrap(apperr.KindPersistence, err, "store response"))
		return
	}

	JSON(w, http.StatusCreated, map[string]interface{}{"success": true, "response": response})
}

// ListMessages returns the session's inter-stage message trail.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, err := h.ownedSession(ctx, chi.URLParam(r, "sessionID"), identity.UserIDFromContext(ctx))
	if err != nil {
		h.fail(w, r, "list messages", err)
		return
	}
	messages, err := h.repo.ListAgentMessages(ctx, session.ID)
	if err != nil {
		h.fail(w, r, "list messages", apperr.Wrap(apperr.KindPersistence, err, "list messages"))
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"success": true, "messages": messages})
}

// ListSubjects returns the subject catalogue.
func (h *Handler) ListSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.repo.ListSubjects(r.Context())
	if err != nil {
		h.fail(w, r, "list subjects", apperr.Wrap(apperr.KindPersistence, err, "list subjects"))
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"success": true, "subjects": subjects})
}

// CreateSubject adds a catalogue subject.
func (h *Handler) CreateSubject(w http.ResponseWriter, r *http.Request) {
	var req createSubjectRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, "create subject", err)
		return
	}
	subject := &domain.Subject{
		Name:            req.Name,
		Category:        req.Category,
		Description:     req.Description,
		DifficultyLevel: req.DifficultyLevel,
	}
	if subject.DifficultyLevel == 0 {
		subject.DifficultyLevel = 1
	}
	if err := h.repo.CreateSubject(r.Context(), subject); err != nil {
		h.fail(w, r, "create subject", apperr.Wrap(apperr.KindPersistence, err, "create subject"))
		return
	}
	JSON(w, http.StatusCreated, map[string]interface{}{"success": true, "subject": subject})
}
