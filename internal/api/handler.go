// Package api provides HTTP handlers for the tutoring pipeline API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/ashureev/tutorpipe/internal/apperr"
	"github.com/ashureev/tutorpipe/internal/domain"
	"github.com/ashureev/tutorpipe/internal/identity"
	"github.com/ashureev/tutorpipe/internal/lock"
	"github.com/ashureev/tutorpipe/internal/metrics"
	"github.com/ashureev/tutorpipe/internal/stage"
	"github.com/ashureev/tutorpipe/internal/store"
	"github.com/go-playground/validator/v10"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Stages runs the pipeline stages on behalf of the orchestrator.
type Stages interface {
	GenerateContent(ctx context.Context, req stage.ContentRequest) (*domain.Artifact, error)
	GenerateQuestions(ctx context.Context, req stage.AssessmentRequest) ([]*domain.Question, error)
	Evaluate(ctx context.Context, req stage.EvaluationRequest) (*stage.Evaluation, error)
}

// Handler provides common handler utilities.
type Handler struct {
	repo     store.Repository
	stages   Stages
	locker   lock.Locker
	metrics  *metrics.Metrics
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler creates a new Handler with common dependencies. A nil locker
// falls back to an in-process one.
func NewHandler(repo store.Repository, stages Stages, locker lock.Locker, m *metrics.Metrics, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if locker == nil {
		locker = lock.NewMemoryLocker()
	}
	return &Handler{
		repo:     repo,
		stages:   stages,
		locker:   locker,
		metrics:  m,
		validate: newValidator(),
		logger:   logger,
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names in validation messages.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"success": false, "error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes the failure envelope.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]interface{}{"success": false, "error": message})
}

// WriteError writes err as the failure envelope with the status its kind maps to.
func WriteError(w http.ResponseWriter, err error) {
	Error(w, apperr.StatusOf(err), errorMessage(err))
}

// errorMessage returns the caller-facing text for err. Store and internal
// causes stay in the logs.
func errorMessage(err error) string {
	var e *apperr.Error
	if !errors.As(err, &e) {
		return "internal server error"
	}
	switch e.Kind {
	case apperr.KindPersistence, apperr.KindInternal:
		if e.Message != "" {
			return e.Message
		}
		return "internal server error"
	}
	return e.Error()
}

// Unauthorized is the rejection hook for identity.Middleware.
func Unauthorized(w http.ResponseWriter, _ *http.Request, err error) {
	WriteError(w, apperr.Wrap(apperr.KindAuth, err, "unauthorized"))
}

// decode reads a JSON body into dst and validates it.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}
		return apperr.Validation("invalid request body: %v", err)
	}
	if err := h.validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperr.Validation("invalid request: %v", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return apperr.Validation("%s", strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag())
}

// ownedSession loads a session and hides sessions owned by other principals.
func (h *Handler) ownedSession(ctx context.Context, sessionID, userID string) (*domain.Session, error) {
	session, err := h.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, err, "load session")
	}
	if session == nil || !session.OwnedBy(userID) {
		return nil, apperr.NotFound("session not found")
	}
	return session, nil
}

// fail logs err at the request boundary and writes the failure envelope.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := apperr.StatusOf(err)
	attrs := []any{
		"op", op,
		"kind", apperr.KindOf(err),
		"status", status,
		"error", err,
		"retryable", apperr.Retryable(err),
		"path", r.URL.Path,
		"remote_ip", identity.IPFromRequest(r),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", attrs...)
	} else {
		h.logger.Warn("Request rejected", attrs...)
	}
	WriteError(w, err)
}
