package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/ashureev/tutorpipe/internal/domain"
	"github.com/ashureev/tutorpipe/internal/identity"
	"github.com/ashureev/tutorpipe/internal/lock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionLifecycle(t *testing.T) {
	repo := newRepo(t)
	h := newPipelineRouter(repo, &scriptedOracle{replies: []string{"unused"}})

	w, got := do(t, h, http.MethodPost, "/api/sessions", alice, map[string]any{
		"title":      "Cell biology",
		"objectives": []string{"Organelles"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := got["session"].(map[string]any)
	id := created["id"].(string)
	assert.Equal(t, "active", created["status"])
	assert.Equal(t, 0.0, created["progress"])
	assert.Equal(t, alice, created["user_id"])

	w, got = do(t, h, http.MethodGet, "/api/sessions", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, got["sessions"], 1)

	w, got = do(t, h, http.MethodGet, "/api/sessions", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, got["sessions"])

	w, _ = do(t, h, http.MethodGet, "/api/sessions/"+id, bob, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, got = do(t, h, http.MethodPatch, "/api/sessions/"+id+"/status", alice, map[string]any{"status": "paused"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "paused", got["session"].(map[string]any)["status"])

	w, _ = do(t, h, http.MethodPatch, "/api/sessions/"+id+"/status", alice, map[string]any{"status": "archived"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, got = do(t, h, http.MethodPatch, "/api/sessions/"+id+"/status", alice, map[string]any{"status": "completed"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, got["session"].(map[string]any)["completed_at"])
}

func TestSubmitResponseDerivesCorrectness(t *testing.T) {
	repo := newRepo(t)
	session := newSession(t, repo, alice)
	questions := seedQuestions(t, repo, session.ID)
	h := newPipelineRouter(repo, &scriptedOracle{replies: []string{"unused"}})

	path := "/api/sessions/" + session.ID + "/responses"
	_, got := do(t, h, http.MethodPost, path, alice, map[string]any{"questionId": questions[0].ID, "answer": "O2", "is_correct": false})
	assert.Equal(t, true, got["response"].(map[string]any)["is_correct"])

	_, got = do(t, h, http.MethodPost, path, alice, map[string]any{"questionId": questions[0].ID, "answer": "o2"})
	assert.Equal(t, false, got["response"].(map[string]any)["is_correct"])

	other := newSession(t, repo, alice)
	w, _ := do(t, h, http.MethodPost, "/api/sessions/"+other.ID+"/responses", alice, map[string]any{"questionId": questions[0].ID, "answer": "O2"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListQuestionsAndMessages(t *testing.T) {
	repo := newRepo(t)
	session := newSession(t, repo, alice)
	h := newPipelineRouter(repo, &scriptedOracle{replies: []string{twoQuestions}})

	w, _ := do(t, h, http.MethodPost, "/api/stages/assessment", alice, map[string]any{
		"sessionId":         session.ID,
		"numberOfQuestions": 2,
		"difficultyLevel":   2,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w, got := do(t, h, http.MethodGet, "/api/sessions/"+session.ID+"/questions", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, got["questions"], 2)

	w, got = do(t, h, http.MethodGet, "/api/sessions/"+session.ID+"/messages", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	types := map[string]bool{}
	for _, m := range got["messages"].([]any) {
		types[m.(map[string]any)["message_type"].(string)] = true
	}
	assert.True(t, types[string(domain.MsgQuestionsPreview)])
	assert.True(t, types[string(domain.MsgAssessmentReady)])
	assert.True(t, types[string(domain.MsgQuestionsReady)])

	w, _ = do(t, h, http.MethodGet, "/api/sessions/"+session.ID+"/messages", bob, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubjects(t *testing.T) {
	repo := newRepo(t)
	h := newPipelineRouter(repo, &scriptedOracle{replies: []string{"unused"}})

	for _, name := range []string{"Physics", "Biology"} {
		w, got := do(t, h, http.MethodPost, "/api/subjects", alice, map[string]any{"name": name, "category": "science"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, 1.0, got["subject"].(map[string]any)["difficulty_level"])
	}

	w, _ := do(t, h, http.MethodPost, "/api/subjects", alice, map[string]any{"category": "science"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, got := do(t, h, http.MethodGet, "/api/subjects", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	subjects := got["subjects"].([]any)
	require.Len(t, subjects, 2)
	assert.Equal(t, "Biology", subjects[0].(map[string]any)["name"])
}

// heldLocker reports every key as held.
type heldLocker struct{}

func (heldLocker) TryAcquire(context.Context, string) (func(), error) { return nil, lock.ErrHeld }

func TestEvaluationConflictWhenLockHeld(t *testing.T) {
	repo := newRepo(t)
	session := newSession(t, repo, alice)
	stages := &blockingStages{started: make(chan struct{}), release: make(chan struct{})}
	h := NewHandler(repo, stages, heldLocker{}, nil, nil)

	asAlice := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.RunEvaluationStage(w, r.WithContext(identity.WithUserID(r.Context(), alice)))
	})

	w, got := do(t, asAlice, http.MethodPost, "/", "", map[string]any{
		"sessionId":  session.ID,
		"responseId": "r-1",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, got["error"], "already running")
}
