//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ashureev/tutorpipe/internal/apperr"
	"github.com/ashureev/tutorpipe/internal/domain"
	"github.com/ashureev/tutorpipe/internal/oracle"
	"github.com/ashureev/tutorpipe/internal/stage"
	"github.com/ashureev/tutorpipe/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice = "user-alice"
	bob   = "user-bob"
)

// tokenVerifier accepts "token-<user>".
type tokenVerifier struct{}

func (tokenVerifier) Verify(_ context.Context, token string) (string, error) {
	user, ok := strings.CutPrefix(token, "token-")
	if !ok || user == "" {
		return "", errors.New("bad token")
	}
	return user, nil
}

type scriptedOracle struct {
	mu      sync.Mutex
	replies []string
	err     error
}

func (o *scriptedOracle) Generate(context.Context, string, oracle.Params) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return "", o.err
	}
	reply := o.replies[0]
	if len(o.replies) > 1 {
		o.replies = o.replies[1:]
	}
	return reply, nil
}

func newRepo(t *testing.T) store.Repository {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "tutor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func newRouter(repo store.Repository, stages Stages) http.Handler {
	r := chi.NewRouter()
	Mount(r, NewHandler(repo, stages, nil, nil, nil), NewHealthHandler(repo, 0), tokenVerifier{})
	return r
}

func newPipelineRouter(repo store.Repository, o oracle.Oracle) http.Handler {
	return newRouter(repo, stage.New(stage.Config{Repo: repo, Oracle: o, Model: "test-model"}))
}

func do(t *testing.T, h http.Handler, method, path, user string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	if user != "" {
		r.Header.Set("Authorization", "Bearer token-"+user)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got), "body: %s", w.Body.String())
	return w, got
}

func newSession(t *testing.T, repo store.Repository, user string) *domain.Session {
	t.Helper()
	s := &domain.Session{UserID: user, Title: "Plant biology", Objectives: []string{"Light reactions"}}
	require.NoError(t, repo.CreateSession(context.Background(), s))
	return s
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestWriteError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"validation", apperr.Validation("topic is required"), http.StatusBadRequest, "topic is required"},
		{"oracle", apperr.Wrap(apperr.KindOracle, errors.New("upstream 503"), "generate content"), http.StatusBadGateway, "generate content: upstream 503"},
		{"persistence hides cause", apperr.Wrap(apperr.KindPersistence, errors.New("disk I/O error"), "store artifact"), http.StatusInternalServerError, "store artifact"},
		{"untyped", errors.New("boom"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tc.err)
			assert.Equal(t, tc.status, w.Code)

			var got map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, false, got["success"])
			assert.Equal(t, tc.msg, got["error"])
		})
	}
}

func TestFailLogsRequestContext(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(newRepo(t), nil, nil, nil, slog.New(slog.NewJSONHandler(&buf, nil)))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/stages/content", nil)
	r.RemoteAddr = "203.0.113.7:51234"
	h.fail(w, r, "content", apperr.Conflict("content is already running for this session"))
	assert.Equal(t, http.StatusConflict, w.Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Request rejected", entry["msg"])
	assert.Equal(t, "203.0.113.7", entry["remote_ip"])
	assert.Equal(t, true, entry["retryable"])
	assert.Equal(t, "content", entry["op"])

	buf.Reset()
	h.fail(httptest.NewRecorder(), r, "content", apperr.Validation("topic is required"))
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, false, entry["retryable"])
}

func TestStagesRequireBearerToken(t *testing.T) {
	h := newPipelineRouter(newRepo(t), &scriptedOracle{replies: []string{"unused"}})

	for _, path := range []string{"/api/stages/content", "/api/stages/assessment", "/api/stages/evaluation"} {
		w, got := do(t, h, http.MethodPost, path, "", map[string]any{})
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
		assert.Equal(t, false, got["success"])
	}
}

func TestHealth(t *testing.T) {
	h := newPipelineRouter(newRepo(t), &scriptedOracle{replies: []string{"unused"}})
	w, got := do(t, h, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", got["status"])
}

type downDB struct{}

func (downDB) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealthDegraded(t *testing.T) {
	w := httptest.NewRecorder()
	NewHealthHandler(downDB{}, 0).Health(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "unreachable")
}
