package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"activity-sync/internal/health"
	"activity-sync/internal/memstore"
	"activity-sync/internal/mocks"
	"activity-sync/internal/models"
	"activity-sync/internal/sweeps"
)

const adminToken = "s3cret"

type testEnv struct {
	router   *gin.Engine
	archiver *mocks.ArchiveRunnerMock
	cleaner  *mocks.CleanupRunnerMock
	tree     *memstore.ChatTree
	checker  *health.Checker
}

func setupAdminRouter(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	env := &testEnv{
		archiver: new(mocks.ArchiveRunnerMock),
		cleaner:  new(mocks.CleanupRunnerMock),
		tree:     memstore.NewChatTree(),
		checker:  health.NewChecker(time.Second),
	}
	log := zap.NewNop()
	env.router = NewRouter(RouterConfig{
		ServiceName: "activity-sync",
		AdminToken:  adminToken,
		Checker:     env.checker,
		Sweeps:      NewSweepHandler(env.archiver, env.cleaner, log),
		Chats:       NewChatHandler(env.tree),
		Log:         log,
	})
	return env
}

func (e *testEnv) do(method, path string, authorized bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if authorized {
		req.Header.Set("Authorization", "Bearer "+adminToken)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	env := setupAdminRouter(t)
	env.checker.Add("redis", func(context.Context) error { return nil })

	rec := env.do(http.MethodGet, "/healthz", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	env.checker.Add("postgres", func(context.Context) error { return errors.New("down") })
	rec = env.do(http.MethodGet, "/healthz", false)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var st health.Status
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&st))
	assert.Equal(t, "down", st.Components["postgres"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupAdminRouter(t)
	env.do(http.MethodGet, "/healthz", false)

	rec := env.do(http.MethodGet, "/metrics", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sync_http_requests_total")
}

func TestRunArchive(t *testing.T) {
	env := setupAdminRouter(t)
	env.archiver.On("Run", mock.Anything).Return(sweeps.ArchiveResult{Matched: 3, Archived: 3}, nil).Once()

	rec := env.do(http.MethodPost, "/sweeps/archive", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]int
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 3, resp["archived"])
	env.archiver.AssertExpectations(t)
}

func TestRunCleanupError(t *testing.T) {
	env := setupAdminRouter(t)
	env.cleaner.On("Run", mock.Anything).Return(sweeps.CleanupResult{}, assert.AnError).Once()

	rec := env.do(http.MethodPost, "/sweeps/cleanup", true)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	env.cleaner.AssertExpectations(t)
}

func TestSweepsRequireAdminToken(t *testing.T) {
	env := setupAdminRouter(t)

	rec := env.do(http.MethodPost, "/sweeps/archive", false)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	env.archiver.AssertNotCalled(t, "Run", mock.Anything)
}

func TestGetChat(t *testing.T) {
	env := setupAdminRouter(t)
	ctx := context.Background()
	require.NoError(t, env.tree.SetMember(ctx, "a1", "u1", models.ChatMember{JoinedAt: 1}))
	require.NoError(t, env.tree.UpsertMessage(ctx, models.ChatMessage{ID: "m1", ActivityID: "a1", Text: "hi", Timestamp: 2}))

	rec := env.do(http.MethodGet, "/chats/a1", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Members  map[string]models.ChatMember `json:"members"`
		Messages []struct {
			ID   string `json:"id"`
			Text string `json:"text"`
		} `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Contains(t, resp.Members, "u1")
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "m1", resp.Messages[0].ID)
	assert.Equal(t, "hi", resp.Messages[0].Text)

	rec = env.do(http.MethodGet, "/chats/missing", true)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListUserChats(t *testing.T) {
	env := setupAdminRouter(t)
	require.NoError(t, env.tree.SetUserChat(context.Background(), "u1", "a1"))

	rec := env.do(http.MethodGet, "/users/u1/chats", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"chats":["a1"]}`, rec.Body.String())
}

func TestDebugRoutesDisabledByDefault(t *testing.T) {
	env := setupAdminRouter(t)
	rec := env.do(http.MethodPost, "/debug/invocation-test", true)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
