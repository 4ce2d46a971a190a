package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/agentdesk/internal/domain"
	"github.com/ashureev/agentdesk/internal/identity"
	"github.com/ashureev/agentdesk/internal/store"
)

type fixture struct {
	repo   *store.SQLiteStore
	svc    *Service
	router chi.Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "notify.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	for _, op := range []*domain.Operator{
		{ID: "op-a", Name: "Asha", TokenHash: identity.HashToken("adk_a"), CreatedAt: time.Now()},
		{ID: "op-b", Name: "Bala", TokenHash: identity.HashToken("adk_b"), CreatedAt: time.Now()},
	} {
		require.NoError(t, repo.CreateOperator(context.Background(), op))
	}

	svc := NewService(repo, NewHub())
	h := NewHandler(svc, NewStreamHandler(svc, []string{"*"}, time.Second))
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo))
		r.Route("/api", h.RegisterRoutes)
	})
	return &fixture{repo: repo, svc: svc, router: r}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestServiceCreatePublishes(t *testing.T) {
	f := newFixture(t)
	ch, unsub := f.svc.Hub().Subscribe("op-a")
	defer unsub()

	n, err := f.svc.Create(context.Background(), "op-a", "Handoff accepted", "Bala took over", domain.NotificationSuccess, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, map[string]any{}, n.Metadata)

	select {
	case got := <-ch:
		assert.Equal(t, n.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("notification was not published")
	}
}

func TestServiceCreateValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), "op-a", "  ", "x", domain.NotificationInfo, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.Create(context.Background(), "op-a", "title", "x", domain.NotificationKind("urgent"), nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestServiceNotifySurvivesCancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f.svc.Notify(ctx, "op-a", "Reminder", "pending", domain.NotificationWarning, nil)

	count, err := f.svc.UnreadCount(context.Background(), "op-a")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestServiceListClampsLimit(t *testing.T) {
	f := newFixture(t)
	base := time.Now()
	for i := 0; i < 60; i++ {
		f.svc.now = func() time.Time { return base.Add(time.Duration(i) * time.Second) }
		_, err := f.svc.Create(context.Background(), "op-a", fmt.Sprintf("n%02d", i), "", domain.NotificationInfo, nil)
		require.NoError(t, err)
	}

	items, err := f.svc.List(context.Background(), "op-a", 500)
	require.NoError(t, err)
	require.Len(t, items, MaxLimit)
	assert.Equal(t, "n59", items[0].Title)

	items, err = f.svc.List(context.Background(), "op-a", 0)
	require.NoError(t, err)
	assert.Len(t, items, DefaultLimit)

	items, err = f.svc.List(context.Background(), "op-a", 5)
	require.NoError(t, err)
	assert.Len(t, items, 5)
}

func TestServicePrune(t *testing.T) {
	f := newFixture(t)
	old := time.Now().Add(-40 * 24 * time.Hour)
	f.svc.now = func() time.Time { return old }
	readOld, err := f.svc.Create(context.Background(), "op-a", "old read", "", domain.NotificationInfo, nil)
	require.NoError(t, err)
	_, err = f.svc.Create(context.Background(), "op-a", "old unread", "", domain.NotificationInfo, nil)
	require.NoError(t, err)
	require.NoError(t, f.svc.MarkRead(context.Background(), "op-a", readOld.ID))

	f.svc.now = time.Now
	pruned, err := f.svc.Prune(context.Background(), 30*24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pruned)

	items, err := f.svc.List(context.Background(), "op-a", 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "old unread", items[0].Title)
}

func TestHandlerLifecycle(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/notifications", "adk_a", CreateRequest{Title: "Meeting", Message: "3pm", Kind: "meeting", Metadata: map[string]any{"room": "4B"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created domain.Notification
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, domain.NotificationMeeting, created.Kind)
	assert.Equal(t, "4B", created.Metadata["room"])

	w = f.do(t, http.MethodGet, "/api/notifications/unread-count", "adk_a", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"unread":1}`, w.Body.String())

	// Another operator cannot touch it.
	w = f.do(t, http.MethodPost, "/api/notifications/"+created.ID+"/read", "adk_b", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = f.do(t, http.MethodGet, "/api/notifications", "adk_b", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = f.do(t, http.MethodPost, "/api/notifications/"+created.ID+"/read", "adk_a", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = f.do(t, http.MethodGet, "/api/notifications/unread-count", "adk_a", nil)
	assert.JSONEq(t, `{"unread":0}`, w.Body.String())

	w = f.do(t, http.MethodDelete, "/api/notifications/"+created.ID, "adk_a", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = f.do(t, http.MethodDelete, "/api/notifications/"+created.ID, "adk_a", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlerMarkAllRead(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		_, err := f.svc.Create(context.Background(), "op-a", "n", "", domain.NotificationInfo, nil)
		require.NoError(t, err)
	}

	w := f.do(t, http.MethodPost, "/api/notifications/read-all", "adk_a", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"updated":3}`, w.Body.String())

	w = f.do(t, http.MethodGet, "/api/notifications/unread-count", "adk_a", nil)
	assert.JSONEq(t, `{"unread":0}`, w.Body.String())
}

func TestHandlerRejects(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/notifications", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodGet, "/api/notifications?limit=abc", "adk_a", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/notifications", "adk_a", CreateRequest{Title: "x", Kind: "urgent"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
