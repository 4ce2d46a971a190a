package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ashureev/agentdesk/internal/domain"
	"github.com/ashureev/agentdesk/internal/notify"
	"github.com/ashureev/agentdesk/internal/store"
)

func testConfig() Config {
	return Config{
		ReminderSchedule: "*/15 * * * *",
		ReminderAfter:    24 * time.Hour,
		PruneSchedule:    "@daily",
		Retention:        30 * 24 * time.Hour,
	}
}

func newStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "scheduler.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func pendingHandoff(t *testing.T, repo *store.SQLiteStore, owner string, at time.Time) *domain.HandoffRequest {
	t.Helper()
	ctx := context.Background()
	sess := &domain.ChatSession{
		ID:           uuid.NewString(),
		OwnerID:      owner,
		AgentOwnerID: owner,
		AgentType:    domain.AgentTypeCoach,
		Status:       domain.SessionStatusActive,
		CreatedAt:    at,
		UpdatedAt:    at,
	}
	require.NoError(t, repo.CreateSession(ctx, sess))
	req := &domain.HandoffRequest{ID: uuid.NewString(), SessionID: sess.ID, FromOperatorID: owner, CreatedAt: at}
	require.NoError(t, repo.RequestHandoff(ctx, req))
	return req
}

func TestNewRejectsBadSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.PruneSchedule = "every day"
	_, err := New(nil, nil, nil, cfg)
	assert.Error(t, err)
}

func TestRemindStaleHandoffsOnce(t *testing.T) {
	repo := newStore(t)
	svc := notify.NewService(repo, notify.NewHub())
	ctx := context.Background()

	stale := pendingHandoff(t, repo, "op-a", time.Now().Add(-48*time.Hour))
	pendingHandoff(t, repo, "op-b", time.Now().Add(-time.Hour))

	s, err := New(repo, svc, svc, testConfig())
	require.NoError(t, err)

	n, err := s.RemindStaleHandoffs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	items, err := svc.List(ctx, "op-a", 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, domain.NotificationWarning, items[0].Kind)
	assert.Equal(t, stale.ID, items[0].Metadata["request_id"])

	fresh, err := svc.List(ctx, "op-b", 0)
	require.NoError(t, err)
	assert.Empty(t, fresh)

	n, err = s.RemindStaleHandoffs(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunOncePrunes(t *testing.T) {
	repo := newStore(t)
	svc := notify.NewService(repo, notify.NewHub())
	ctx := context.Background()

	n := &domain.Notification{
		ID:        uuid.NewString(),
		OwnerID:   "op-a",
		Title:     "old",
		Kind:      domain.NotificationInfo,
		CreatedAt: time.Now().Add(-90 * 24 * time.Hour),
	}
	require.NoError(t, repo.CreateNotification(ctx, n))
	require.NoError(t, repo.MarkNotificationRead(ctx, "op-a", n.ID))

	s, err := New(repo, svc, svc, testConfig())
	require.NoError(t, err)
	require.NoError(t, s.RunOnce(ctx))

	items, err := repo.ListNotifications(ctx, "op-a", 10)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRunStopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, err := New(nil, nil, nil, testConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
