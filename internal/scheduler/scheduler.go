// Package scheduler runs periodic maintenance: handoff reminders and
// notification retention.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ashureev/agentdesk/internal/domain"
)

// cronParser accepts standard 5-field expressions and descriptors such as @hourly.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// HandoffStore finds requests that have waited too long.
type HandoffStore interface {
	ListStaleHandoffs(ctx context.Context, cutoff time.Time) ([]*domain.HandoffRequest, error)
	MarkHandoffReminded(ctx context.Context, id string, at time.Time) error
}

// Notifier delivers best-effort notifications to an operator.
type Notifier interface {
	Notify(ctx context.Context, ownerID, title, message string, kind domain.NotificationKind, metadata map[string]any)
}

// Pruner deletes read notifications older than a retention period.
type Pruner interface {
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

// Config holds job schedules and thresholds.
type Config struct {
	ReminderSchedule string
	ReminderAfter    time.Duration
	PruneSchedule    string
	Retention        time.Duration
}

// Scheduler owns the cron runner and the jobs it fires.
type Scheduler struct {
	handoffs HandoffStore
	notifier Notifier
	pruner   Pruner
	cfg      Config
	cron     *cron.Cron
	now      func() time.Time
}

// New creates a scheduler. Schedules are validated here so a bad
// expression fails at startup rather than silently never firing.
func New(handoffs HandoffStore, notifier Notifier, pruner Pruner, cfg Config) (*Scheduler, error) {
	for name, expr := range map[string]string{"reminder": cfg.ReminderSchedule, "prune": cfg.PruneSchedule} {
		if _, err := cronParser.Parse(expr); err != nil {
			return nil, fmt.Errorf("invalid %s schedule %q: %w", name, expr, err)
		}
	}
	return &Scheduler{
		handoffs: handoffs,
		notifier: notifier,
		pruner:   pruner,
		cfg:      cfg,
		cron:     cron.New(cron.WithParser(cronParser)),
		now:      time.Now,
	}, nil
}

// Run starts the cron runner and blocks until ctx is done, then waits for
// running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.ReminderSchedule, func() {
		if _, err := s.RemindStaleHandoffs(ctx); err != nil {
			slog.Error("Handoff reminder job failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule handoff reminders: %w", err)
	}
	if _, err := s.cron.AddFunc(s.cfg.PruneSchedule, func() {
		if _, err := s.PruneNotifications(ctx); err != nil {
			slog.Error("Notification retention job failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule notification retention: %w", err)
	}

	s.cron.Start()
	slog.Info("Scheduler started",
		"reminder_schedule", s.cfg.ReminderSchedule, "reminder_after", s.cfg.ReminderAfter,
		"prune_schedule", s.cfg.PruneSchedule, "retention", s.cfg.Retention)

	<-ctx.Done()
	<-s.cron.Stop().Done()
	slog.Info("Scheduler shutting down", "reason", ctx.Err())
	return nil
}

// RunOnce runs every job immediately.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	_, remindErr := s.RemindStaleHandoffs(ctx)
	_, pruneErr := s.PruneNotifications(ctx)
	return errors.Join(remindErr, pruneErr)
}

// RemindStaleHandoffs sends one warning to the requester of every pending
// handoff older than ReminderAfter. It returns how many were reminded.
func (s *Scheduler) RemindStaleHandoffs(ctx context.Context) (int, error) {
	now := s.now()
	stale, err := s.handoffs.ListStaleHandoffs(ctx, now.Add(-s.cfg.ReminderAfter))
	if err != nil {
		return 0, fmt.Errorf("list stale handoffs: %w", err)
	}

	reminded := 0
	for _, req := range stale {
		// Mark first so a failing notifier cannot cause repeat reminders.
		if err := s.handoffs.MarkHandoffReminded(ctx, req.ID, now); err != nil {
			slog.Warn("Failed to mark handoff reminded", "request_id", req.ID, "error", err)
			continue
		}
		s.notifier.Notify(ctx, req.FromOperatorID, "Handoff still pending",
			fmt.Sprintf("No one has accepted your handoff request from %s yet.", req.CreatedAt.Format("Jan 2 15:04")),
			domain.NotificationWarning,
			map[string]any{"chat_id": req.SessionID, "request_id": req.ID},
		)
		reminded++
	}
	if reminded > 0 {
		slog.Info("Handoff reminders sent", "count", reminded)
	}
	return reminded, nil
}

// PruneNotifications deletes read notifications past retention.
func (s *Scheduler) PruneNotifications(ctx context.Context) (int64, error) {
	n, err := s.pruner.Prune(ctx, s.cfg.Retention)
	if err != nil {
		return 0, fmt.Errorf("prune notifications: %w", err)
	}
	if n > 0 {
		slog.Info("Pruned read notifications", "count", n, "retention", s.cfg.Retention)
	}
	return n, nil
}
