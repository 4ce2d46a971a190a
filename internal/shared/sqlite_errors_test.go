package shared

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestIsSQLiteConflictError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{errors.New("database is locked"), true},
		{errors.New("no such table: foo"), false},
	}
	for _, c := range cases {
		if got := IsSQLiteConflictError(c.err); got != c.want {
			t.Errorf("IsSQLiteConflictError(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestIsSQLiteUniqueError(t *testing.T) {
	if !IsSQLiteUniqueError(errors.New("constraint failed: UNIQUE constraint failed: handoff_requests.session_id (2067)")) {
		t.Error("expected unique violation to be detected")
	}
	if IsSQLiteUniqueError(errors.New("FOREIGN KEY constraint failed")) {
		t.Error("foreign key violation is not a unique violation")
	}
}

func TestRetryOnConflictRetriesBusy(t *testing.T) {
	attempts := 0
	err := RetryOnConflict(context.Background(), RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}, "test", func() error {
		attempts++
		if attempts < 3 {
			return errors.New("SQLITE_BUSY")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestRetryOnConflictStopsOnOtherErrors(t *testing.T) {
	attempts := 0
	want := errors.New("boom")
	err := RetryOnConflict(context.Background(), DefaultRetryPolicy, "test", func() error {
		attempts++
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}

func TestRetryOnConflictDefaultPolicyGivesUp(t *testing.T) {
	attempts := 0
	start := time.Now()
	err := RetryOnConflict(context.Background(), DefaultRetryPolicy, "test", func() error {
		attempts++
		return errors.New("SQLITE_BUSY")
	})
	elapsed := time.Since(start)

	if !IsSQLiteConflictError(err) {
		t.Fatalf("err = %v, want the last busy error", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
	if elapsed < 150*time.Millisecond {
		t.Fatalf("elapsed = %v, want at least 50ms+100ms of backoff", elapsed)
	}
}
