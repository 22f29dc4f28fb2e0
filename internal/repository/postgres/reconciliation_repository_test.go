package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pratik-mahalle/wiman/internal/domain/payment"
	"github.com/pratik-mahalle/wiman/internal/pkg/errors"
	"github.com/pratik-mahalle/wiman/internal/testutil"
)

func queue(t *testing.T, repo payment.ReconciliationRepository, reason payment.Reason, next *time.Time) *payment.Entry {
	t.Helper()
	e := &payment.Entry{
		ID:            uuid.NewString(),
		Reason:        reason,
		Payload:       `{"Body":{}}`,
		NextAttemptAt: next,
		CreatedAt:     testutil.Epoch,
	}
	if err := repo.Create(context.Background(), e); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return e
}

func TestReconciliationRepository_Due(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.CleanupDB(db)

	repo := NewReconciliationRepository(db, time.Second)
	ctx := context.Background()
	now := testutil.Epoch.Add(time.Hour)
	later := now.Add(time.Minute)

	dueNow := queue(t, repo, payment.ReasonActivationFailed, nil)
	dueAt := queue(t, repo, payment.ReasonActivationFailed, &now)
	queue(t, repo, payment.ReasonActivationFailed, &later)
	queue(t, repo, payment.ReasonMalformed, nil)

	due, err := repo.Due(ctx, payment.ReasonActivationFailed, now, 10)
	if err != nil {
		t.Fatalf("Due() error = %v", err)
	}
	got := map[string]bool{}
	for _, e := range due {
		got[e.ID] = true
	}
	if len(due) != 2 || !got[dueNow.ID] || !got[dueAt.ID] {
		t.Errorf("Due() = %v, want %s and %s", got, dueNow.ID, dueAt.ID)
	}

	limited, _ := repo.Due(ctx, payment.ReasonActivationFailed, later, 1)
	if len(limited) != 1 {
		t.Errorf("Due() with limit 1 returned %d entries", len(limited))
	}
}

func TestReconciliationRepository_RescheduleAndClose(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.CleanupDB(db)

	repo := NewReconciliationRepository(db, time.Second)
	ctx := context.Background()
	now := testutil.Epoch

	e := queue(t, repo, payment.ReasonActivationFailed, nil)

	next := now.Add(2 * time.Minute)
	if err := repo.Reschedule(ctx, e.ID, 1, next, "storage unavailable", now); err != nil {
		t.Fatalf("Reschedule() error = %v", err)
	}
	if due, _ := repo.Due(ctx, payment.ReasonActivationFailed, now.Add(time.Minute), 10); len(due) != 0 {
		t.Errorf("rescheduled entry is due before its next attempt")
	}

	list, _, _ := repo.List(ctx, payment.EntryOpen, 10, 0)
	if len(list) != 1 || list[0].Attempts != 1 || list[0].Detail != "storage unavailable" {
		t.Fatalf("open entries = %+v", list)
	}

	if err := repo.Close(ctx, e.ID, payment.EntryResolved, "activated", now.Add(3*time.Minute)); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	tests := []struct {
		name string
		fn   func() error
	}{
		{"close twice", func() error { return repo.Close(ctx, e.ID, payment.EntryAbandoned, "", now) }},
		{"reschedule a closed entry", func() error { return repo.Reschedule(ctx, e.ID, 2, next, "", now) }},
		{"close a missing entry", func() error { return repo.Close(ctx, uuid.NewString(), payment.EntryResolved, "", now) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.HasCode(err, errors.ErrCodeNotFound) {
				t.Errorf("error = %v, want NOT_FOUND", err)
			}
		})
	}

	resolved, total, err := repo.List(ctx, payment.EntryResolved, 10, 0)
	if err != nil || total != 1 {
		t.Fatalf("List(resolved) total = %d, err %v", total, err)
	}
	if resolved[0].ResolvedAt == nil || resolved[0].NextAttemptAt != nil {
		t.Errorf("resolved entry = %+v, want resolved_at set and next attempt cleared", resolved[0])
	}
}
