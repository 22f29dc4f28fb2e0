package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pratik-mahalle/wiman/internal/domain/subscription"
	"github.com/pratik-mahalle/wiman/internal/pkg/errors"
	"github.com/pratik-mahalle/wiman/internal/testutil"
)

func newPending(userID int64, planID string) *subscription.Subscription {
	return &subscription.Subscription{
		ID:        uuid.NewString(),
		UserID:    userID,
		PlanID:    planID,
		Status:    subscription.StatusPending,
		CreatedAt: testutil.Epoch,
	}
}

func TestSubscriptionRepository_Create(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.CleanupDB(db)

	repo := NewSubscriptionRepository(db, time.Second)
	ctx := context.Background()

	first := newPending(1, "basic-1h")
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tests := []struct {
		name     string
		sub      *subscription.Subscription
		wantCode string
	}{
		{"second open subscription for the same user", newPending(1, "premium-1w"), errors.ErrCodeDuplicateActive},
		{"different user", newPending(2, "basic-1h"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.Create(ctx, tt.sub)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("Create() error = %v", err)
				}
				return
			}
			if !errors.HasCode(err, tt.wantCode) {
				t.Errorf("Create() error = %v, want %s", err, tt.wantCode)
			}
		})
	}

	got, err := repo.GetByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != subscription.StatusPending || got.StartAt != nil || got.ExpiresAt != nil {
		t.Errorf("stored subscription = %+v, want pending without a window", got)
	}

	if _, err := repo.GetByID(ctx, uuid.NewString()); !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Errorf("GetByID() of a missing row error = %v, want NOT_FOUND", err)
	}
}

func TestSubscriptionRepository_ActivateOnce(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.CleanupDB(db)

	repo := NewSubscriptionRepository(db, time.Second)
	ctx := context.Background()

	sub := newPending(1, "premium-1w")
	if err := repo.Create(ctx, sub); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	start := testutil.Epoch
	end := start.Add(7 * 24 * time.Hour)

	ok, err := repo.Activate(ctx, sub.ID, "pay-1", start, end, start)
	if err != nil || !ok {
		t.Fatalf("Activate() = %v, %v, want true", ok, err)
	}

	// The row is no longer pending so a replay must not touch it
	ok, err = repo.Activate(ctx, sub.ID, "pay-2", start.Add(time.Hour), end.Add(time.Hour), start)
	if err != nil || ok {
		t.Fatalf("second Activate() = %v, %v, want false", ok, err)
	}

	got, _ := repo.GetByID(ctx, sub.ID)
	if got.PaymentID != "pay-1" || !got.ExpiresAt.Equal(end) {
		t.Errorf("subscription = %+v, want first activation kept", got)
	}
}

func TestSubscriptionRepository_ExtendCompareAndSet(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.CleanupDB(db)

	repo := NewSubscriptionRepository(db, time.Second)
	ctx := context.Background()

	sub := newPending(1, "basic-1h")
	repo.Create(ctx, sub)
	start := testutil.Epoch
	repo.Activate(ctx, sub.ID, "pay-1", start, start.Add(time.Hour), start)

	snapshot, _ := repo.GetByID(ctx, sub.ID)

	ok, err := repo.Extend(ctx, snapshot, nil, start.Add(2*time.Hour), start)
	if err != nil || !ok {
		t.Fatalf("Extend() = %v, %v, want true", ok, err)
	}

	// Same snapshot again: the deadline moved, so the update must miss
	ok, err = repo.Extend(ctx, snapshot, nil, start.Add(3*time.Hour), start)
	if err != nil || ok {
		t.Fatalf("stale Extend() = %v, %v, want false", ok, err)
	}

	got, _ := repo.GetByID(ctx, sub.ID)
	if !got.ExpiresAt.Equal(start.Add(2 * time.Hour)) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, start.Add(2*time.Hour))
	}
}

func TestSubscriptionRepository_ExtendReopenCollides(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.CleanupDB(db)

	repo := NewSubscriptionRepository(db, time.Second)
	ctx := context.Background()
	start := testutil.Epoch

	old := newPending(1, "basic-1h")
	repo.Create(ctx, old)
	repo.Activate(ctx, old.ID, "pay-1", start, start.Add(time.Hour), start)
	if n, _ := repo.ExpireDue(ctx, start.Add(2*time.Hour)); n != 1 {
		t.Fatalf("ExpireDue() = %d, want 1", n)
	}

	current := newPending(1, "basic-3h")
	current.CreatedAt = start.Add(3 * time.Hour)
	if err := repo.Create(ctx, current); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	expired, _ := repo.GetByID(ctx, old.ID)
	newStart := start.Add(3 * time.Hour)
	_, err := repo.Extend(ctx, expired, &newStart, newStart.Add(time.Hour), newStart)
	if !errors.HasCode(err, errors.ErrCodeDuplicateActive) {
		t.Errorf("Extend() error = %v, want %s", err, errors.ErrCodeDuplicateActive)
	}
}

func TestSubscriptionRepository_ExpireDue(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.CleanupDB(db)

	repo := NewSubscriptionRepository(db, time.Second)
	ctx := context.Background()
	now := testutil.Epoch.Add(24 * time.Hour)

	activate := func(userID int64, expiresAt time.Time) string {
		t.Helper()
		sub := newPending(userID, "basic-1h")
		if err := repo.Create(ctx, sub); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if ok, err := repo.Activate(ctx, sub.ID, "", testutil.Epoch, expiresAt, testutil.Epoch); !ok || err != nil {
			t.Fatalf("Activate() = %v, %v", ok, err)
		}
		return sub.ID
	}

	lapsed := activate(1, now.Add(-time.Minute))
	boundary := activate(2, now)
	running := activate(3, now.Add(time.Hour))

	pending := newPending(4, "basic-1h")
	repo.Create(ctx, pending)

	// Legacy row with no status
	legacy := uuid.NewString()
	if _, err := db.Exec(`INSERT INTO subscriptions (id, user_id, plan_id, status, start_at, expires_at, created_at, updated_at)
		VALUES (?, 5, 'basic-1h', NULL, ?, ?, ?, ?)`,
		legacy, testutil.Epoch.Unix(), now.Add(-time.Hour).Unix(), testutil.Epoch.Unix(), testutil.Epoch.Unix()); err != nil {
		t.Fatalf("insert legacy row: %v", err)
	}

	n, err := repo.ExpireDue(ctx, now)
	if err != nil {
		t.Fatalf("ExpireDue() error = %v", err)
	}
	if n != 2 {
		t.Errorf("ExpireDue() = %d, want 2", n)
	}

	want := map[string]subscription.Status{
		lapsed:     subscription.StatusExpired,
		boundary:   subscription.StatusActive,
		running:    subscription.StatusActive,
		pending.ID: subscription.StatusPending,
		legacy:     subscription.StatusExpired,
	}
	for id, status := range want {
		got, err := repo.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID(%s) error = %v", id, err)
		}
		if got.Status != status {
			t.Errorf("subscription %s status = %s, want %s", id, got.Status, status)
		}
	}

	n, _ = repo.ExpireDue(ctx, now)
	if n != 0 {
		t.Errorf("second ExpireDue() = %d, want 0", n)
	}
}

func TestSubscriptionRepository_NullStatusReadsAsActive(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.CleanupDB(db)

	repo := NewSubscriptionRepository(db, time.Second)
	ctx := context.Background()

	id := uuid.NewString()
	db.MustExec(`INSERT INTO subscriptions (id, user_id, plan_id, status, start_at, expires_at, created_at, updated_at)
		VALUES (?, 9, 'basic-1h', NULL, ?, ?, ?, ?)`,
		id, testutil.Epoch.Unix(), testutil.Epoch.Add(time.Hour).Unix(), testutil.Epoch.Unix(), testutil.Epoch.Unix())

	open, err := repo.GetOpenByUser(ctx, 9)
	if err != nil || open == nil {
		t.Fatalf("GetOpenByUser() = %v, %v", open, err)
	}
	if open.Status != subscription.StatusActive {
		t.Errorf("Status = %s, want active", open.Status)
	}

	subs, total, err := repo.List(ctx, subscription.Filter{Status: subscription.StatusActive}, 10, 0)
	if err != nil || total != 1 || len(subs) != 1 {
		t.Errorf("List(active) = %d rows, total %d, err %v, want the legacy row", len(subs), total, err)
	}

	ok, err := repo.Cancel(ctx, id, testutil.Epoch)
	if err != nil || !ok {
		t.Errorf("Cancel() = %v, %v, want true", ok, err)
	}
}

func TestSubscriptionRepository_List(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.CleanupDB(db)

	repo := NewSubscriptionRepository(db, time.Second)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		sub := newPending(i, "basic-1h")
		sub.CreatedAt = testutil.Epoch.Add(time.Duration(i) * time.Minute)
		repo.Create(ctx, sub)
	}
	enterprise := newPending(4, "enterprise-1m")
	repo.Create(ctx, enterprise)
	repo.Cancel(ctx, enterprise.ID, testutil.Epoch)

	tests := []struct {
		name      string
		filter    subscription.Filter
		limit     int
		wantRows  int
		wantTotal int64
	}{
		{"all", subscription.Filter{}, 10, 4, 4},
		{"paged", subscription.Filter{}, 2, 2, 4},
		{"by plan", subscription.Filter{PlanID: "basic-1h"}, 10, 3, 3},
		{"by user", subscription.Filter{UserID: 2}, 10, 1, 1},
		{"cancelled", subscription.Filter{Status: subscription.StatusCancelled}, 10, 1, 1},
		{"active", subscription.Filter{Status: subscription.StatusActive}, 10, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subs, total, err := repo.List(ctx, tt.filter, tt.limit, 0)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(subs) != tt.wantRows || total != tt.wantTotal {
				t.Errorf("List() = %d rows, total %d, want %d, %d", len(subs), total, tt.wantRows, tt.wantTotal)
			}
		})
	}
}
