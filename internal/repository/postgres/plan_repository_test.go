package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pratik-mahalle/wiman/internal/pkg/errors"
	"github.com/pratik-mahalle/wiman/internal/testutil"
	"github.com/pratik-mahalle/wiman/migrations"
)

func TestPlanRepository_Lookup(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.CleanupDB(db)

	repo := NewPlanRepository(db, time.Second)
	ctx := context.Background()

	tests := []struct {
		planID    string
		wantPrice int64
		wantDays  time.Duration
		wantCode  string
	}{
		{planID: "basic-1h", wantPrice: 20, wantDays: time.Hour},
		{planID: "premium-1w", wantPrice: 150, wantDays: 7 * 24 * time.Hour},
		{planID: "enterprise-1m", wantPrice: 1500, wantDays: 30 * 24 * time.Hour},
		{planID: "gold-1y", wantCode: errors.ErrCodeUnknownPlan},
	}

	for _, tt := range tests {
		t.Run(tt.planID, func(t *testing.T) {
			p, err := repo.Lookup(ctx, tt.planID)
			if tt.wantCode != "" {
				if !errors.HasCode(err, tt.wantCode) {
					t.Errorf("Lookup() error = %v, want %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("Lookup() error = %v", err)
			}
			if !p.Price.Equal(decimal.NewFromInt(tt.wantPrice)) || p.Duration() != tt.wantDays {
				t.Errorf("plan = %+v, want price %d for %v", p, tt.wantPrice, tt.wantDays)
			}
		})
	}
}

func TestPlanRepository_List(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.CleanupDB(db)

	plans, err := NewPlanRepository(db, time.Second).List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(plans) != 8 {
		t.Errorf("List() returned %d plans, want 8", len(plans))
	}
	for i := 1; i < len(plans); i++ {
		if plans[i-1].Category > plans[i].Category {
			t.Errorf("plans not ordered by category at %d", i)
		}
	}
}

func TestRunMigrations(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.CleanupDB(db)

	// NewTestDB applies the schema without recording versions, and every statement is idempotent
	applied, err := RunMigrations(db, migrations.GetFS())
	if err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	if applied == 0 {
		t.Fatal("RunMigrations() applied nothing on an unrecorded database")
	}

	again, err := RunMigrations(db, migrations.GetFS())
	if err != nil || again != 0 {
		t.Errorf("second RunMigrations() = %d, %v, want 0", again, err)
	}

	pending, err := PendingMigrations(migrations.GetFS(), map[string]bool{})
	if err != nil || len(pending) != applied {
		t.Errorf("PendingMigrations() = %v, %v", pending, err)
	}
}
