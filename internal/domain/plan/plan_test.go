package plan

import (
	"testing"
	"time"
)

func TestPlanDuration(t *testing.T) {
	tests := []struct {
		name  string
		plan  Plan
		want  time.Duration
		label string
	}{
		{"one hour", Plan{DurationValue: 1, DurationUnit: UnitHour}, time.Hour, "1 hour"},
		{"night", Plan{DurationValue: 12, DurationUnit: UnitHour}, 12 * time.Hour, "12 hours"},
		{"week", Plan{DurationValue: 7, DurationUnit: UnitDay}, 7 * 24 * time.Hour, "1 week"},
		{"two weeks", Plan{DurationValue: 14, DurationUnit: UnitDay}, 14 * 24 * time.Hour, "2 weeks"},
		{"month", Plan{DurationValue: 30, DurationUnit: UnitDay}, 30 * 24 * time.Hour, "1 month"},
		{"odd days", Plan{DurationValue: 3, DurationUnit: UnitDay}, 3 * 24 * time.Hour, "3 days"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.plan.Duration(); got != tt.want {
				t.Errorf("Duration() = %v, want %v", got, tt.want)
			}
			if got := tt.plan.Label(); got != tt.label {
				t.Errorf("Label() = %q, want %q", got, tt.label)
			}
		})
	}
}

func TestGroup(t *testing.T) {
	plans := []*Plan{
		{ID: "a", Category: CategoryBasic},
		{ID: "b", Category: CategoryPremium},
		{ID: "c", Category: CategoryBasic},
	}

	grouped := Group(plans)
	if len(grouped[CategoryBasic]) != 2 {
		t.Errorf("expected 2 basic plans, got %d", len(grouped[CategoryBasic]))
	}
	if grouped[CategoryBasic][1].ID != "c" {
		t.Errorf("expected catalog order to be kept")
	}
	if _, ok := grouped[CategoryEnterprise]; !ok {
		t.Errorf("expected empty enterprise group to be present")
	}
}
