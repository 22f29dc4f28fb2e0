package subscription

import (
	"testing"
	"time"
)

func TestIsEntitled(t *testing.T) {
	now := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name string
		sub  *Subscription
		want bool
	}{
		{"nil", nil, false},
		{"active in window", &Subscription{Status: StatusActive, ExpiresAt: &future}, true},
		{"active past deadline", &Subscription{Status: StatusActive, ExpiresAt: &past}, false},
		{"active at deadline", &Subscription{Status: StatusActive, ExpiresAt: &now}, false},
		{"active without deadline", &Subscription{Status: StatusActive}, false},
		{"pending", &Subscription{Status: StatusPending, ExpiresAt: &future}, false},
		{"expired", &Subscription{Status: StatusExpired, ExpiresAt: &future}, false},
		{"cancelled", &Subscription{Status: StatusCancelled, ExpiresAt: &future}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsEntitled(tt.sub, now); got != tt.want {
				t.Errorf("IsEntitled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusActive, true},
		{StatusPending, StatusExpired, false},
		{StatusActive, StatusExpired, true},
		{StatusActive, StatusActive, true},
		{StatusExpired, StatusActive, true},
		{StatusExpired, StatusPending, false},
		{StatusCancelled, StatusActive, false},
		{StatusCancelled, StatusExpired, false},
		{StatusCancelled, StatusPending, false},
		{StatusCancelled, StatusCancelled, false},
		{StatusPending, StatusCancelled, true},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestPastDeadline(t *testing.T) {
	now := time.Unix(1704067200, 0)
	before := now.Add(-time.Second)

	if (&Subscription{}).PastDeadline(now) {
		t.Error("subscription without deadline must not be past it")
	}
	if !(&Subscription{ExpiresAt: &before}).PastDeadline(now) {
		t.Error("expected deadline to have passed")
	}
	if (&Subscription{ExpiresAt: &now}).PastDeadline(now) {
		t.Error("deadline equal to now has not passed")
	}
}
