package auth

import (
	"testing"
	"time"

	"github.com/pratik-mahalle/wiman/internal/pkg/errors"
)

const testSecret = "test-secret"

func TestAuthenticate(t *testing.T) {
	valid, err := Mint(Identity{UserID: 42, Email: "a@b.co", Role: RoleAdmin}, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	noRole, _ := Mint(Identity{UserID: 7}, testSecret, time.Hour)
	expired, _ := Mint(Identity{UserID: 42}, testSecret, -time.Minute)
	noUser, _ := Mint(Identity{Email: "x@y.z"}, testSecret, time.Hour)
	otherSecret, _ := Mint(Identity{UserID: 42}, "other", time.Hour)

	tests := []struct {
		name     string
		token    string
		wantErr  bool
		wantUser int64
		wantRole string
	}{
		{"valid admin token", valid, false, 42, RoleAdmin},
		{"role defaults to user", noRole, false, 7, RoleUser},
		{"empty token", "", true, 0, ""},
		{"garbage", "not-a-jwt", true, 0, ""},
		{"expired", expired, true, 0, ""},
		{"missing user id", noUser, true, 0, ""},
		{"wrong secret", otherSecret, true, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := Authenticate(tt.token, testSecret)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Authenticate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.HasCode(err, errors.ErrCodeUnauthorized) {
					t.Errorf("expected UNAUTHORIZED, got %v", err)
				}
				return
			}
			if id.UserID != tt.wantUser {
				t.Errorf("UserID = %d, want %d", id.UserID, tt.wantUser)
			}
			if id.Role != tt.wantRole {
				t.Errorf("Role = %q, want %q", id.Role, tt.wantRole)
			}
		})
	}
}
