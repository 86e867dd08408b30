package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/astralcore/haven/internal/models"
)

func TestTokenRoundTrip(t *testing.T) {
	userID := uuid.New()
	token, err := GenerateToken(userID, models.RoleCounselor, "test-secret", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	identity, err := NewResolver("test-secret").Resolve(token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if identity.UserID != userID {
		t.Errorf("user id = %s, want %s", identity.UserID, userID)
	}
	if identity.Role != models.RoleCounselor {
		t.Errorf("role = %s, want %s", identity.Role, models.RoleCounselor)
	}
	if !identity.Active {
		t.Error("identity not active")
	}
}

func TestWrongSecretRejected(t *testing.T) {
	token, err := GenerateToken(uuid.New(), models.RoleUser, "secret-a", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := NewResolver("secret-b").Resolve(token); err == nil {
		t.Fatal("token signed with a different secret was accepted")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	token, err := GenerateToken(uuid.New(), models.RoleUser, "test-secret", -time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := NewResolver("test-secret").Resolve(token); err == nil {
		t.Fatal("expired token was accepted")
	}
}

func TestLocked(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	if !(Identity{LockedUntil: &future}).Locked(now) {
		t.Error("future lockout not enforced")
	}
	if (Identity{LockedUntil: &past}).Locked(now) {
		t.Error("expired lockout still enforced")
	}
	if (Identity{}).Locked(now) {
		t.Error("nil lockout treated as locked")
	}
}
