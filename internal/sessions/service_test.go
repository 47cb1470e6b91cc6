package sessions

import (
	"context"
	"testing"
	"time"
)

func TestCreateAndValidateSession(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()
	r, err := svc.CreateSession(ctx, "user-1", "curl", time.Hour)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if r == "" {
		t.Fatalf("expected refresh token")
	}
	sess, err := svc.ValidateRefresh(ctx, r)
	if err != nil {
		t.Fatalf("validate error: %v", err)
	}
	if sess == nil || sess.UserID != "user-1" {
		t.Fatalf("unexpected session: %v", sess)
	}
	if err := svc.DeleteRefresh(ctx, r); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	sess2, _ := svc.ValidateRefresh(ctx, r)
	if sess2 != nil {
		t.Fatalf("expected session removed")
	}
}

func TestValidateRefresh_Expired(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo)
	ctx := context.Background()
	_ = repo.Create(ctx, &Session{RefreshToken: "old", UserID: "u", ExpiresAt: time.Now().UTC().Add(-time.Minute)})

	sess, err := svc.ValidateRefresh(ctx, "old")
	if err != nil || sess != nil {
		t.Fatalf("expected expired session to be rejected, got %v err=%v", sess, err)
	}
	if got, _ := repo.GetByRefresh(ctx, "old"); got != nil {
		t.Fatalf("expired session should be cleaned up")
	}
}

func TestRotate(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()
	r, _ := svc.CreateSession(ctx, "user-2", "", time.Hour)

	next, sess, err := svc.Rotate(ctx, r)
	if err != nil {
		t.Fatalf("rotate error: %v", err)
	}
	if next == "" || next == r || sess.UserID != "user-2" {
		t.Fatalf("unexpected rotation result: %q %v", next, sess)
	}
	if old, _ := svc.ValidateRefresh(ctx, r); old != nil {
		t.Fatalf("old refresh token must be invalid after rotation")
	}
	again, _, err := svc.Rotate(ctx, r)
	if err != nil || again != "" {
		t.Fatalf("rotating a spent token should fail quietly, got %q err=%v", again, err)
	}
}

func TestRevokeUser(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()
	a, _ := svc.CreateSession(ctx, "user-3", "", time.Hour)
	b, _ := svc.CreateSession(ctx, "user-3", "", time.Hour)
	c, _ := svc.CreateSession(ctx, "user-4", "", time.Hour)

	if err := svc.RevokeUser(ctx, "user-3"); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	for _, tok := range []string{a, b} {
		if s, _ := svc.ValidateRefresh(ctx, tok); s != nil {
			t.Fatalf("session %s should be revoked", tok)
		}
	}
	if s, _ := svc.ValidateRefresh(ctx, c); s == nil {
		t.Fatalf("other user's session should survive")
	}
}
