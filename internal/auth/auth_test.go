package auth

import (
	"testing"
	"time"
)

func TestIssueAndVerify(t *testing.T) {
	ts := NewTokenService([]byte("test-secret"), time.Hour)

	token, err := ts.Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	userID, err := ts.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if userID != "user-1" {
		t.Fatalf("expected user-1, got %s", userID)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	issuedAt := time.Now()
	clock := issuedAt
	ts := NewTokenServiceWithClock([]byte("test-secret"), time.Minute, func() time.Time { return clock })

	token, err := ts.Issue("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	clock = issuedAt.Add(2 * time.Minute)
	if _, err := ts.Verify(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestWrongSecretRejected(t *testing.T) {
	issuer := NewTokenService([]byte("secret-a"), time.Hour)
	verifier := NewTokenService([]byte("secret-b"), time.Hour)

	token, _ := issuer.Issue("user-1")
	if _, err := verifier.Verify(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestFromHeader(t *testing.T) {
	if _, ok := FromHeader(""); ok {
		t.Fatal("empty header accepted")
	}
	if _, ok := FromHeader("Basic abc"); ok {
		t.Fatal("non-bearer scheme accepted")
	}
	token, ok := FromHeader("Bearer abc.def.ghi")
	if !ok || token != "abc.def.ghi" {
		t.Fatalf("bearer token not extracted: %q %v", token, ok)
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("lozinka123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !VerifyPassword(hash, "lozinka123") {
		t.Fatal("correct password rejected")
	}
	if VerifyPassword(hash, "pogrešna") {
		t.Fatal("wrong password accepted")
	}
}
