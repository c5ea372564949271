package internal

import (
	"errors"
	"testing"
	"time"
)

func TestJWTIssueAndAuthenticate(t *testing.T) {
	auth := NewJWTAuthenticator([]byte("test-secret"), time.Hour)
	token, expiresAt, err := auth.Issue(42)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if token == "" {
		t.Fatalf("empty token")
	}
	if !expiresAt.After(time.Now()) {
		t.Fatalf("expiry in the past: %v", expiresAt)
	}
	userID, err := auth.Authenticate(token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if userID != 42 {
		t.Fatalf("expected user 42, got %d", userID)
	}
}

func TestJWTAuthenticateRejectsGarbage(t *testing.T) {
	auth := NewJWTAuthenticator([]byte("test-secret"), time.Hour)
	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := auth.Authenticate(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestJWTAuthenticateRejectsWrongSecret(t *testing.T) {
	issuer := NewJWTAuthenticator([]byte("secret-a"), time.Hour)
	verifier := NewJWTAuthenticator([]byte("secret-b"), time.Hour)
	token, _, err := issuer.Issue(7)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := verifier.Authenticate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
}

func TestJWTAuthenticateRejectsExpired(t *testing.T) {
	auth := &JWTAuthenticator{secret: []byte("test-secret"), ttl: -time.Hour}
	token, _, err := auth.Issue(7)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := auth.Authenticate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}
