package internal

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for missing, malformed, or expired tokens. The
// connection is rejected before any session exists.
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenAuthenticator validates a bearer credential and resolves the user it
// belongs to. The websocket handshake and the HTTP profile endpoints both
// consume this interface.
type TokenAuthenticator interface {
	Authenticate(token string) (int64, error)
}

// DefaultTokenTTL matches the original deployment's 7-day login tokens.
const DefaultTokenTTL = 7 * 24 * time.Hour

// JWTAuthenticator issues and validates HS256-signed tokens whose subject is
// the user ID.
type JWTAuthenticator struct {
	secret []byte
	ttl    time.Duration
}

func NewJWTAuthenticator(secret []byte, ttl time.Duration) *JWTAuthenticator {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &JWTAuthenticator{secret: secret, ttl: ttl}
}

// Issue creates a signed token for userID and returns it with its expiry.
func (a *JWTAuthenticator) Issue(userID int64) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(a.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        uuid.NewString(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expiresAt, nil
}

// Authenticate parses and verifies a token, returning the user ID it was
// issued for.
func (a *JWTAuthenticator) Authenticate(token string) (int64, error) {
	if token == "" {
		return 0, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !parsed.Valid {
		return 0, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return 0, ErrInvalidToken
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, ErrInvalidToken
	}
	return userID, nil
}
