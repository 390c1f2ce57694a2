package ipc

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "treemirror"

// ErrUnauthorized is returned when a connection's bearer token is missing or
// invalid.
var ErrUnauthorized = errors.New("unauthorized")

// NewToken signs an HS256 bearer token for subject valid for ttl. A zero ttl
// yields a token without expiry.
func NewToken(secret []byte, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := gojwt.RegisteredClaims{
		Issuer:   tokenIssuer,
		Subject:  subject,
		IssuedAt: gojwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = gojwt.NewNumericDate(now.Add(ttl))
	}
	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken checks signature, issuer and expiry and returns the subject.
func VerifyToken(secret []byte, token string) (string, error) {
	claims := &gojwt.RegisteredClaims{}
	_, err := gojwt.ParseWithClaims(token, claims,
		func(*gojwt.Token) (any, error) { return secret, nil },
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithIssuer(tokenIssuer),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return claims.Subject, nil
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
