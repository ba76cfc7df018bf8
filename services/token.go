package services

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// InspectSessionToken checks the session access token from the link before any
// backend call is made. The backend remains the authority on the token; this
// only catches links that are obviously empty or already expired. Tokens that
// are not JWTs pass through untouched.
func InspectSessionToken(token string, now time.Time) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return &InputError{Field: FieldToken, Problem: ProblemMissing, Message: "No token provided"}
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if !now.Before(exp.Time) {
		return &InputError{Field: FieldToken, Problem: ProblemExpired, Message: "This session link has expired"}
	}
	return nil
}
