package services

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const operatorSubject = "operator"

// OperatorClaims is the payload of the operator session cookie.
type OperatorClaims struct {
	jwt.RegisteredClaims
}

// OperatorAuth checks the operator password and issues session tokens.
type OperatorAuth struct {
	passwordHash []byte
	secret       []byte
	expiresIn    time.Duration
	now          func() time.Time
}

// NewOperatorAuth returns operator auth. passwordHash is a bcrypt hash.
func NewOperatorAuth(passwordHash, secret string, expiresIn time.Duration) *OperatorAuth {
	if expiresIn <= 0 {
		expiresIn = 8 * time.Hour
	}
	return &OperatorAuth{
		passwordHash: []byte(passwordHash),
		secret:       []byte(secret),
		expiresIn:    expiresIn,
		now:          time.Now,
	}
}

// HashOperatorPassword produces a bcrypt hash for the configuration file.
func HashOperatorPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password: empty password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the configured hash.
func (a *OperatorAuth) CheckPassword(password string) bool {
	if len(a.passwordHash) == 0 || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)) == nil
}

// Issue returns a signed session token.
func (a *OperatorAuth) Issue() (string, time.Time, error) {
	now := a.now().UTC()
	expires := now.Add(a.expiresIn)
	claims := OperatorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operatorSubject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// Verify validates a session token.
func (a *OperatorAuth) Verify(tokenString string) error {
	token, err := jwt.ParseWithClaims(tokenString, &OperatorClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("token: unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return err
	}

	claims, ok := token.Claims.(*OperatorClaims)
	if !ok || !token.Valid || claims.Subject != operatorSubject {
		return errors.New("token: invalid claims")
	}
	return nil
}
