package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestOperatorPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	auth := NewOperatorAuth(string(hash), "0123456789abcdef", 0)

	assert.True(t, auth.CheckPassword("s3cret"))
	assert.False(t, auth.CheckPassword("wrong"))
	assert.False(t, auth.CheckPassword(""))

	disabled := NewOperatorAuth("", "0123456789abcdef", 0)
	assert.False(t, disabled.CheckPassword("s3cret"))

	_, err = HashOperatorPassword("")
	assert.Error(t, err)
}

func TestOperatorTokens(t *testing.T) {
	auth := NewOperatorAuth("", "0123456789abcdef", time.Hour)
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	auth.now = func() time.Time { return now }

	token, expires, err := auth.Issue()
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), expires)
	assert.NoError(t, auth.Verify(token))

	other := NewOperatorAuth("", "fedcba9876543210", time.Hour)
	other.now = auth.now
	assert.Error(t, other.Verify(token))

	auth.now = func() time.Time { return now.Add(2 * time.Hour) }
	assert.Error(t, auth.Verify(token))

	assert.Error(t, auth.Verify("not-a-token"))
}
