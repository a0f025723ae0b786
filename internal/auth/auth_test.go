package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenManagerRoundTrip(t *testing.T) {
	m, err := NewTokenManager("test-secret", 15*time.Minute)
	require.NoError(t, err)

	token, err := m.Generate(42)
	require.NoError(t, err)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	require.Equal(t, int64(42), claims.UserID)
}

func TestTokenManagerRejectsForeignSecret(t *testing.T) {
	m1, err := NewTokenManager("secret-one", 15*time.Minute)
	require.NoError(t, err)
	m2, err := NewTokenManager("secret-two", 15*time.Minute)
	require.NoError(t, err)

	token, err := m1.Generate(1)
	require.NoError(t, err)

	_, err = m2.Validate(token)
	require.Error(t, err)
}

func TestTokenManagerRejectsExpired(t *testing.T) {
	m, err := NewTokenManager("test-secret", -time.Minute)
	require.NoError(t, err)

	token, err := m.Generate(1)
	require.NoError(t, err)

	_, err = m.Validate(token)
	require.Error(t, err)
}

func TestTokenManagerEmptySecret(t *testing.T) {
	_, err := NewTokenManager("", 15*time.Minute)
	require.Error(t, err)
}

func TestValidatePassword(t *testing.T) {
	require.ErrorIs(t, ValidatePassword("a1b2c"), ErrPasswordTooShort)
	require.ErrorIs(t, ValidatePassword("abcdefgh"), ErrPasswordTooWeak)
	require.ErrorIs(t, ValidatePassword("12345678"), ErrPasswordTooWeak)
	require.NoError(t, ValidatePassword("abcdefg1"))
}
