package auth

import (
	"strings"
	"testing"
	"time"

	"campushub/errors"

	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	password := "MySuperSecurePassw0rd!"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("WrongPassword1!", hash)
	req.NoError(err)
	req.False(match)
}

func TestTokenRoundTrip(t *testing.T) {
	req := require.New(t)
	svc := NewTokenService("a_long_test_secret_for_signing", time.Hour)

	token, err := svc.Generate("user-42", []string{"user"})
	req.NoError(err)

	userID, err := svc.Resolve(token)
	req.NoError(err)
	req.Equal("user-42", userID)
}

func TestResolve_Rejects_Bad_Tokens(t *testing.T) {
	req := require.New(t)
	svc := NewTokenService("a_long_test_secret_for_signing", time.Hour)

	_, err := svc.Resolve("not-a-token")
	req.ErrorIs(err, errors.ErrUnauthorized)

	// Token signed by a different secret
	other := NewTokenService("another_secret_entirely_here", time.Hour)
	token, err := other.Generate("user-42", nil)
	req.NoError(err)
	_, err = svc.Resolve(token)
	req.ErrorIs(err, errors.ErrUnauthorized)

	// Expired token
	expired := NewTokenService("a_long_test_secret_for_signing", -time.Minute)
	token, err = expired.Generate("user-42", nil)
	req.NoError(err)
	_, err = svc.Resolve(token)
	req.ErrorIs(err, errors.ErrUnauthorized)
}

func TestRegistrationValidation(t *testing.T) {
	req := require.New(t)
	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr bool
	}{
		{"Valid request", RegisterRequest{"test@example.edu", "ComplexPass123!", "Test User", "Example University"}, false},
		{"Invalid email", RegisterRequest{"notanemail", "ComplexPass123!", "Test User", ""}, true},
		{"Password too short", RegisterRequest{"test@example.edu", "Short1!", "Test User", ""}, true},
		{"Missing digit", RegisterRequest{"test@example.edu", "NoDigitPassword!", "Test User", ""}, true},
		{"Missing special char", RegisterRequest{"test@example.edu", "NoSpecialChar123", "Test User", ""}, true},
		{"Missing uppercase", RegisterRequest{"test@example.edu", "nouppercase123!", "Test User", ""}, true},
		{"Missing name", RegisterRequest{"test@example.edu", "ComplexPass123!", "", ""}, true},
		{"Password too long", RegisterRequest{"test@example.edu", strings.Repeat("a", 73), "Test User", ""}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegister(tt.req)
			if tt.wantErr {
				req.Error(err)
			} else {
				req.NoError(err)
			}
		})
	}
}
