package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestTokenManager_ParseAccess(t *testing.T) {
	tm := NewTokenManager("secret")
	userID := uuid.New()

	token := signToken(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{
		"sub":  userID.String(),
		"role": "reviewer",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	gotID, role, err := tm.ParseAccess(token)
	require.NoError(t, err)
	assert.Equal(t, userID, gotID)
	assert.Equal(t, "reviewer", role)
}

func TestTokenManager_RejectsBadTokens(t *testing.T) {
	tm := NewTokenManager("secret")
	sub := uuid.NewString()

	tests := map[string]string{
		"wrong secret": signToken(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": sub}),
		"expired": signToken(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{
			"sub": sub,
			"exp": time.Now().Add(-time.Minute).Unix(),
		}),
		"other alg":   signToken(t, jwt.SigningMethodHS512, []byte("secret"), jwt.MapClaims{"sub": sub}),
		"bad subject": signToken(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{"sub": "not-a-uuid"}),
		"garbage":     "not.a.token",
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := tm.ParseAccess(token)
			assert.Error(t, err)
		})
	}
}
