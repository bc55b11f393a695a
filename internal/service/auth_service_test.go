package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sk-governance-api/internal/models"
	appErrors "github.com/noah-isme/sk-governance-api/pkg/errors"
)

func newTestAuth() *AuthService {
	return NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, Issuer: "sk-governance-api"})
}

func TestIssueAndValidateToken(t *testing.T) {
	auth := newTestAuth()

	token, expiresAt, err := auth.IssueToken("ops-1", models.RoleAdmin, 0)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestValidateTokenRejectsForeignSecretAndIssuer(t *testing.T) {
	auth := newTestAuth()

	other := NewAuthService(nil, AuthConfig{AccessTokenSecret: "other", Issuer: "sk-governance-api"})
	token, _, err := other.IssueToken("ops-1", models.RoleAdmin, time.Hour)
	require.NoError(t, err)
	_, err = auth.ValidateToken(token)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	wrongIssuer := NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret", Issuer: "portal"})
	token, _, err = wrongIssuer.IssueToken("ops-1", models.RoleAdmin, time.Hour)
	require.NoError(t, err)
	_, err = auth.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpiredAndUnknownRole(t *testing.T) {
	auth := newTestAuth()
	auth.now = func() time.Time { return time.Now().Add(-3 * time.Hour) }
	token, _, err := auth.IssueToken("ops-1", models.RoleStaff, time.Hour)
	require.NoError(t, err)

	_, err = newTestAuth().ValidateToken(token)
	assert.Error(t, err)

	claims := &models.JWTClaims{
		UserID: "ops-1",
		Role:   "MAYOR",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "sk-governance-api",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = newTestAuth().ValidateToken(signed)
	assert.Error(t, err)
}

func TestIssueTokenValidatesInput(t *testing.T) {
	auth := newTestAuth()

	_, _, err := auth.IssueToken(" ", models.RoleAdmin, time.Hour)
	assert.Error(t, err)
	_, _, err = auth.IssueToken("ops-1", "ROOT", time.Hour)
	assert.Error(t, err)
}
