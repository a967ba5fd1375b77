package auth

import (
	"testing"
	"time"

	"membership_backend/internal/common"
	"membership_backend/internal/config"
	"membership_backend/internal/shared"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestTokenService() shared.TokenService {
	cfg := &config.Config{
		JWTSecretKey:          "test-secret-key-for-unit-tests",
		JWTAccessTokenExpiry:  15 * time.Minute,
		JWTRefreshTokenExpiry: 24 * time.Hour,
	}
	return NewJWTService(cfg, zap.NewNop())
}

func testUser() *shared.User {
	return &shared.User{
		ID:    uuid.New(),
		Email: "alice@example.com",
		Role:  common.RoleAdmin,
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := newTestTokenService()
	u := testUser()

	tokenString, expiresAt, err := svc.GenerateAccessToken(u)
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := svc.ValidateToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, u.Email, claims.Email)
	assert.Equal(t, common.RoleAdmin, claims.Role)
	assert.Equal(t, "membership_backend", claims.Issuer)
	assert.Equal(t, u.ID.String(), claims.Subject)
}

func TestRefreshTokenCarriesDistinctIssuer(t *testing.T) {
	svc := newTestTokenService()

	tokenString, _, err := svc.GenerateRefreshToken(testUser())
	require.NoError(t, err)

	claims, err := svc.ParseRefreshToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "membership_backend_refresh", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestValidateTokenRejectsRefreshTokens(t *testing.T) {
	svc := newTestTokenService()

	// A refresh token is long-lived; it must never double as a bearer token.
	tokenString, _, err := svc.GenerateRefreshToken(testUser())
	require.NoError(t, err)

	_, err = svc.ValidateToken(tokenString)
	assert.Error(t, err)
}

func TestParseRefreshTokenRejectsAccessTokens(t *testing.T) {
	svc := newTestTokenService()

	tokenString, _, err := svc.GenerateAccessToken(testUser())
	require.NoError(t, err)

	_, err = svc.ParseRefreshToken(tokenString)
	assert.Error(t, err)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	svc := newTestTokenService()

	tokenString, _, err := svc.GenerateAccessToken(testUser())
	require.NoError(t, err)

	_, err = svc.ValidateToken(tokenString + "x")
	assert.Error(t, err)
}

func TestValidateTokenRejectsWrongKey(t *testing.T) {
	svc := newTestTokenService()
	other := NewJWTService(&config.Config{
		JWTSecretKey:         "a-different-secret",
		JWTAccessTokenExpiry: 15 * time.Minute,
	}, zap.NewNop())

	tokenString, _, err := other.GenerateAccessToken(testUser())
	require.NoError(t, err)

	_, err = svc.ValidateToken(tokenString)
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	cfg := &config.Config{
		JWTSecretKey:         "test-secret-key-for-unit-tests",
		JWTAccessTokenExpiry: -time.Minute,
	}
	svc := NewJWTService(cfg, zap.NewNop())

	tokenString, _, err := svc.GenerateAccessToken(testUser())
	require.NoError(t, err)

	_, err = svc.ValidateToken(tokenString)
	assert.Error(t, err)
}
