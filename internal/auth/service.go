package auth

import (
	"errors"
	"fmt"
	"time"

	"membership_backend/internal/config"
	"membership_backend/internal/shared"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Token issuers. Access and refresh tokens are signed with the same key, so
// the issuer claim is what keeps the two kinds apart: a 30-day refresh token
// must never pass for a short-lived access token.
const (
	accessTokenIssuer  = "membership_backend"
	refreshTokenIssuer = "membership_backend_refresh"
)

// JWTService issues and validates session tokens. The id and role claims are
// stamped from the database-resolved user record at issuance and read back
// from the token on every request, so role-gated authorization needs no
// database round trip. The trade-off is a staleness window: role changes take
// effect on the next sign-in or refresh.
type JWTService struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewJWTService creates a new JWT service.
func NewJWTService(cfg *config.Config, logger *zap.Logger) shared.TokenService {
	return &JWTService{cfg: cfg, logger: logger.Named("JWTService")}
}

func (s *JWTService) GenerateAccessToken(userData shared.UserDataForToken) (string, time.Time, error) {
	expirationTime := time.Now().Add(s.cfg.JWTAccessTokenExpiry)

	claims := &shared.Claims{
		UserID: userData.GetID(),
		Email:  userData.GetEmail(),
		Role:   userData.GetRole(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    accessTokenIssuer,
			Subject:   userData.GetID().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.cfg.JWTSecretKey))
	if err != nil {
		s.logger.Error("Failed to sign access token", zap.Error(err))
		return "", time.Time{}, fmt.Errorf("could not sign access token: %w", err)
	}
	return tokenString, expirationTime, nil
}

func (s *JWTService) GenerateRefreshToken(userData shared.UserDataForToken) (string, time.Time, error) {
	expirationTime := time.Now().Add(s.cfg.JWTRefreshTokenExpiry)

	claims := &shared.Claims{
		UserID: userData.GetID(),
		Email:  userData.GetEmail(),
		Role:   userData.GetRole(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    refreshTokenIssuer,
			Subject:   userData.GetID().String(),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.cfg.JWTSecretKey))
	if err != nil {
		s.logger.Error("Failed to sign refresh token", zap.Error(err))
		return "", time.Time{}, fmt.Errorf("could not sign refresh token: %w", err)
	}
	return tokenString, expirationTime, nil
}

// ValidateToken validates an access token and returns its claims. Tokens
// minted with any other issuer, refresh tokens included, are rejected.
func (s *JWTService) ValidateToken(tokenString string) (*shared.Claims, error) {
	return s.parseToken(tokenString, accessTokenIssuer)
}

// ParseRefreshToken validates a refresh token. Access tokens do not satisfy
// the refresh issuer and are rejected.
func (s *JWTService) ParseRefreshToken(refreshTokenString string) (*shared.Claims, error) {
	return s.parseToken(refreshTokenString, refreshTokenIssuer)
}

func (s *JWTService) parseToken(tokenString, issuer string) (*shared.Claims, error) {
	claims := &shared.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.JWTSecretKey), nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if claims, ok := token.Claims.(*shared.Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token claims")
}
