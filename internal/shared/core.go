package shared

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// User represents a user in the system, stripped of sensitive fields.
type User struct {
	ID              uuid.UUID
	Email           string
	Name            *string
	ImageURL        *string
	Role            string
	EmailVerifiedAt *time.Time
	// HasPassword distinguishes credentials accounts from pure OAuth
	// identities without exposing the hash itself.
	HasPassword bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (u *User) GetID() uuid.UUID { return u.ID }
func (u *User) GetEmail() string { return u.Email }
func (u *User) GetRole() string  { return u.Role }

// OAuthUserProfile holds common profile data from OAuth providers.
type OAuthUserProfile struct {
	Provider      string
	ProviderID    string
	Email         string
	Name          string
	PictureURL    string
	EmailVerified bool
}

// TokenResponse represents the response containing JWT tokens.
type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type"`
}

// UserDataForToken abstracts the user data needed for token generation.
// Claims are only ever populated from a database-resolved record, never from
// client input.
type UserDataForToken interface {
	GetID() uuid.UUID
	GetEmail() string
	GetRole() string
}

// Claims represents the JWT claims structure.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Role   string    `json:"role"`
	jwt.RegisteredClaims
}

// TokenService defines the interface for JWT operations.
type TokenService interface {
	GenerateAccessToken(userData UserDataForToken) (string, time.Time, error)
	GenerateRefreshToken(userData UserDataForToken) (string, time.Time, error)
	ValidateToken(tokenString string) (*Claims, error)
	ParseRefreshToken(refreshTokenString string) (*Claims, error)
}

// UserService is the user surface consumed by the auth and sign-in packages.
type UserService interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	// VerifyPassword returns the user when the password matches the stored
	// hash. Any failure (unknown email, no hash, mismatch) is reported as a
	// single generic error so callers cannot distinguish the cases.
	VerifyPassword(ctx context.Context, email, password string) (*User, error)
	// CreateFromOAuthProfile persists a brand-new user sourced from an
	// external identity provider. Callers must gate this behind a resolved
	// register intent.
	CreateFromOAuthProfile(ctx context.Context, profile OAuthUserProfile) (*User, error)
	// EnsureAccountLink records the provider identity link if it does not
	// exist yet.
	EnsureAccountLink(ctx context.Context, userID uuid.UUID, profile OAuthUserProfile) error
}
