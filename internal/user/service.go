package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"membership_backend/internal/common"
	"membership_backend/internal/shared"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ServiceImplementation implements shared.UserService plus the admin
// operations used by the user handler.
type ServiceImplementation struct {
	repo   Repository
	logger *zap.Logger
}

var _ shared.UserService = (*ServiceImplementation)(nil)

// NewService creates a new user service.
func NewService(repo Repository, logger *zap.Logger) *ServiceImplementation {
	return &ServiceImplementation{
		repo:   repo,
		logger: logger.Named("UserService"),
	}
}

func (s *ServiceImplementation) GetUserByID(ctx context.Context, id uuid.UUID) (*shared.User, error) {
	dbUser, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return DBToShared(dbUser), nil
}

func (s *ServiceImplementation) GetUserByEmail(ctx context.Context, email string) (*shared.User, error) {
	dbUser, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return DBToShared(dbUser), nil
}

// VerifyPassword checks a credentials pair against the stored hash. Unknown
// email, a missing hash (OAuth-only account) and a wrong password all collapse
// into the same generic unauthorized error.
func (s *ServiceImplementation) VerifyPassword(ctx context.Context, email, password string) (*shared.User, error) {
	dbUser, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.logger.Info("Password check for unknown email", zap.String("email", email))
			return nil, common.ErrUnauthorized.WithDetails("Invalid email or password.")
		}
		s.logger.Error("Error finding user during password check", zap.Error(err), zap.String("email", email))
		return nil, common.ErrInternalServer.WithDetails("Sign-in failed due to an internal error.")
	}

	if dbUser.PasswordHash == nil || *dbUser.PasswordHash == "" {
		s.logger.Warn("Password sign-in attempted for account without a password hash",
			zap.String("userID", dbUser.ID.String()))
		return nil, common.ErrUnauthorized.WithDetails("Invalid email or password.")
	}

	if !common.CheckPasswordHash(password, *dbUser.PasswordHash) {
		s.logger.Warn("Invalid password attempt", zap.String("userID", dbUser.ID.String()))
		return nil, common.ErrUnauthorized.WithDetails("Invalid email or password.")
	}

	return DBToShared(dbUser), nil
}

// RegisterWithPassword creates a credentials user. The email starts
// unverified; callers are expected to issue a verification token afterwards.
func (s *ServiceImplementation) RegisterWithPassword(ctx context.Context, email, password string, name *string) (*shared.User, error) {
	hashed, err := common.HashPassword(password)
	if err != nil {
		s.logger.Error("Failed to hash password during registration", zap.Error(err))
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	dbUser := &User{
		Email:        email,
		PasswordHash: &hashed,
		Name:         name,
		Role:         common.RoleUser,
	}
	if err := s.repo.Create(ctx, dbUser); err != nil {
		if apiErr, ok := common.IsAPIError(err); ok {
			return nil, apiErr
		}
		s.logger.Error("Failed to create user in repository", zap.Error(err), zap.String("email", email))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered", zap.String("userID", dbUser.ID.String()))
	return DBToShared(dbUser), nil
}

// CreateFromOAuthProfile persists a brand-new user sourced from an external
// identity provider. The email is stamped verified immediately: the provider
// has already asserted ownership of the address.
func (s *ServiceImplementation) CreateFromOAuthProfile(ctx context.Context, profile shared.OAuthUserProfile) (*shared.User, error) {
	now := time.Now()
	dbUser := &User{
		Email:           profile.Email,
		Role:            common.RoleUser,
		EmailVerifiedAt: &now,
	}
	if profile.Name != "" {
		name := profile.Name
		dbUser.Name = &name
	}
	if profile.PictureURL != "" {
		pic := profile.PictureURL
		dbUser.ImageURL = &pic
	}

	if err := s.repo.Create(ctx, dbUser); err != nil {
		// ErrConflict is passed through untouched: concurrent attempts for the
		// same email must see a distinguishable "already exists" condition.
		if apiErr, ok := common.IsAPIError(err); ok {
			return nil, apiErr
		}
		s.logger.Error("Failed to create OAuth user", zap.Error(err), zap.String("email", profile.Email))
		return nil, fmt.Errorf("failed to create user from provider profile: %w", err)
	}

	s.logger.Info("User created from provider profile",
		zap.String("userID", dbUser.ID.String()),
		zap.String("provider", profile.Provider))
	return DBToShared(dbUser), nil
}

// EnsureAccountLink records the provider identity link if it does not exist.
func (s *ServiceImplementation) EnsureAccountLink(ctx context.Context, userID uuid.UUID, profile shared.OAuthUserProfile) error {
	_, err := s.repo.FindAccount(ctx, profile.Provider, profile.ProviderID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return err
	}

	account := &Account{
		Provider:          profile.Provider,
		ProviderAccountID: profile.ProviderID,
		UserID:            userID,
	}
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		// A concurrent request may have linked it first; that is fine.
		if errors.Is(err, common.ErrConflict) {
			return nil
		}
		return err
	}
	s.logger.Info("Account linked",
		zap.String("userID", userID.String()),
		zap.String("provider", profile.Provider))
	return nil
}

// MarkEmailVerified stamps the verification timestamp for a user.
func (s *ServiceImplementation) MarkEmailVerified(ctx context.Context, email string) error {
	dbUser, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if dbUser.EmailVerifiedAt != nil {
		return common.ErrConflict.WithDetails("Email is already verified.")
	}
	now := time.Now()
	dbUser.EmailVerifiedAt = &now
	return s.repo.Update(ctx, dbUser)
}

// --- Admin operations ---

// ListUsers returns a page of users and the total count.
func (s *ServiceImplementation) ListUsers(ctx context.Context, page, pageSize int) ([]User, int64, error) {
	offset := (page - 1) * pageSize
	return s.repo.List(ctx, offset, pageSize)
}

// UpdateRole changes a user's role. Demoting the last remaining admin is
// refused so the system cannot lock itself out. Role changes take effect on
// the target's next sign-in or token refresh, not on outstanding tokens.
func (s *ServiceImplementation) UpdateRole(ctx context.Context, id uuid.UUID, role string) (*shared.User, error) {
	if !common.IsValidRole(role) {
		return nil, common.ErrBadRequest.WithDetails("Unknown role.")
	}

	dbUser, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if dbUser.Role == common.RoleAdmin && role != common.RoleAdmin {
		if err := s.ensureNotLastAdmin(ctx); err != nil {
			return nil, err
		}
	}

	dbUser.Role = role
	if err := s.repo.Update(ctx, dbUser); err != nil {
		return nil, err
	}
	s.logger.Info("User role updated", zap.String("userID", id.String()), zap.String("role", role))
	return DBToShared(dbUser), nil
}

// DeleteUser removes a user, refusing to remove the last remaining admin.
func (s *ServiceImplementation) DeleteUser(ctx context.Context, id uuid.UUID) error {
	dbUser, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if dbUser.Role == common.RoleAdmin {
		if err := s.ensureNotLastAdmin(ctx); err != nil {
			return err
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("User deleted", zap.String("userID", id.String()))
	return nil
}

func (s *ServiceImplementation) ensureNotLastAdmin(ctx context.Context) error {
	admins, err := s.repo.CountByRole(ctx, common.RoleAdmin)
	if err != nil {
		return err
	}
	if admins <= 1 {
		return common.ErrConflict.WithDetails("Cannot remove the last admin.")
	}
	return nil
}
