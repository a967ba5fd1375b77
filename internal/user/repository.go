package user

import (
	"context"
	"errors"
	"strings"

	"membership_backend/internal/common"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines the interface for user data operations.
type Repository interface {
	Create(ctx context.Context, user *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, offset, limit int) ([]User, int64, error)
	CountByRole(ctx context.Context, role string) (int64, error)

	FindAccount(ctx context.Context, provider, providerAccountID string) (*Account, error)
	CreateAccount(ctx context.Context, account *Account) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewGORMRepository creates a new GORM user repository.
func NewGORMRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// Create inserts a new user record. A duplicate email surfaces as
// common.ErrConflict so callers can distinguish "already exists" from other
// storage failures; the unique index closes the concurrent-creation race that
// application-level existence checks cannot.
func (r *gormRepository) Create(ctx context.Context, user *User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	err := r.db.WithContext(ctx).Create(user).Error
	if err != nil {
		if isUniqueViolation(err) {
			return common.ErrConflict.WithDetails("User with this email already exists.")
		}
		return err
	}
	return nil
}

// FindByEmail retrieves a user by their email address.
func (r *gormRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var userModel User
	normalized := strings.ToLower(strings.TrimSpace(email))
	err := r.db.WithContext(ctx).Where("email = ?", normalized).First(&userModel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("User not found with this email.")
		}
		return nil, err
	}
	return &userModel, nil
}

// FindByID retrieves a user by their ID.
func (r *gormRepository) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var userModel User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&userModel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("User not found with this ID.")
		}
		return nil, err
	}
	return &userModel, nil
}

// Update modifies an existing user record.
func (r *gormRepository) Update(ctx context.Context, user *User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	err := r.db.WithContext(ctx).Save(user).Error
	if err != nil {
		if isUniqueViolation(err) {
			return common.ErrConflict.WithDetails("Update failed: email already taken.")
		}
		return err
	}
	return nil
}

// Delete removes a user record and, via the FK constraint, its account links.
func (r *gormRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&User{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return common.ErrNotFound.WithDetails("User not found with this ID.")
	}
	return nil
}

// List returns a page of users ordered by creation time, plus the total count.
func (r *gormRepository) List(ctx context.Context, offset, limit int) ([]User, int64, error) {
	var users []User
	var total int64

	if err := r.db.WithContext(ctx).Model(&User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// CountByRole counts users holding the given role.
func (r *gormRepository) CountByRole(ctx context.Context, role string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&User{}).Where("role = ?", role).Count(&count).Error
	return count, err
}

// FindAccount retrieves an external identity link by provider and subject id.
func (r *gormRepository) FindAccount(ctx context.Context, provider, providerAccountID string) (*Account, error) {
	var account Account
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_account_id = ?", provider, providerAccountID).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("No linked account for this provider identity.")
		}
		return nil, err
	}
	return &account, nil
}

// CreateAccount inserts an external identity link.
func (r *gormRepository) CreateAccount(ctx context.Context, account *Account) error {
	err := r.db.WithContext(ctx).Create(account).Error
	if err != nil {
		if isUniqueViolation(err) {
			return common.ErrConflict.WithDetails("This social account is already linked to a user.")
		}
		return err
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "unique constraint") ||
		strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}
