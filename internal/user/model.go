package user

import (
	"time"

	"membership_backend/internal/common"

	"github.com/google/uuid"
)

// User represents the user model in the database.
type User struct {
	common.BaseModel            // Embeds ID, CreatedAt, UpdatedAt
	Email            string     `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash     *string    `gorm:"type:varchar(255)"` // NULL for pure OAuth identities
	Name             *string    `gorm:"type:varchar(255)"`
	ImageURL         *string    `gorm:"type:text"`
	EmailVerifiedAt  *time.Time `gorm:"column:email_verified_at"`
	Role             string     `gorm:"type:varchar(50);not null;default:'user'"`

	Accounts []Account `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the User model.
func (User) TableName() string {
	return "users"
}

// Account links a user to an external identity provider. A user may have zero
// (credentials-only) or more linked identities; email is the join key across
// providers.
type Account struct {
	common.BaseModel
	Provider          string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_provider_account,priority:1"`
	ProviderAccountID string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_provider_account,priority:2"`
	UserID            uuid.UUID `gorm:"type:uuid;not null;index"`
}

// TableName specifies the table name for the Account model.
func (Account) TableName() string {
	return "accounts"
}

func (u *User) GetID() uuid.UUID { return u.ID }
func (u *User) GetEmail() string { return u.Email }
func (u *User) GetRole() string  { return u.Role }

// --- DTOs for API responses ---

// UserResponse defines the structure for user data sent in API responses.
type UserResponse struct {
	ID              uuid.UUID  `json:"id"`
	Email           string     `json:"email"`
	Name            *string    `json:"name,omitempty"`
	ImageURL        *string    `json:"image_url,omitempty"`
	Role            string     `json:"role"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	HasPassword     bool       `json:"has_password"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// UpdateRoleRequest defines the admin request to change a user's role.
type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=user admin"`
}
