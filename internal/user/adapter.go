package user

import (
	"membership_backend/internal/shared"
)

// DBToShared converts a GORM user.User model to a shared.User DTO.
// The password hash never crosses this boundary.
func DBToShared(dbUser *User) *shared.User {
	if dbUser == nil {
		return nil
	}
	return &shared.User{
		ID:              dbUser.ID,
		Email:           dbUser.Email,
		Name:            dbUser.Name,
		ImageURL:        dbUser.ImageURL,
		Role:            dbUser.Role,
		EmailVerifiedAt: dbUser.EmailVerifiedAt,
		HasPassword:     dbUser.PasswordHash != nil && *dbUser.PasswordHash != "",
		CreatedAt:       dbUser.CreatedAt,
		UpdatedAt:       dbUser.UpdatedAt,
	}
}

// ToUserResponse converts a User model to a UserResponse DTO.
func ToUserResponse(u *User) UserResponse {
	return UserResponse{
		ID:              u.ID,
		Email:           u.Email,
		Name:            u.Name,
		ImageURL:        u.ImageURL,
		Role:            u.Role,
		EmailVerifiedAt: u.EmailVerifiedAt,
		HasPassword:     u.PasswordHash != nil && *u.PasswordHash != "",
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

// SharedToResponse converts a shared.User DTO to a UserResponse.
func SharedToResponse(u *shared.User) UserResponse {
	return UserResponse{
		ID:              u.ID,
		Email:           u.Email,
		Name:            u.Name,
		ImageURL:        u.ImageURL,
		Role:            u.Role,
		EmailVerifiedAt: u.EmailVerifiedAt,
		HasPassword:     u.HasPassword,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}
