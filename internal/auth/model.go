package auth

// LoginRequest is the payload for the credentials login endpoint.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest is the payload for the credentials registration endpoint.
type RegisterRequest struct {
	Email    string  `json:"email" binding:"required,email"`
	Password string  `json:"password" binding:"required,min=8"`
	Name     *string `json:"name" binding:"omitempty,max=100"`
}

// RefreshTokenRequest is the payload for the token refresh endpoint.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// VerifyEmailRequest confirms ownership of an address. The email rides along
// with the token because the verification link is opened in a fresh browser
// context with no session to infer it from.
type VerifyEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
	Token string `json:"token" binding:"required"`
}

// ResendVerificationRequest asks for a fresh verification email.
type ResendVerificationRequest struct {
	Email string `json:"email" binding:"required,email"`
}
