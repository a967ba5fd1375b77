package middleware

import (
	"strings"

	"membership_backend/internal/common"
	"membership_backend/internal/shared"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthMiddleware creates a Gin middleware for JWT authentication. On success
// the claims are materialized into the request context under the common
// context keys.
func AuthMiddleware(tokenService shared.TokenService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(common.AuthorizationHeader)
		if authHeader == "" {
			common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Authorization header is required."))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], common.AuthorizationTypeBearer) {
			common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Authorization header format must be 'Bearer <token>'."))
			return
		}

		claims, err := tokenService.ValidateToken(parts[1])
		if err != nil {
			logger.Warn("Token validation failed", zap.Error(err))
			common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Invalid or expired token."))
			return
		}

		c.Set(common.UserIDKey, claims.UserID)
		c.Set(common.UserEmailKey, claims.Email)
		c.Set(common.UserRoleKey, claims.Role)
		c.Set(common.UserClaimsKey, claims)

		c.Next()
	}
}

// GetUserClaimsFromContext retrieves the full claims object from the Gin context.
func GetUserClaimsFromContext(c *gin.Context) *shared.Claims {
	val, exists := c.Get(common.UserClaimsKey)
	if !exists {
		return nil
	}
	claims, ok := val.(*shared.Claims)
	if !ok {
		return nil
	}
	return claims
}

// RoleAuthMiddleware creates a middleware to check if the authenticated user
// has one of the required roles. The role comes from the token claims, not a
// fresh database read; role changes apply from the next token issuance.
func RoleAuthMiddleware(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole := common.GetUserRoleFromContext(c)
		if userRole == "" {
			common.RespondWithError(c, common.ErrForbidden.WithDetails("User role not found in context."))
			return
		}

		for _, role := range allowedRoles {
			if userRole == role {
				c.Next()
				return
			}
		}
		common.RespondWithError(c, common.ErrForbidden.WithDetails("You do not have sufficient permissions for this resource."))
	}
}
