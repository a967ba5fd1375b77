// File: cmd/server/providers.go
package main

import (
	"context"
	"log"

	"membership_backend/internal/intent"
	"membership_backend/internal/platform/database"
	"membership_backend/internal/shared"
	"membership_backend/internal/signin"
	"membership_backend/internal/user"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// provideGatedCreate wraps the user service's creation operation with the
// intent gate. This is the only way a brand-new OAuth user row gets written.
func provideGatedCreate(userService *user.ServiceImplementation, resolver *intent.Resolver, logger *zap.Logger) signin.GatedCreateUserFunc {
	create := func(ctx context.Context, profile shared.OAuthUserProfile) (*shared.User, error) {
		return userService.CreateFromOAuthProfile(ctx, profile)
	}
	return signin.NewCreationGate(create, resolver, logger)
}

func provideCleanup(logger *zap.Logger, db *gorm.DB) func() {
	return func() {
		logger.Info("Executing cleanup tasks...")
		database.CloseGORMDB(db)
		if err := logger.Sync(); err != nil {
			log.Printf("ERROR: Failed to sync logger during cleanup: %v", err)
		}
	}
}
