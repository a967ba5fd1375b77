// File: cmd/server/wire.go
//go:build wireinject
// +build wireinject

package main

import (
	"membership_backend/internal/app"
	"membership_backend/internal/auth"
	"membership_backend/internal/config"
	"membership_backend/internal/intent"
	"membership_backend/internal/jobs"
	"membership_backend/internal/platform/database"
	"membership_backend/internal/platform/logger"
	"membership_backend/internal/platform/mail"
	"membership_backend/internal/shared"
	"membership_backend/internal/signin"
	"membership_backend/internal/user"

	"github.com/google/wire"
)

// initializeServer is the main Wire injector.
func initializeServer(cfg *config.Config) (*app.Server, func(), error) {
	wire.Build(
		// Platform layer
		logger.New,
		database.NewGORM,
		mail.NewSMTPSender,
		provideCleanup,

		// User services
		user.NewGORMRepository,
		user.NewService,
		wire.Bind(new(shared.UserService), new(*user.ServiceImplementation)),
		wire.Bind(new(auth.UserAccountService), new(*user.ServiceImplementation)),

		// Sign-in intent plumbing
		intent.NewGORMStore,
		intent.NewResolver,
		signin.NewOrchestrator,
		provideGatedCreate,

		// Auth
		auth.NewJWTService,
		auth.NewOAuthService,
		auth.NewHandler,
		user.NewHandler,

		// Jobs
		jobs.NewTokenPurgeJob,

		// Application layer
		app.NewServer,
	)
	return nil, nil, nil
}
