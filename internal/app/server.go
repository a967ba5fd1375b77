// File: internal/app/server.go
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"membership_backend/internal/auth"
	"membership_backend/internal/common"
	"membership_backend/internal/config"
	"membership_backend/internal/jobs"
	"membership_backend/internal/middleware"
	"membership_backend/internal/platform/database"
	"membership_backend/internal/shared"
	"membership_backend/internal/user"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Server struct holds the dependencies for the HTTP server.
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	cfg        *config.Config
	logger     *zap.Logger

	authHandler *auth.Handler
	userHandler *user.Handler

	tokenPurgeJob *jobs.TokenPurgeJob
}

// NewServer creates a new instance of our application server.
func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	authHandler *auth.Handler,
	userHandler *user.Handler,
	tokenPurgeJob *jobs.TokenPurgeJob,
	tokenService shared.TokenService,
	db *gorm.DB,
) (*Server, error) {
	if err := database.AutoMigrate(db); err != nil {
		return nil, err
	}

	gin.SetMode(cfg.GinMode)
	router := gin.New()

	router.Use(middleware.ZapLogger(logger))
	router.Use(middleware.ErrorHandler(logger))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.FrontendBaseURL}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader}
	corsConfig.AllowCredentials = true
	corsConfig.ExposeHeaders = []string{"Content-Length", middleware.RequestIDHeader}
	router.Use(cors.New(corsConfig))

	authMW := middleware.AuthMiddleware(tokenService, logger.Named("AuthMiddleware"))
	adminRoleMW := middleware.RoleAuthMiddleware(common.RoleAdmin)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "message": "Membership API is healthy!"})
	})

	v1 := router.Group("/api/v1")
	authHandler.RegisterRoutes(v1)
	userHandler.RegisterRoutes(v1, authMW, adminRoleMW)

	addr := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer:    httpServer,
		router:        router,
		cfg:           cfg,
		logger:        logger,
		authHandler:   authHandler,
		userHandler:   userHandler,
		tokenPurgeJob: tokenPurgeJob,
	}, nil
}

func (s *Server) Start() error {
	if s.tokenPurgeJob != nil {
		if err := s.tokenPurgeJob.SetupAndStart(); err != nil {
			s.logger.Error("Failed to setup and start token purge job", zap.Error(err))
		}
	}

	s.logger.Info("HTTP Server starting",
		zap.String("address", s.httpServer.Addr),
		zap.String("gin_mode", s.cfg.GinMode),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error("Failed to start HTTP server", zap.Error(err))
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Attempting graceful server shutdown...")
	if s.tokenPurgeJob != nil {
		s.tokenPurgeJob.Stop()
	}
	return s.httpServer.Shutdown(ctx)
}
