package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	"membership_backend/internal/common"
	"membership_backend/internal/config"
	"membership_backend/internal/intent"
	"membership_backend/internal/platform/crypto"
	"membership_backend/internal/platform/mail"
	"membership_backend/internal/shared"
	"membership_backend/internal/signin"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Credentials flow error codes. The frontend branches on these to show the
// right recovery action (register instead, verify first, use the provider
// button).
const (
	codeUserNotFound     = "USER_NOT_FOUND"
	codeUseOAuthProvider = "USE_OAUTH_PROVIDER"
	codeEmailNotVerified = "EMAIL_NOT_VERIFIED"
)

// UserAccountService is the user surface the auth endpoints need beyond the
// shared sign-in contract.
type UserAccountService interface {
	shared.UserService
	RegisterWithPassword(ctx context.Context, email, password string, name *string) (*shared.User, error)
	MarkEmailVerified(ctx context.Context, email string) error
}

// Handler handles authentication related HTTP requests.
type Handler struct {
	cfg          *config.Config
	userService  UserAccountService
	tokenService shared.TokenService
	orchestrator *signin.Orchestrator
	oauthService *OAuthService
	store        intent.Store
	mailSender   mail.Sender
	logger       *zap.Logger
}

// NewHandler creates a new authentication handler.
func NewHandler(
	cfg *config.Config,
	userService UserAccountService,
	tokenService shared.TokenService,
	orchestrator *signin.Orchestrator,
	oauthService *OAuthService,
	store intent.Store,
	mailSender mail.Sender,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		cfg:          cfg,
		userService:  userService,
		tokenService: tokenService,
		orchestrator: orchestrator,
		oauthService: oauthService,
		store:        store,
		mailSender:   mailSender,
		logger:       logger.Named("AuthHandler"),
	}
}

// RegisterRoutes registers authentication routes.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh-token", h.RefreshToken)
		authGroup.POST("/verify-email", h.VerifyEmail)
		authGroup.POST("/resend-verification", h.ResendVerification)
		authGroup.GET("/:provider/login", h.OAuthLogin)
		authGroup.GET("/:provider/callback", h.OAuthCallback)
	}
}

// Register handles new user registration with email and password.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindingError(c, err)
		return
	}

	u, err := h.userService.RegisterWithPassword(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			common.RespondWithError(c, common.ErrConflict.WithDetails("An account with this email already exists."))
			return
		}
		common.RespondWithError(c, err)
		return
	}

	if err := h.sendVerificationEmail(c.Request.Context(), u.Email, h.requestLocale(c)); err != nil {
		// The account exists either way; the user can ask for a resend.
		h.logger.Error("Failed to send verification email",
			zap.Error(err), zap.String("email", u.Email))
	}

	common.RespondCreated(c, "Registration successful. Please check your email to verify your account.", gin.H{
		"user": toPublicUser(u),
	})
}

// Login handles credentials sign-in. The intent cookie is set for the
// duration of the attempt so the decision layer sees the same declared
// intent it would see on the OAuth path.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindingError(c, err)
		return
	}

	carrier := intent.NewGinCarrier(c, h.cfg)
	carrier.SetIntent(string(intent.IntentLogin))

	// Pre-checks with distinguishable codes. The password comparison below
	// stays generic; these only reveal facts the user can act on.
	u, err := h.userService.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			carrier.ClearIntent()
			common.RespondWithError(c, common.NewAPIError(http.StatusUnauthorized,
				codeUserNotFound, "No account found for this email. Please register first."))
			return
		}
		common.RespondWithError(c, err)
		return
	}
	if !u.HasPassword {
		carrier.ClearIntent()
		common.RespondWithError(c, common.NewAPIError(http.StatusBadRequest,
			codeUseOAuthProvider, "This account uses a social sign-in provider. Please sign in with your provider."))
		return
	}
	if u.EmailVerifiedAt == nil {
		carrier.ClearIntent()
		common.RespondWithError(c, common.NewAPIError(http.StatusForbidden,
			codeEmailNotVerified, "Please verify your email address before signing in."))
		return
	}

	decision, err := h.orchestrator.DecideCredentials(c.Request.Context(), carrier, req.Email, req.Password)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}

	tokens, err := h.issueTokens(decision.User)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Login successful.", gin.H{
		"user":  toPublicUser(decision.User),
		"token": tokens,
	})
}

// RefreshToken exchanges a valid refresh token for a fresh token pair. The
// user is re-read from the database so revocations and role changes take
// effect here.
func (h *Handler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindingError(c, err)
		return
	}

	claims, err := h.tokenService.ParseRefreshToken(req.RefreshToken)
	if err != nil {
		common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Invalid or expired refresh token."))
		return
	}

	u, err := h.userService.GetUserByID(c.Request.Context(), claims.UserID)
	if err != nil {
		common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Invalid or expired refresh token."))
		return
	}

	tokens, err := h.issueTokens(u)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Token refreshed.", gin.H{"token": tokens})
}

// VerifyEmail confirms an email address using the token from the
// verification email.
func (h *Handler) VerifyEmail(c *gin.Context) {
	var req VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindingError(c, err)
		return
	}
	ctx := c.Request.Context()

	stored, err := h.store.Lookup(ctx, req.Email, intent.PurposeEmailVerification)
	if err != nil || subtle.ConstantTimeCompare([]byte(stored), []byte(req.Token)) != 1 {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid or expired verification token."))
		return
	}

	if err := h.userService.MarkEmailVerified(ctx, req.Email); err != nil {
		common.RespondWithError(c, err)
		return
	}
	if err := h.store.Consume(ctx, req.Email, intent.PurposeEmailVerification); err != nil {
		h.logger.Error("Failed to consume verification token", zap.Error(err), zap.String("email", req.Email))
	}

	common.RespondOK(c, "Email verified successfully.", nil)
}

// ResendVerification issues a fresh verification token, replacing any
// outstanding one for the address.
func (h *Handler) ResendVerification(c *gin.Context) {
	var req ResendVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindingError(c, err)
		return
	}
	ctx := c.Request.Context()

	u, err := h.userService.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			// Do not reveal whether the address is registered.
			common.RespondOK(c, "If an account exists for this email, a verification link has been sent.", nil)
			return
		}
		common.RespondWithError(c, err)
		return
	}
	if u.EmailVerifiedAt != nil {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("This email address is already verified."))
		return
	}

	if err := h.sendVerificationEmail(ctx, u.Email, h.requestLocale(c)); err != nil {
		h.logger.Error("Failed to resend verification email", zap.Error(err), zap.String("email", u.Email))
		common.RespondWithError(c, common.ErrInternalServer.WithDetails("Could not send the verification email."))
		return
	}
	common.RespondOK(c, "If an account exists for this email, a verification link has been sent.", nil)
}

// OAuthLogin starts an OAuth flow with the named provider. The intent query
// parameter declares whether this attempt may create an account.
func (h *Handler) OAuthLogin(c *gin.Context) {
	provider := c.Param("provider")
	carrier := intent.NewGinCarrier(c, h.cfg)

	authURL, err := h.oauthService.BeginFlow(c.Request.Context(), carrier,
		provider, c.Query("intent"), c.Query("locale"))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	c.Redirect(http.StatusFound, authURL)
}

// OAuthCallback receives the provider redirect and finishes the sign-in.
func (h *Handler) OAuthCallback(c *gin.Context) {
	provider := c.Param("provider")
	carrier := intent.NewGinCarrier(c, h.cfg)

	result, err := h.oauthService.HandleCallback(c.Request.Context(), carrier,
		provider, c.Query("state"), c.Query("code"))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	if result.RedirectURL != "" {
		c.Redirect(http.StatusFound, result.RedirectURL)
		return
	}

	common.RespondOK(c, "Login successful.", gin.H{
		"user":  toPublicUser(result.User),
		"token": result.Token,
	})
}

func (h *Handler) issueTokens(u *shared.User) (*shared.TokenResponse, error) {
	accessToken, expiresAt, err := h.tokenService.GenerateAccessToken(u)
	if err != nil {
		return nil, common.ErrInternalServer.WithDetails("Failed to generate access token.")
	}
	refreshToken, _, err := h.tokenService.GenerateRefreshToken(u)
	if err != nil {
		return nil, common.ErrInternalServer.WithDetails("Failed to generate refresh token.")
	}
	return &shared.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		TokenType:    "Bearer",
	}, nil
}

func (h *Handler) sendVerificationEmail(ctx context.Context, email, locale string) error {
	token, err := crypto.GenerateSecureRandomString(32)
	if err != nil {
		return err
	}
	// Replace any outstanding token so only the newest link works.
	if err := h.store.Consume(ctx, email, intent.PurposeEmailVerification); err != nil {
		return err
	}
	if err := h.store.Create(ctx, email, token, intent.PurposeEmailVerification, h.cfg.VerificationTokenTTL); err != nil {
		return err
	}
	return h.mailSender.SendVerificationEmail(ctx, email, token, locale)
}

func (h *Handler) requestLocale(c *gin.Context) string {
	if locale := c.Query("locale"); locale != "" {
		return locale
	}
	return h.cfg.DefaultLocale
}

func (h *Handler) respondBindingError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		common.RespondWithError(c, common.NewValidationAPIError(common.FormatValidationErrors(verrs)))
		return
	}
	common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid request payload."))
}

// toPublicUser shapes a user for API responses.
func toPublicUser(u *shared.User) gin.H {
	return gin.H{
		"id":                u.ID,
		"email":             u.Email,
		"name":              u.Name,
		"image_url":         u.ImageURL,
		"role":              u.Role,
		"email_verified_at": u.EmailVerifiedAt,
		"created_at":        u.CreatedAt,
	}
}
