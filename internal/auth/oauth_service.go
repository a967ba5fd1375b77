package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"membership_backend/internal/common"
	"membership_backend/internal/config"
	"membership_backend/internal/intent"
	"membership_backend/internal/platform/crypto"
	"membership_backend/internal/shared"
	"membership_backend/internal/signin"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
)

// Supported OAuth provider names, as they appear in URLs.
const (
	ProviderGoogle    = "google"
	ProviderGitHub    = "github"
	ProviderMicrosoft = "microsoft"
)

const profileFetchTimeout = 10 * time.Second

// CallbackResult is the terminal outcome of an OAuth callback. Either
// RedirectURL is set (corrective redirect to the frontend) or User and Token
// are set (session established).
type CallbackResult struct {
	User        *shared.User
	Token       *shared.TokenResponse
	RedirectURL string
}

// OAuthService drives the full OAuth round trip: initiation (record the
// declared intent, hand the browser to the provider) and callback (verify
// state, exchange the code, fetch the profile, and route the attempt through
// the sign-in decision and the creation gate).
type OAuthService struct {
	cfg          *config.Config
	store        intent.Store
	orchestrator *signin.Orchestrator
	gatedCreate  signin.GatedCreateUserFunc
	userService  shared.UserService
	tokenService shared.TokenService
	logger       *zap.Logger
}

// NewOAuthService creates a new OAuth service.
func NewOAuthService(
	cfg *config.Config,
	store intent.Store,
	orchestrator *signin.Orchestrator,
	gatedCreate signin.GatedCreateUserFunc,
	userService shared.UserService,
	tokenService shared.TokenService,
	logger *zap.Logger,
) *OAuthService {
	return &OAuthService{
		cfg:          cfg,
		store:        store,
		orchestrator: orchestrator,
		gatedCreate:  gatedCreate,
		userService:  userService,
		tokenService: tokenService,
		logger:       logger.Named("OAuthService"),
	}
}

func (s *OAuthService) providerConfig(provider string) (*oauth2.Config, error) {
	switch provider {
	case ProviderGoogle:
		return &oauth2.Config{
			ClientID:     s.cfg.GoogleClientID,
			ClientSecret: s.cfg.GoogleClientSecret,
			RedirectURL:  s.cfg.GoogleRedirectURI,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		}, nil
	case ProviderGitHub:
		return &oauth2.Config{
			ClientID:     s.cfg.GitHubClientID,
			ClientSecret: s.cfg.GitHubClientSecret,
			RedirectURL:  s.cfg.GitHubRedirectURI,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		}, nil
	case ProviderMicrosoft:
		tenant := s.cfg.MicrosoftTenant
		if tenant == "" {
			tenant = "common"
		}
		return &oauth2.Config{
			ClientID:     s.cfg.MicrosoftClientID,
			ClientSecret: s.cfg.MicrosoftClientSecret,
			RedirectURL:  s.cfg.MicrosoftRedirectURI,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     microsoft.AzureADEndpoint(tenant),
		}, nil
	}
	return nil, common.ErrNotFound.WithDetails(fmt.Sprintf("Unknown OAuth provider '%s'.", provider))
}

// BeginFlow records the declared intent and returns the provider's
// authorization URL. The correlation key does double duty as the OAuth state
// parameter, so the callback can both CSRF-check it and use it to find the
// intent record again.
func (s *OAuthService) BeginFlow(ctx context.Context, carrier intent.Carrier, provider, rawIntent, locale string) (string, error) {
	conf, err := s.providerConfig(provider)
	if err != nil {
		return "", err
	}

	declared, valid := intent.ParseIntent(rawIntent)
	if !valid {
		declared = intent.IntentLogin
	}
	if locale == "" {
		locale = s.cfg.DefaultLocale
	}

	key, err := crypto.NewCorrelationKey()
	if err != nil {
		s.logger.Error("Failed to generate correlation key", zap.Error(err))
		return "", common.ErrInternalServer
	}

	// The database record is the source of truth; the cookies are only a
	// cheaper lookup path on the way back.
	if err := s.store.Create(ctx, key, string(declared), intent.PurposeOAuthState, s.cfg.OAuthStateTTL); err != nil {
		s.logger.Error("Failed to persist intent record", zap.Error(err), zap.String("key", key))
		return "", common.ErrInternalServer.WithDetails("Could not start the sign-in flow.")
	}

	carrier.SetIntent(string(declared))
	carrier.SetCorrelationKey(key)
	carrier.SetLocale(locale)

	s.logger.Info("OAuth flow started",
		zap.String("provider", provider),
		zap.String("intent", string(declared)),
		zap.String("key", key))

	return conf.AuthCodeURL(key), nil
}

// HandleCallback processes the provider's redirect back to us.
//
// State handling is deliberately two-layered. When the state cookie survived
// the round trip it must match the state parameter exactly; a mismatch is
// treated as a forged or stale request. When the cookie did not survive
// (cross-site redirect, cookie blocked) the attempt is still honored, because
// the state parameter alone is an unguessable key into the intent store.
func (s *OAuthService) HandleCallback(ctx context.Context, carrier intent.Carrier, provider, state, code string) (*CallbackResult, error) {
	locale, ok := carrier.Locale()
	if !ok {
		locale = s.cfg.DefaultLocale
	}

	conf, err := s.providerConfig(provider)
	if err != nil {
		return nil, err
	}

	if state == "" || code == "" {
		s.logger.Warn("Callback missing state or code", zap.String("provider", provider))
		return s.redirect(ctx, carrier, "", signin.InvalidRequestPath(locale)), nil
	}
	if cookieKey, ok := carrier.CorrelationKey(); ok && cookieKey != state {
		s.logger.Warn("State parameter does not match state cookie",
			zap.String("provider", provider), zap.String("state", state))
		return s.redirect(ctx, carrier, cookieKey, signin.InvalidRequestPath(locale)), nil
	}

	token, err := conf.Exchange(ctx, code)
	if err != nil {
		s.logger.Error("Code exchange failed", zap.Error(err), zap.String("provider", provider))
		return s.redirect(ctx, carrier, state, signin.InvalidRequestPath(locale)), nil
	}

	profile, err := s.fetchProfile(ctx, conf, token, provider)
	if err != nil {
		s.logger.Error("Profile fetch failed", zap.Error(err), zap.String("provider", provider))
		return s.redirect(ctx, carrier, state, signin.InvalidRequestPath(locale)), nil
	}

	decision, err := s.orchestrator.DecideOAuth(ctx, carrier, state, profile.Email, locale)
	if err != nil {
		return nil, err
	}
	if decision.RedirectPath != "" {
		return &CallbackResult{RedirectURL: s.cfg.FrontendBaseURL + decision.RedirectPath}, nil
	}

	u := decision.User
	if u == nil {
		// Approved registration: creation goes through the gate, which
		// re-validates intent against the store before persisting anything.
		u, err = s.gatedCreate(ctx, carrier, state, *profile)
		if err != nil {
			if errors.Is(err, signin.ErrCreationBlocked) {
				return &CallbackResult{
					RedirectURL: s.cfg.FrontendBaseURL + signin.AccountNotFoundPath(locale, profile.Email),
				}, nil
			}
			if errors.Is(err, common.ErrConflict) {
				// Lost a race with a concurrent registration of the same
				// email. The account exists now, which for this attempt is
				// the "already registered" outcome.
				return s.redirect(ctx, carrier, decision.Resolution.Key,
					signin.AlreadyRegisteredPath(locale, profile.Email)), nil
			}
			return nil, err
		}
	}

	if err := s.userService.EnsureAccountLink(ctx, u.ID, *profile); err != nil {
		s.logger.Error("Failed to record provider link",
			zap.Error(err), zap.String("userID", u.ID.String()))
	}

	accessToken, expiresAt, err := s.tokenService.GenerateAccessToken(u)
	if err != nil {
		return nil, common.ErrInternalServer.WithDetails("Failed to generate access token.")
	}
	refreshToken, _, err := s.tokenService.GenerateRefreshToken(u)
	if err != nil {
		return nil, common.ErrInternalServer.WithDetails("Failed to generate refresh token.")
	}

	s.logger.Info("OAuth sign-in completed",
		zap.String("provider", provider),
		zap.String("userID", u.ID.String()))

	return &CallbackResult{
		User: u,
		Token: &shared.TokenResponse{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			ExpiresAt:    expiresAt,
			TokenType:    "Bearer",
		},
	}, nil
}

// redirect builds a corrective redirect result, cleaning up the attempt's
// ephemeral state first.
func (s *OAuthService) redirect(ctx context.Context, carrier intent.Carrier, key, path string) *CallbackResult {
	s.orchestrator.CleanupAttempt(ctx, carrier, key)
	return &CallbackResult{RedirectURL: s.cfg.FrontendBaseURL + path}
}

func (s *OAuthService) fetchProfile(ctx context.Context, conf *oauth2.Config, token *oauth2.Token, provider string) (*shared.OAuthUserProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, profileFetchTimeout)
	defer cancel()
	client := conf.Client(ctx, token)

	switch provider {
	case ProviderGoogle:
		return fetchGoogleProfile(ctx, client)
	case ProviderGitHub:
		return fetchGitHubProfile(ctx, client)
	case ProviderMicrosoft:
		return fetchMicrosoftProfile(ctx, client)
	}
	return nil, fmt.Errorf("no profile fetcher for provider %s", provider)
}

func fetchGoogleProfile(ctx context.Context, client *http.Client) (*shared.OAuthUserProfile, error) {
	var payload struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := getJSON(ctx, client, "https://www.googleapis.com/oauth2/v3/userinfo", &payload); err != nil {
		return nil, err
	}
	return &shared.OAuthUserProfile{
		Provider:      ProviderGoogle,
		ProviderID:    payload.Sub,
		Email:         payload.Email,
		Name:          payload.Name,
		PictureURL:    payload.Picture,
		EmailVerified: payload.EmailVerified,
	}, nil
}

func fetchGitHubProfile(ctx context.Context, client *http.Client) (*shared.OAuthUserProfile, error) {
	var payload struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := getJSON(ctx, client, "https://api.github.com/user", &payload); err != nil {
		return nil, err
	}

	email := payload.Email
	verified := email != ""
	if email == "" {
		// The profile email is often private; the emails endpoint lists the
		// addresses the user actually controls.
		var emails []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		if err := getJSON(ctx, client, "https://api.github.com/user/emails", &emails); err != nil {
			return nil, err
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				email = e.Email
				verified = true
				break
			}
		}
	}

	name := payload.Name
	if name == "" {
		name = payload.Login
	}
	return &shared.OAuthUserProfile{
		Provider:      ProviderGitHub,
		ProviderID:    fmt.Sprintf("%d", payload.ID),
		Email:         email,
		Name:          name,
		PictureURL:    payload.AvatarURL,
		EmailVerified: verified,
	}, nil
}

func fetchMicrosoftProfile(ctx context.Context, client *http.Client) (*shared.OAuthUserProfile, error) {
	var payload struct {
		Sub     string `json:"sub"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := getJSON(ctx, client, "https://graph.microsoft.com/oidc/userinfo", &payload); err != nil {
		return nil, err
	}
	return &shared.OAuthUserProfile{
		Provider:      ProviderMicrosoft,
		ProviderID:    payload.Sub,
		Email:         payload.Email,
		Name:          payload.Name,
		PictureURL:    payload.Picture,
		EmailVerified: payload.Email != "",
	}, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
