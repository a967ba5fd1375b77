// Package signin decides what happens after an authentication provider
// succeeds: whether the attempt is allowed to become a session, denied, or
// redirected to a corrective page. The decision hinges on the user's declared
// intent (login vs register), carried across the provider redirect by a
// cookie and a database-backed intent record.
package signin

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"membership_backend/internal/common"
	"membership_backend/internal/intent"
	"membership_backend/internal/shared"

	"go.uber.org/zap"
)

// Decision is the outcome of an orchestrated sign-in attempt. Exactly one of
// the three shapes holds: Allow with an authoritative user (or nil when
// creation is deferred to the gate), a redirect path, or neither (deny).
type Decision struct {
	Allow bool
	// RedirectPath is a locale-prefixed path plus query, relative to the
	// frontend base URL. Non-empty only for corrective redirects.
	RedirectPath string
	// User carries the database-resolved record on Allow. It is nil when the
	// attempt is an approved registration: persistence is deferred to the
	// creation gate, which re-validates intent independently.
	User *shared.User
	// Resolution is the intent resolution this decision was based on,
	// retained so the caller can clean up after the terminal action.
	Resolution intent.Resolution
}

// Orchestrator resolves sign-in intent and decides allow/deny/redirect.
type Orchestrator struct {
	users    shared.UserService
	resolver *intent.Resolver
	logger   *zap.Logger
}

// NewOrchestrator creates a sign-in orchestrator.
func NewOrchestrator(users shared.UserService, resolver *intent.Resolver, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		users:    users,
		resolver: resolver,
		logger:   logger.Named("SignInOrchestrator"),
	}
}

// DecideCredentials handles the local credentials path: verify the password
// against the stored hash and return the stored record so token claims come
// from the database, never from client input. Any failure is a deny; no
// corrective redirects exist on this path.
func (o *Orchestrator) DecideCredentials(ctx context.Context, carrier intent.Carrier, email, password string) (Decision, error) {
	// Terminal either way; the intent cookie must not leak into a later attempt.
	defer carrier.ClearIntent()

	u, err := o.users.VerifyPassword(ctx, email, password)
	if err != nil {
		return Decision{}, err
	}
	return Decision{Allow: true, User: u}, nil
}

// DecideOAuth handles an identity assertion from an external provider.
//
// The provider callback carries no application state of its own, so the
// declared intent is recovered from the cookie/store channel and checked
// against whether an account already exists for the asserted email. Conflicts
// are expected outcomes, answered with user-actionable redirects rather than
// errors.
//
// stateKey is the correlation key echoed back in the provider's state
// parameter. It pins resolution to this exact attempt even when the browser
// dropped the cookies, so a concurrent attempt's intent cannot be adopted.
func (o *Orchestrator) DecideOAuth(ctx context.Context, carrier intent.Carrier, stateKey, email, locale string) (Decision, error) {
	res := o.resolver.Resolve(ctx, carrier, stateKey)

	// Email is mandatory: it is the join key across providers.
	if email == "" {
		o.logger.Warn("Provider assertion carried no email")
		o.resolver.Cleanup(ctx, carrier, res.Key)
		return Decision{RedirectPath: InvalidRequestPath(locale), Resolution: res}, nil
	}

	existing, err := o.users.GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		o.logger.Error("User lookup failed during sign-in decision",
			zap.Error(err), zap.String("email", email))
		// Terminal for this attempt; the intent must not outlive it.
		o.resolver.Cleanup(ctx, carrier, res.Key)
		return Decision{Resolution: res}, err
	}

	if res.Intent == intent.IntentRegister {
		if existing != nil {
			o.logger.Info("Registration blocked: account already exists",
				zap.String("email", email))
			o.resolver.Cleanup(ctx, carrier, res.Key)
			return Decision{RedirectPath: AlreadyRegisteredPath(locale, email), Resolution: res}, nil
		}
		// Approved registration. Creation is deferred to the gate, which
		// re-resolves the same intent from the store, so nothing is cleaned
		// up here.
		return Decision{Allow: true, Resolution: res}, nil
	}

	// Login intent, including the unresolved default.
	if existing == nil {
		o.logger.Info("Sign-in blocked: no account for this email",
			zap.String("email", email), zap.Bool("intent_explicit", res.Explicit))
		o.resolver.Cleanup(ctx, carrier, res.Key)
		return Decision{RedirectPath: AccountNotFoundPath(locale, email), Resolution: res}, nil
	}

	o.resolver.Cleanup(ctx, carrier, res.Key)
	return Decision{Allow: true, User: existing, Resolution: res}, nil
}

// CleanupAttempt is exposed for callers that hit a terminal condition outside
// DecideOAuth (e.g. a blocked creation) and still need the ephemeral state
// removed.
func (o *Orchestrator) CleanupAttempt(ctx context.Context, carrier intent.Carrier, key string) {
	o.resolver.Cleanup(ctx, carrier, key)
}

// Corrective redirect paths. The error code in the query is resolved by the
// frontend into localized text; the email is echoed back so the user can
// retry the other flow without retyping it.

func AccountNotFoundPath(locale, email string) string {
	return fmt.Sprintf("/%s/register?error=AccountNotFound&email=%s", locale, url.QueryEscape(email))
}

func AlreadyRegisteredPath(locale, email string) string {
	return fmt.Sprintf("/%s/login?error=AlreadyRegistered&email=%s", locale, url.QueryEscape(email))
}

func InvalidRequestPath(locale string) string {
	return fmt.Sprintf("/%s/login?error=InvalidRequest", locale)
}
