package signin

import (
	"context"
	"errors"

	"membership_backend/internal/intent"
	"membership_backend/internal/shared"

	"go.uber.org/zap"
)

// ErrCreationBlocked signals that a brand-new user row was about to be
// persisted without a resolved register intent. It is a stable, distinguishable
// condition so callers can map it to the "account not found" redirect instead
// of surfacing an internal error.
var ErrCreationBlocked = errors.New("signin: user creation blocked without register intent")

// CreateUserFunc is the default "persist a new user" operation.
type CreateUserFunc func(ctx context.Context, profile shared.OAuthUserProfile) (*shared.User, error)

// GatedCreateUserFunc is a CreateUserFunc that additionally sees the
// request's cookie carrier and the state-parameter correlation key, which it
// needs to re-resolve intent.
type GatedCreateUserFunc func(ctx context.Context, carrier intent.Carrier, stateKey string, profile shared.OAuthUserProfile) (*shared.User, error)

// NewCreationGate decorates the default user-creation operation with an
// independent intent check. The gate runs at a different point of the request
// lifecycle than the sign-in decision and may not share in-memory state with
// it (horizontally scaled deployments route them wherever), so it re-resolves
// intent from the durable store rather than trusting that the earlier
// decision happened.
//
// The gate is the terminal consumer for the register path: whether creation
// succeeds, fails, or is blocked, it consumes the intent record and clears
// the cookies.
func NewCreationGate(create CreateUserFunc, resolver *intent.Resolver, logger *zap.Logger) GatedCreateUserFunc {
	log := logger.Named("CreationGate")

	return func(ctx context.Context, carrier intent.Carrier, stateKey string, profile shared.OAuthUserProfile) (*shared.User, error) {
		res := resolver.Resolve(ctx, carrier, stateKey)

		if !res.Explicit || res.Intent != intent.IntentRegister {
			log.Warn("Blocking user creation",
				zap.String("email", profile.Email),
				zap.String("resolved_intent", string(res.Intent)),
				zap.Bool("explicit", res.Explicit))
			resolver.Cleanup(ctx, carrier, res.Key)
			return nil, ErrCreationBlocked
		}

		created, err := create(ctx, profile)
		if err != nil {
			// The attempt ends here either way; consume the record and clear
			// the cookies before propagating.
			resolver.Cleanup(ctx, carrier, res.Key)
			return nil, err
		}

		resolver.Cleanup(ctx, carrier, res.Key)
		log.Info("User creation allowed",
			zap.String("userID", created.ID.String()),
			zap.String("provider", profile.Provider))
		return created, nil
	}
}
