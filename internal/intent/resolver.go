package intent

import (
	"context"
	"errors"

	"membership_backend/internal/common"
	"membership_backend/internal/platform/crypto"

	"go.uber.org/zap"
)

// Resolution is the outcome of resolving a sign-in intent for one attempt.
type Resolution struct {
	Intent Intent
	// Key is the correlation key the intent was found under, when one was
	// involved. Cleanup uses it to delete the store row.
	Key string
	// Explicit is false when no intent could be resolved and the result
	// defaulted to login. Defaulting to login fails closed: an unresolved
	// attempt must never silently enroll a new account.
	Explicit bool
	// FromFallback marks a resolution via the recency scan, which is
	// lower-confidence than a direct key match.
	FromFallback bool
}

// Resolver resolves a sign-in intent with a fixed precedence: direct intent
// cookie, then correlation-key cookie plus store lookup, then any candidate
// keys the caller recovered from the request (the OAuth state parameter),
// then a best-effort recency scan of the store, then the login default.
//
// Resolution never consumes anything, so it is idempotent: the sign-in
// decision and the user-creation gate run at different points of the same
// request lifecycle with no guaranteed shared in-memory state, and both must
// be able to resolve the same intent independently. Whichever caller performs
// the terminal action calls Cleanup.
type Resolver struct {
	store  Store
	logger *zap.Logger
}

// NewResolver creates an intent resolver over the given store.
func NewResolver(store Store, logger *zap.Logger) *Resolver {
	return &Resolver{store: store, logger: logger.Named("IntentResolver")}
}

// Resolve determines the intent for the current attempt. candidateKeys are
// correlation keys recovered outside the cookie channel, such as the OAuth
// state parameter echoed back by the provider; each is tried as an exact
// store lookup before the ambiguous recency scan.
func (r *Resolver) Resolve(ctx context.Context, carrier Carrier, candidateKeys ...string) Resolution {
	if raw, ok := carrier.Intent(); ok {
		if parsed, valid := ParseIntent(raw); valid {
			key, _ := carrier.CorrelationKey()
			return Resolution{Intent: parsed, Key: key, Explicit: true}
		}
		r.logger.Warn("Ignoring malformed intent cookie", zap.String("value", raw))
	}

	cookieKey, _ := carrier.CorrelationKey()
	for _, key := range append([]string{cookieKey}, candidateKeys...) {
		if key == "" {
			continue
		}
		value, err := r.store.Lookup(ctx, key, PurposeOAuthState)
		if err == nil {
			if parsed, valid := ParseIntent(value); valid {
				return Resolution{Intent: parsed, Key: key, Explicit: true}
			}
			r.logger.Warn("Ignoring malformed intent value in store", zap.String("key", key))
		} else if !errors.Is(err, common.ErrNotFound) {
			r.logger.Error("Intent store lookup failed", zap.Error(err), zap.String("key", key))
		}
	}

	// No cookie and no candidate key matched. Scan for the newest unexpired
	// correlation record;
	// with concurrent attempts from different browsers this can attach the
	// wrong intent to the wrong attempt, so the result is flagged.
	key, value, err := r.store.FindMostRecentUnexpired(ctx, crypto.OAuthStateKeyPrefix, PurposeOAuthState)
	if err == nil {
		if parsed, valid := ParseIntent(value); valid {
			r.logger.Warn("Intent resolved via recency fallback; no cookie matched",
				zap.String("key", key))
			return Resolution{Intent: parsed, Key: key, Explicit: true, FromFallback: true}
		}
	} else if !errors.Is(err, common.ErrNotFound) {
		r.logger.Error("Intent store recency scan failed", zap.Error(err))
	}

	return Resolution{Intent: IntentLogin, Explicit: false}
}

// Cleanup removes the ephemeral state for a finished attempt: the store row
// (when a key is known) and both cookies. It is best-effort; failures are
// logged and never override the primary sign-in outcome. It must run on every
// terminal path so stale intent cannot leak into a later, unrelated attempt.
func (r *Resolver) Cleanup(ctx context.Context, carrier Carrier, key string) {
	if key != "" {
		if err := r.store.Consume(ctx, key, PurposeOAuthState); err != nil {
			r.logger.Error("Failed to consume intent record", zap.Error(err), zap.String("key", key))
		}
	}
	carrier.ClearIntent()
	carrier.ClearCorrelationKey()
}
