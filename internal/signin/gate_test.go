package signin

import (
	"context"
	"errors"
	"testing"
	"time"

	"membership_backend/internal/intent"
	"membership_backend/internal/shared"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestGate(store intent.Store, create CreateUserFunc) GatedCreateUserFunc {
	resolver := intent.NewResolver(store, zap.NewNop())
	return NewCreationGate(create, resolver, zap.NewNop())
}

func passthroughCreate(calls *int) CreateUserFunc {
	return func(_ context.Context, profile shared.OAuthUserProfile) (*shared.User, error) {
		*calls++
		return &shared.User{ID: uuid.New(), Email: profile.Email}, nil
	}
}

func TestGateAllowsCreationWithRegisterIntent(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.Create(context.Background(), "oauth_1_a", "register", intent.PurposeOAuthState, time.Minute))
	calls := 0
	gate := newTestGate(store, passthroughCreate(&calls))
	carrier := &stubCarrier{intentVal: "register", key: "oauth_1_a"}

	created, err := gate(context.Background(), carrier, "oauth_1_a", shared.OAuthUserProfile{Email: "bob@example.com"})
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, 1, calls)

	// The gate is the terminal consumer on the register path.
	assert.False(t, store.has("oauth_1_a"))
	_, hasIntent := carrier.Intent()
	assert.False(t, hasIntent)
}

func TestGateBlocksCreationWithLoginIntent(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.Create(context.Background(), "oauth_1_a", "login", intent.PurposeOAuthState, time.Minute))
	calls := 0
	gate := newTestGate(store, passthroughCreate(&calls))
	carrier := &stubCarrier{key: "oauth_1_a"}

	_, err := gate(context.Background(), carrier, "oauth_1_a", shared.OAuthUserProfile{Email: "bob@example.com"})
	assert.True(t, errors.Is(err, ErrCreationBlocked))
	assert.Equal(t, 0, calls, "the wrapped creation must never run")
	assert.False(t, store.has("oauth_1_a"), "a blocked attempt is still terminal")
}

func TestGateBlocksCreationWithoutAnyIntent(t *testing.T) {
	calls := 0
	gate := newTestGate(newMemStore(), passthroughCreate(&calls))

	_, err := gate(context.Background(), &stubCarrier{}, "", shared.OAuthUserProfile{Email: "bob@example.com"})
	assert.True(t, errors.Is(err, ErrCreationBlocked))
	assert.Equal(t, 0, calls)
}

func TestGateResolvesIntentFromStoreAlone(t *testing.T) {
	// Cookies did not survive the redirect; the state key and the durable
	// record still authorize the creation.
	store := newMemStore()
	require.NoError(t, store.Create(context.Background(), "oauth_1_a", "register", intent.PurposeOAuthState, time.Minute))
	calls := 0
	gate := newTestGate(store, passthroughCreate(&calls))

	created, err := gate(context.Background(), &stubCarrier{}, "oauth_1_a", shared.OAuthUserProfile{Email: "bob@example.com"})
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.False(t, store.has("oauth_1_a"))
}

func TestGatePropagatesCreationErrors(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.Create(context.Background(), "oauth_1_a", "register", intent.PurposeOAuthState, time.Minute))
	boom := errors.New("storage down")
	gate := newTestGate(store, func(context.Context, shared.OAuthUserProfile) (*shared.User, error) {
		return nil, boom
	})
	carrier := &stubCarrier{intentVal: "register", key: "oauth_1_a"}

	_, err := gate(context.Background(), carrier, "oauth_1_a", shared.OAuthUserProfile{Email: "bob@example.com"})
	assert.True(t, errors.Is(err, boom))
	// A failed creation is still terminal for this attempt.
	assert.False(t, store.has("oauth_1_a"))
	_, hasIntent := carrier.Intent()
	assert.False(t, hasIntent)
}
