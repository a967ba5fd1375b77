package intent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubCarrier is an in-memory Carrier for tests.
type stubCarrier struct {
	intent string
	key    string
	locale string
}

func (s *stubCarrier) Intent() (string, bool)         { return s.intent, s.intent != "" }
func (s *stubCarrier) CorrelationKey() (string, bool) { return s.key, s.key != "" }
func (s *stubCarrier) Locale() (string, bool)         { return s.locale, s.locale != "" }
func (s *stubCarrier) SetIntent(value string)         { s.intent = value }
func (s *stubCarrier) SetCorrelationKey(key string)   { s.key = key }
func (s *stubCarrier) SetLocale(locale string)        { s.locale = locale }
func (s *stubCarrier) ClearIntent()                   { s.intent = "" }
func (s *stubCarrier) ClearCorrelationKey()           { s.key = "" }

func newTestResolver(t *testing.T) (*Resolver, Store) {
	t.Helper()
	store := NewGORMStore(newTestDB(t))
	return NewResolver(store, zap.NewNop()), store
}

func TestResolvePrefersIntentCookie(t *testing.T) {
	resolver, store := newTestResolver(t)
	ctx := context.Background()

	// The store disagrees with the cookie; the cookie wins.
	require.NoError(t, store.Create(ctx, "oauth_1_a", "login", PurposeOAuthState, time.Minute))
	carrier := &stubCarrier{intent: "register", key: "oauth_1_a"}

	res := resolver.Resolve(ctx, carrier)
	assert.Equal(t, IntentRegister, res.Intent)
	assert.True(t, res.Explicit)
	assert.False(t, res.FromFallback)
	assert.Equal(t, "oauth_1_a", res.Key)
}

func TestResolveFallsBackToStoreLookup(t *testing.T) {
	resolver, store := newTestResolver(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "oauth_1_a", "register", PurposeOAuthState, time.Minute))
	carrier := &stubCarrier{key: "oauth_1_a"}

	res := resolver.Resolve(ctx, carrier)
	assert.Equal(t, IntentRegister, res.Intent)
	assert.True(t, res.Explicit)
	assert.False(t, res.FromFallback)
}

func TestResolveIgnoresMalformedIntentCookie(t *testing.T) {
	resolver, store := newTestResolver(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "oauth_1_a", "register", PurposeOAuthState, time.Minute))
	carrier := &stubCarrier{intent: "banana", key: "oauth_1_a"}

	res := resolver.Resolve(ctx, carrier)
	assert.Equal(t, IntentRegister, res.Intent)
	assert.True(t, res.Explicit)
}

func TestResolveCandidateKeyBeatsRecencyScan(t *testing.T) {
	resolver, store := newTestResolver(t)
	ctx := context.Background()

	// Two unexpired attempts exist. With no cookies, the caller-supplied
	// candidate key must pin the older attempt exactly rather than letting
	// the scan adopt the newer one.
	require.NoError(t, store.Create(ctx, "oauth_1_a", "login", PurposeOAuthState, time.Minute))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, store.Create(ctx, "oauth_2_b", "register", PurposeOAuthState, time.Minute))

	res := resolver.Resolve(ctx, &stubCarrier{}, "oauth_1_a")
	assert.Equal(t, IntentLogin, res.Intent)
	assert.True(t, res.Explicit)
	assert.False(t, res.FromFallback)
	assert.Equal(t, "oauth_1_a", res.Key)
}

func TestResolveUnknownCandidateKeyFallsThrough(t *testing.T) {
	resolver, store := newTestResolver(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "oauth_1_a", "register", PurposeOAuthState, time.Minute))

	res := resolver.Resolve(ctx, &stubCarrier{}, "oauth_9_gone")
	assert.Equal(t, IntentRegister, res.Intent)
	assert.True(t, res.FromFallback)
	assert.Equal(t, "oauth_1_a", res.Key)
}

func TestResolveUsesRecencyScanWithoutCookies(t *testing.T) {
	resolver, store := newTestResolver(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "oauth_1_a", "register", PurposeOAuthState, time.Minute))
	carrier := &stubCarrier{}

	res := resolver.Resolve(ctx, carrier)
	assert.Equal(t, IntentRegister, res.Intent)
	assert.True(t, res.Explicit)
	assert.True(t, res.FromFallback)
	assert.Equal(t, "oauth_1_a", res.Key)
}

func TestResolveDefaultsToLogin(t *testing.T) {
	resolver, _ := newTestResolver(t)

	res := resolver.Resolve(context.Background(), &stubCarrier{})
	assert.Equal(t, IntentLogin, res.Intent)
	assert.False(t, res.Explicit)
}

func TestResolveIsIdempotent(t *testing.T) {
	resolver, store := newTestResolver(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "oauth_1_a", "register", PurposeOAuthState, time.Minute))
	carrier := &stubCarrier{key: "oauth_1_a"}

	first := resolver.Resolve(ctx, carrier)
	second := resolver.Resolve(ctx, carrier)
	assert.Equal(t, first, second)
}

func TestCleanupConsumesRecordAndClearsCookies(t *testing.T) {
	resolver, store := newTestResolver(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "oauth_1_a", "register", PurposeOAuthState, time.Minute))
	carrier := &stubCarrier{intent: "register", key: "oauth_1_a"}

	resolver.Cleanup(ctx, carrier, "oauth_1_a")

	_, hasIntent := carrier.Intent()
	_, hasKey := carrier.CorrelationKey()
	assert.False(t, hasIntent)
	assert.False(t, hasKey)

	res := resolver.Resolve(ctx, &stubCarrier{})
	assert.Equal(t, IntentLogin, res.Intent)
	assert.False(t, res.Explicit)
}
