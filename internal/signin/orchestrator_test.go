package signin

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"membership_backend/internal/common"
	"membership_backend/internal/intent"
	"membership_backend/internal/shared"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memStore is an in-memory intent.Store for tests.
type memStore struct {
	mu   sync.Mutex
	rows map[string]memRow
}

type memRow struct {
	value   string
	purpose string
	expires time.Time
	created time.Time
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]memRow)}
}

func (m *memStore) Create(_ context.Context, key, value, purpose string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[key] = memRow{value: value, purpose: purpose, expires: time.Now().Add(ttl), created: time.Now()}
	return nil
}

func (m *memStore) Lookup(_ context.Context, key, purpose string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[key]
	if !ok || row.purpose != purpose || row.expires.Before(time.Now()) {
		return "", common.ErrNotFound
	}
	return row.value, nil
}

func (m *memStore) Consume(_ context.Context, key, purpose string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, key)
	return nil
}

func (m *memStore) FindMostRecentUnexpired(_ context.Context, prefix, purpose string) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var bestKey string
	var best memRow
	for key, row := range m.rows {
		if len(key) < len(prefix) || key[:len(prefix)] != prefix {
			continue
		}
		if row.purpose != purpose || row.expires.Before(time.Now()) {
			continue
		}
		if bestKey == "" || row.created.After(best.created) {
			bestKey, best = key, row
		}
	}
	if bestKey == "" {
		return "", "", common.ErrNotFound
	}
	return bestKey, best.value, nil
}

func (m *memStore) DeleteExpired(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for key, row := range m.rows {
		if row.expires.Before(time.Now()) {
			delete(m.rows, key)
			n++
		}
	}
	return n, nil
}

func (m *memStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[key]
	return ok
}

// stubCarrier is an in-memory intent.Carrier for tests.
type stubCarrier struct {
	intentVal string
	key       string
	locale    string
}

func (s *stubCarrier) Intent() (string, bool)         { return s.intentVal, s.intentVal != "" }
func (s *stubCarrier) CorrelationKey() (string, bool) { return s.key, s.key != "" }
func (s *stubCarrier) Locale() (string, bool)         { return s.locale, s.locale != "" }
func (s *stubCarrier) SetIntent(value string)         { s.intentVal = value }
func (s *stubCarrier) SetCorrelationKey(key string)   { s.key = key }
func (s *stubCarrier) SetLocale(locale string)        { s.locale = locale }
func (s *stubCarrier) ClearIntent()                   { s.intentVal = "" }
func (s *stubCarrier) ClearCorrelationKey()           { s.key = "" }

// fakeUsers is an in-memory shared.UserService for tests.
type fakeUsers struct {
	byEmail   map[string]*shared.User
	created   []shared.OAuthUserProfile
	lookupErr error
}

func newFakeUsers(emails ...string) *fakeUsers {
	f := &fakeUsers{byEmail: make(map[string]*shared.User)}
	for _, email := range emails {
		f.byEmail[email] = &shared.User{ID: uuid.New(), Email: email, Role: common.RoleUser}
	}
	return f
}

func (f *fakeUsers) GetUserByID(_ context.Context, id uuid.UUID) (*shared.User, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeUsers) GetUserByEmail(_ context.Context, email string) (*shared.User, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	u, ok := f.byEmail[email]
	if !ok {
		return nil, common.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) VerifyPassword(_ context.Context, email, password string) (*shared.User, error) {
	u, ok := f.byEmail[email]
	if !ok || password != "correct-horse" {
		return nil, common.ErrUnauthorized.WithDetails("Invalid email or password.")
	}
	return u, nil
}

func (f *fakeUsers) CreateFromOAuthProfile(_ context.Context, profile shared.OAuthUserProfile) (*shared.User, error) {
	if _, ok := f.byEmail[profile.Email]; ok {
		return nil, common.ErrConflict
	}
	u := &shared.User{ID: uuid.New(), Email: profile.Email, Role: common.RoleUser}
	f.byEmail[profile.Email] = u
	f.created = append(f.created, profile)
	return u, nil
}

func (f *fakeUsers) EnsureAccountLink(context.Context, uuid.UUID, shared.OAuthUserProfile) error {
	return nil
}

func newTestOrchestrator(users shared.UserService, store intent.Store) (*Orchestrator, *intent.Resolver) {
	resolver := intent.NewResolver(store, zap.NewNop())
	return NewOrchestrator(users, resolver, zap.NewNop()), resolver
}

func TestDecideCredentialsSuccess(t *testing.T) {
	users := newFakeUsers("alice@example.com")
	orch, _ := newTestOrchestrator(users, newMemStore())
	carrier := &stubCarrier{intentVal: "login"}

	decision, err := orch.DecideCredentials(context.Background(), carrier, "alice@example.com", "correct-horse")
	require.NoError(t, err)
	assert.True(t, decision.Allow)
	require.NotNil(t, decision.User)
	assert.Equal(t, "alice@example.com", decision.User.Email)

	_, hasIntent := carrier.Intent()
	assert.False(t, hasIntent, "intent cookie must be cleared on a terminal attempt")
}

func TestDecideCredentialsFailureClearsIntent(t *testing.T) {
	users := newFakeUsers("alice@example.com")
	orch, _ := newTestOrchestrator(users, newMemStore())
	carrier := &stubCarrier{intentVal: "login"}

	_, err := orch.DecideCredentials(context.Background(), carrier, "alice@example.com", "wrong")
	require.Error(t, err)

	_, hasIntent := carrier.Intent()
	assert.False(t, hasIntent)
}

func TestDecideOAuthLoginExistingUser(t *testing.T) {
	users := newFakeUsers("alice@example.com")
	store := newMemStore()
	orch, _ := newTestOrchestrator(users, store)
	require.NoError(t, store.Create(context.Background(), "oauth_1_a", "login", intent.PurposeOAuthState, time.Minute))
	carrier := &stubCarrier{intentVal: "login", key: "oauth_1_a"}

	decision, err := orch.DecideOAuth(context.Background(), carrier, "oauth_1_a", "alice@example.com", "en")
	require.NoError(t, err)
	assert.True(t, decision.Allow)
	require.NotNil(t, decision.User)
	assert.Empty(t, decision.RedirectPath)

	assert.False(t, store.has("oauth_1_a"), "intent record must be consumed on the terminal path")
}

func TestDecideOAuthLoginUnknownUserRedirects(t *testing.T) {
	users := newFakeUsers()
	store := newMemStore()
	orch, _ := newTestOrchestrator(users, store)
	require.NoError(t, store.Create(context.Background(), "oauth_1_a", "login", intent.PurposeOAuthState, time.Minute))
	carrier := &stubCarrier{intentVal: "login", key: "oauth_1_a"}

	decision, err := orch.DecideOAuth(context.Background(), carrier, "oauth_1_a", "bob@example.com", "en")
	require.NoError(t, err)
	assert.False(t, decision.Allow)
	assert.Equal(t, "/en/register?error=AccountNotFound&email=bob%40example.com", decision.RedirectPath)
	assert.False(t, store.has("oauth_1_a"))
}

func TestDecideOAuthRegisterExistingUserRedirects(t *testing.T) {
	users := newFakeUsers("alice@example.com")
	store := newMemStore()
	orch, _ := newTestOrchestrator(users, store)
	require.NoError(t, store.Create(context.Background(), "oauth_1_a", "register", intent.PurposeOAuthState, time.Minute))
	carrier := &stubCarrier{intentVal: "register", key: "oauth_1_a"}

	decision, err := orch.DecideOAuth(context.Background(), carrier, "oauth_1_a", "alice@example.com", "en")
	require.NoError(t, err)
	assert.False(t, decision.Allow)
	assert.Equal(t, "/en/login?error=AlreadyRegistered&email=alice%40example.com", decision.RedirectPath)
	assert.False(t, store.has("oauth_1_a"))
}

func TestDecideOAuthRegisterNewUserDefersCreation(t *testing.T) {
	users := newFakeUsers()
	store := newMemStore()
	orch, _ := newTestOrchestrator(users, store)
	require.NoError(t, store.Create(context.Background(), "oauth_1_a", "register", intent.PurposeOAuthState, time.Minute))
	carrier := &stubCarrier{intentVal: "register", key: "oauth_1_a"}

	decision, err := orch.DecideOAuth(context.Background(), carrier, "oauth_1_a", "bob@example.com", "en")
	require.NoError(t, err)
	assert.True(t, decision.Allow)
	assert.Nil(t, decision.User, "creation is deferred to the gate")

	// The gate re-resolves from the store, so nothing may be consumed yet.
	assert.True(t, store.has("oauth_1_a"))
	_, hasIntent := carrier.Intent()
	assert.True(t, hasIntent)
}

func TestDecideOAuthMissingEmailRedirects(t *testing.T) {
	users := newFakeUsers()
	store := newMemStore()
	orch, _ := newTestOrchestrator(users, store)
	require.NoError(t, store.Create(context.Background(), "oauth_1_a", "register", intent.PurposeOAuthState, time.Minute))
	carrier := &stubCarrier{key: "oauth_1_a"}

	decision, err := orch.DecideOAuth(context.Background(), carrier, "oauth_1_a", "", "en")
	require.NoError(t, err)
	assert.False(t, decision.Allow)
	assert.Equal(t, "/en/login?error=InvalidRequest", decision.RedirectPath)
	assert.False(t, store.has("oauth_1_a"))
}

func TestDecideOAuthUnresolvedIntentFailsClosed(t *testing.T) {
	// No cookie, no store record: the attempt defaults to login and a new
	// account must not be created.
	users := newFakeUsers()
	orch, _ := newTestOrchestrator(users, newMemStore())
	carrier := &stubCarrier{}

	decision, err := orch.DecideOAuth(context.Background(), carrier, "", "bob@example.com", "en")
	require.NoError(t, err)
	assert.False(t, decision.Allow)
	assert.Equal(t, "/en/register?error=AccountNotFound&email=bob%40example.com", decision.RedirectPath)
	assert.Empty(t, users.created)
}

func TestDecideOAuthStoreRecordWithoutCookies(t *testing.T) {
	// Cookies lost across the provider redirect and no usable state key; the
	// recency scan recovers the register intent as a flagged fallback.
	users := newFakeUsers()
	store := newMemStore()
	orch, _ := newTestOrchestrator(users, store)
	require.NoError(t, store.Create(context.Background(), "oauth_1_a", "register", intent.PurposeOAuthState, time.Minute))
	carrier := &stubCarrier{}

	decision, err := orch.DecideOAuth(context.Background(), carrier, "", "bob@example.com", "en")
	require.NoError(t, err)
	assert.True(t, decision.Allow)
	assert.Nil(t, decision.User)
	assert.True(t, decision.Resolution.FromFallback)
}

func TestDecideOAuthStateKeyPinsAttemptWithoutCookies(t *testing.T) {
	// Two concurrent attempts from different browsers, cookies dropped on
	// this one. The state key identifies the older login attempt exactly;
	// the newer register record must not be adopted via the recency scan.
	users := newFakeUsers()
	store := newMemStore()
	orch, _ := newTestOrchestrator(users, store)
	require.NoError(t, store.Create(context.Background(), "oauth_1_a", "login", intent.PurposeOAuthState, time.Minute))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, store.Create(context.Background(), "oauth_2_b", "register", intent.PurposeOAuthState, time.Minute))
	carrier := &stubCarrier{}

	decision, err := orch.DecideOAuth(context.Background(), carrier, "oauth_1_a", "bob@example.com", "en")
	require.NoError(t, err)
	assert.False(t, decision.Allow)
	assert.Equal(t, "/en/register?error=AccountNotFound&email=bob%40example.com", decision.RedirectPath)
	assert.Equal(t, "oauth_1_a", decision.Resolution.Key)
	assert.False(t, decision.Resolution.FromFallback)

	assert.False(t, store.has("oauth_1_a"))
	assert.True(t, store.has("oauth_2_b"), "the concurrent attempt's record must be untouched")
}

func TestDecideOAuthUserLookupFailureCleansUp(t *testing.T) {
	users := newFakeUsers()
	users.lookupErr = errors.New("connection refused")
	store := newMemStore()
	orch, _ := newTestOrchestrator(users, store)
	require.NoError(t, store.Create(context.Background(), "oauth_1_a", "login", intent.PurposeOAuthState, time.Minute))
	carrier := &stubCarrier{intentVal: "login", key: "oauth_1_a"}

	_, err := orch.DecideOAuth(context.Background(), carrier, "oauth_1_a", "bob@example.com", "en")
	require.Error(t, err)

	assert.False(t, store.has("oauth_1_a"))
	_, hasIntent := carrier.Intent()
	assert.False(t, hasIntent)
	_, hasKey := carrier.CorrelationKey()
	assert.False(t, hasKey)
}
