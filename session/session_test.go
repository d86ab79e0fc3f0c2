package session_test

import (
	"testing"

	"github.com/ajay020/slotbook/bridge"
	"github.com/ajay020/slotbook/credstore"
	"github.com/ajay020/slotbook/credstore/storefakes"
	"github.com/ajay020/slotbook/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	testAccessToken  = "a1"
	testRefreshToken = "r1"
)

var testUser = session.UserRecord{
	ID:    "u1",
	Name:  "John Doe",
	Email: "john.doe@example.com",
	Role:  session.RoleUser,
}

type fixture struct {
	store     *storefakes.FakeStore
	bridge    *bridge.Bridge
	session   *session.Session
	redirects int
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:  storefakes.NewFakeStore(),
		bridge: bridge.New(zerolog.Nop()),
	}

	sess, err := session.New(f.store, f.bridge,
		session.WithLogger(zerolog.Nop()),
		session.WithRedirect(func() { f.redirects++ }),
	)
	require.NoError(t, err)
	f.session = sess
	return f
}

func TestNewValidation(t *testing.T) {
	_, err := session.New(nil, bridge.New(zerolog.Nop()))
	require.Error(t, err)

	_, err = session.New(storefakes.NewFakeStore(), nil)
	require.Error(t, err)
}

func TestInitializeEmptyStore(t *testing.T) {
	f := setupFixture(t)

	require.True(t, f.session.IsLoadingAuth())
	f.session.Initialize()

	require.False(t, f.session.IsLoadingAuth())
	require.False(t, f.session.IsAuthenticated())
	require.False(t, f.session.IsAdmin())
}

func TestLoginThenInitializeRehydrates(t *testing.T) {
	f := setupFixture(t)
	f.session.Initialize()
	require.NoError(t, f.session.Login(testAccessToken, testRefreshToken, testUser))

	// A second session over the same store simulates a process restart.
	restarted, err := session.New(f.store, bridge.New(zerolog.Nop()))
	require.NoError(t, err)
	restarted.Initialize()

	snapshot := restarted.Snapshot()
	require.True(t, snapshot.IsAuthenticated())
	require.Equal(t, testAccessToken, snapshot.AccessToken)
	require.Equal(t, testRefreshToken, snapshot.RefreshToken)
	require.Equal(t, "u1", snapshot.User.ID)
	require.Equal(t, testUser, *snapshot.User)
	require.False(t, snapshot.IsLoadingAuth)
}

func TestInitializeRunsOnce(t *testing.T) {
	f := setupFixture(t)
	f.session.Initialize()
	require.NoError(t, f.session.Login(testAccessToken, testRefreshToken, testUser))

	// A later (buggy) second call must not clobber the live state.
	f.session.Initialize()
	require.True(t, f.session.IsAuthenticated())
}

func TestInitializeSelfHealsCorruptUser(t *testing.T) {
	f := setupFixture(t)
	require.NoError(t, f.store.Set(credstore.KeyAccessToken, testAccessToken))
	require.NoError(t, f.store.Set(credstore.KeyRefreshToken, testRefreshToken))
	require.NoError(t, f.store.Set(credstore.KeyUser, "{not json"))

	f.session.Initialize()

	require.False(t, f.session.IsAuthenticated())
	require.False(t, f.session.IsLoadingAuth())
	require.Equal(t, 0, f.store.Len())
}

func TestInitializeSelfHealsPartialCredentials(t *testing.T) {
	f := setupFixture(t)
	require.NoError(t, f.store.Set(credstore.KeyAccessToken, testAccessToken))

	f.session.Initialize()

	require.False(t, f.session.IsAuthenticated())
	require.Equal(t, 0, f.store.Len())
}

func TestInitializeTreatsStorageErrorAsAbsence(t *testing.T) {
	f := setupFixture(t)
	f.store.FailGet = errors.Wrap(credstore.ErrStorage, "disk on fire")

	f.session.Initialize()

	require.False(t, f.session.IsAuthenticated())
	require.False(t, f.session.IsLoadingAuth())
}

func TestLoginValidation(t *testing.T) {
	f := setupFixture(t)
	require.Error(t, f.session.Login("", testRefreshToken, testUser))
	require.Error(t, f.session.Login(testAccessToken, "", testUser))
}

func TestLoginIdempotent(t *testing.T) {
	f := setupFixture(t)
	f.session.Initialize()

	notifications := 0
	f.session.Subscribe(func(session.Snapshot) { notifications++ })

	require.NoError(t, f.session.Login(testAccessToken, testRefreshToken, testUser))
	require.NoError(t, f.session.Login(testAccessToken, testRefreshToken, testUser))

	require.Equal(t, 1, notifications)
}

func TestLoginPersistFailurePropagates(t *testing.T) {
	f := setupFixture(t)
	f.session.Initialize()
	f.store.FailSet = errors.Wrap(credstore.ErrStorage, "disk full")

	err := f.session.Login(testAccessToken, testRefreshToken, testUser)
	require.ErrorIs(t, err, credstore.ErrStorage)
	require.False(t, f.session.IsAuthenticated())
}

func TestLogoutClearsEverything(t *testing.T) {
	f := setupFixture(t)
	f.session.Initialize()
	require.NoError(t, f.session.Login(testAccessToken, testRefreshToken, testUser))

	f.session.Logout()

	require.False(t, f.session.IsAuthenticated())
	require.Equal(t, 0, f.store.Len())
	require.Equal(t, 1, f.redirects)
}

func TestLogoutWhenAlreadyLoggedOut(t *testing.T) {
	f := setupFixture(t)
	f.session.Initialize()

	f.session.Logout()
	f.session.Logout()

	require.False(t, f.session.IsAuthenticated())
	require.Equal(t, 2, f.redirects) // the redirect fires every time
}

func TestLogoutSwallowsStorageFailure(t *testing.T) {
	f := setupFixture(t)
	f.session.Initialize()
	require.NoError(t, f.session.Login(testAccessToken, testRefreshToken, testUser))

	f.store.FailDelete = errors.Wrap(credstore.ErrStorage, "permission denied")
	f.session.Logout()

	// Storage cleanup failed but the user is still logged out.
	require.False(t, f.session.IsAuthenticated())
	require.Equal(t, 1, f.redirects)
}

func TestLogoutAdvancesEpoch(t *testing.T) {
	f := setupFixture(t)
	f.session.Initialize()

	before := f.bridge.Epoch()
	f.session.Logout()
	require.Equal(t, before+1, f.bridge.Epoch())
}

func TestBridgeLogoutTearsDownSession(t *testing.T) {
	f := setupFixture(t)
	f.session.Initialize()
	require.NoError(t, f.session.Login(testAccessToken, testRefreshToken, testUser))

	// The pipeline only ever sees the bridge; a forced logout through it
	// must fully tear the session down.
	require.NoError(t, f.bridge.Logout())

	require.False(t, f.session.IsAuthenticated())
	require.Equal(t, 0, f.store.Len())
}

func TestObserversNeverSeeMixedState(t *testing.T) {
	f := setupFixture(t)
	f.session.Initialize()

	f.session.Subscribe(func(s session.Snapshot) {
		// A token without a user (or the reverse) would be a torn write.
		require.Equal(t, s.AccessToken == "", s.User == nil)
		require.Equal(t, s.AccessToken == "", s.RefreshToken == "")
	})

	require.NoError(t, f.session.Login(testAccessToken, testRefreshToken, testUser))
	f.session.Logout()
	require.NoError(t, f.session.Login("a2", "r2", testUser))
	f.session.Logout()
}

func TestIsAdmin(t *testing.T) {
	f := setupFixture(t)
	f.session.Initialize()

	admin := testUser
	admin.Role = session.RoleAdmin
	require.NoError(t, f.session.Login(testAccessToken, testRefreshToken, admin))

	require.True(t, f.session.IsAdmin())

	f.session.Logout()
	require.False(t, f.session.IsAdmin())
}
