// Package session holds the process-wide authentication state: the bearer
// token pair, the cached user record and the derived authenticated/admin
// flags that callers use to gate access. All mutation goes through Login
// and Logout, which keep the in-memory state and the credential store in
// step with each other.
package session

import (
	"encoding/json"
	"sync"

	"github.com/ajay020/slotbook/bridge"
	"github.com/ajay020/slotbook/credstore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Snapshot is an immutable view of the session state. Observers always see
// either the fully-old or the fully-new snapshot, never a mix.
type Snapshot struct {
	AccessToken   string
	RefreshToken  string
	User          *UserRecord
	IsLoadingAuth bool
}

// IsAuthenticated reports whether a token and a user are both present.
// While IsLoadingAuth is true the answer is not trustworthy; callers must
// wait for Initialize to finish before acting on it.
func (s Snapshot) IsAuthenticated() bool {
	return s.AccessToken != "" && s.User != nil
}

// IsAdmin reports whether the cached user carries the admin role.
func (s Snapshot) IsAdmin() bool {
	return s.User != nil && s.User.Role == RoleAdmin
}

// Listener receives a snapshot after every state change.
type Listener func(Snapshot)

// Session owns the authentication state. Construct one per process with
// New and call Initialize before reading IsAuthenticated for any
// navigation decision.
type Session struct {
	store    credstore.Store
	bridge   *bridge.Bridge
	log      zerolog.Logger
	redirect func()

	mu        sync.Mutex
	state     Snapshot
	listeners []Listener
	initOnce  sync.Once
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Session) {
		s.log = log
	}
}

// WithRedirect sets the procedure invoked after every logout to send the
// caller back to the unauthenticated entry point.
func WithRedirect(fn func()) Option {
	return func(s *Session) {
		s.redirect = fn
	}
}

// New creates a Session and registers its logout procedure with the
// bridge, so the request pipeline can force a teardown without depending
// on this package.
func New(store credstore.Store, b *bridge.Bridge, options ...Option) (*Session, error) {
	if store == nil {
		return nil, errors.New("[session.New] credential store is required")
	}
	if b == nil {
		return nil, errors.New("[session.New] bridge is required")
	}

	s := &Session{
		store:  store,
		bridge: b,
		log:    zerolog.Nop(),
		state:  Snapshot{IsLoadingAuth: true},
	}
	for _, opt := range options {
		opt(s)
	}

	b.SetLogout(s.Logout)
	return s, nil
}

// Initialize rehydrates the session from the credential store. All three
// entries (access token, refresh token, user) must be present and
// well-formed; anything less is treated as corruption, the store is
// cleared and the session stays empty. Runs once per process lifetime;
// later calls are no-ops. Always ends with IsLoadingAuth false.
func (s *Session) Initialize() {
	s.initOnce.Do(s.initialize)
}

func (s *Session) initialize() {
	accessToken, errAccess := s.store.Get(credstore.KeyAccessToken)
	refreshToken, errRefresh := s.store.Get(credstore.KeyRefreshToken)
	rawUser, errUser := s.store.Get(credstore.KeyUser)

	var user *UserRecord
	complete := errAccess == nil && errRefresh == nil && errUser == nil
	if complete {
		user = &UserRecord{}
		if err := json.Unmarshal([]byte(rawUser), user); err != nil {
			s.log.Warn().Err(err).Msg("stored user record is corrupt, clearing credentials")
			complete = false
		}
	}

	if !complete {
		// Self-healing: a partial or unreadable credential set is worse
		// than none. Reuse the logout clearing step and stay empty.
		present := errAccess == nil || errRefresh == nil || errUser == nil
		if present {
			s.clearStorage()
		}
		accessToken, refreshToken, user = "", "", nil
	}

	s.mu.Lock()
	s.state = Snapshot{
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		User:          user,
		IsLoadingAuth: false,
	}
	snapshot := s.state
	s.mu.Unlock()

	s.log.Debug().Bool("authenticated", snapshot.IsAuthenticated()).Msg("session initialized")
	s.notify(snapshot)
}

// Login persists the token pair and user record, then updates the
// in-memory state. A persistence failure propagates and leaves the
// in-memory state untouched so the caller can retry. Logging in twice
// with the same credentials is a no-op after the first call.
func (s *Session) Login(accessToken, refreshToken string, user UserRecord) error {
	if accessToken == "" || refreshToken == "" {
		return errors.New("[Session.Login] access and refresh tokens are required")
	}

	s.mu.Lock()
	if s.sameCredentialsLocked(accessToken, refreshToken, user) {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	rawUser, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "[Session.Login] marshal user")
	}
	if err := s.store.Set(credstore.KeyAccessToken, accessToken); err != nil {
		return errors.Wrap(err, "[Session.Login] persist access token")
	}
	if err := s.store.Set(credstore.KeyRefreshToken, refreshToken); err != nil {
		return errors.Wrap(err, "[Session.Login] persist refresh token")
	}
	if err := s.store.Set(credstore.KeyUser, string(rawUser)); err != nil {
		return errors.Wrap(err, "[Session.Login] persist user")
	}

	s.mu.Lock()
	s.state = Snapshot{
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		User:          &user,
		IsLoadingAuth: false,
	}
	snapshot := s.state
	s.mu.Unlock()

	s.log.Info().Str("user_id", user.ID).Msg("logged in")
	s.notify(snapshot)
	return nil
}

// Logout clears persisted and in-memory credentials, advances the session
// epoch and fires the redirect hook. Storage failures during cleanup are
// logged and swallowed: from the caller's point of view logout always
// succeeds, because a user stuck logged in is worse than a storage leak.
// Safe to call when already logged out.
func (s *Session) Logout() {
	s.clearStorage()

	s.mu.Lock()
	s.state = Snapshot{IsLoadingAuth: s.state.IsLoadingAuth}
	snapshot := s.state
	s.mu.Unlock()

	s.bridge.AdvanceEpoch()
	s.log.Info().Msg("logged out")
	s.notify(snapshot)

	if s.redirect != nil {
		s.redirect()
	}
}

// Subscribe registers a listener notified with a snapshot after every
// state change.
func (s *Session) Subscribe(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsAuthenticated reports whether the session currently holds a token and
// a user.
func (s *Session) IsAuthenticated() bool {
	return s.Snapshot().IsAuthenticated()
}

// IsAdmin reports whether the cached user carries the admin role.
func (s *Session) IsAdmin() bool {
	return s.Snapshot().IsAdmin()
}

// IsLoadingAuth reports whether Initialize has yet to complete.
func (s *Session) IsLoadingAuth() bool {
	return s.Snapshot().IsLoadingAuth
}

func (s *Session) sameCredentialsLocked(accessToken, refreshToken string, user UserRecord) bool {
	return s.state.AccessToken == accessToken &&
		s.state.RefreshToken == refreshToken &&
		s.state.User != nil && *s.state.User == user
}

func (s *Session) clearStorage() {
	for _, key := range []string{credstore.KeyAccessToken, credstore.KeyRefreshToken, credstore.KeyUser} {
		if err := s.store.Delete(key); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("failed to clear credential entry")
		}
	}
}

func (s *Session) notify(snapshot Snapshot) {
	s.mu.Lock()
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}
