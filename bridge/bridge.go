// Package bridge decouples the request pipeline from the session layer.
// The session registers its logout procedure here at startup; the pipeline
// invokes it through the bridge when it has to tear a session down from a
// context that has no access to session state.
package bridge

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ErrNoRegistrant is returned by Logout when no logout procedure has been
// registered yet. This is a real state during startup, not a silent warning.
var ErrNoRegistrant = errors.New("no logout registrant")

// Bridge holds the registered logout procedure and the session epoch, a
// counter advanced on every logout. Async work started under an earlier
// login lifetime compares epochs to recognise that its result is stale.
type Bridge struct {
	mu     sync.RWMutex
	logout func()
	epoch  atomic.Int64
	log    zerolog.Logger
}

func New(log zerolog.Logger) *Bridge {
	return &Bridge{log: log}
}

// SetLogout registers the logout procedure. The last registration wins; a
// single registrant (the session owner) is expected.
func (b *Bridge) SetLogout(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logout = fn
}

// Registered reports whether a logout procedure has been registered.
func (b *Bridge) Registered() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.logout != nil
}

// Logout invokes the registered logout procedure, or returns
// ErrNoRegistrant if none has been registered yet.
func (b *Bridge) Logout() error {
	b.mu.RLock()
	fn := b.logout
	b.mu.RUnlock()

	if fn == nil {
		b.log.Warn().Msg("bridge logout requested before any registrant")
		return ErrNoRegistrant
	}
	fn()
	return nil
}

// Epoch returns the current session epoch.
func (b *Bridge) Epoch() int64 {
	return b.epoch.Load()
}

// AdvanceEpoch increments the session epoch and returns the new value.
// Called by the session on every logout.
func (b *Bridge) AdvanceEpoch() int64 {
	return b.epoch.Add(1)
}
