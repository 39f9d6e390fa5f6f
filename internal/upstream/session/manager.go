// Package session implements the upstream session lifecycle: authenticate
// once, reuse the ticket, refresh it before expiry and coalesce concurrent
// login attempts into a single upstream call.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// LoginFunc performs the actual login round-trip against the upstream
type LoginFunc func(ctx context.Context) (*Session, error)

// Manager owns the current upstream session.
// It is safe for concurrent use; overlapping Ensure calls that both observe a
// missing or stale session join one single outstanding login instead of each
// starting their own.
type Manager struct {
	login LoginFunc

	mu      sync.Mutex
	current *Session

	group singleflight.Group
}

// NewManager creates a new session manager that logs in using the given function
func NewManager(login LoginFunc) *Manager {
	return &Manager{
		login: login,
	}
}

// Ensure returns the ticket of a valid session, performing a login round-trip
// first if no session exists or the current one is about to expire.
// A failed login is never cached; the next call attempts a fresh one.
func (manager *Manager) Ensure(ctx context.Context) (string, error) {
	if current := manager.fresh(); current != nil {
		return current.Ticket, nil
	}

	result, err, _ := manager.group.Do("login", func() (interface{}, error) {
		// Re-check after acquiring the flight; a joiner may arrive just after
		// the previous login stored a fresh session
		if current := manager.fresh(); current != nil {
			return current, nil
		}

		established, err := manager.login(ctx)
		if err != nil {
			return nil, err
		}
		if established.EstablishedAt.IsZero() {
			established.EstablishedAt = time.Now()
		}
		if established.ExpiresAt.IsZero() {
			established.ExpiresAt = established.EstablishedAt.Add(DefaultTTL)
		}

		manager.mu.Lock()
		manager.current = established
		manager.mu.Unlock()

		log.Info().Str("user_id", established.UserID).Time("expires_at", established.ExpiresAt).Msg("established a new upstream session")
		return established, nil
	})
	if err != nil {
		return "", err
	}
	return result.(*Session).Ticket, nil
}

// Invalidate clears the current session immediately.
// It is called after a logout and whenever the upstream rejects the ticket or
// the socket transport loses its connection.
func (manager *Manager) Invalidate() {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	if manager.current != nil {
		log.Debug().Msg("invalidated the upstream session")
	}
	manager.current = nil
}

// Snapshot returns a copy of the current session, or nil if none exists.
// The copy may be stale by the time the caller looks at it; it is meant for
// reporting (health endpoint), not for attaching tickets to requests.
func (manager *Manager) Snapshot() *Session {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	if manager.current == nil {
		return nil
	}
	copied := *manager.current
	return &copied
}

func (manager *Manager) fresh() *Session {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	if manager.current.Fresh(time.Now()) {
		return manager.current
	}
	return nil
}
