package session

import "time"

const (
	// RefreshThreshold defines how close to its expiry a session may get before
	// the next Ensure call triggers a re-login even though a ticket is present
	RefreshThreshold = 10 * time.Minute

	// DefaultTTL is assumed whenever the upstream does not supply an explicit
	// session lifetime on login
	DefaultTTL = 24 * time.Hour
)

// Session represents the authenticated state against the upstream.
// At most one session exists process-wide at any time; it is owned exclusively
// by the Manager.
type Session struct {
	Ticket        string
	UserID        string
	EstablishedAt time.Time
	ExpiresAt     time.Time
}

// Fresh returns whether the session is usable at the given point in time,
// honoring the refresh threshold
func (session *Session) Fresh(now time.Time) bool {
	if session == nil || session.Ticket == "" {
		return false
	}
	if session.ExpiresAt.IsZero() {
		return true
	}
	return now.Add(RefreshThreshold).Before(session.ExpiresAt)
}
