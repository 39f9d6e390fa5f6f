// Package forward maps inbound operation names onto upstream calls: it
// validates parameters, attaches the current session ticket, invokes the
// protocol backend and retries exactly once when the upstream rejects the
// ticket mid-call.
package forward

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fishbridge/gateway/internal/metrics"
	"github.com/fishbridge/gateway/internal/upstream"
	"github.com/fishbridge/gateway/internal/upstream/session"
	"github.com/rs/zerolog/log"
)

// maxAttempts bounds the retry loop; an authentication rejection is the only
// retryable condition and is retried exactly once after re-login
const maxAttempts = 2

// Backend is a protocol-specific upstream implementation (XML socket or REST)
type Backend interface {
	// Login performs the authentication round-trip and returns the established session
	Login(ctx context.Context) (*session.Session, error)

	// Logout invalidates the given ticket upstream
	Logout(ctx context.Context, ticket string) error

	// Call forwards one operation using the given ticket and returns the
	// normalized result. Ticket rejections surface as *upstream.AuthError.
	Call(ctx context.Context, ticket string, op *Operation, params map[string]interface{}) (interface{}, error)

	// Close releases any transport resources
	Close() error
}

// ValidationError indicates malformed caller input. It is never forwarded
// upstream and never retried.
type ValidationError struct {
	Command string
	Fields  []string
	Reason  string
}

func (err *ValidationError) Error() string {
	if len(err.Fields) > 0 {
		return fmt.Sprintf("invalid parameters for '%s': missing %s", err.Command, strings.Join(err.Fields, ", "))
	}
	return fmt.Sprintf("invalid command '%s': %s", err.Command, err.Reason)
}

// Forwarder resolves operation names and forwards them through the backend
type Forwarder struct {
	backend  Backend
	sessions *session.Manager
	ops      map[string]*Operation
}

// New creates a new forwarder on top of the given protocol backend
func New(backend Backend) *Forwarder {
	forwarder := &Forwarder{
		backend: backend,
		ops:     operations(),
	}
	forwarder.sessions = session.NewManager(forwarder.login)
	return forwarder
}

// Sessions exposes the session manager, primarily for health reporting and
// lifecycle wiring
func (forwarder *Forwarder) Sessions() *session.Manager {
	return forwarder.sessions
}

// Invoke forwards a single named operation.
// Parameter validation happens before any network I/O. When the upstream
// rejects the ticket, the session is invalidated and the call is retried once
// after a re-login; a second rejection surfaces.
func (forwarder *Forwarder) Invoke(ctx context.Context, command string, params map[string]interface{}) (interface{}, error) {
	if params == nil {
		params = map[string]interface{}{}
	}

	switch command {
	case opLogin:
		return forwarder.invokeLogin(ctx)
	case opLogout:
		return forwarder.invokeLogout(ctx)
	}

	op, ok := forwarder.ops[command]
	if !ok {
		return nil, &ValidationError{Command: command, Reason: "unknown command"}
	}
	if missing := op.missingParams(params); len(missing) > 0 {
		return nil, &ValidationError{Command: command, Fields: missing}
	}

	start := time.Now()
	result, err := forwarder.invoke(ctx, op, params)
	metrics.UpstreamDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(op.Name, metrics.OutcomeFailure).Inc()
		return nil, err
	}
	metrics.UpstreamRequests.WithLabelValues(op.Name, metrics.OutcomeSuccess).Inc()
	return result, nil
}

func (forwarder *Forwarder) invoke(ctx context.Context, op *Operation, params map[string]interface{}) (interface{}, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ticket, err := forwarder.sessions.Ensure(ctx)
		if err != nil {
			return nil, err
		}

		result, err := forwarder.backend.Call(ctx, ticket, op, params)
		if err == nil {
			return result, nil
		}

		var authErr *upstream.AuthError
		if !errors.As(err, &authErr) {
			return nil, err
		}

		// The upstream no longer accepts the ticket; drop it and try again
		log.Warn().Str("operation", op.Name).Int("attempt", attempt).Str("reason", authErr.Reason).Msg("upstream rejected the session ticket")
		forwarder.sessions.Invalidate()
		lastErr = err
	}
	return nil, lastErr
}

func (forwarder *Forwarder) invokeLogin(ctx context.Context) (interface{}, error) {
	// An explicit login always establishes a fresh session
	forwarder.sessions.Invalidate()
	if _, err := forwarder.sessions.Ensure(ctx); err != nil {
		return nil, err
	}

	snapshot := forwarder.sessions.Snapshot()
	result := map[string]interface{}{
		"authenticated": true,
	}
	if snapshot != nil {
		if snapshot.UserID != "" {
			result["userId"] = snapshot.UserID
		}
		result["expiresAt"] = snapshot.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return result, nil
}

func (forwarder *Forwarder) invokeLogout(ctx context.Context) (interface{}, error) {
	snapshot := forwarder.sessions.Snapshot()
	forwarder.sessions.Invalidate()
	if snapshot != nil {
		if err := forwarder.backend.Logout(ctx, snapshot.Ticket); err != nil {
			return nil, err
		}
	}
	return map[string]interface{}{
		"authenticated": false,
	}, nil
}

// login wraps the backend login with metrics accounting; it is the single
// entry point the session manager coalesces concurrent callers into
func (forwarder *Forwarder) login(ctx context.Context) (*session.Session, error) {
	established, err := forwarder.backend.Login(ctx)
	if err != nil {
		metrics.Logins.WithLabelValues(metrics.OutcomeFailure).Inc()
		return nil, err
	}
	metrics.Logins.WithLabelValues(metrics.OutcomeSuccess).Inc()
	return established, nil
}

// Shutdown performs a best-effort upstream logout and releases the backend.
// Logout failures are logged and swallowed; shutdown must not be blocked.
func (forwarder *Forwarder) Shutdown(ctx context.Context) {
	if snapshot := forwarder.sessions.Snapshot(); snapshot != nil {
		if err := forwarder.backend.Logout(ctx, snapshot.Ticket); err != nil {
			log.Warn().Err(err).Msg("best-effort upstream logout failed")
		}
	}
	forwarder.sessions.Invalidate()
	if err := forwarder.backend.Close(); err != nil {
		log.Warn().Err(err).Msg("could not close the upstream backend")
	}
}
