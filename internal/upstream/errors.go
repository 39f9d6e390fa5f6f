package upstream

import (
	"fmt"
	"time"
)

// ConnectionError indicates that the upstream could not be reached at all
type ConnectionError struct {
	Addr string
	Err  error
}

func (err *ConnectionError) Error() string {
	return fmt.Sprintf("cannot reach upstream at %s: %v", err.Addr, err.Err)
}

func (err *ConnectionError) Unwrap() error {
	return err.Err
}

// TransportError indicates an I/O failure in the middle of an exchange.
// On the socket transport this also means the connection has been torn down
// because the response framing state is no longer trustworthy.
type TransportError struct {
	Op  string
	Err error
}

func (err *TransportError) Error() string {
	return fmt.Sprintf("upstream exchange '%s' failed: %v", err.Op, err.Err)
}

func (err *TransportError) Unwrap() error {
	return err.Err
}

// TimeoutError indicates that an exchange did not complete within the configured deadline
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (err *TimeoutError) Error() string {
	return fmt.Sprintf("upstream exchange '%s' timed out after %s", err.Op, err.Timeout)
}

// AuthError indicates that the upstream rejected a login attempt or the current
// session ticket. The forwarder retries a call exactly once after this.
type AuthError struct {
	Reason string
}

func (err *AuthError) Error() string {
	if err.Reason == "" {
		return "upstream rejected the authentication"
	}
	return "upstream rejected the authentication: " + err.Reason
}

// CallError indicates that the upstream reported a non-success domain status.
// The upstream-supplied message is carried verbatim.
type CallError struct {
	StatusCode int
	Message    string
	RawBody    string
}

func (err *CallError) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("upstream returned status %d", err.StatusCode)
	}
	return fmt.Sprintf("upstream returned status %d: %s", err.StatusCode, err.Message)
}
