// Package socket implements the stateful transport variant: one long-lived
// TCP connection over which requests and responses are strictly serialized.
// The protocol has no correlation IDs; a response belongs to whatever request
// was written last, so a second request must never hit the wire while a prior
// response is still being accumulated.
package socket

import (
	"bytes"
	"context"
	"net"
	"os"
	"sync"
	"time"

	"github.com/fishbridge/gateway/internal/upstream"
	"github.com/jpillora/backoff"
	"github.com/rs/zerolog/log"
)

const dialAttempts = 3

// Transport owns the single upstream socket connection
type Transport struct {
	addr       string
	terminator []byte
	timeout    time.Duration

	// OnDisconnect is invoked whenever the connection is torn down, either by
	// an I/O failure, a timed-out read or an explicit Close. The session and
	// the socket share a lifecycle, so the hook is used to invalidate the
	// current ticket.
	OnDisconnect func()

	mu   sync.Mutex
	conn net.Conn
}

// New creates a new transport for the given upstream address.
// Responses are framed by the given terminator appearing in the byte stream.
func New(addr, terminator string, timeout time.Duration) *Transport {
	return &Transport{
		addr:       addr,
		terminator: []byte(terminator),
		timeout:    timeout,
	}
}

// Roundtrip writes one request and accumulates the response until the
// terminator is observed, then delivers the accumulated bytes as one complete
// response. Concurrent calls are serialized; the op name is only used for
// error reporting.
func (transport *Transport) Roundtrip(ctx context.Context, op string, request []byte) ([]byte, error) {
	transport.mu.Lock()
	defer transport.mu.Unlock()

	if err := transport.connectLocked(ctx); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(transport.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := transport.conn.SetDeadline(deadline); err != nil {
		transport.dropLocked()
		return nil, &upstream.TransportError{Op: op, Err: err}
	}

	if _, err := transport.conn.Write(request); err != nil {
		transport.dropLocked()
		if os.IsTimeout(err) {
			return nil, &upstream.TimeoutError{Op: op, Timeout: transport.timeout}
		}
		return nil, &upstream.TransportError{Op: op, Err: err}
	}

	// Accumulate chunks until the terminator shows up. A timed-out read leaves
	// the stream in an indeterminate framing state, so the connection is
	// force-closed and the next call reconnects.
	var accumulated bytes.Buffer
	chunk := make([]byte, 4096)
	for {
		n, err := transport.conn.Read(chunk)
		if n > 0 {
			accumulated.Write(chunk[:n])
			if idx := bytes.Index(accumulated.Bytes(), transport.terminator); idx >= 0 {
				response := make([]byte, idx+len(transport.terminator))
				copy(response, accumulated.Bytes())
				return response, nil
			}
		}
		if err != nil {
			transport.dropLocked()
			if os.IsTimeout(err) {
				return nil, &upstream.TimeoutError{Op: op, Timeout: transport.timeout}
			}
			return nil, &upstream.TransportError{Op: op, Err: err}
		}
	}
}

// Close tears down the connection if one exists
func (transport *Transport) Close() error {
	transport.mu.Lock()
	defer transport.mu.Unlock()
	transport.dropLocked()
	return nil
}

func (transport *Transport) connectLocked(ctx context.Context) error {
	if transport.conn != nil {
		return nil
	}

	retry := &backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    15 * time.Second,
		Jitter: true,
	}
	dialer := &net.Dialer{Timeout: transport.timeout}

	var lastErr error
	for attempt := 0; attempt < dialAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return &upstream.ConnectionError{Addr: transport.addr, Err: ctx.Err()}
			case <-time.After(retry.Duration()):
			}
		}

		conn, err := dialer.DialContext(ctx, "tcp", transport.addr)
		if err == nil {
			log.Debug().Str("addr", transport.addr).Msg("connected to the upstream socket")
			transport.conn = conn
			return nil
		}
		lastErr = err
		log.Warn().Err(err).Str("addr", transport.addr).Int("attempt", attempt+1).Msg("could not connect to the upstream socket")

		if ctx.Err() != nil {
			return &upstream.ConnectionError{Addr: transport.addr, Err: ctx.Err()}
		}
	}
	return &upstream.ConnectionError{Addr: transport.addr, Err: lastErr}
}

func (transport *Transport) dropLocked() {
	if transport.conn == nil {
		return
	}
	transport.conn.Close()
	transport.conn = nil
	if transport.OnDisconnect != nil {
		transport.OnDisconnect()
	}
}
