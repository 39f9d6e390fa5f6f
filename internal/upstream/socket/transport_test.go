package socket

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/fishbridge/gateway/internal/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTerminator = "</FbiXml>"

// startUpstream starts a scripted upstream peer on a loopback port
func startUpstream(t *testing.T, handle func(conn net.Conn)) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() {
		listener.Close()
	})

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go handle(conn)
		}
	}()
	return listener.Addr().String()
}

// readMessage accumulates bytes on the server side until the terminator appears
func readMessage(conn net.Conn) ([]byte, error) {
	var accumulated bytes.Buffer
	chunk := make([]byte, 1024)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			accumulated.Write(chunk[:n])
			if bytes.Contains(accumulated.Bytes(), []byte(testTerminator)) {
				return accumulated.Bytes(), nil
			}
		}
		if err != nil {
			return nil, err
		}
	}
}

func TestRoundtripAssemblesChunkedResponse(t *testing.T) {
	response := "<FbiXml><FbiMsgsRs statusCode=\"1000\"></FbiMsgsRs>" + testTerminator
	addr := startUpstream(t, func(conn net.Conn) {
		defer conn.Close()
		if _, err := readMessage(conn); err != nil {
			return
		}
		// Deliver the response split across multiple chunks
		for _, chunk := range []string{response[:10], response[10:25], response[25:]} {
			conn.Write([]byte(chunk))
			time.Sleep(20 * time.Millisecond)
		}
	})

	transport := New(addr, testTerminator, 2*time.Second)
	defer transport.Close()

	raw, err := transport.Roundtrip(context.Background(), "test", []byte("<FbiXml>request"+testTerminator))
	require.NoError(t, err)
	assert.Equal(t, response, string(raw))
}

func TestRoundtripSerializesConcurrentCalls(t *testing.T) {
	addr := startUpstream(t, func(conn net.Conn) {
		defer conn.Close()
		for {
			request, err := readMessage(conn)
			if err != nil {
				return
			}
			// Echo the request id back so mismatched pairs would be visible
			id := string(bytes.TrimSuffix(bytes.TrimPrefix(request, []byte("<FbiXml><Id>")), []byte("</Id>"+testTerminator)))
			fmt.Fprintf(conn, "<FbiXml><Echo>%s</Echo>%s", id, testTerminator)
		}
	})

	transport := New(addr, testTerminator, 2*time.Second)
	defer transport.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			request := fmt.Sprintf("<FbiXml><Id>%d</Id>%s", id, testTerminator)
			raw, err := transport.Roundtrip(context.Background(), "test", []byte(request))
			assert.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("<FbiXml><Echo>%d</Echo>%s", id, testTerminator), string(raw))
		}(i)
	}
	wg.Wait()
}

func TestRoundtripTimesOutAndReconnects(t *testing.T) {
	var requests int
	var mu sync.Mutex
	addr := startUpstream(t, func(conn net.Conn) {
		defer conn.Close()
		for {
			if _, err := readMessage(conn); err != nil {
				return
			}
			mu.Lock()
			requests++
			first := requests == 1
			mu.Unlock()
			if first {
				// Swallow the first request without ever responding
				continue
			}
			conn.Write([]byte("<FbiXml><Ok/>" + testTerminator))
		}
	})

	var disconnects int
	transport := New(addr, testTerminator, 200*time.Millisecond)
	transport.OnDisconnect = func() {
		disconnects++
	}
	defer transport.Close()

	_, err := transport.Roundtrip(context.Background(), "test", []byte("<FbiXml>one"+testTerminator))
	var timeoutErr *upstream.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 1, disconnects)

	// The next call reconnects transparently
	raw, err := transport.Roundtrip(context.Background(), "test", []byte("<FbiXml>two"+testTerminator))
	require.NoError(t, err)
	assert.Equal(t, "<FbiXml><Ok/>"+testTerminator, string(raw))
}

func TestRoundtripConnectionRefused(t *testing.T) {
	// Grab a port that is guaranteed to be closed
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	listener.Close()

	transport := New(addr, testTerminator, time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = transport.Roundtrip(ctx, "test", []byte("<FbiXml>request"+testTerminator))
	var connectionErr *upstream.ConnectionError
	assert.ErrorAs(t, err, &connectionErr)
}
