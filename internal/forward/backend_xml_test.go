package forward

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fishbridge/gateway/internal/upstream"
	"github.com/fishbridge/gateway/internal/upstream/fbxml"
	"github.com/fishbridge/gateway/internal/upstream/socket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var xmlTestCreds = upstream.Credentials{
	AppName:  "Test Gateway",
	AppID:    4242,
	Username: "admin",
	Password: "secret",
}

// scriptedUpstream speaks just enough of the XML protocol for the tests:
// every login issues a new ticket, and only the most recent ticket is accepted
type scriptedUpstream struct {
	mu      sync.Mutex
	logins  int
	current string
}

func (upstreamSrv *scriptedUpstream) loginCount() int {
	upstreamSrv.mu.Lock()
	defer upstreamSrv.mu.Unlock()
	return upstreamSrv.logins
}

func (upstreamSrv *scriptedUpstream) revokeTicket() {
	upstreamSrv.mu.Lock()
	defer upstreamSrv.mu.Unlock()
	upstreamSrv.current = ""
}

func (upstreamSrv *scriptedUpstream) listen(t *testing.T) string {
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
			go upstreamSrv.serve(conn)
		}
	}()
	return listener.Addr().String()
}

func (upstreamSrv *scriptedUpstream) serve(conn net.Conn) {
	defer conn.Close()
	var accumulated bytes.Buffer
	chunk := make([]byte, 1024)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			accumulated.Write(chunk[:n])
			if idx := bytes.Index(accumulated.Bytes(), []byte(fbxml.Terminator)); idx >= 0 {
				request := string(accumulated.Next(idx + len(fbxml.Terminator)))
				conn.Write([]byte(upstreamSrv.respond(request)))
			}
		}
		if err != nil {
			return
		}
	}
}

func (upstreamSrv *scriptedUpstream) respond(request string) string {
	upstreamSrv.mu.Lock()
	defer upstreamSrv.mu.Unlock()
	if strings.Contains(request, "<LoginRq>") {
		upstreamSrv.logins++
		upstreamSrv.current = fmt.Sprintf("T%d", upstreamSrv.logins)
		return fmt.Sprintf(`<FbiXml><Ticket><Key>%s</Key><UserID>9</UserID></Ticket>`+
			`<FbiMsgsRs statusCode="1000"><LoginRs statusCode="1000"/></FbiMsgsRs></FbiXml>`, upstreamSrv.current)
	}
	if !strings.Contains(request, "<Key>"+upstreamSrv.current+"</Key>") {
		return `<FbiXml><FbiMsgsRs statusCode="1001" statusMessage="Invalid ticket"></FbiMsgsRs></FbiXml>`
	}
	if strings.Contains(request, "<InvQtyRq>") {
		return `<FbiXml><FbiMsgsRs statusCode="1000">` +
			`<InvQtyRs statusCode="1000"><PartNum>WIDGET-1</PartNum><QtyOnHand>42</QtyOnHand></InvQtyRs>` +
			`</FbiMsgsRs></FbiXml>`
	}
	if strings.Contains(request, "<LogoutRq") {
		return `<FbiXml><FbiMsgsRs statusCode="1000"><LogoutRs statusCode="1000"/></FbiMsgsRs></FbiXml>`
	}
	return `<FbiXml><FbiMsgsRs statusCode="1050" statusMessage="Unsupported message"></FbiMsgsRs></FbiXml>`
}

func newXMLForwarder(t *testing.T, upstreamSrv *scriptedUpstream) (*Forwarder, *socket.Transport) {
	t.Helper()
	transport := socket.New(upstreamSrv.listen(t), fbxml.Terminator, 2*time.Second)
	t.Cleanup(func() {
		transport.Close()
	})
	return New(NewXMLBackend(transport, xmlTestCreds)), transport
}

func TestXMLBackendLoginThenQuery(t *testing.T) {
	upstreamSrv := &scriptedUpstream{}
	forwarder, _ := newXMLForwarder(t, upstreamSrv)

	result, err := forwarder.Invoke(context.Background(), "getInventory", map[string]interface{}{"partNumber": "WIDGET-1"})
	require.NoError(t, err)

	data := result.(map[string]interface{})
	assert.Equal(t, "WIDGET-1", data["partNumber"])
	assert.Equal(t, float64(42), data["quantity"])
	assert.Equal(t, 1, upstreamSrv.loginCount())

	snapshot := forwarder.Sessions().Snapshot()
	require.NotNil(t, snapshot)
	assert.Equal(t, "T1", snapshot.Ticket)
	assert.Equal(t, "9", snapshot.UserID)
}

func TestXMLBackendInvalidTicketTriggersOneRetry(t *testing.T) {
	upstreamSrv := &scriptedUpstream{}
	forwarder, _ := newXMLForwarder(t, upstreamSrv)

	// Establish a session, then have the upstream forget it
	_, err := forwarder.Sessions().Ensure(context.Background())
	require.NoError(t, err)
	upstreamSrv.revokeTicket()

	result, err := forwarder.Invoke(context.Background(), "getInventory", map[string]interface{}{"partNumber": "WIDGET-1"})
	require.NoError(t, err)

	data := result.(map[string]interface{})
	assert.Equal(t, float64(42), data["quantity"])
	// One re-login after the rejection, then the retried request succeeded
	assert.Equal(t, 2, upstreamSrv.loginCount())
}

func TestXMLBackendDomainFailure(t *testing.T) {
	upstreamSrv := &scriptedUpstream{}
	forwarder, _ := newXMLForwarder(t, upstreamSrv)

	_, err := forwarder.Invoke(context.Background(), "listUOMs", nil)
	var callErr *upstream.CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, 1050, callErr.StatusCode)
	assert.Equal(t, "Unsupported message", callErr.Message)
}

func TestHashPassword(t *testing.T) {
	// base64 over the raw MD5 digest, as the legacy protocol expects
	assert.Equal(t, "CY9rzUYh03PK3k6DJie09g==", hashPassword("test"))
}
