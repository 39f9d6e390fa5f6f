package forward

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"strconv"

	"github.com/fishbridge/gateway/internal/upstream"
	"github.com/fishbridge/gateway/internal/upstream/fbxml"
	"github.com/fishbridge/gateway/internal/upstream/session"
	"github.com/fishbridge/gateway/internal/upstream/socket"
)

// XMLBackend forwards operations over the legacy XML socket protocol
type XMLBackend struct {
	transport *socket.Transport
	creds     upstream.Credentials
}

var _ Backend = (*XMLBackend)(nil)

// NewXMLBackend creates a backend on top of the given socket transport
func NewXMLBackend(transport *socket.Transport, creds upstream.Credentials) *XMLBackend {
	return &XMLBackend{
		transport: transport,
		creds:     creds,
	}
}

// Login performs the LoginRq handshake and returns the issued ticket
func (backend *XMLBackend) Login(ctx context.Context) (*session.Session, error) {
	request := fbxml.EncodeRequest("", "LoginRq", []fbxml.Field{
		{Name: "IAID", Value: strconv.Itoa(backend.creds.AppID)},
		{Name: "IAName", Value: backend.creds.AppName},
		{Name: "IADescription", Value: backend.creds.AppDescription},
		{Name: "UserName", Value: backend.creds.Username},
		{Name: "UserPassword", Value: hashPassword(backend.creds.Password)},
	})

	raw, err := backend.transport.Roundtrip(ctx, opLogin, request)
	if err != nil {
		return nil, err
	}
	response, err := fbxml.DecodeResponse(raw)
	if err != nil {
		return nil, &upstream.TransportError{Op: opLogin, Err: err}
	}

	if response.StatusCode != fbxml.StatusSuccess {
		return nil, &upstream.AuthError{Reason: statusReason(response)}
	}
	if response.Ticket == nil || response.Ticket.Key == "" {
		return nil, &upstream.AuthError{Reason: "login response did not contain a ticket"}
	}

	return &session.Session{
		Ticket: response.Ticket.Key,
		UserID: response.Ticket.UserID,
	}, nil
}

// Logout sends a LogoutRq for the given ticket
func (backend *XMLBackend) Logout(ctx context.Context, ticket string) error {
	request := fbxml.EncodeRequest(ticket, "LogoutRq", nil)
	raw, err := backend.transport.Roundtrip(ctx, opLogout, request)
	if err != nil {
		return err
	}
	response, err := fbxml.DecodeResponse(raw)
	if err != nil {
		return &upstream.TransportError{Op: opLogout, Err: err}
	}
	if response.StatusCode != fbxml.StatusSuccess {
		return &upstream.CallError{StatusCode: response.StatusCode, Message: response.StatusMessage}
	}
	return nil
}

// Call encodes the operation into its request element, performs one socket
// round-trip and normalizes the response payload
func (backend *XMLBackend) Call(ctx context.Context, ticket string, op *Operation, params map[string]interface{}) (interface{}, error) {
	var fields []fbxml.Field
	for _, mapping := range op.XMLFields {
		val, ok := params[mapping.Param]
		if !ok || val == nil {
			continue
		}
		fields = append(fields, fbxml.Field{Name: mapping.Element, Value: paramString(val)})
	}

	raw, err := backend.transport.Roundtrip(ctx, op.Name, fbxml.EncodeRequest(ticket, op.XMLRequest, fields))
	if err != nil {
		return nil, err
	}
	response, err := fbxml.DecodeResponse(raw)
	if err != nil {
		return nil, &upstream.TransportError{Op: op.Name, Err: err}
	}

	if fbxml.IsAuthFailure(response.StatusCode) {
		return nil, &upstream.AuthError{Reason: statusReason(response)}
	}
	if response.StatusCode != fbxml.StatusSuccess {
		return nil, &upstream.CallError{
			StatusCode: response.StatusCode,
			Message:    response.StatusMessage,
			RawBody:    string(raw),
		}
	}

	data := map[string]interface{}{}
	if response.Body != nil {
		data = response.Body.Map()
	}
	if op.Result != nil {
		return op.Result(data), nil
	}
	return data, nil
}

// Close tears down the socket connection
func (backend *XMLBackend) Close() error {
	return backend.transport.Close()
}

func statusReason(response *fbxml.Response) string {
	if response.StatusMessage != "" {
		return response.StatusMessage
	}
	return "status " + strconv.Itoa(response.StatusCode)
}

// hashPassword encodes the password the way the legacy protocol expects:
// base64 over the raw MD5 digest
func hashPassword(password string) string {
	sum := md5.Sum([]byte(password))
	return base64.StdEncoding.EncodeToString(sum[:])
}
