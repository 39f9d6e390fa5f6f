// Package rest implements the stateless transport variant: every call is an
// independent HTTPS/HTTP request against the upstream's JSON API, carrying a
// bearer token obtained through an initial login exchange.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fishbridge/gateway/internal/upstream"
	"github.com/fishbridge/gateway/internal/upstream/session"
)

const maxResponseBody = 2 << 20

// Client performs token-authenticated JSON calls against the upstream REST API.
// It keeps no session state of its own; the forwarder attaches the current
// token to every call.
type Client struct {
	baseURL string
	creds   upstream.Credentials
	http    *http.Client
	timeout time.Duration
}

// New creates a new REST upstream client
func New(baseURL string, creds upstream.Credentials, timeout time.Duration) *Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:        32,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		creds:   creds,
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		timeout: timeout,
	}
}

// Login exchanges the application identity & credentials for a bearer token
func (client *Client) Login(ctx context.Context) (*session.Session, error) {
	payload := map[string]interface{}{
		"appName":        client.creds.AppName,
		"appDescription": client.creds.AppDescription,
		"appId":          client.creds.AppID,
		"username":       client.creds.Username,
		"password":       client.creds.Password,
	}
	result, err := client.Do(ctx, "", http.MethodPost, "/api/login", nil, payload)
	if err != nil {
		// A rejected login surfaces with the upstream's own message
		var callErr *upstream.CallError
		if errors.As(err, &callErr) && (callErr.StatusCode == http.StatusForbidden || callErr.StatusCode == http.StatusBadRequest) {
			return nil, &upstream.AuthError{Reason: callErr.Message}
		}
		return nil, err
	}

	body, _ := result.(map[string]interface{})
	token, _ := body["token"].(string)
	if token == "" {
		return nil, &upstream.CallError{StatusCode: http.StatusOK, Message: "login response did not contain a token"}
	}

	established := &session.Session{
		Ticket:        token,
		EstablishedAt: time.Now(),
	}
	if userID, ok := body["userId"].(string); ok {
		established.UserID = userID
	}
	if raw, ok := body["expiresAt"].(string); ok {
		if expires, err := time.Parse(time.RFC3339, raw); err == nil {
			established.ExpiresAt = expires
		}
	}
	return established, nil
}

// Logout invalidates the given token upstream
func (client *Client) Logout(ctx context.Context, token string) error {
	_, err := client.Do(ctx, token, http.MethodPost, "/api/logout", nil, nil)
	return err
}

// Do performs a single call against the upstream and decodes the JSON response.
// A 401 response maps to AuthError, any other non-2xx status to CallError
// carrying the upstream message verbatim.
func (client *Client) Do(ctx context.Context, token, method, path string, query url.Values, body interface{}) (interface{}, error) {
	target := client.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("could not encode the request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("could not build the upstream request: %w", err)
	}
	request.Header.Set("Accept", "application/json")
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	response, err := client.http.Do(request)
	if err != nil {
		return nil, client.mapTransportError(method+" "+path, err)
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBody))
	if err != nil {
		return nil, &upstream.TransportError{Op: method + " " + path, Err: err}
	}

	if response.StatusCode == http.StatusUnauthorized {
		return nil, &upstream.AuthError{Reason: extractMessage(raw, response.Status)}
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, &upstream.CallError{
			StatusCode: response.StatusCode,
			Message:    extractMessage(raw, response.Status),
			RawBody:    string(raw),
		}
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &upstream.TransportError{Op: method + " " + path, Err: fmt.Errorf("undecodable response body: %w", err)}
	}
	return decoded, nil
}

func (client *Client) mapTransportError(op string, err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return &upstream.TimeoutError{Op: op, Timeout: client.timeout}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return &upstream.ConnectionError{Addr: client.baseURL, Err: err}
	}
	return &upstream.TransportError{Op: op, Err: err}
}

// extractMessage pulls a human-readable message out of an error response body,
// falling back to the HTTP status line
func extractMessage(raw []byte, fallback string) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return fallback
}
