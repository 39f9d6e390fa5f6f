package forward

import (
	"context"
	"net/url"
	"strings"

	"github.com/fishbridge/gateway/internal/upstream/rest"
	"github.com/fishbridge/gateway/internal/upstream/session"
)

// RESTBackend forwards operations over the token-based JSON REST protocol
type RESTBackend struct {
	client *rest.Client
}

var _ Backend = (*RESTBackend)(nil)

// NewRESTBackend creates a backend on top of the given REST client
func NewRESTBackend(client *rest.Client) *RESTBackend {
	return &RESTBackend{client: client}
}

// Login delegates to the client's token exchange
func (backend *RESTBackend) Login(ctx context.Context) (*session.Session, error) {
	return backend.client.Login(ctx)
}

// Logout delegates to the client's token invalidation
func (backend *RESTBackend) Logout(ctx context.Context, ticket string) error {
	return backend.client.Logout(ctx, ticket)
}

// Call shapes the operation into a single HTTP request and forwards it
func (backend *RESTBackend) Call(ctx context.Context, ticket string, op *Operation, params map[string]interface{}) (interface{}, error) {
	path := op.RESTPath
	for _, name := range op.Required {
		placeholder := "{" + name + "}"
		if strings.Contains(path, placeholder) {
			path = strings.ReplaceAll(path, placeholder, url.PathEscape(paramString(params[name])))
		}
	}

	var query url.Values
	for _, name := range op.RESTQuery {
		val, ok := params[name]
		if !ok || val == nil || paramString(val) == "" {
			continue
		}
		if query == nil {
			query = url.Values{}
		}
		query.Set(name, paramString(val))
	}

	var body map[string]interface{}
	for _, name := range op.RESTBody {
		val, ok := params[name]
		if !ok || val == nil {
			continue
		}
		if body == nil {
			body = map[string]interface{}{}
		}
		body[name] = val
	}

	var payload interface{}
	if body != nil {
		payload = body
	}
	result, err := backend.client.Do(ctx, ticket, op.RESTMethod, path, query, payload)
	if err != nil {
		return nil, err
	}

	if op.Result != nil {
		if raw, ok := result.(map[string]interface{}); ok {
			return op.Result(raw), nil
		}
	}
	return result, nil
}

// Close is a no-op; the REST client holds no long-lived connection state
// beyond the idle pool, which the runtime reclaims
func (backend *RESTBackend) Close() error {
	return nil
}
