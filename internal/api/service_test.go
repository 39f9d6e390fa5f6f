package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fishbridge/gateway/internal/api/schema"
	"github.com/fishbridge/gateway/internal/config"
	"github.com/fishbridge/gateway/internal/forward"
	"github.com/fishbridge/gateway/internal/ratelimit"
	"github.com/fishbridge/gateway/internal/upstream"
	"github.com/fishbridge/gateway/internal/upstream/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeInvoker records invocations and returns a scripted result
type fakeInvoker struct {
	command string
	params  map[string]interface{}
	result  interface{}
	err     error
}

func (invoker *fakeInvoker) Invoke(_ context.Context, command string, params map[string]interface{}) (interface{}, error) {
	invoker.command = command
	invoker.params = params
	if invoker.err != nil {
		return nil, invoker.err
	}
	return invoker.result, nil
}

func newTestService(invoker *fakeInvoker) *Service {
	return &Service{
		Config: &config.Config{
			UpstreamProtocol:  config.ProtocolXML,
			AllowedOrigin:     "*",
			ValidationEnabled: true,
		},
		Forwarder: invoker,
		Sessions: session.NewManager(func(_ context.Context) (*session.Session, error) {
			return &session.Session{Ticket: "ticket", UserID: "9"}, nil
		}),
	}
}

func performRequest(service *Service, method, target, body string) *httptest.ResponseRecorder {
	if body == "" {
		body = "{}"
	}
	request := httptest.NewRequest(method, target, strings.NewReader(body))
	recorder := httptest.NewRecorder()
	service.router().ServeHTTP(recorder, request)
	return recorder
}

func TestEndpointGetHealthUnauthenticated(t *testing.T) {
	service := newTestService(&fakeInvoker{})
	recorder := performRequest(service, http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, recorder.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["authenticated"])
}

func TestEndpointGetHealthAuthenticated(t *testing.T) {
	service := newTestService(&fakeInvoker{})
	_, err := service.Sessions.Ensure(context.Background())
	require.NoError(t, err)

	recorder := performRequest(service, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, recorder.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, true, body["authenticated"])
	assert.Equal(t, "9", body["user_id"])
}

func TestEndpointCommandForwards(t *testing.T) {
	invoker := &fakeInvoker{result: map[string]interface{}{"partNumber": "WIDGET-1", "quantity": 42.0}}
	service := newTestService(invoker)

	recorder := performRequest(service, http.MethodPost, "/v1/command",
		`{"command": "getInventory", "parameters": {"partNumber": "WIDGET-1"}}`)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "getInventory", invoker.command)
	assert.Equal(t, "WIDGET-1", invoker.params["partNumber"])

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, 42.0, body["quantity"])
}

func TestEndpointCommandMissingCommand(t *testing.T) {
	invoker := &fakeInvoker{}
	service := newTestService(invoker)

	recorder := performRequest(service, http.MethodPost, "/v1/command", `{"parameters": {}}`)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Empty(t, invoker.command)

	var body schema.ErrorResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Len(t, body.Errors, 1)
	assert.Equal(t, "validation.requestBody.parameter.missing", body.Errors[0].Type)
}

func TestEndpointCommandMapsValidationError(t *testing.T) {
	invoker := &fakeInvoker{err: &forward.ValidationError{Command: "getInventory", Fields: []string{"partNumber"}}}
	service := newTestService(invoker)

	recorder := performRequest(service, http.MethodPost, "/v1/command", `{"command": "getInventory"}`)
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	var body schema.ErrorResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Len(t, body.Errors, 1)
	assert.Equal(t, "validation.command", body.Errors[0].Type)
}

func TestEndpointCommandMapsUpstreamErrors(t *testing.T) {
	for _, tc := range []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"auth", &upstream.AuthError{Reason: "Invalid ticket"}, http.StatusBadGateway, "upstream.auth"},
		{"timeout", &upstream.TimeoutError{Op: "getInventory"}, http.StatusGatewayTimeout, "upstream.timeout"},
		{"unreachable", &upstream.ConnectionError{Addr: "localhost:28192"}, http.StatusGatewayTimeout, "upstream.unreachable"},
		{"domain", &upstream.CallError{StatusCode: 1050, Message: "part not found"}, http.StatusBadGateway, "upstream.error"},
		{"transport", &upstream.TransportError{Op: "getInventory"}, http.StatusBadGateway, "upstream.transport"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			service := newTestService(&fakeInvoker{err: tc.err})
			recorder := performRequest(service, http.MethodPost, "/v1/command", `{"command": "getInventory"}`)
			require.Equal(t, tc.wantStatus, recorder.Code)

			var body schema.ErrorResponse
			require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
			require.Len(t, body.Errors, 1)
			assert.Equal(t, tc.wantType, body.Errors[0].Type)
		})
	}
}

func TestEndpointCommandUpstreamMessagePassedVerbatim(t *testing.T) {
	service := newTestService(&fakeInvoker{err: &upstream.CallError{StatusCode: 1050, Message: "part not found"}})
	recorder := performRequest(service, http.MethodPost, "/v1/command", `{"command": "getInventory"}`)

	var body schema.ErrorResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Len(t, body.Errors, 1)
	assert.Equal(t, "part not found", body.Errors[0].Message)
	assert.EqualValues(t, 1050, body.Errors[0].Details["status_code"])
}

func TestEndpointGetInventoryPassesPathParameter(t *testing.T) {
	invoker := &fakeInvoker{result: map[string]interface{}{}}
	service := newTestService(invoker)

	recorder := performRequest(service, http.MethodGet, "/v1/parts/WIDGET-1/inventory", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "getInventory", invoker.command)
	assert.Equal(t, "WIDGET-1", invoker.params["partNumber"])
}

func TestHandleListValidatesQueryParameters(t *testing.T) {
	invoker := &fakeInvoker{result: []interface{}{}}
	service := newTestService(invoker)

	recorder := performRequest(service, http.MethodGet, "/v1/parts?pageSize=nope", "")
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Empty(t, invoker.command)

	recorder = performRequest(service, http.MethodGet, "/v1/purchase-orders?pageNumber=2&status=Issued", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "listPurchaseOrders", invoker.command)
	assert.EqualValues(t, 2, invoker.params["pageNumber"])
	assert.Equal(t, "Issued", invoker.params["status"])
}

func TestEndpointAddInventoryValidatesBody(t *testing.T) {
	invoker := &fakeInvoker{result: map[string]interface{}{}}
	service := newTestService(invoker)

	recorder := performRequest(service, http.MethodPost, "/v1/parts/WIDGET-1/inventory/add", `{"quantity": 0}`)
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = performRequest(service, http.MethodPost, "/v1/parts/WIDGET-1/inventory/add", `{"quantity": 5, "locationId": "A1"}`)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "addInventory", invoker.command)
	assert.EqualValues(t, 5, invoker.params["quantity"])
	assert.Equal(t, "A1", invoker.params["locationId"])
}

func TestMiddlewareRateLimit(t *testing.T) {
	service := newTestService(&fakeInvoker{result: map[string]interface{}{}})
	service.limiter = ratelimit.New(2, time.Minute)

	for i := 0; i < 2; i++ {
		recorder := performRequest(service, http.MethodGet, "/health", "")
		require.Equal(t, http.StatusOK, recorder.Code)
	}
	recorder := performRequest(service, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusTooManyRequests, recorder.Code)

	var body schema.ErrorResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Len(t, body.Errors, 1)
	assert.Equal(t, "generic.rateLimited", body.Errors[0].Type)
}

func TestCommandValidationDisabled(t *testing.T) {
	invoker := &fakeInvoker{err: &forward.ValidationError{Command: "", Reason: "unknown command"}}
	service := newTestService(invoker)
	service.Config.ValidationEnabled = false

	// Without the validation pass the empty command still fails, but in the
	// forwarder instead of the schema layer
	recorder := performRequest(service, http.MethodPost, "/v1/command", `{"parameters": {}}`)
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	var body schema.ErrorResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Len(t, body.Errors, 1)
	assert.Equal(t, "validation.command", body.Errors[0].Type)
}
