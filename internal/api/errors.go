package api

import (
	"errors"
	"net/http"

	"github.com/fishbridge/gateway/internal/api/schema"
	"github.com/fishbridge/gateway/internal/forward"
	"github.com/fishbridge/gateway/internal/upstream"
)

// writeInvokeError maps a forwarding failure onto the gateway's error responses.
// Upstream messages are passed through verbatim; credentials never are.
func (service *Service) writeInvokeError(writer http.ResponseWriter, err error) {
	var validationErr *forward.ValidationError
	if errors.As(err, &validationErr) {
		details := map[string]interface{}{
			"command": validationErr.Command,
		}
		if len(validationErr.Fields) > 0 {
			details["missing"] = validationErr.Fields
		}
		service.writer.WriteErrors(writer, http.StatusBadRequest, &schema.Error{
			Type:    "validation.command",
			Message: validationErr.Error(),
			Details: details,
		})
		return
	}

	var authErr *upstream.AuthError
	if errors.As(err, &authErr) {
		service.writer.WriteErrors(writer, http.StatusBadGateway, &schema.Error{
			Type:    "upstream.auth",
			Message: authErr.Error(),
		})
		return
	}

	var timeoutErr *upstream.TimeoutError
	if errors.As(err, &timeoutErr) {
		service.writer.WriteErrors(writer, http.StatusGatewayTimeout, &schema.Error{
			Type:    "upstream.timeout",
			Message: timeoutErr.Error(),
		})
		return
	}

	var connectionErr *upstream.ConnectionError
	if errors.As(err, &connectionErr) {
		service.writer.WriteErrors(writer, http.StatusGatewayTimeout, &schema.Error{
			Type:    "upstream.unreachable",
			Message: "The upstream system could not be reached.",
		})
		return
	}

	var callErr *upstream.CallError
	if errors.As(err, &callErr) {
		service.writer.WriteErrors(writer, http.StatusBadGateway, &schema.Error{
			Type:    "upstream.error",
			Message: callErr.Message,
			Details: map[string]interface{}{
				"status_code": callErr.StatusCode,
			},
		})
		return
	}

	var transportErr *upstream.TransportError
	if errors.As(err, &transportErr) {
		service.writer.WriteErrors(writer, http.StatusBadGateway, &schema.Error{
			Type:    "upstream.transport",
			Message: "The exchange with the upstream system failed.",
		})
		return
	}

	service.writer.WriteInternalError(writer, err)
}
