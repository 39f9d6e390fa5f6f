package api

import (
	"net/http"

	"github.com/fishbridge/gateway/internal/api/schema"
)

type commandRequest struct {
	Command    *string                `json:"command" required:"true"`
	Parameters map[string]interface{} `json:"parameters"`
}

// EndpointCommand handles the 'POST /v1/command' endpoint.
// The body carries a named operation and its parameters; the operation's own
// parameter requirements are enforced by the forwarder before any upstream I/O.
func (service *Service) EndpointCommand(writer http.ResponseWriter, request *http.Request) {
	body, validationErrs, err := service.decodeBody(request)
	if err != nil {
		service.writer.WriteInternalError(writer, err)
		return
	}
	if len(validationErrs) > 0 {
		service.writer.WriteErrors(writer, http.StatusBadRequest, validationErrs...)
		return
	}

	command := ""
	if body.Command != nil {
		command = *body.Command
	}
	service.invokeAndWrite(writer, request, command, body.Parameters)
}

func (service *Service) decodeBody(request *http.Request) (*commandRequest, []*schema.Error, error) {
	if service.Config.ValidationEnabled {
		return schema.UnmarshalBody[commandRequest](request)
	}
	return schema.DecodeBody[commandRequest](request)
}
