package api

import (
	"net/http"

	"github.com/fishbridge/gateway/internal/api/schema"
	"github.com/fishbridge/gateway/internal/api/validation"
	"github.com/go-chi/chi/v5"
)

// handleList builds a handler forwarding a list operation with the common
// optional query parameters validated and passed through
func (service *Service) handleList(command string) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		var validationErrs []*schema.Error

		pageNumber, validationErr := validation.QueryNumber(request, "pageNumber", false, 0, 1, 100000)
		if validationErr != nil {
			validationErrs = append(validationErrs, validationErr)
		}

		pageSize, validationErr := validation.QueryNumber(request, "pageSize", false, 0, 1, 500)
		if validationErr != nil {
			validationErrs = append(validationErrs, validationErr)
		}

		if len(validationErrs) > 0 {
			service.writer.WriteErrors(writer, http.StatusBadRequest, validationErrs...)
			return
		}

		params := map[string]interface{}{}
		if pageNumber > 0 {
			params["pageNumber"] = pageNumber
		}
		if pageSize > 0 {
			params["pageSize"] = pageSize
		}
		for _, key := range []string{"status", "type"} {
			if val, _ := validation.QueryString(request, key, false); val != "" {
				params[key] = val
			}
		}

		service.invokeAndWrite(writer, request, command, params)
	}
}

// EndpointGetInventory handles the 'GET /v1/parts/{number}/inventory' endpoint
func (service *Service) EndpointGetInventory(writer http.ResponseWriter, request *http.Request) {
	service.invokeAndWrite(writer, request, "getInventory", map[string]interface{}{
		"partNumber": chi.URLParam(request, "number"),
	})
}

type addInventoryRequest struct {
	Quantity   *int64  `json:"quantity" required:"true" min:"1" max:"100000000"`
	LocationID *string `json:"locationId"`
	Note       *string `json:"note"`
}

// EndpointAddInventory handles the 'POST /v1/parts/{number}/inventory/add' endpoint
func (service *Service) EndpointAddInventory(writer http.ResponseWriter, request *http.Request) {
	body, validationErrs, err := decodeResourceBody[addInventoryRequest](service, request)
	if err != nil {
		service.writer.WriteInternalError(writer, err)
		return
	}
	if len(validationErrs) > 0 {
		service.writer.WriteErrors(writer, http.StatusBadRequest, validationErrs...)
		return
	}

	params := map[string]interface{}{
		"partNumber": chi.URLParam(request, "number"),
	}
	if body.Quantity != nil {
		params["quantity"] = *body.Quantity
	}
	if body.LocationID != nil {
		params["locationId"] = *body.LocationID
	}
	if body.Note != nil {
		params["note"] = *body.Note
	}
	service.invokeAndWrite(writer, request, "addInventory", params)
}

type createPartRequest struct {
	PartNumber  *string `json:"partNumber" required:"true"`
	Description *string `json:"description"`
	UOM         *string `json:"uom"`
}

// EndpointCreatePart handles the 'POST /v1/parts' endpoint
func (service *Service) EndpointCreatePart(writer http.ResponseWriter, request *http.Request) {
	body, validationErrs, err := decodeResourceBody[createPartRequest](service, request)
	if err != nil {
		service.writer.WriteInternalError(writer, err)
		return
	}
	if len(validationErrs) > 0 {
		service.writer.WriteErrors(writer, http.StatusBadRequest, validationErrs...)
		return
	}

	params := map[string]interface{}{}
	if body.PartNumber != nil {
		params["partNumber"] = *body.PartNumber
	}
	if body.Description != nil {
		params["description"] = *body.Description
	}
	if body.UOM != nil {
		params["uom"] = *body.UOM
	}
	service.invokeAndWrite(writer, request, "createPart", params)
}

type createMemoRequest struct {
	Memo     *string `json:"memo" required:"true"`
	UserName *string `json:"userName"`
}

// EndpointCreateMemo handles the 'POST /v1/memos' endpoint
func (service *Service) EndpointCreateMemo(writer http.ResponseWriter, request *http.Request) {
	body, validationErrs, err := decodeResourceBody[createMemoRequest](service, request)
	if err != nil {
		service.writer.WriteInternalError(writer, err)
		return
	}
	if len(validationErrs) > 0 {
		service.writer.WriteErrors(writer, http.StatusBadRequest, validationErrs...)
		return
	}

	params := map[string]interface{}{}
	if body.Memo != nil {
		params["memo"] = *body.Memo
	}
	if body.UserName != nil {
		params["userName"] = *body.UserName
	}
	service.invokeAndWrite(writer, request, "createMemo", params)
}

// EndpointGetMemo handles the 'GET /v1/memos/{id}' endpoint
func (service *Service) EndpointGetMemo(writer http.ResponseWriter, request *http.Request) {
	service.invokeAndWrite(writer, request, "getMemo", map[string]interface{}{
		"memoId": chi.URLParam(request, "id"),
	})
}

// EndpointDeleteMemo handles the 'DELETE /v1/memos/{id}' endpoint
func (service *Service) EndpointDeleteMemo(writer http.ResponseWriter, request *http.Request) {
	service.invokeAndWrite(writer, request, "deleteMemo", map[string]interface{}{
		"memoId": chi.URLParam(request, "id"),
	})
}

func decodeResourceBody[T any](service *Service, request *http.Request) (*T, []*schema.Error, error) {
	if service.Config.ValidationEnabled {
		return schema.UnmarshalBody[T](request)
	}
	return schema.DecodeBody[T](request)
}
