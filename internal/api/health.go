package api

import (
	"net/http"
	"time"
)

// EndpointGetHealth handles the 'GET /health' endpoint.
// It reports process liveness and the current authentication state without
// making an upstream call.
func (service *Service) EndpointGetHealth(writer http.ResponseWriter, request *http.Request) {
	response := map[string]interface{}{
		"status":        "ok",
		"protocol":      service.Config.UpstreamProtocol,
		"authenticated": false,
	}
	if snapshot := service.Sessions.Snapshot(); snapshot != nil {
		response["authenticated"] = true
		response["expires_at"] = snapshot.ExpiresAt.UTC().Format(time.RFC3339)
		if snapshot.UserID != "" {
			response["user_id"] = snapshot.UserID
		}
	}
	service.writer.WriteJSON(writer, response)
}
