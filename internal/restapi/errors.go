package restapi

import (
	"encoding/json"
	"net/http"

	"ontime.transit.dev/internal/logging"
	"ontime.transit.dev/internal/models"
)

func (api *RestAPI) logError(r *http.Request, err error) {
	logger := logging.FromContext(r.Context())
	logging.LogError(logger, "request failed", err,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", GetRequestID(r.Context()))
}

func (api *RestAPI) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	api.logError(r, err)
	api.sendError(w, r, http.StatusInternalServerError, "internal server error")
}

func (api *RestAPI) serviceUnavailableResponse(w http.ResponseWriter, r *http.Request) {
	api.sendError(w, r, http.StatusServiceUnavailable, "schedule data not loaded")
}

// validationErrorResponse reports per-parameter errors with status 400.
func (api *RestAPI) validationErrorResponse(w http.ResponseWriter, r *http.Request, fieldErrors map[string][]string) {
	setJSONResponseType(&w)
	w.WriteHeader(http.StatusBadRequest)

	response := models.NewErrorResponse(http.StatusBadRequest, "invalid request", api.Clock)
	response.Data = map[string]any{"fieldErrors": fieldErrors}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		api.logError(r, err)
	}
}
