package restapi

import (
	"encoding/json"
	"net/http"

	"ontime.transit.dev/internal/models"
)

func (api *RestAPI) sendResponse(w http.ResponseWriter, r *http.Request, response models.ResponseModel) {
	setJSONResponseType(&w)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		api.logError(r, err)
	}
}

func (api *RestAPI) sendOK(w http.ResponseWriter, r *http.Request, data any) {
	api.sendResponse(w, r, models.NewOKResponse(data, api.Clock))
}

func (api *RestAPI) sendNotFound(w http.ResponseWriter, r *http.Request) {
	api.sendError(w, r, http.StatusNotFound, "resource not found")
}

func setJSONResponseType(w *http.ResponseWriter) {
	(*w).Header().Set("Content-Type", "application/json")
}

func (api *RestAPI) sendError(w http.ResponseWriter, r *http.Request, code int, message string) {
	setJSONResponseType(&w)
	w.WriteHeader(code)

	response := models.NewErrorResponse(code, message, api.Clock)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		api.logError(r, err)
	}
}
