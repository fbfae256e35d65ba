package restapi

import (
	"net/http"
	"strings"

	"ontime.transit.dev/internal/models"
)

const maxSearchQueryLength = 100

func (api *RestAPI) searchTripsHandler(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	switch {
	case q == "":
		api.validationErrorResponse(w, r, map[string][]string{"q": {"query is required"}})
		return
	case len(q) > maxSearchQueryLength:
		api.validationErrorResponse(w, r, map[string][]string{"q": {"query is too long"}})
		return
	}

	index := api.GtfsManager.Index()
	if index == nil {
		api.serviceUnavailableResponse(w, r)
		return
	}

	trips := index.Matcher().SearchByRouteOrHeadsign(q)
	api.sendOK(w, r, models.NewList(models.NewTrips(trips)))
}
