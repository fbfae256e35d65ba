package restapi

import (
	"net/http"

	"ontime.transit.dev/internal/models"
)

// arrivalsForStopHandler returns the next arrival per route at a stop, formatted
// for display and in structured form. Unknown stops yield the sentinel line.
func (api *RestAPI) arrivalsForStopHandler(w http.ResponseWriter, r *http.Request) {
	stopID, err := pathID(r, "stopId")
	if err != nil {
		api.validationErrorResponse(w, r, map[string][]string{"stopId": {err.Error()}})
		return
	}

	engine := api.GtfsManager.Engine()
	if engine == nil {
		api.serviceUnavailableResponse(w, r)
		return
	}

	found := engine.CurrentArrivals(stopID)
	api.sendOK(w, r, models.NewArrivalsForStop(stopID, api.GtfsManager.Mode().String(), found))
}
