package restapi

import (
	"net/http"
	"strings"

	"ontime.transit.dev/internal/models"
	"ontime.transit.dev/internal/realtime"
)

// vehiclesHandler lists vehicle positions, simulated ones while the feed is
// unavailable. routeId narrows the list to one route.
func (api *RestAPI) vehiclesHandler(w http.ResponseWriter, r *http.Request) {
	if api.GtfsManager.Schedule() == nil {
		api.serviceUnavailableResponse(w, r)
		return
	}

	vehicles := api.GtfsManager.VehiclePositions()
	if routeID := strings.TrimSpace(r.URL.Query().Get("routeId")); routeID != "" {
		filtered := make([]realtime.VehiclePosition, 0, len(vehicles))
		for _, v := range vehicles {
			if strings.EqualFold(v.RouteID, routeID) {
				filtered = append(filtered, v)
			}
		}
		vehicles = filtered
	}
	api.sendOK(w, r, models.NewList(models.NewVehicles(vehicles)))
}
