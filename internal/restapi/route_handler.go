package restapi

import (
	"net/http"
	"strings"

	"ontime.transit.dev/internal/models"
	"ontime.transit.dev/internal/routes"
	"ontime.transit.dev/internal/schedule"
)

// routeFromRequest validates the route id and resolves the route service. It
// writes the error response itself and reports whether the caller may continue.
func (api *RestAPI) routeFromRequest(w http.ResponseWriter, r *http.Request) (string, *routes.Service, bool) {
	routeID, err := pathID(r, "routeId")
	if err != nil {
		api.validationErrorResponse(w, r, map[string][]string{"routeId": {err.Error()}})
		return "", nil, false
	}

	svc := api.GtfsManager.Routes()
	store := api.GtfsManager.Schedule()
	if svc == nil || store == nil {
		api.serviceUnavailableResponse(w, r)
		return "", nil, false
	}
	if len(store.TripsForRoute(routeID)) == 0 {
		api.sendNotFound(w, r)
		return "", nil, false
	}
	return routeID, svc, true
}

func (api *RestAPI) stopsForRoute(w http.ResponseWriter, r *http.Request) (string, string, []schedule.Stop, bool) {
	routeID, svc, ok := api.routeFromRequest(w, r)
	if !ok {
		return "", "", nil, false
	}
	headsign := strings.TrimSpace(r.URL.Query().Get("headsign"))
	stops := svc.StopsForRouteHeadsign(routeID, headsign)
	if headsign != "" && len(stops) == 0 {
		api.sendNotFound(w, r)
		return "", "", nil, false
	}
	return routeID, headsign, stops, true
}

func (api *RestAPI) stopsForRouteHandler(w http.ResponseWriter, r *http.Request) {
	routeID, headsign, stops, ok := api.stopsForRoute(w, r)
	if !ok {
		return
	}
	api.sendOK(w, r, models.RouteStops{
		RouteID:  routeID,
		Headsign: headsign,
		Stops:    models.NewStops(stops),
	})
}

func (api *RestAPI) headsignsForRouteHandler(w http.ResponseWriter, r *http.Request) {
	routeID, svc, ok := api.routeFromRequest(w, r)
	if !ok {
		return
	}
	api.sendOK(w, r, models.NewList(svc.HeadsignsForRoute(routeID)))
}

func (api *RestAPI) polylineForRouteHandler(w http.ResponseWriter, r *http.Request) {
	routeID, headsign, stops, ok := api.stopsForRoute(w, r)
	if !ok {
		return
	}
	length := 0
	for _, s := range stops {
		if !s.LineMarker {
			length++
		}
	}
	api.sendOK(w, r, models.RoutePolyline{
		RouteID:  routeID,
		Headsign: headsign,
		Points:   routes.EncodedPolyline(stops),
		Length:   length,
	})
}
