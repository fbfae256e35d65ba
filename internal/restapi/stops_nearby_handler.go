package restapi

import (
	"net/http"

	"ontime.transit.dev/internal/models"
	"ontime.transit.dev/internal/utils"
)

const (
	defaultNearbyRadius = 500.0
	maxNearbyRadius     = 5000.0
	defaultNearbyLimit  = 50
	maxNearbyLimit      = 250
)

func (api *RestAPI) stopsNearbyHandler(w http.ResponseWriter, r *http.Request) {
	fieldErrors := make(map[string][]string)

	lat, latSet, err := queryFloat(r, "lat", 0)
	if err != nil {
		fieldErrors["lat"] = append(fieldErrors["lat"], err.Error())
	} else if !latSet {
		fieldErrors["lat"] = append(fieldErrors["lat"], "lat is required")
	}
	lon, lonSet, err := queryFloat(r, "lon", 0)
	if err != nil {
		fieldErrors["lon"] = append(fieldErrors["lon"], err.Error())
	} else if !lonSet {
		fieldErrors["lon"] = append(fieldErrors["lon"], "lon is required")
	}
	if latSet && lonSet && len(fieldErrors) == 0 && !utils.ValidCoordinate(lat, lon) {
		fieldErrors["lat"] = append(fieldErrors["lat"], "coordinate out of range")
	}

	radius, _, err := queryFloat(r, "radius", defaultNearbyRadius)
	if err != nil {
		fieldErrors["radius"] = append(fieldErrors["radius"], err.Error())
	} else if radius <= 0 || radius > maxNearbyRadius {
		fieldErrors["radius"] = append(fieldErrors["radius"], "radius must be between 0 and 5000 meters")
	}

	limit, err := queryInt(r, "limit", defaultNearbyLimit)
	if err != nil {
		fieldErrors["limit"] = append(fieldErrors["limit"], err.Error())
	} else if limit <= 0 || limit > maxNearbyLimit {
		fieldErrors["limit"] = append(fieldErrors["limit"], "limit must be between 1 and 250")
	}

	if len(fieldErrors) > 0 {
		api.validationErrorResponse(w, r, fieldErrors)
		return
	}

	store := api.GtfsManager.Schedule()
	if store == nil {
		api.serviceUnavailableResponse(w, r)
		return
	}

	found := store.StopsNear(lat, lon, radius, limit)
	api.sendOK(w, r, models.NewList(models.NewNearbyStops(found)))
}
