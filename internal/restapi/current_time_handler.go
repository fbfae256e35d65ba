package restapi

import (
	"net/http"
	"time"
)

type currentTimeData struct {
	Time         int64  `json:"time"`
	ReadableTime string `json:"readableTime"`
	TimeZone     string `json:"timeZone"`
}

// currentTimeHandler reports the server clock in the configured zone.
func (api *RestAPI) currentTimeHandler(w http.ResponseWriter, r *http.Request) {
	loc := api.GtfsManager.Location()
	if loc == nil {
		loc = time.UTC
	}
	now := api.Clock.Now().In(loc)
	api.sendOK(w, r, currentTimeData{
		Time:         now.UnixMilli(),
		ReadableTime: now.Format(time.RFC3339),
		TimeZone:     loc.String(),
	})
}
