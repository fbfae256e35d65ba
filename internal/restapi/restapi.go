// Package restapi serves arrivals, route geometry, trip search, nearby stops
// and vehicle positions as JSON.
package restapi

import (
	"ontime.transit.dev/internal/app"
	"ontime.transit.dev/internal/clock"
)

type RestAPI struct {
	*app.Application
	rateLimiter *RateLimitMiddleware
}

func NewRestAPI(application *app.Application) *RestAPI {
	api := &RestAPI{Application: application}
	if application == nil {
		return api
	}
	if application.Clock == nil {
		application.Clock = clock.RealClock{}
	}
	api.rateLimiter = NewRateLimitMiddleware(application.Config.RateLimit, rateLimitInterval, nil, application.Clock)
	return api
}

// Shutdown stops background work owned by the API.
func (api *RestAPI) Shutdown() {
	if api.rateLimiter != nil {
		api.rateLimiter.Stop()
	}
}
