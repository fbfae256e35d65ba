package restapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cache tiers in seconds.
const (
	cacheRealtime = 15
	cacheStatic   = 300
	cacheNone     = 0
)

const rateLimitInterval = time.Second

// route wraps a JSON handler with rate limiting, cache headers and compression.
func (api *RestAPI) route(cacheSeconds int, h http.HandlerFunc) http.Handler {
	var handler http.Handler = gzhttp.GzipHandler(h)
	handler = CacheControlMiddleware(cacheSeconds, handler)
	if api.rateLimiter != nil {
		handler = api.rateLimiter.Handler()(handler)
	}
	return handler
}

// SetRoutes registers every endpoint on mux.
func (api *RestAPI) SetRoutes(mux *http.ServeMux) {
	mux.Handle("GET /api/arrivals/{stopId}", api.route(cacheRealtime, api.arrivalsForStopHandler))
	mux.Handle("GET /api/routes/{routeId}/stops", api.route(cacheStatic, api.stopsForRouteHandler))
	mux.Handle("GET /api/routes/{routeId}/headsigns", api.route(cacheStatic, api.headsignsForRouteHandler))
	mux.Handle("GET /api/routes/{routeId}/polyline", api.route(cacheStatic, api.polylineForRouteHandler))
	mux.Handle("GET /api/trips/search", api.route(cacheStatic, api.searchTripsHandler))
	mux.Handle("GET /api/stops/nearby", api.route(cacheStatic, api.stopsNearbyHandler))
	mux.Handle("GET /api/vehicles", api.route(cacheRealtime, api.vehiclesHandler))
	mux.Handle("GET /api/current-time", api.route(cacheRealtime, api.currentTimeHandler))

	mux.HandleFunc("GET /healthz", api.healthHandler)
	mux.HandleFunc("/", api.sendNotFound)
	if api.Application != nil && api.Metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(api.Metrics.Registry, promhttp.HandlerOpts{}))
	}
}

// WithMiddleware applies the request-scoped middleware shared by every route.
// Metrics must sit closest to the mux so the matched pattern is visible.
func WithMiddleware(h http.Handler, logger *slog.Logger, api *RestAPI) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if api != nil && api.Application != nil {
		h = RequestMetricsMiddleware(api.Metrics, api.Clock)(h)
	}
	h = NewRequestLoggingMiddleware(logger)(h)
	return RequestIDMiddleware(h)
}
