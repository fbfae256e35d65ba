package restapi

import (
	"encoding/json"
	"net/http"
)

// HealthResponse represents the JSON response from the health endpoint.
type HealthResponse struct {
	Status              string  `json:"status"`
	Detail              string  `json:"detail,omitempty"`
	Mode                string  `json:"mode,omitempty"`
	FeedAgeSeconds      float64 `json:"feedAgeSeconds,omitempty"`
	FeedStale           bool    `json:"feedStale"`
	Predictions         int     `json:"predictions"`
	ConsecutiveFailures int     `json:"consecutiveFailures"`
	StaticUpdatedAt     int64   `json:"staticUpdatedAt,omitempty"`
}

// healthHandler returns 200 once static data is loaded. Realtime problems are
// reported in the body but never fail the check, since scheduled arrivals still work.
func (api *RestAPI) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if api.Application == nil || api.GtfsManager == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(HealthResponse{
			Status: "unavailable",
			Detail: "manager not initialized",
		})
		return
	}

	manager := api.GtfsManager
	if !manager.IsHealthy() || manager.Schedule() == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(HealthResponse{
			Status: "starting",
			Detail: "static schedule not loaded",
			Mode:   manager.Mode().String(),
		})
		return
	}

	age, stale := manager.FeedAge()
	resp := HealthResponse{
		Status:              "ok",
		Mode:                manager.Mode().String(),
		FeedStale:           stale,
		Predictions:         manager.Predictions().Len(),
		ConsecutiveFailures: manager.ConsecutiveFailures(),
	}
	if !stale {
		resp.FeedAgeSeconds = age.Seconds()
	}
	if updated := manager.LastUpdated(); !updated.IsZero() {
		resp.StaticUpdatedAt = updated.UnixMilli()
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
