package webui

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/davecgh/go-spew/spew"

	"ontime.transit.dev/internal/appconf"
	"ontime.transit.dev/internal/logging"
)

//go:embed debug_index.html
var templateFS embed.FS

var debugTemplate = template.Must(template.ParseFS(templateFS, "debug_index.html"))

// debugRowLimit caps how many schedule rows a page dumps.
const debugRowLimit = 500

type debugData struct {
	Title string
	Pre   string
}

type realtimeStatus struct {
	Mode                string
	FeedTimestamp       time.Time
	FetchedAt           time.Time
	FeedAge             time.Duration
	FeedStale           bool
	Predictions         int
	Vehicles            int
	ConsecutiveFailures int
	StaticUpdatedAt     time.Time
}

func writeDebugData(w http.ResponseWriter, logger *slog.Logger, title string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := debugTemplate.Execute(w, debugData{Title: title, Pre: spew.Sdump(data)})
	if err != nil {
		logging.LogError(logger, "failed to execute debug template", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func firstN[T any](rows []T) []T {
	return rows[:min(len(rows), debugRowLimit)]
}

// debugIndexHandler dumps the in-memory state chosen by dataType. It is not
// served in production.
func (webUI *WebUI) debugIndexHandler(w http.ResponseWriter, r *http.Request) {
	if webUI.Application == nil || webUI.Config.Env == appconf.Production || webUI.GtfsManager == nil {
		http.NotFound(w, r)
		return
	}
	logger := logging.FromContext(r.Context())
	manager := webUI.GtfsManager

	var (
		data  any
		title string
	)
	switch r.URL.Query().Get("dataType") {
	case "status", "":
		snap := manager.Predictions()
		age, stale := manager.FeedAge()
		data = realtimeStatus{
			Mode:                manager.Mode().String(),
			FeedTimestamp:       snap.FeedTimestamp,
			FetchedAt:           snap.FetchedAt,
			FeedAge:             age,
			FeedStale:           stale,
			Predictions:         snap.Len(),
			Vehicles:            len(snap.Vehicles()),
			ConsecutiveFailures: manager.ConsecutiveFailures(),
			StaticUpdatedAt:     manager.LastUpdated(),
		}
		title = "Realtime - Status"
	case "stops":
		data = firstN(manager.Schedule().Stops())
		title = "GTFS Static - Stops"
	case "trips":
		data = firstN(manager.Schedule().Trips())
		title = "GTFS Static - Trips"
	case "realtime_predictions":
		data = firstN(manager.Predictions().Predictions())
		title = "GTFS Realtime - Predictions"
	case "realtime_vehicles":
		data = firstN(manager.VehiclePositions())
		title = "GTFS Realtime - Vehicles"
	default:
		data = map[string]string{
			"error": "Please use one of the following: status, stops, trips, realtime_predictions, realtime_vehicles.",
		}
		title = "Choose a data type"
	}

	writeDebugData(w, logger, title, data)
}
