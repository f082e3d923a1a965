// Package router configures HTTP routes for the remediad dashboard API.
//
// The daemon exposes a read-only HTTP server (default :8082) for dashboards
// and operators. It never affects loop correctness; it reads the state store
// the loop updates each tick.
//
// Routes configured:
//   - GET /state/windows - All window snapshots, ascending (subsystem, metric)
//   - GET /state/window?subsystem=<id>&metric=<name> - One window snapshot
//   - GET /actions/recent?limit=<n> - Most recent execution records
//   - GET /healthz - Health check endpoint (returns 200 OK)
//   - GET /metrics - Prometheus metrics endpoint
package router

import (
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opsloop/remedia/pkg/httpx"
	"github.com/opsloop/remedia/pkg/sink"
	"github.com/opsloop/remedia/pkg/window"
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9_-]{0,251}[a-zA-Z0-9])?$`)

// SetupRoutes configures the dashboard API endpoints.
func SetupRoutes(state *sink.Memory, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/healthz", httpx.HealthHandler())
	mux.HandleFunc("/state/windows", handleListWindows(state))
	mux.HandleFunc("/state/window", handleGetWindow(state))
	mux.HandleFunc("/actions/recent", handleRecentActions(state))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

// handleListWindows returns a handler for GET /state/windows.
func handleListWindows(state *sink.Memory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshots := state.Snapshots()
		resp := map[string]any{
			"count":   len(snapshots),
			"windows": snapshots,
		}
		if err := httpx.WriteJSON(w, http.StatusOK, resp); err != nil {
			slog.Error("failed to write JSON response", "error", err)
		}
	}
}

// handleGetWindow returns a handler for
// GET /state/window?subsystem=<id>&metric=<name>.
func handleGetWindow(state *sink.Memory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subsystem := r.URL.Query().Get("subsystem")
		metric := r.URL.Query().Get("metric")
		if subsystem == "" || metric == "" {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "subsystem and metric parameters required")
			return
		}
		if !nameRegex.MatchString(subsystem) || !nameRegex.MatchString(metric) {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "invalid subsystem or metric name format")
			return
		}

		key := window.Key{SubsystemID: subsystem, Metric: metric}
		snap, found := state.Snapshot(key)
		if !found {
			httpx.WriteErrorMessage(w, http.StatusNotFound,
				fmt.Sprintf("no window for subsystem %q metric %q", subsystem, metric))
			return
		}

		resp := sink.KeyedSnapshot{Key: key, Snap: snap}
		if err := httpx.WriteJSON(w, http.StatusOK, resp); err != nil {
			slog.Error("failed to write JSON response", "error", err)
		}
	}
}

// handleRecentActions returns a handler for GET /actions/recent?limit=<n>.
func handleRecentActions(state *sink.Memory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				httpx.WriteErrorMessage(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = parsed
		}

		records := state.RecentRecords(limit)
		resp := map[string]any{
			"count":   len(records),
			"records": records,
		}
		if err := httpx.WriteJSON(w, http.StatusOK, resp); err != nil {
			slog.Error("failed to write JSON response", "error", err)
		}
	}
}
