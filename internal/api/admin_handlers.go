package api

import (
	"fmt"
	"net/http"

	"github.com/dmitrymomot/engram/pkg/logger"
)

// handleHealthcheck reports process liveness only. Graph connectivity is
// covered by the status endpoint.
func (a *API) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleStatus probes the graph connection and echoes the non-secret
// configuration. It always answers 200; the body carries the outcome.
func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Ready(r.Context()); err != nil {
		a.log.ErrorContext(r.Context(), "graph connection check failed", logger.Error(err))
		respondJSON(w, http.StatusOK, StatusResponse{
			Status:  "error",
			Message: fmt.Sprintf("Memory server is running but the graph connection failed: %v", err),
		})
		return
	}

	respondJSON(w, http.StatusOK, StatusResponse{
		Status:  "ok",
		Message: "Memory server is running and connected to the graph database",
		Config: map[string]any{
			"model":                   a.cfg.Model,
			"small_model":             a.cfg.SmallModel,
			"temperature":             a.cfg.Temperature,
			"default_group_id":        a.cfg.DefaultGroupID,
			"custom_entities_enabled": a.cfg.CustomEntities,
			"semaphore_limit":         a.cfg.SemaphoreLimit,
			"active_queues":           a.queues.Len(),
		},
	})
}

// handleClear wipes the entire graph across all groups and rebuilds the
// indices. There is no undo.
func (a *API) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Clear(r.Context()); err != nil {
		a.log.ErrorContext(r.Context(), "failed to clear graph", logger.Error(err))
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Error clearing graph: %v", err))
		return
	}

	respondJSON(w, http.StatusOK, success("Graph cleared successfully and indices rebuilt"))
}
