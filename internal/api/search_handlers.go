package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/dmitrymomot/engram/internal/memory"
	"github.com/dmitrymomot/engram/pkg/binder"
	"github.com/dmitrymomot/engram/pkg/logger"
	"github.com/dmitrymomot/engram/pkg/validator"
)

type nodeSearchQuery struct {
	Query          string   `query:"query"`
	GroupIDs       []string `query:"group_ids"`
	MaxNodes       *int     `query:"max_nodes"`
	CenterNodeUUID string   `query:"center_node_uuid"`
	Entity         string   `query:"entity"`
}

type factSearchQuery struct {
	Query          string   `query:"query"`
	GroupIDs       []string `query:"group_ids"`
	MaxFacts       *int     `query:"max_facts"`
	CenterNodeUUID string   `query:"center_node_uuid"`
}

// handleSearchNodes runs a hybrid entity search and returns scored node
// summaries. An entity filter restricts hits to one custom entity type.
func (a *API) handleSearchNodes(w http.ResponseWriter, r *http.Request) {
	var q nodeSearchQuery
	if err := binder.Query(r, &q); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validator.Apply(validator.RequiredString("query", q.Query)); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if q.Entity != "" && !memory.ValidEntityType(q.Entity) {
		respondError(w, http.StatusBadRequest,
			"Invalid entity type. Must be one of: "+strings.Join(memory.EntityTypes(), ", "))
		return
	}

	limit := 10
	if q.MaxNodes != nil {
		limit = *q.MaxNodes
	}
	if limit < 1 || limit > 100 {
		respondError(w, http.StatusBadRequest, "max_nodes must be between 1 and 100")
		return
	}

	nodes, err := a.svc.SearchNodes(r.Context(), memory.NodeSearchParams{
		Query:          q.Query,
		GroupIDs:       a.searchGroups(q.GroupIDs),
		Limit:          limit,
		CenterNodeUUID: q.CenterNodeUUID,
		EntityType:     q.Entity,
	})
	if err != nil {
		a.log.ErrorContext(r.Context(), "failed to search nodes", logger.Error(err))
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Error searching nodes: %v", err))
		return
	}

	message := "Nodes retrieved successfully"
	if len(nodes) == 0 {
		message = "No relevant nodes found"
	}
	respondJSON(w, http.StatusOK, NodeSearchResponse{
		Message: message,
		Nodes:   nodeResults(nodes),
		Success: true,
	})
}

// handleSearchFacts runs a hybrid fact search over entity edges.
func (a *API) handleSearchFacts(w http.ResponseWriter, r *http.Request) {
	var q factSearchQuery
	if err := binder.Query(r, &q); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validator.Apply(validator.RequiredString("query", q.Query)); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := 10
	if q.MaxFacts != nil {
		limit = *q.MaxFacts
	}
	if limit < 1 || limit > 100 {
		respondError(w, http.StatusBadRequest, "max_facts must be between 1 and 100")
		return
	}

	facts, err := a.svc.SearchFacts(r.Context(), memory.FactSearchParams{
		Query:          q.Query,
		GroupIDs:       a.searchGroups(q.GroupIDs),
		Limit:          limit,
		CenterNodeUUID: q.CenterNodeUUID,
	})
	if err != nil {
		a.log.ErrorContext(r.Context(), "failed to search facts", logger.Error(err))
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Error searching facts: %v", err))
		return
	}

	message := "Facts retrieved successfully"
	if len(facts) == 0 {
		message = "No relevant facts found"
	}
	respondJSON(w, http.StatusOK, FactSearchResponse{
		Message: message,
		Facts:   factResults(facts),
		Success: true,
	})
}

// searchGroups resolves the request's group filter, falling back to the
// configured default group when the caller did not supply one.
func (a *API) searchGroups(groupIDs []string) []string {
	if len(groupIDs) > 0 {
		return groupIDs
	}
	if a.cfg.DefaultGroupID == "" {
		return nil
	}
	return []string{a.cfg.DefaultGroupID}
}
