package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/engram/internal/graph"
	"github.com/dmitrymomot/engram/internal/memory"
	"github.com/dmitrymomot/engram/pkg/binder"
	"github.com/dmitrymomot/engram/pkg/groupqueue"
	"github.com/dmitrymomot/engram/pkg/logger"
)

// episodeParams builds the deferred work item's inputs at request time. The
// reference timestamp is part of the item: it records when the episode was
// observed, not when a worker eventually picks it up.
func (a *API) episodeParams(req AddMemoryRequest, group string) memory.EpisodeParams {
	return memory.EpisodeParams{
		UUID:              req.UUID,
		Name:              req.Name,
		GroupID:           group,
		Content:           req.EpisodeBody,
		Source:            req.Source,
		SourceDescription: req.SourceDescription,
		ReferenceTime:     time.Now().UTC(),
	}
}

func (a *API) submitQueue(group string) (*groupqueue.Queue[*memory.AddEpisodeResult], error) {
	queue, err := a.queues.Get(group)
	if err != nil {
		return nil, err
	}
	queue.Start()
	return queue, nil
}

// handleAddMemory queues an episode for background processing and returns
// immediately. Episodes for the same group are processed sequentially.
func (a *API) handleAddMemory(w http.ResponseWriter, r *http.Request) {
	var req AddMemoryRequest
	if err := binder.JSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.normalize()
	if err := req.validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	group := a.group(req.GroupID)
	params := a.episodeParams(req, group)

	queue, err := a.submitQueue(group)
	if err != nil {
		a.log.ErrorContext(r.Context(), "failed to queue episode", logger.Error(err), logger.GroupID(group))
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Error queuing episode: %v", err))
		return
	}

	position, err := queue.Enqueue(req.Name, func(ctx context.Context) (*memory.AddEpisodeResult, error) {
		return a.svc.AddEpisode(ctx, params)
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, groupqueue.ErrBacklogFull) {
			status = http.StatusServiceUnavailable
		}
		a.log.ErrorContext(r.Context(), "failed to queue episode", logger.Error(err), logger.GroupID(group))
		respondError(w, status, fmt.Sprintf("Error queuing episode: %v", err))
		return
	}

	respondJSON(w, http.StatusAccepted,
		success(fmt.Sprintf("Episode '%s' queued for processing (position: %d)", req.Name, position)))
}

// handleAddMemorySync queues an episode, preserving per-group ordering, and
// waits for the worker to process it before responding with its UUID.
func (a *API) handleAddMemorySync(w http.ResponseWriter, r *http.Request) {
	var req AddMemoryRequest
	if err := binder.JSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.normalize()
	if err := req.validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	group := a.group(req.GroupID)
	params := a.episodeParams(req, group)

	queue, err := a.submitQueue(group)
	if err != nil {
		a.log.ErrorContext(r.Context(), "failed to process episode", logger.Error(err), logger.GroupID(group))
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Error processing episode: %v", err))
		return
	}

	fut, err := queue.EnqueueWait(req.Name, func(ctx context.Context) (*memory.AddEpisodeResult, error) {
		return a.svc.AddEpisode(ctx, params)
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, groupqueue.ErrBacklogFull) {
			status = http.StatusServiceUnavailable
		}
		a.log.ErrorContext(r.Context(), "failed to process episode", logger.Error(err), logger.GroupID(group))
		respondError(w, status, fmt.Sprintf("Error processing episode: %v", err))
		return
	}

	result, err := fut.AwaitContext(r.Context())
	if err != nil {
		a.log.ErrorContext(r.Context(), "failed to process episode", logger.Error(err), logger.GroupID(group))
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Error processing episode: %v", err))
		return
	}

	respondJSON(w, http.StatusCreated, AddMemoryResponse{
		Message:     fmt.Sprintf("Episode '%s' processed successfully", req.Name),
		EpisodeUUID: result.Episode.UUID,
		Success:     true,
	})
}

// handleGetEpisodes returns the most recent episodes for a group as a bare
// array, oldest first.
func (a *API) handleGetEpisodes(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")

	var q struct {
		LastN *int `query:"last_n"`
	}
	if err := binder.Query(r, &q); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	lastN := 10
	if q.LastN != nil {
		lastN = *q.LastN
	}
	if lastN < 1 || lastN > 100 {
		respondError(w, http.StatusBadRequest, "last_n must be between 1 and 100")
		return
	}

	episodes, err := a.svc.RetrieveEpisodes(r.Context(), groupID, lastN, time.Now().UTC())
	if err != nil {
		a.log.ErrorContext(r.Context(), "failed to get episodes", logger.Error(err), logger.GroupID(groupID))
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Error getting episodes: %v", err))
		return
	}
	if episodes == nil {
		episodes = []graph.EpisodeNode{}
	}

	respondJSON(w, http.StatusOK, episodes)
}

func (a *API) handleDeleteEpisode(w http.ResponseWriter, r *http.Request) {
	uuid := chi.URLParam(r, "uuid")

	if err := a.svc.DeleteEpisode(r.Context(), uuid); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, graph.ErrNotFound) {
			status = http.StatusNotFound
		}
		a.log.ErrorContext(r.Context(), "failed to delete episode", logger.Error(err), logger.EpisodeUUID(uuid))
		respondError(w, status, fmt.Sprintf("Error deleting episode: %v", err))
		return
	}

	respondJSON(w, http.StatusOK, success(fmt.Sprintf("Episode with UUID %s deleted successfully", uuid)))
}

func (a *API) handleGetEntityEdge(w http.ResponseWriter, r *http.Request) {
	uuid := chi.URLParam(r, "uuid")

	edge, err := a.svc.EntityEdge(r.Context(), uuid)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, graph.ErrNotFound) {
			status = http.StatusNotFound
		}
		a.log.ErrorContext(r.Context(), "failed to get entity edge", logger.Error(err))
		respondError(w, status, fmt.Sprintf("Error getting entity edge: %v", err))
		return
	}

	respondJSON(w, http.StatusOK, factResult(edge))
}

func (a *API) handleDeleteEntityEdge(w http.ResponseWriter, r *http.Request) {
	uuid := chi.URLParam(r, "uuid")

	if err := a.svc.DeleteEntityEdge(r.Context(), uuid); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, graph.ErrNotFound) {
			status = http.StatusNotFound
		}
		a.log.ErrorContext(r.Context(), "failed to delete entity edge", logger.Error(err))
		respondError(w, status, fmt.Sprintf("Error deleting entity edge: %v", err))
		return
	}

	respondJSON(w, http.StatusOK, success(fmt.Sprintf("Entity edge with UUID %s deleted successfully", uuid)))
}

// handleDeleteGroup removes every node, edge, and episode belonging to one
// group, leaving all other groups untouched.
func (a *API) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")

	if err := a.svc.DeleteGroup(r.Context(), groupID); err != nil {
		a.log.ErrorContext(r.Context(), "failed to delete group", logger.Error(err), logger.GroupID(groupID))
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Error deleting group: %v", err))
		return
	}

	respondJSON(w, http.StatusOK, success(fmt.Sprintf("Group with ID %s deleted successfully", groupID)))
}
