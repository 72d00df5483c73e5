package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/engram/pkg/clientip"
	"github.com/dmitrymomot/engram/pkg/requestid"
)

// Router assembles the HTTP surface: liveness at the root, everything else
// under /api/v1.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(requestid.Middleware)
	r.Use(clientip.Middleware)
	r.Use(requestLogger(a.log))
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/healthcheck", a.handleHealthcheck)

	r.Route("/api/v1", func(v1 chi.Router) {
		v1.Post("/memory", a.handleAddMemory)
		v1.Post("/memory/sync", a.handleAddMemorySync)
		v1.Get("/episodes/{groupID}", a.handleGetEpisodes)
		v1.Delete("/episode/{uuid}", a.handleDeleteEpisode)
		v1.Get("/entity-edge/{uuid}", a.handleGetEntityEdge)
		v1.Delete("/entity-edge/{uuid}", a.handleDeleteEntityEdge)
		v1.Delete("/group/{groupID}", a.handleDeleteGroup)
		v1.Get("/search/nodes", a.handleSearchNodes)
		v1.Get("/search/facts", a.handleSearchFacts)
		v1.Get("/status", a.handleStatus)
		v1.Post("/clear", a.handleClear)
	})

	return r
}

// requestLogger emits one structured log line per completed request. The
// request ID lands on the line through the logger's context extractors.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.InfoContext(r.Context(), "request completed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", ww.Status()),
					slog.Duration("duration", time.Since(start)),
					slog.String("ip", clientip.FromContext(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
