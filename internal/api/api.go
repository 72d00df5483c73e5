package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/engram/internal/graph"
	"github.com/dmitrymomot/engram/internal/memory"
	"github.com/dmitrymomot/engram/pkg/groupqueue"
)

// MemoryService defines the memory operations the HTTP transport exposes.
type MemoryService interface {
	AddEpisode(ctx context.Context, params memory.EpisodeParams) (*memory.AddEpisodeResult, error)
	RetrieveEpisodes(ctx context.Context, groupID string, lastN int, reference time.Time) ([]graph.EpisodeNode, error)
	DeleteEpisode(ctx context.Context, uuid string) error
	EntityEdge(ctx context.Context, uuid string) (graph.EntityEdge, error)
	DeleteEntityEdge(ctx context.Context, uuid string) error
	DeleteGroup(ctx context.Context, groupID string) error
	SearchNodes(ctx context.Context, params memory.NodeSearchParams) ([]graph.ScoredNode, error)
	SearchFacts(ctx context.Context, params memory.FactSearchParams) ([]graph.ScoredEdge, error)
	Clear(ctx context.Context) error
	Ready(ctx context.Context) error
}

// Config carries the settings the transport needs for group resolution and
// the status endpoint's configuration echo. Secrets never belong here.
type Config struct {
	DefaultGroupID string
	Model          string
	SmallModel     string
	Temperature    float64
	CustomEntities bool
	SemaphoreLimit int
}

// API holds the handler dependencies.
type API struct {
	svc    MemoryService
	queues *groupqueue.Registry[*memory.AddEpisodeResult]
	cfg    Config
	log    *slog.Logger
}

// New assembles the HTTP transport. The registry must be the same instance
// the rest of the process shuts down on exit, so ordering guarantees span
// every submitter.
func New(svc MemoryService, queues *groupqueue.Registry[*memory.AddEpisodeResult], cfg Config, log *slog.Logger) *API {
	if log == nil {
		log = slog.Default()
	}
	return &API{
		svc:    svc,
		queues: queues,
		cfg:    cfg,
		log:    log,
	}
}

// group resolves the effective group for a request, falling back to the
// configured default when the caller did not supply one.
func (a *API) group(requested string) string {
	if requested != "" {
		return requested
	}
	return a.cfg.DefaultGroupID
}
