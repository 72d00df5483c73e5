package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/engram/internal/graph"
	"github.com/dmitrymomot/engram/pkg/embeddings"
	"github.com/dmitrymomot/engram/pkg/llm"
)

// How many prior episodes of the same group are included in the extraction
// prompt as context for reference resolution.
const promptEpisodes = 3

// GraphStore defines the graph operations needed by the memory service.
// Implemented by graph.Store.
type GraphStore interface {
	SaveEpisode(ctx context.Context, ep graph.EpisodeNode) error
	RecentEpisodes(ctx context.Context, groupID string, reference time.Time, limit int) ([]graph.EpisodeNode, error)
	EpisodeByUUID(ctx context.Context, uuid string) (graph.EpisodeNode, error)
	DeleteEpisode(ctx context.Context, uuid string) error
	SaveEntities(ctx context.Context, nodes []graph.EntityNode) ([]graph.EntityNode, error)
	SaveEdge(ctx context.Context, edge graph.EntityEdge, episodeUUID string) (graph.EntityEdge, error)
	SaveMentions(ctx context.Context, episodeUUID string, entityUUIDs []string) error
	EntityEdgeByUUID(ctx context.Context, uuid string) (graph.EntityEdge, error)
	DeleteEntityEdge(ctx context.Context, uuid string) error
	FulltextNodes(ctx context.Context, groupIDs []string, query string, limit int) ([]graph.ScoredNode, error)
	FulltextEdges(ctx context.Context, groupIDs []string, query string, limit int) ([]graph.ScoredEdge, error)
	SimilarNodes(ctx context.Context, groupIDs []string, query embeddings.Vector, limit int, minScore float64) ([]graph.ScoredNode, error)
	SimilarEdges(ctx context.Context, groupIDs []string, query embeddings.Vector, limit int, minScore float64) ([]graph.ScoredEdge, error)
	EdgeDistances(ctx context.Context, centerUUID string, entityUUIDs []string) (map[string]int, error)
	DeleteGroup(ctx context.Context, groupID string) error
	ClearGraph(ctx context.Context) error
	BuildIndices(ctx context.Context) error
	Ping(ctx context.Context) error
}

// CompletionClient is the slice of the llm client the service uses.
type CompletionClient interface {
	CompleteJSON(ctx context.Context, req llm.Request, out any) error
}

// Config holds the service's behavioral settings.
type Config struct {
	// DefaultGroupID is used when a request carries no group.
	DefaultGroupID string

	// UseCustomEntities enables typed entity extraction
	// (Preference, Procedure, Requirement).
	UseCustomEntities bool

	// SemaphoreLimit bounds concurrent pipeline runs across all groups.
	// Values below 1 fall back to 1.
	SemaphoreLimit int
}

// Service runs the ingestion and retrieval pipelines.
type Service struct {
	store          GraphStore
	llm            CompletionClient
	embedder       embeddings.Provider
	log            *slog.Logger
	sem            chan struct{}
	defaultGroupID string
	customEntities bool
}

// NewService wires the pipeline dependencies together.
func NewService(store GraphStore, completions CompletionClient, embedder embeddings.Provider, cfg Config, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	limit := cfg.SemaphoreLimit
	if limit < 1 {
		limit = 1
	}
	return &Service{
		store:          store,
		llm:            completions,
		embedder:       embedder,
		log:            log,
		sem:            make(chan struct{}, limit),
		defaultGroupID: cfg.DefaultGroupID,
		customEntities: cfg.UseCustomEntities,
	}
}

// EpisodeParams describes one episode to ingest. ReferenceTime is the
// episode's observation time and must be captured by the caller when the
// work is constructed, not when it eventually runs.
type EpisodeParams struct {
	UUID              string
	Name              string
	GroupID           string
	Content           string
	Source            string
	SourceDescription string
	ReferenceTime     time.Time
}

// AddEpisodeResult reports what an ingested episode produced.
type AddEpisodeResult struct {
	Episode graph.EpisodeNode
	Nodes   []graph.EntityNode
	Edges   []graph.EntityEdge
}

// AddEpisode runs the full ingestion pipeline for one episode: extract
// entities and facts, embed them, and persist everything with the episode as
// provenance. The episode is only written once extraction and embedding have
// succeeded, so a failed pipeline leaves no partial episode behind.
func (s *Service) AddEpisode(ctx context.Context, params EpisodeParams) (*AddEpisodeResult, error) {
	if strings.TrimSpace(params.Content) == "" {
		return nil, ErrEmptyContent
	}
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	episode := s.buildEpisode(params)
	log := s.log.With(
		slog.String("episode_uuid", episode.UUID),
		slog.String("group_id", episode.GroupID),
	)
	log.InfoContext(ctx, "processing episode", slog.String("name", episode.Name))

	// Fetch context before the episode itself is stored, so the prompt never
	// contains the episode being processed.
	prior, err := s.store.RecentEpisodes(ctx, episode.GroupID, episode.ValidAt, promptEpisodes)
	if err != nil {
		return nil, errors.Join(ErrStorageFailed, err)
	}

	extracted, err := s.extract(ctx, episode, prior)
	if err != nil {
		return nil, err
	}

	nodes, facts := s.buildNodes(episode, extracted)
	if err := s.embed(ctx, nodes, facts); err != nil {
		return nil, err
	}

	if err := s.store.SaveEpisode(ctx, episode); err != nil {
		return nil, errors.Join(ErrStorageFailed, err)
	}

	saved, err := s.store.SaveEntities(ctx, nodes)
	if err != nil {
		return nil, errors.Join(ErrStorageFailed, err)
	}

	entityUUIDs := make([]string, len(saved))
	byName := make(map[string]string, len(saved))
	for i, node := range saved {
		entityUUIDs[i] = node.UUID
		byName[graph.NormalizeName(node.Name)] = node.UUID
	}
	if err := s.store.SaveMentions(ctx, episode.UUID, entityUUIDs); err != nil {
		return nil, errors.Join(ErrStorageFailed, err)
	}

	edges := make([]graph.EntityEdge, 0, len(facts))
	for _, fact := range facts {
		edge, ok := s.buildEdge(episode, fact, byName)
		if !ok {
			log.WarnContext(ctx, "fact references an unextracted entity, skipping",
				slog.String("source", fact.SourceEntity),
				slog.String("target", fact.TargetEntity),
			)
			continue
		}
		stored, err := s.store.SaveEdge(ctx, edge, episode.UUID)
		if err != nil {
			return nil, errors.Join(ErrStorageFailed, err)
		}
		edges = append(edges, stored)
	}

	log.InfoContext(ctx, "episode processed",
		slog.Int("entities", len(saved)),
		slog.Int("facts", len(edges)),
	)
	return &AddEpisodeResult{Episode: episode, Nodes: saved, Edges: edges}, nil
}

// RetrieveEpisodes returns up to lastN episodes of the group observed at or
// before the reference time, oldest first. A zero reference means now.
func (s *Service) RetrieveEpisodes(ctx context.Context, groupID string, lastN int, reference time.Time) ([]graph.EpisodeNode, error) {
	if groupID == "" {
		groupID = s.defaultGroupID
	}
	if lastN < 1 {
		lastN = 10
	}
	if reference.IsZero() {
		reference = time.Now().UTC()
	}
	episodes, err := s.store.RecentEpisodes(ctx, groupID, reference, lastN)
	if err != nil {
		return nil, errors.Join(ErrStorageFailed, err)
	}
	return episodes, nil
}

// DeleteEpisode removes an episode. Missing episodes surface
// graph.ErrNotFound unchanged so transports can map them.
func (s *Service) DeleteEpisode(ctx context.Context, uuid string) error {
	return s.store.DeleteEpisode(ctx, uuid)
}

// EntityEdge fetches a single fact by uuid.
func (s *Service) EntityEdge(ctx context.Context, uuid string) (graph.EntityEdge, error) {
	return s.store.EntityEdgeByUUID(ctx, uuid)
}

// DeleteEntityEdge removes a single fact by uuid.
func (s *Service) DeleteEntityEdge(ctx context.Context, uuid string) error {
	return s.store.DeleteEntityEdge(ctx, uuid)
}

// DeleteGroup removes every node and fact belonging to a group.
func (s *Service) DeleteGroup(ctx context.Context, groupID string) error {
	if groupID == "" {
		groupID = s.defaultGroupID
	}
	if err := s.store.DeleteGroup(ctx, groupID); err != nil {
		return errors.Join(ErrStorageFailed, err)
	}
	return nil
}

// Clear wipes the whole graph and rebuilds the indices.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.store.ClearGraph(ctx); err != nil {
		return errors.Join(ErrStorageFailed, err)
	}
	if err := s.store.BuildIndices(ctx); err != nil {
		return errors.Join(ErrStorageFailed, err)
	}
	return nil
}

// Ready reports whether the graph database answers queries.
func (s *Service) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) release() { <-s.sem }

func (s *Service) buildEpisode(params EpisodeParams) graph.EpisodeNode {
	id := params.UUID
	if id == "" {
		id = uuid.NewString()
	}
	groupID := params.GroupID
	if groupID == "" {
		groupID = s.defaultGroupID
	}
	source := params.Source
	switch source {
	case graph.SourceText, graph.SourceMessage, graph.SourceJSON:
	default:
		source = graph.SourceText
	}
	validAt := params.ReferenceTime
	if validAt.IsZero() {
		validAt = time.Now().UTC()
	}
	return graph.EpisodeNode{
		UUID:              id,
		Name:              params.Name,
		GroupID:           groupID,
		Content:           params.Content,
		Source:            source,
		SourceDescription: params.SourceDescription,
		CreatedAt:         time.Now().UTC(),
		ValidAt:           validAt.UTC(),
	}
}

// buildNodes converts extraction output into entity nodes, dropping blank
// names and collapsing duplicates by normalized name.
func (s *Service) buildNodes(episode graph.EpisodeNode, extracted extractionResult) ([]graph.EntityNode, []extractedFact) {
	nodes := make([]graph.EntityNode, 0, len(extracted.Entities))
	seen := make(map[string]bool, len(extracted.Entities))
	for _, entity := range extracted.Entities {
		name := strings.TrimSpace(entity.Name)
		if name == "" || seen[graph.NormalizeName(name)] {
			continue
		}
		seen[graph.NormalizeName(name)] = true

		node := graph.EntityNode{
			UUID:      uuid.NewString(),
			Name:      name,
			GroupID:   episode.GroupID,
			Summary:   strings.TrimSpace(entity.Summary),
			CreatedAt: time.Now().UTC(),
		}
		if s.customEntities && ValidEntityType(entity.Type) {
			node.Labels = []string{entity.Type}
			node.Attributes = entity.Attributes
		}
		nodes = append(nodes, node)
	}

	facts := make([]extractedFact, 0, len(extracted.Facts))
	for _, fact := range extracted.Facts {
		if strings.TrimSpace(fact.SourceEntity) == "" || strings.TrimSpace(fact.TargetEntity) == "" {
			continue
		}
		if strings.TrimSpace(fact.Fact) == "" {
			continue
		}
		facts = append(facts, fact)
	}
	return nodes, facts
}

// embed fills in name and fact embeddings with a single batch call.
func (s *Service) embed(ctx context.Context, nodes []graph.EntityNode, facts []extractedFact) error {
	if len(nodes) == 0 && len(facts) == 0 {
		return nil
	}
	texts := make([]string, 0, len(nodes)+len(facts))
	for _, node := range nodes {
		texts = append(texts, node.Name)
	}
	for _, fact := range facts {
		texts = append(texts, fact.Fact)
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return errors.Join(ErrEmbeddingFailed, err)
	}
	if len(vectors) != len(texts) {
		return errors.Join(ErrEmbeddingFailed,
			fmt.Errorf("got %d vectors for %d texts", len(vectors), len(texts)))
	}

	for i := range nodes {
		nodes[i].NameEmbedding = vectors[i]
	}
	for i := range facts {
		facts[i].embedding = vectors[len(nodes)+i]
	}
	return nil
}

func (s *Service) buildEdge(episode graph.EpisodeNode, fact extractedFact, byName map[string]string) (graph.EntityEdge, bool) {
	sourceUUID, ok := byName[graph.NormalizeName(fact.SourceEntity)]
	if !ok {
		return graph.EntityEdge{}, false
	}
	targetUUID, ok := byName[graph.NormalizeName(fact.TargetEntity)]
	if !ok {
		return graph.EntityEdge{}, false
	}

	name := strings.TrimSpace(fact.Relation)
	if name == "" {
		name = "RELATES_TO"
	}
	validAt := episode.ValidAt
	return graph.EntityEdge{
		UUID:           uuid.NewString(),
		GroupID:        episode.GroupID,
		SourceNodeUUID: sourceUUID,
		TargetNodeUUID: targetUUID,
		Name:           name,
		Fact:           strings.TrimSpace(fact.Fact),
		FactEmbedding:  fact.embedding,
		Episodes:       []string{episode.UUID},
		CreatedAt:      time.Now().UTC(),
		ValidAt:        &validAt,
	}, true
}
