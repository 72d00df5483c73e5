package memory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/engram/internal/graph"
	"github.com/dmitrymomot/engram/pkg/embeddings"
	"github.com/dmitrymomot/engram/pkg/llm"
)

// fakeStore implements GraphStore with overridable behavior per method and
// records the order of calls.
type fakeStore struct {
	mu    sync.Mutex
	calls []string

	recentEpisodes func(groupID string, reference time.Time, limit int) ([]graph.EpisodeNode, error)
	saveEntities   func(nodes []graph.EntityNode) ([]graph.EntityNode, error)
	saveEdge       func(edge graph.EntityEdge, episodeUUID string) (graph.EntityEdge, error)
	fulltextNodes  func(groupIDs []string, query string, limit int) ([]graph.ScoredNode, error)
	similarNodes   func(groupIDs []string, query embeddings.Vector, limit int, minScore float64) ([]graph.ScoredNode, error)
	fulltextEdges  func(groupIDs []string, query string, limit int) ([]graph.ScoredEdge, error)
	similarEdges   func(groupIDs []string, query embeddings.Vector, limit int, minScore float64) ([]graph.ScoredEdge, error)
	edgeDistances  func(centerUUID string, entityUUIDs []string) (map[string]int, error)

	clearErr error
	buildErr error

	savedEpisode  graph.EpisodeNode
	savedMentions []string
	savedEdges    []graph.EntityEdge
}

func (f *fakeStore) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeStore) callNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

func (f *fakeStore) SaveEpisode(_ context.Context, ep graph.EpisodeNode) error {
	f.record("SaveEpisode")
	f.savedEpisode = ep
	return nil
}

func (f *fakeStore) RecentEpisodes(_ context.Context, groupID string, reference time.Time, limit int) ([]graph.EpisodeNode, error) {
	f.record("RecentEpisodes")
	if f.recentEpisodes != nil {
		return f.recentEpisodes(groupID, reference, limit)
	}
	return nil, nil
}

func (f *fakeStore) EpisodeByUUID(_ context.Context, uuid string) (graph.EpisodeNode, error) {
	f.record("EpisodeByUUID")
	return graph.EpisodeNode{UUID: uuid}, nil
}

func (f *fakeStore) DeleteEpisode(_ context.Context, _ string) error {
	f.record("DeleteEpisode")
	return nil
}

func (f *fakeStore) SaveEntities(_ context.Context, nodes []graph.EntityNode) ([]graph.EntityNode, error) {
	f.record("SaveEntities")
	if f.saveEntities != nil {
		return f.saveEntities(nodes)
	}
	return nodes, nil
}

func (f *fakeStore) SaveEdge(_ context.Context, edge graph.EntityEdge, episodeUUID string) (graph.EntityEdge, error) {
	f.record("SaveEdge")
	if f.saveEdge != nil {
		return f.saveEdge(edge, episodeUUID)
	}
	f.savedEdges = append(f.savedEdges, edge)
	return edge, nil
}

func (f *fakeStore) SaveMentions(_ context.Context, _ string, entityUUIDs []string) error {
	f.record("SaveMentions")
	f.savedMentions = entityUUIDs
	return nil
}

func (f *fakeStore) EntityEdgeByUUID(_ context.Context, uuid string) (graph.EntityEdge, error) {
	f.record("EntityEdgeByUUID")
	return graph.EntityEdge{UUID: uuid}, nil
}

func (f *fakeStore) DeleteEntityEdge(_ context.Context, _ string) error {
	f.record("DeleteEntityEdge")
	return nil
}

func (f *fakeStore) FulltextNodes(_ context.Context, groupIDs []string, query string, limit int) ([]graph.ScoredNode, error) {
	f.record("FulltextNodes")
	if f.fulltextNodes != nil {
		return f.fulltextNodes(groupIDs, query, limit)
	}
	return nil, nil
}

func (f *fakeStore) FulltextEdges(_ context.Context, groupIDs []string, query string, limit int) ([]graph.ScoredEdge, error) {
	f.record("FulltextEdges")
	if f.fulltextEdges != nil {
		return f.fulltextEdges(groupIDs, query, limit)
	}
	return nil, nil
}

func (f *fakeStore) SimilarNodes(_ context.Context, groupIDs []string, query embeddings.Vector, limit int, minScore float64) ([]graph.ScoredNode, error) {
	f.record("SimilarNodes")
	if f.similarNodes != nil {
		return f.similarNodes(groupIDs, query, limit, minScore)
	}
	return nil, nil
}

func (f *fakeStore) SimilarEdges(_ context.Context, groupIDs []string, query embeddings.Vector, limit int, minScore float64) ([]graph.ScoredEdge, error) {
	f.record("SimilarEdges")
	if f.similarEdges != nil {
		return f.similarEdges(groupIDs, query, limit, minScore)
	}
	return nil, nil
}

func (f *fakeStore) EdgeDistances(_ context.Context, centerUUID string, entityUUIDs []string) (map[string]int, error) {
	f.record("EdgeDistances")
	if f.edgeDistances != nil {
		return f.edgeDistances(centerUUID, entityUUIDs)
	}
	return map[string]int{}, nil
}

func (f *fakeStore) DeleteGroup(_ context.Context, _ string) error {
	f.record("DeleteGroup")
	return nil
}

func (f *fakeStore) ClearGraph(context.Context) error {
	f.record("ClearGraph")
	return f.clearErr
}

func (f *fakeStore) BuildIndices(context.Context) error {
	f.record("BuildIndices")
	return f.buildErr
}

func (f *fakeStore) Ping(context.Context) error {
	f.record("Ping")
	return nil
}

type fakeLLM struct {
	result extractionResult
	err    error

	gotMessages []llm.Message
}

func (f *fakeLLM) CompleteJSON(_ context.Context, req llm.Request, out any) error {
	f.gotMessages = req.Messages
	if f.err != nil {
		return f.err
	}
	*(out.(*extractionResult)) = f.result
	return nil
}

type fakeEmbedder struct {
	batchErr error
	embedErr error
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) (embeddings.Vector, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return embeddings.Vector{1, 0}, nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([]embeddings.Vector, error) {
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := make([]embeddings.Vector, len(texts))
	for i := range texts {
		out[i] = embeddings.Vector{float64(i + 1), 0}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return 2 }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(store *fakeStore, completions *fakeLLM, embedder *fakeEmbedder, cfg Config) *Service {
	if cfg.DefaultGroupID == "" {
		cfg.DefaultGroupID = "default"
	}
	return NewService(store, completions, embedder, cfg, testLogger())
}

func TestAddEpisode(t *testing.T) {
	t.Parallel()

	t.Run("full pipeline persists episode, entities and facts", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{
			saveEntities: func(nodes []graph.EntityNode) ([]graph.EntityNode, error) {
				out := slices.Clone(nodes)
				for i := range out {
					if out[i].Name == "Jane Doe" {
						// Simulate a dedup hit on an existing entity.
						out[i].UUID = "canonical-jane"
					}
				}
				return out, nil
			},
		}
		completions := &fakeLLM{
			result: extractionResult{
				Entities: []extractedEntity{
					{Name: "Jane Doe", Summary: "An engineer."},
					{Name: "Acme Corp", Summary: "An employer."},
				},
				Facts: []extractedFact{{
					SourceEntity: "jane doe",
					TargetEntity: "Acme Corp",
					Relation:     "WORKS_AT",
					Fact:         "Jane Doe works at Acme Corp",
				}},
			},
		}
		svc := newTestService(store, completions, &fakeEmbedder{}, Config{})

		reference := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
		result, err := svc.AddEpisode(context.Background(), EpisodeParams{
			Name:          "meeting notes",
			Content:       "Jane Doe said she works at Acme Corp.",
			ReferenceTime: reference,
		})
		require.NoError(t, err)

		assert.Equal(t, []string{
			"RecentEpisodes", "SaveEpisode", "SaveEntities", "SaveMentions", "SaveEdge",
		}, store.callNames())

		// Defaults applied at build time.
		assert.NotEmpty(t, result.Episode.UUID)
		assert.Equal(t, "default", result.Episode.GroupID)
		assert.Equal(t, graph.SourceText, result.Episode.Source)
		assert.Equal(t, reference, result.Episode.ValidAt)
		assert.Equal(t, result.Episode, store.savedEpisode)

		require.Len(t, result.Nodes, 2)
		assert.Equal(t, "canonical-jane", result.Nodes[0].UUID)
		assert.NotEmpty(t, result.Nodes[0].NameEmbedding)
		assert.ElementsMatch(t, []string{result.Nodes[0].UUID, result.Nodes[1].UUID}, store.savedMentions)

		// Edge endpoints resolve to canonical entity uuids by normalized name.
		require.Len(t, result.Edges, 1)
		edge := result.Edges[0]
		assert.Equal(t, "canonical-jane", edge.SourceNodeUUID)
		assert.Equal(t, result.Nodes[1].UUID, edge.TargetNodeUUID)
		assert.Equal(t, "WORKS_AT", edge.Name)
		assert.NotEmpty(t, edge.FactEmbedding)
		assert.Equal(t, []string{result.Episode.UUID}, edge.Episodes)
		require.NotNil(t, edge.ValidAt)
		assert.Equal(t, reference, *edge.ValidAt)
	})

	t.Run("empty content is rejected", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{}
		svc := newTestService(store, &fakeLLM{}, &fakeEmbedder{}, Config{})

		_, err := svc.AddEpisode(context.Background(), EpisodeParams{Content: "   "})
		assert.ErrorIs(t, err, ErrEmptyContent)
		assert.Empty(t, store.callNames())
	})

	t.Run("extraction failure writes nothing", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{}
		svc := newTestService(store, &fakeLLM{err: errors.New("model unavailable")}, &fakeEmbedder{}, Config{})

		_, err := svc.AddEpisode(context.Background(), EpisodeParams{Content: "some content"})
		assert.ErrorIs(t, err, ErrExtractionFailed)
		assert.Equal(t, []string{"RecentEpisodes"}, store.callNames())
	})

	t.Run("embedding failure writes nothing", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{}
		completions := &fakeLLM{
			result: extractionResult{Entities: []extractedEntity{{Name: "Jane"}}},
		}
		svc := newTestService(store, completions, &fakeEmbedder{batchErr: errors.New("quota")}, Config{})

		_, err := svc.AddEpisode(context.Background(), EpisodeParams{Content: "some content"})
		assert.ErrorIs(t, err, ErrEmbeddingFailed)
		assert.Equal(t, []string{"RecentEpisodes"}, store.callNames())
	})

	t.Run("facts referencing unknown entities are skipped", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{}
		completions := &fakeLLM{
			result: extractionResult{
				Entities: []extractedEntity{{Name: "Jane Doe"}},
				Facts: []extractedFact{{
					SourceEntity: "Jane Doe",
					TargetEntity: "Nobody Extracted",
					Relation:     "KNOWS",
					Fact:         "Jane knows someone",
				}},
			},
		}
		svc := newTestService(store, completions, &fakeEmbedder{}, Config{})

		result, err := svc.AddEpisode(context.Background(), EpisodeParams{Content: "some content"})
		require.NoError(t, err)
		assert.Empty(t, result.Edges)
		assert.NotContains(t, store.callNames(), "SaveEdge")
	})

	t.Run("duplicate extracted entities collapse", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{}
		completions := &fakeLLM{
			result: extractionResult{
				Entities: []extractedEntity{
					{Name: "Jane Doe"},
					{Name: "jane  doe"},
					{Name: "   "},
				},
			},
		}
		svc := newTestService(store, completions, &fakeEmbedder{}, Config{})

		result, err := svc.AddEpisode(context.Background(), EpisodeParams{Content: "some content"})
		require.NoError(t, err)
		require.Len(t, result.Nodes, 1)
		assert.Equal(t, "Jane Doe", result.Nodes[0].Name)
	})
}

func TestAddEpisode_CustomEntities(t *testing.T) {
	t.Parallel()

	extraction := extractionResult{
		Entities: []extractedEntity{
			{Name: "Dark Mode", Type: EntityTypePreference, Attributes: map[string]any{"category": "UI"}},
			{Name: "Gizmo", Type: "Gadget"},
		},
	}

	t.Run("valid types become labels and attributes", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{}
		svc := newTestService(store, &fakeLLM{result: extraction}, &fakeEmbedder{}, Config{UseCustomEntities: true})

		result, err := svc.AddEpisode(context.Background(), EpisodeParams{Content: "some content"})
		require.NoError(t, err)
		require.Len(t, result.Nodes, 2)

		assert.Equal(t, []string{EntityTypePreference}, result.Nodes[0].Labels)
		assert.Equal(t, map[string]any{"category": "UI"}, result.Nodes[0].Attributes)

		// Unknown types are ignored rather than stored.
		assert.Empty(t, result.Nodes[1].Labels)
		assert.Empty(t, result.Nodes[1].Attributes)
	})

	t.Run("disabled toggle drops all typing", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{}
		svc := newTestService(store, &fakeLLM{result: extraction}, &fakeEmbedder{}, Config{UseCustomEntities: false})

		result, err := svc.AddEpisode(context.Background(), EpisodeParams{Content: "some content"})
		require.NoError(t, err)
		require.Len(t, result.Nodes, 2)
		assert.Empty(t, result.Nodes[0].Labels)
		assert.Empty(t, result.Nodes[0].Attributes)
	})
}

func TestRetrieveEpisodes(t *testing.T) {
	t.Parallel()

	var gotGroup string
	var gotLimit int
	var gotReference time.Time
	store := &fakeStore{
		recentEpisodes: func(groupID string, reference time.Time, limit int) ([]graph.EpisodeNode, error) {
			gotGroup, gotReference, gotLimit = groupID, reference, limit
			return []graph.EpisodeNode{{UUID: "ep-1"}}, nil
		},
	}
	svc := newTestService(store, &fakeLLM{}, &fakeEmbedder{}, Config{})

	episodes, err := svc.RetrieveEpisodes(context.Background(), "", 0, time.Time{})
	require.NoError(t, err)
	require.Len(t, episodes, 1)

	assert.Equal(t, "default", gotGroup)
	assert.Equal(t, 10, gotLimit)
	assert.WithinDuration(t, time.Now().UTC(), gotReference, time.Minute)
}

func TestClear(t *testing.T) {
	t.Parallel()

	t.Run("wipes and rebuilds indices", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{}
		svc := newTestService(store, &fakeLLM{}, &fakeEmbedder{}, Config{})

		require.NoError(t, svc.Clear(context.Background()))
		assert.Equal(t, []string{"ClearGraph", "BuildIndices"}, store.callNames())
	})

	t.Run("index rebuild failure surfaces", func(t *testing.T) {
		t.Parallel()

		store := &fakeStore{buildErr: errors.New("ddl rejected")}
		svc := newTestService(store, &fakeLLM{}, &fakeEmbedder{}, Config{})

		err := svc.Clear(context.Background())
		assert.ErrorIs(t, err, ErrStorageFailed)
	})
}
