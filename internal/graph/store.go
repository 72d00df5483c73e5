package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dmitrymomot/engram/pkg/embeddings"
)

// Store exposes the graph operations the memory pipeline needs, expressed as
// backend-agnostic Cypher. The few places where the backends genuinely
// differ (fulltext procedures, vector similarity) branch on the driver's
// provider.
type Store struct {
	driver Driver
}

func NewStore(driver Driver) *Store {
	return &Store{driver: driver}
}

// Ping verifies the database answers queries.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.driver.Query(ctx, "RETURN 1 AS ok", nil)
	return err
}

const episodeReturn = `e.uuid AS uuid, e.name AS name, e.group_id AS group_id, e.content AS content,
e.source AS source, e.source_description AS source_description,
e.created_at AS created_at, e.valid_at AS valid_at`

// SaveEpisode upserts an episode node keyed by uuid.
func (s *Store) SaveEpisode(ctx context.Context, ep EpisodeNode) error {
	_, err := s.driver.Query(ctx, `
MERGE (e:Episodic {uuid: $uuid})
SET e.name = $name, e.group_id = $group_id, e.content = $content,
    e.source = $source, e.source_description = $source_description,
    e.created_at = $created_at, e.valid_at = $valid_at`,
		map[string]any{
			"uuid":               ep.UUID,
			"name":               ep.Name,
			"group_id":           ep.GroupID,
			"content":            ep.Content,
			"source":             ep.Source,
			"source_description": ep.SourceDescription,
			"created_at":         timeParam(ep.CreatedAt),
			"valid_at":           timeParam(ep.ValidAt),
		})
	return err
}

// RecentEpisodes returns up to limit episodes of a group observed at or
// before the reference time, oldest first.
func (s *Store) RecentEpisodes(ctx context.Context, groupID string, reference time.Time, limit int) ([]EpisodeNode, error) {
	records, err := s.driver.Query(ctx, fmt.Sprintf(`
MATCH (e:Episodic {group_id: $group_id})
WHERE e.valid_at <= $reference
RETURN %s
ORDER BY e.valid_at DESC
LIMIT %d`, episodeReturn, clampLimit(limit)),
		map[string]any{
			"group_id":  groupID,
			"reference": timeParam(reference),
		})
	if err != nil {
		return nil, err
	}

	episodes := make([]EpisodeNode, len(records))
	for i, rec := range records {
		// Reverse into chronological order.
		episodes[len(records)-1-i] = episodeFromRecord(rec)
	}
	return episodes, nil
}

// EpisodeByUUID fetches a single episode or ErrNotFound.
func (s *Store) EpisodeByUUID(ctx context.Context, uuid string) (EpisodeNode, error) {
	records, err := s.driver.Query(ctx, fmt.Sprintf(`
MATCH (e:Episodic {uuid: $uuid})
RETURN %s
LIMIT 1`, episodeReturn),
		map[string]any{"uuid": uuid})
	if err != nil {
		return EpisodeNode{}, err
	}
	if len(records) == 0 {
		return EpisodeNode{}, fmt.Errorf("%w: episode %s", ErrNotFound, uuid)
	}
	return episodeFromRecord(records[0]), nil
}

// DeleteEpisode removes an episode and its mention edges. Deleting a missing
// episode returns ErrNotFound.
func (s *Store) DeleteEpisode(ctx context.Context, uuid string) error {
	if _, err := s.EpisodeByUUID(ctx, uuid); err != nil {
		return err
	}
	_, err := s.driver.Query(ctx,
		"MATCH (e:Episodic {uuid: $uuid}) DETACH DELETE e",
		map[string]any{"uuid": uuid})
	return err
}

// SaveEntities upserts entities deduplicated by normalized name within their
// group. The returned slice carries the canonical uuids: an entity that
// already existed keeps its original uuid regardless of the one proposed.
func (s *Store) SaveEntities(ctx context.Context, nodes []EntityNode) ([]EntityNode, error) {
	saved := make([]EntityNode, 0, len(nodes))
	for _, node := range nodes {
		records, err := s.driver.Query(ctx, `
MERGE (n:Entity {group_id: $group_id, name_norm: $name_norm})
ON CREATE SET n.uuid = $uuid, n.name = $name, n.created_at = $created_at
SET n.summary = CASE WHEN $summary = '' THEN coalesce(n.summary, '') ELSE $summary END,
    n.labels = CASE WHEN size($labels) > 0 THEN $labels ELSE coalesce(n.labels, []) END,
    n.attributes = CASE WHEN $attributes = '{}' THEN coalesce(n.attributes, '{}') ELSE $attributes END,
    n.name_embedding = $embedding
RETURN n.uuid AS uuid`,
			map[string]any{
				"group_id":   node.GroupID,
				"name_norm":  NormalizeName(node.Name),
				"uuid":       node.UUID,
				"name":       node.Name,
				"created_at": timeParam(node.CreatedAt),
				"summary":    node.Summary,
				"labels":     customLabels(node.Labels),
				"attributes": attributesJSON(node.Attributes),
				"embedding":  []float64(node.NameEmbedding),
			})
		if err != nil {
			return nil, err
		}
		if len(records) > 0 {
			node.UUID = asString(records[0]["uuid"])
		}
		saved = append(saved, node)
	}
	return saved, nil
}

// SaveEdge upserts a fact between two saved entities, deduplicated by
// normalized relation name per entity pair. The mentioning episode is
// appended to the edge's provenance list, and the first observation time is
// kept. Returns the canonical edge uuid.
func (s *Store) SaveEdge(ctx context.Context, edge EntityEdge, episodeUUID string) (EntityEdge, error) {
	records, err := s.driver.Query(ctx, `
MATCH (a:Entity {uuid: $source_uuid}), (b:Entity {uuid: $target_uuid})
MERGE (a)-[r:RELATES_TO {group_id: $group_id, name_norm: $name_norm}]->(b)
ON CREATE SET r.uuid = $uuid, r.name = $name, r.created_at = $created_at, r.episodes = []
SET r.fact = $fact,
    r.fact_embedding = $embedding,
    r.valid_at = coalesce(r.valid_at, $valid_at),
    r.episodes = CASE WHEN $episode IN coalesce(r.episodes, []) THEN r.episodes
                 ELSE coalesce(r.episodes, []) + $episode END
RETURN r.uuid AS uuid`,
		map[string]any{
			"source_uuid": edge.SourceNodeUUID,
			"target_uuid": edge.TargetNodeUUID,
			"group_id":    edge.GroupID,
			"name_norm":   NormalizeName(edge.Name),
			"uuid":        edge.UUID,
			"name":        edge.Name,
			"fact":        edge.Fact,
			"created_at":  timeParam(edge.CreatedAt),
			"valid_at":    timePtrParam(edge.ValidAt),
			"embedding":   []float64(edge.FactEmbedding),
			"episode":     episodeUUID,
		})
	if err != nil {
		return EntityEdge{}, err
	}
	if len(records) == 0 {
		return EntityEdge{}, fmt.Errorf("%w: edge endpoints %s -> %s",
			ErrNotFound, edge.SourceNodeUUID, edge.TargetNodeUUID)
	}
	edge.UUID = asString(records[0]["uuid"])
	return edge, nil
}

// SaveMentions links an episode to every entity it mentions.
func (s *Store) SaveMentions(ctx context.Context, episodeUUID string, entityUUIDs []string) error {
	if len(entityUUIDs) == 0 {
		return nil
	}
	_, err := s.driver.Query(ctx, `
MATCH (e:Episodic {uuid: $episode_uuid})
MATCH (n:Entity) WHERE n.uuid IN $entity_uuids
MERGE (e)-[:MENTIONS]->(n)`,
		map[string]any{
			"episode_uuid": episodeUUID,
			"entity_uuids": entityUUIDs,
		})
	return err
}

const entityReturn = `n.uuid AS uuid, n.name AS name, n.group_id AS group_id, n.summary AS summary,
n.labels AS labels, n.created_at AS created_at, n.attributes AS attributes`

const edgeReturn = `r.uuid AS uuid, r.group_id AS group_id, r.name AS name, r.fact AS fact,
r.created_at AS created_at, r.valid_at AS valid_at, r.invalid_at AS invalid_at,
r.expired_at AS expired_at, r.episodes AS episodes,
a.uuid AS source_uuid, b.uuid AS target_uuid`

// EntityEdgeByUUID fetches a single fact or ErrNotFound.
func (s *Store) EntityEdgeByUUID(ctx context.Context, uuid string) (EntityEdge, error) {
	records, err := s.driver.Query(ctx, fmt.Sprintf(`
MATCH (a:Entity)-[r:RELATES_TO {uuid: $uuid}]->(b:Entity)
RETURN %s
LIMIT 1`, edgeReturn),
		map[string]any{"uuid": uuid})
	if err != nil {
		return EntityEdge{}, err
	}
	if len(records) == 0 {
		return EntityEdge{}, fmt.Errorf("%w: entity edge %s", ErrNotFound, uuid)
	}
	return edgeFromRecord(records[0]), nil
}

// DeleteEntityEdge removes a fact. Deleting a missing edge returns
// ErrNotFound.
func (s *Store) DeleteEntityEdge(ctx context.Context, uuid string) error {
	if _, err := s.EntityEdgeByUUID(ctx, uuid); err != nil {
		return err
	}
	_, err := s.driver.Query(ctx,
		"MATCH ()-[r:RELATES_TO {uuid: $uuid}]->() DELETE r",
		map[string]any{"uuid": uuid})
	return err
}

// FulltextNodes runs the keyword leg of a node search. Neo4j uses the
// fulltext index; FalkorDB falls back to a substring scan because it has no
// relationship-safe fulltext syntax shared with the node path.
func (s *Store) FulltextNodes(ctx context.Context, groupIDs []string, query string, limit int) ([]ScoredNode, error) {
	if strings.TrimSpace(query) == "" || len(groupIDs) == 0 {
		return nil, nil
	}

	var (
		records []Record
		err     error
	)
	if s.driver.Provider() == ProviderNeo4j {
		records, err = s.driver.Query(ctx, fmt.Sprintf(`
CALL db.index.fulltext.queryNodes('node_name_and_summary', $query) YIELD node AS n, score
WHERE n.group_id IN $group_ids
RETURN %s, score AS score
LIMIT %d`, entityReturn, clampLimit(limit)),
			map[string]any{
				"query":     luceneSanitize(query),
				"group_ids": groupIDs,
			})
	} else {
		records, err = s.driver.Query(ctx, fmt.Sprintf(`
MATCH (n:Entity)
WHERE n.group_id IN $group_ids
  AND (toLower(n.name) CONTAINS $term OR toLower(coalesce(n.summary, '')) CONTAINS $term)
RETURN %s, 0.0 AS score
ORDER BY n.name
LIMIT %d`, entityReturn, clampLimit(limit)),
			map[string]any{
				"term":      strings.ToLower(query),
				"group_ids": groupIDs,
			})
	}
	if err != nil {
		return nil, err
	}

	nodes := make([]ScoredNode, len(records))
	for i, rec := range records {
		nodes[i] = ScoredNode{EntityNode: entityFromRecord(rec), Score: asFloat(rec["score"])}
	}
	return nodes, nil
}

// FulltextEdges runs the keyword leg of a fact search.
func (s *Store) FulltextEdges(ctx context.Context, groupIDs []string, query string, limit int) ([]ScoredEdge, error) {
	if strings.TrimSpace(query) == "" || len(groupIDs) == 0 {
		return nil, nil
	}

	var (
		records []Record
		err     error
	)
	if s.driver.Provider() == ProviderNeo4j {
		records, err = s.driver.Query(ctx, fmt.Sprintf(`
CALL db.index.fulltext.queryRelationships('edge_name_and_fact', $query) YIELD relationship AS r, score
WHERE r.group_id IN $group_ids
RETURN r.uuid AS uuid, r.group_id AS group_id, r.name AS name, r.fact AS fact,
       r.created_at AS created_at, r.valid_at AS valid_at, r.invalid_at AS invalid_at,
       r.expired_at AS expired_at, r.episodes AS episodes,
       startNode(r).uuid AS source_uuid, endNode(r).uuid AS target_uuid, score AS score
LIMIT %d`, clampLimit(limit)),
			map[string]any{
				"query":     luceneSanitize(query),
				"group_ids": groupIDs,
			})
	} else {
		records, err = s.driver.Query(ctx, fmt.Sprintf(`
MATCH (a:Entity)-[r:RELATES_TO]->(b:Entity)
WHERE r.group_id IN $group_ids
  AND (toLower(r.fact) CONTAINS $term OR toLower(r.name) CONTAINS $term)
RETURN %s, 0.0 AS score
ORDER BY r.created_at DESC
LIMIT %d`, edgeReturn, clampLimit(limit)),
			map[string]any{
				"term":      strings.ToLower(query),
				"group_ids": groupIDs,
			})
	}
	if err != nil {
		return nil, err
	}

	edges := make([]ScoredEdge, len(records))
	for i, rec := range records {
		edges[i] = ScoredEdge{EntityEdge: edgeFromRecord(rec), Score: asFloat(rec["score"])}
	}
	return edges, nil
}

// SimilarNodes runs the embedding leg of a node search. Neo4j scores
// server-side; FalkorDB returns candidate embeddings for client-side
// scoring.
func (s *Store) SimilarNodes(ctx context.Context, groupIDs []string, query embeddings.Vector, limit int, minScore float64) ([]ScoredNode, error) {
	if len(query) == 0 || len(groupIDs) == 0 {
		return nil, nil
	}

	if s.driver.Provider() == ProviderNeo4j {
		records, err := s.driver.Query(ctx, fmt.Sprintf(`
MATCH (n:Entity)
WHERE n.group_id IN $group_ids AND n.name_embedding IS NOT NULL
WITH n, vector.similarity.cosine(n.name_embedding, $embedding) AS score
WHERE score >= $min_score
RETURN %s, score AS score
ORDER BY score DESC
LIMIT %d`, entityReturn, clampLimit(limit)),
			map[string]any{
				"group_ids": groupIDs,
				"embedding": []float64(query),
				"min_score": minScore,
			})
		if err != nil {
			return nil, err
		}
		nodes := make([]ScoredNode, len(records))
		for i, rec := range records {
			nodes[i] = ScoredNode{EntityNode: entityFromRecord(rec), Score: asFloat(rec["score"])}
		}
		return nodes, nil
	}

	records, err := s.driver.Query(ctx, fmt.Sprintf(`
MATCH (n:Entity)
WHERE n.group_id IN $group_ids AND n.name_embedding IS NOT NULL
RETURN %s, n.name_embedding AS embedding`, entityReturn),
		map[string]any{"group_ids": groupIDs})
	if err != nil {
		return nil, err
	}

	nodes := make([]ScoredNode, 0, len(records))
	for _, rec := range records {
		node := entityFromRecord(rec)
		score := embeddings.Cosine(node.NameEmbedding, query)
		if score >= minScore {
			node.NameEmbedding = nil
			nodes = append(nodes, ScoredNode{EntityNode: node, Score: score})
		}
	}
	sortScoredNodes(nodes)
	return trim(nodes, limit), nil
}

// SimilarEdges runs the embedding leg of a fact search.
func (s *Store) SimilarEdges(ctx context.Context, groupIDs []string, query embeddings.Vector, limit int, minScore float64) ([]ScoredEdge, error) {
	if len(query) == 0 || len(groupIDs) == 0 {
		return nil, nil
	}

	if s.driver.Provider() == ProviderNeo4j {
		records, err := s.driver.Query(ctx, fmt.Sprintf(`
MATCH (a:Entity)-[r:RELATES_TO]->(b:Entity)
WHERE r.group_id IN $group_ids AND r.fact_embedding IS NOT NULL
WITH a, r, b, vector.similarity.cosine(r.fact_embedding, $embedding) AS score
WHERE score >= $min_score
RETURN %s, score AS score
ORDER BY score DESC
LIMIT %d`, edgeReturn, clampLimit(limit)),
			map[string]any{
				"group_ids": groupIDs,
				"embedding": []float64(query),
				"min_score": minScore,
			})
		if err != nil {
			return nil, err
		}
		edges := make([]ScoredEdge, len(records))
		for i, rec := range records {
			edges[i] = ScoredEdge{EntityEdge: edgeFromRecord(rec), Score: asFloat(rec["score"])}
		}
		return edges, nil
	}

	records, err := s.driver.Query(ctx, fmt.Sprintf(`
MATCH (a:Entity)-[r:RELATES_TO]->(b:Entity)
WHERE r.group_id IN $group_ids AND r.fact_embedding IS NOT NULL
RETURN %s, r.fact_embedding AS embedding`, edgeReturn),
		map[string]any{"group_ids": groupIDs})
	if err != nil {
		return nil, err
	}

	edges := make([]ScoredEdge, 0, len(records))
	for _, rec := range records {
		edge := edgeFromRecord(rec)
		score := embeddings.Cosine(edge.FactEmbedding, query)
		if score >= minScore {
			edge.FactEmbedding = nil
			edges = append(edges, ScoredEdge{EntityEdge: edge, Score: score})
		}
	}
	sortScoredEdges(edges)
	return trim(edges, limit), nil
}

// EdgeDistances returns the hop count from the center entity to each of the
// given entities, up to three hops. Entities without a path are absent from
// the result.
func (s *Store) EdgeDistances(ctx context.Context, centerUUID string, entityUUIDs []string) (map[string]int, error) {
	if len(entityUUIDs) == 0 {
		return map[string]int{}, nil
	}

	records, err := s.driver.Query(ctx, `
MATCH (c:Entity {uuid: $center_uuid})
MATCH (n:Entity) WHERE n.uuid IN $entity_uuids
MATCH p = shortestPath((c)-[:RELATES_TO*..3]-(n))
RETURN n.uuid AS uuid, length(p) AS distance`,
		map[string]any{
			"center_uuid":  centerUUID,
			"entity_uuids": entityUUIDs,
		})
	if err != nil {
		return nil, err
	}

	distances := make(map[string]int, len(records))
	for _, rec := range records {
		distances[asString(rec["uuid"])] = int(asFloat(rec["distance"]))
	}
	return distances, nil
}

// DeleteGroup removes every node and relationship belonging to a group.
func (s *Store) DeleteGroup(ctx context.Context, groupID string) error {
	_, err := s.driver.Query(ctx,
		"MATCH (n {group_id: $group_id}) DETACH DELETE n",
		map[string]any{"group_id": groupID})
	return err
}

// ClearGraph removes everything.
func (s *Store) ClearGraph(ctx context.Context) error {
	_, err := s.driver.Query(ctx, "MATCH (n) DETACH DELETE n", nil)
	return err
}

func clampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	return limit
}

func customLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if l != "" && l != "Entity" {
			out = append(out, l)
		}
	}
	return out
}

func sortScoredNodes(nodes []ScoredNode) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Score != nodes[j].Score {
			return nodes[i].Score > nodes[j].Score
		}
		return nodes[i].UUID < nodes[j].UUID
	})
}

func sortScoredEdges(edges []ScoredEdge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Score != edges[j].Score {
			return edges[i].Score > edges[j].Score
		}
		return edges[i].UUID < edges[j].UUID
	})
}

func trim[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

// luceneSanitize escapes Lucene query syntax so user input is matched as
// plain terms.
func luceneSanitize(query string) string {
	var b strings.Builder
	b.Grow(len(query))
	for _, r := range query {
		if strings.ContainsRune(`+-&|!(){}[]^"~*?:\/`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
