package memory

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/dmitrymomot/engram/internal/graph"
)

// Hybrid search tuning. rrfRankConstant is the k in the 1/(k+rank) fusion
// term; minSimilarity is the cosine floor below which similarity candidates
// are discarded.
const (
	rrfRankConstant    = 60
	minSimilarity      = 0.6
	defaultSearchLimit = 10
)

// NodeSearchParams describes an entity search.
type NodeSearchParams struct {
	Query string

	// GroupIDs restricts the search. Empty means the default group.
	GroupIDs []string

	// Limit caps the result count. Values below 1 mean 10.
	Limit int

	// CenterNodeUUID, when set, reorders results by graph distance from
	// this entity instead of by fused relevance.
	CenterNodeUUID string

	// EntityType filters results to one custom entity type.
	EntityType string
}

// FactSearchParams describes a fact search over entity edges.
type FactSearchParams struct {
	Query          string
	GroupIDs       []string
	Limit          int
	CenterNodeUUID string
}

// SearchNodes runs a hybrid entity search: a keyword leg and an
// embedding-similarity leg fused with reciprocal rank fusion.
func (s *Service) SearchNodes(ctx context.Context, params NodeSearchParams) ([]graph.ScoredNode, error) {
	if strings.TrimSpace(params.Query) == "" {
		return nil, nil
	}
	groups := s.effectiveGroups(params.GroupIDs)
	limit := searchLimit(params.Limit)
	// Each leg fetches wider than the final limit so fusion has overlap to
	// work with.
	candidates := limit * 2

	keyword, err := s.store.FulltextNodes(ctx, groups, params.Query, candidates)
	if err != nil {
		return nil, errors.Join(ErrStorageFailed, err)
	}

	queryVec, err := s.embedder.Embed(ctx, params.Query)
	if err != nil {
		return nil, errors.Join(ErrEmbeddingFailed, err)
	}
	similar, err := s.store.SimilarNodes(ctx, groups, queryVec, candidates, minSimilarity)
	if err != nil {
		return nil, errors.Join(ErrStorageFailed, err)
	}

	if params.EntityType != "" {
		keyword = filterNodesByLabel(keyword, params.EntityType)
		similar = filterNodesByLabel(similar, params.EntityType)
	}

	fused := fuseNodes(keyword, similar)
	if params.CenterNodeUUID != "" {
		if fused, err = s.rerankNodesByDistance(ctx, params.CenterNodeUUID, fused); err != nil {
			return nil, err
		}
	}
	return head(fused, limit), nil
}

// SearchFacts runs a hybrid fact search over entity edges.
func (s *Service) SearchFacts(ctx context.Context, params FactSearchParams) ([]graph.ScoredEdge, error) {
	if strings.TrimSpace(params.Query) == "" {
		return nil, nil
	}
	groups := s.effectiveGroups(params.GroupIDs)
	limit := searchLimit(params.Limit)
	candidates := limit * 2

	keyword, err := s.store.FulltextEdges(ctx, groups, params.Query, candidates)
	if err != nil {
		return nil, errors.Join(ErrStorageFailed, err)
	}

	queryVec, err := s.embedder.Embed(ctx, params.Query)
	if err != nil {
		return nil, errors.Join(ErrEmbeddingFailed, err)
	}
	similar, err := s.store.SimilarEdges(ctx, groups, queryVec, candidates, minSimilarity)
	if err != nil {
		return nil, errors.Join(ErrStorageFailed, err)
	}

	fused := fuseEdges(keyword, similar)
	if params.CenterNodeUUID != "" {
		if fused, err = s.rerankEdgesByDistance(ctx, params.CenterNodeUUID, fused); err != nil {
			return nil, err
		}
	}
	return head(fused, limit), nil
}

func (s *Service) effectiveGroups(groupIDs []string) []string {
	if len(groupIDs) > 0 {
		return groupIDs
	}
	if s.defaultGroupID == "" {
		return nil
	}
	return []string{s.defaultGroupID}
}

func searchLimit(limit int) int {
	if limit < 1 {
		return defaultSearchLimit
	}
	return limit
}

// fuseNodes merges ranked candidate lists with reciprocal rank fusion: a
// candidate's score is the sum of 1/(k+rank) over every list it appears in.
func fuseNodes(lists ...[]graph.ScoredNode) []graph.ScoredNode {
	scores := make(map[string]float64)
	items := make(map[string]graph.ScoredNode)
	for _, list := range lists {
		for rank, item := range list {
			scores[item.UUID] += 1.0 / float64(rrfRankConstant+rank+1)
			if _, ok := items[item.UUID]; !ok {
				items[item.UUID] = item
			}
		}
	}

	fused := make([]graph.ScoredNode, 0, len(items))
	for id, item := range items {
		item.Score = scores[id]
		fused = append(fused, item)
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].UUID < fused[j].UUID
	})
	return fused
}

func fuseEdges(lists ...[]graph.ScoredEdge) []graph.ScoredEdge {
	scores := make(map[string]float64)
	items := make(map[string]graph.ScoredEdge)
	for _, list := range lists {
		for rank, item := range list {
			scores[item.UUID] += 1.0 / float64(rrfRankConstant+rank+1)
			if _, ok := items[item.UUID]; !ok {
				items[item.UUID] = item
			}
		}
	}

	fused := make([]graph.ScoredEdge, 0, len(items))
	for id, item := range items {
		item.Score = scores[id]
		fused = append(fused, item)
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].UUID < fused[j].UUID
	})
	return fused
}

// rerankNodesByDistance reorders candidates by hop count from the center
// entity, nearest first. Unreachable candidates sink to the end and fused
// order breaks ties.
func (s *Service) rerankNodesByDistance(ctx context.Context, centerUUID string, nodes []graph.ScoredNode) ([]graph.ScoredNode, error) {
	if len(nodes) == 0 {
		return nodes, nil
	}
	uuids := make([]string, len(nodes))
	for i, node := range nodes {
		uuids[i] = node.UUID
	}
	distances, err := s.store.EdgeDistances(ctx, centerUUID, uuids)
	if err != nil {
		return nil, errors.Join(ErrStorageFailed, err)
	}
	// The center is its own nearest neighbor but a zero-length path never
	// matches, so pin it explicitly.
	distances[centerUUID] = 0

	sort.SliceStable(nodes, func(i, j int) bool {
		di, iok := distances[nodes[i].UUID]
		dj, jok := distances[nodes[j].UUID]
		if iok != jok {
			return iok
		}
		if iok && jok {
			return di < dj
		}
		return false
	})
	return nodes, nil
}

// rerankEdgesByDistance reorders facts by the hop count from the center
// entity to the nearer of the fact's endpoints.
func (s *Service) rerankEdgesByDistance(ctx context.Context, centerUUID string, edges []graph.ScoredEdge) ([]graph.ScoredEdge, error) {
	if len(edges) == 0 {
		return edges, nil
	}
	seen := make(map[string]bool, len(edges)*2)
	uuids := make([]string, 0, len(edges)*2)
	for _, edge := range edges {
		for _, id := range []string{edge.SourceNodeUUID, edge.TargetNodeUUID} {
			if id != "" && !seen[id] {
				seen[id] = true
				uuids = append(uuids, id)
			}
		}
	}
	distances, err := s.store.EdgeDistances(ctx, centerUUID, uuids)
	if err != nil {
		return nil, errors.Join(ErrStorageFailed, err)
	}
	distances[centerUUID] = 0

	edgeDistance := func(edge graph.ScoredEdge) (int, bool) {
		ds, sok := distances[edge.SourceNodeUUID]
		dt, tok := distances[edge.TargetNodeUUID]
		switch {
		case sok && tok:
			return min(ds, dt), true
		case sok:
			return ds, true
		case tok:
			return dt, true
		default:
			return 0, false
		}
	}

	sort.SliceStable(edges, func(i, j int) bool {
		di, iok := edgeDistance(edges[i])
		dj, jok := edgeDistance(edges[j])
		if iok != jok {
			return iok
		}
		if iok && jok {
			return di < dj
		}
		return false
	})
	return edges, nil
}

func filterNodesByLabel(nodes []graph.ScoredNode, label string) []graph.ScoredNode {
	out := make([]graph.ScoredNode, 0, len(nodes))
	for _, node := range nodes {
		for _, l := range node.Labels {
			if l == label {
				out = append(out, node)
				break
			}
		}
	}
	return out
}

func head[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
