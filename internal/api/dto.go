package api

import (
	"time"

	"github.com/dmitrymomot/engram/internal/graph"
	"github.com/dmitrymomot/engram/pkg/validator"
)

// AddMemoryRequest is the payload for both ingestion endpoints.
type AddMemoryRequest struct {
	Name              string `json:"name"`
	EpisodeBody       string `json:"episode_body"`
	GroupID           string `json:"group_id"`
	Source            string `json:"source"`
	SourceDescription string `json:"source_description"`
	UUID              string `json:"uuid"`
}

// normalize applies request defaults prior to validation.
func (r *AddMemoryRequest) normalize() {
	if r.Source == "" {
		r.Source = graph.SourceText
	}
}

func (r AddMemoryRequest) validate() error {
	return validator.Apply(
		validator.RequiredString("name", r.Name),
		validator.MaxLenString("name", r.Name, 200),
		validator.RequiredString("episode_body", r.EpisodeBody),
		validator.OneOfString("source", r.Source, graph.SourceText, graph.SourceJSON, graph.SourceMessage),
	)
}

// SuccessResponse is the generic acknowledgement envelope.
type SuccessResponse struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

func success(message string) SuccessResponse {
	return SuccessResponse{Message: message, Success: true}
}

// AddMemoryResponse acknowledges a synchronous ingestion with the episode's
// identity for follow-up operations.
type AddMemoryResponse struct {
	Message     string `json:"message"`
	EpisodeUUID string `json:"episode_uuid"`
	Success     bool   `json:"success"`
}

// ErrorResponse is the generic failure envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Success bool   `json:"success"`
}

// NodeResult is the wire shape of one entity node search hit.
type NodeResult struct {
	UUID       string         `json:"uuid"`
	Name       string         `json:"name"`
	Summary    string         `json:"summary"`
	Labels     []string       `json:"labels"`
	GroupID    string         `json:"group_id"`
	CreatedAt  string         `json:"created_at"`
	Attributes map[string]any `json:"attributes"`
}

// NodeSearchResponse wraps node search hits.
type NodeSearchResponse struct {
	Message string       `json:"message"`
	Nodes   []NodeResult `json:"nodes"`
	Success bool         `json:"success"`
}

// FactResult is the wire shape of one entity edge.
type FactResult struct {
	UUID           string     `json:"uuid"`
	Name           string     `json:"name"`
	Fact           string     `json:"fact"`
	ValidAt        *time.Time `json:"valid_at"`
	InvalidAt      *time.Time `json:"invalid_at"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiredAt      *time.Time `json:"expired_at"`
	SourceNodeUUID string     `json:"source_node_uuid"`
	TargetNodeUUID string     `json:"target_node_uuid"`
}

// FactSearchResponse wraps fact search hits.
type FactSearchResponse struct {
	Message string       `json:"message"`
	Facts   []FactResult `json:"facts"`
	Success bool         `json:"success"`
}

// StatusResponse reports readiness plus a non-secret configuration echo.
type StatusResponse struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Config  map[string]any `json:"config,omitempty"`
}

func nodeResult(node graph.EntityNode) NodeResult {
	labels := node.Labels
	if labels == nil {
		labels = []string{}
	}
	attrs := node.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	return NodeResult{
		UUID:       node.UUID,
		Name:       node.Name,
		Summary:    node.Summary,
		Labels:     labels,
		GroupID:    node.GroupID,
		CreatedAt:  node.CreatedAt.UTC().Format(time.RFC3339Nano),
		Attributes: attrs,
	}
}

func nodeResults(nodes []graph.ScoredNode) []NodeResult {
	out := make([]NodeResult, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, nodeResult(node.EntityNode))
	}
	return out
}

func factResult(edge graph.EntityEdge) FactResult {
	return FactResult{
		UUID:           edge.UUID,
		Name:           edge.Name,
		Fact:           edge.Fact,
		ValidAt:        edge.ValidAt,
		InvalidAt:      edge.InvalidAt,
		CreatedAt:      edge.CreatedAt,
		ExpiredAt:      edge.ExpiredAt,
		SourceNodeUUID: edge.SourceNodeUUID,
		TargetNodeUUID: edge.TargetNodeUUID,
	}
}

func factResults(edges []graph.ScoredEdge) []FactResult {
	out := make([]FactResult, 0, len(edges))
	for _, edge := range edges {
		out = append(out, factResult(edge.EntityEdge))
	}
	return out
}
