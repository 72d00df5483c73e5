package graph

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/dmitrymomot/engram/pkg/embeddings"
)

// Episode source kinds, mirroring the values accepted by the API.
const (
	SourceText    = "text"
	SourceMessage = "message"
	SourceJSON    = "json"
)

// EpisodeNode is a raw piece of ingested content: a message, a document
// fragment, or a JSON payload. Episodes are the provenance anchors for
// everything extracted from them.
type EpisodeNode struct {
	UUID              string    `json:"uuid"`
	Name              string    `json:"name"`
	GroupID           string    `json:"group_id"`
	Content           string    `json:"content"`
	Source            string    `json:"source"`
	SourceDescription string    `json:"source_description"`
	CreatedAt         time.Time `json:"created_at"`
	ValidAt           time.Time `json:"valid_at"`
}

// EntityNode is a deduplicated entity extracted from episodes. Labels carry
// the optional custom entity types; Attributes holds their typed fields.
type EntityNode struct {
	UUID          string            `json:"uuid"`
	Name          string            `json:"name"`
	GroupID       string            `json:"group_id"`
	Labels        []string          `json:"labels"`
	Summary       string            `json:"summary"`
	CreatedAt     time.Time         `json:"created_at"`
	NameEmbedding embeddings.Vector `json:"-"`
	Attributes    map[string]any    `json:"attributes"`
}

// EntityEdge is a fact: a named relationship between two entities, with the
// episodes that mention it as provenance.
type EntityEdge struct {
	UUID           string            `json:"uuid"`
	GroupID        string            `json:"group_id"`
	SourceNodeUUID string            `json:"source_node_uuid"`
	TargetNodeUUID string            `json:"target_node_uuid"`
	Name           string            `json:"name"`
	Fact           string            `json:"fact"`
	FactEmbedding  embeddings.Vector `json:"-"`
	Episodes       []string          `json:"episodes"`
	CreatedAt      time.Time         `json:"created_at"`
	ValidAt        *time.Time        `json:"valid_at"`
	InvalidAt      *time.Time        `json:"invalid_at"`
	ExpiredAt      *time.Time        `json:"expired_at"`
}

// ScoredNode pairs an entity with its search relevance.
type ScoredNode struct {
	EntityNode
	Score float64
}

// ScoredEdge pairs a fact with its search relevance.
type ScoredEdge struct {
	EntityEdge
	Score float64
}

// NormalizeName canonicalizes an entity name for deduplication: lowercased
// with whitespace collapsed, so "Jane  Doe" and "jane doe" merge into one
// entity within a group.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Record converters. Queries return aliased scalars, so each converter reads
// plain map keys and coerces the backend-specific value shapes.

func episodeFromRecord(rec Record) EpisodeNode {
	return EpisodeNode{
		UUID:              asString(rec["uuid"]),
		Name:              asString(rec["name"]),
		GroupID:           asString(rec["group_id"]),
		Content:           asString(rec["content"]),
		Source:            asString(rec["source"]),
		SourceDescription: asString(rec["source_description"]),
		CreatedAt:         asTime(rec["created_at"]),
		ValidAt:           asTime(rec["valid_at"]),
	}
}

func entityFromRecord(rec Record) EntityNode {
	// Stored labels hold only the custom types; Entity is implicit.
	labels := append([]string{"Entity"}, asStringSlice(rec["labels"])...)
	return EntityNode{
		UUID:          asString(rec["uuid"]),
		Name:          asString(rec["name"]),
		GroupID:       asString(rec["group_id"]),
		Labels:        labels,
		Summary:       asString(rec["summary"]),
		CreatedAt:     asTime(rec["created_at"]),
		NameEmbedding: asVector(rec["embedding"]),
		Attributes:    attributesFromJSON(asString(rec["attributes"])),
	}
}

func edgeFromRecord(rec Record) EntityEdge {
	return EntityEdge{
		UUID:           asString(rec["uuid"]),
		GroupID:        asString(rec["group_id"]),
		SourceNodeUUID: asString(rec["source_uuid"]),
		TargetNodeUUID: asString(rec["target_uuid"]),
		Name:           asString(rec["name"]),
		Fact:           asString(rec["fact"]),
		FactEmbedding:  asVector(rec["embedding"]),
		Episodes:       asStringSlice(rec["episodes"]),
		CreatedAt:      asTime(rec["created_at"]),
		ValidAt:        asTimePtr(rec["valid_at"]),
		InvalidAt:      asTimePtr(rec["invalid_at"]),
		ExpiredAt:      asTimePtr(rec["expired_at"]),
	}
}

// Times are stored as RFC3339Nano UTC strings so both backends handle them
// identically and lexicographic comparison matches chronological order.

func timeParam(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func timePtrParam(t *time.Time) any {
	if t == nil {
		return nil
	}
	return timeParam(*t)
}

func attributesJSON(attrs map[string]any) string {
	if len(attrs) == 0 {
		return "{}"
	}
	b, err := json.Marshal(attrs)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func attributesFromJSON(s string) map[string]any {
	attrs := make(map[string]any)
	if s == "" {
		return attrs
	}
	_ = json.Unmarshal([]byte(s), &attrs)
	return attrs
}

// Value coercions for record cells.

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}

func asTime(v any) time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func asTimePtr(v any) *time.Time {
	t := asTime(v)
	if t.IsZero() {
		return nil
	}
	return &t
}

func asStringSlice(v any) []string {
	switch x := v.(type) {
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func asVector(v any) embeddings.Vector {
	switch x := v.(type) {
	case []float64:
		return embeddings.Vector(x)
	case []any:
		out := make(embeddings.Vector, 0, len(x))
		for _, e := range x {
			out = append(out, asFloat(e))
		}
		return out
	default:
		return nil
	}
}
