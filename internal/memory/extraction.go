package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrymomot/engram/internal/graph"
	"github.com/dmitrymomot/engram/pkg/embeddings"
	"github.com/dmitrymomot/engram/pkg/llm"
)

// Custom entity types the extractor may assign when enabled.
const (
	EntityTypePreference  = "Preference"
	EntityTypeProcedure   = "Procedure"
	EntityTypeRequirement = "Requirement"
)

// EntityTypes lists the custom entity types accepted by extraction and by
// the node search filter.
func EntityTypes() []string {
	return []string{EntityTypePreference, EntityTypeProcedure, EntityTypeRequirement}
}

// ValidEntityType reports whether t is one of the custom entity types.
func ValidEntityType(t string) bool {
	switch t {
	case EntityTypePreference, EntityTypeProcedure, EntityTypeRequirement:
		return true
	default:
		return false
	}
}

// extractionResult is the JSON contract the model is asked to fill.
type extractionResult struct {
	Entities []extractedEntity `json:"entities"`
	Facts    []extractedFact   `json:"facts"`
}

type extractedEntity struct {
	Name       string         `json:"name"`
	Type       string         `json:"type,omitempty"`
	Summary    string         `json:"summary"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

type extractedFact struct {
	SourceEntity string `json:"source_entity"`
	TargetEntity string `json:"target_entity"`
	Relation     string `json:"relation"`
	Fact         string `json:"fact"`

	embedding embeddings.Vector
}

const extractionSystemPrompt = `You are an assistant that maintains a temporally-aware knowledge graph built from an agent's memory.

Extract entities and factual relationships from the CURRENT EPISODE. PREVIOUS EPISODES are given only as context for resolving references such as pronouns; never extract entities or facts that appear only in them.

Respond with a single JSON object of this exact shape:
{
  "entities": [{"name": "...", "summary": "..."}],
  "facts": [{"source_entity": "...", "target_entity": "...", "relation": "...", "fact": "..."}]
}

Rules:
- Extract significant entities, concepts and actors explicitly mentioned in the current episode.
- Use a specific name for each entity and resolve pronouns to the entity they refer to.
- summary is one sentence describing the entity using only information from the episode.
- relation is a short verb phrase in SCREAMING_SNAKE_CASE, for example WORKS_AT or PREFERS.
- fact restates the relationship as one complete sentence grounded in the episode text.
- source_entity and target_entity must exactly match names from the entities list.
- Never invent information that is not stated or directly implied by the current episode.`

const customEntitiesPrompt = `
- Additionally classify an entity with a "type" and "attributes" field when one of these clearly applies, and omit both otherwise:
  - "Preference": something the user likes, dislikes or prefers. Attributes: {"category": "...", "description": "..."}.
  - "Procedure": instructions for how the agent should act in a scenario. Attributes: {"description": "..."}.
  - "Requirement": a need, feature or functionality a project must fulfill. Attributes: {"project_name": "...", "description": "..."}.`

// extract asks the model for the episode's entities and facts.
func (s *Service) extract(ctx context.Context, episode graph.EpisodeNode, prior []graph.EpisodeNode) (extractionResult, error) {
	var result extractionResult
	err := s.llm.CompleteJSON(ctx, llm.Request{
		Messages: extractionMessages(episode, prior, s.customEntities),
	}, &result)
	if err != nil {
		return extractionResult{}, errors.Join(ErrExtractionFailed, err)
	}
	return result, nil
}

func extractionMessages(episode graph.EpisodeNode, prior []graph.EpisodeNode, customEntities bool) []llm.Message {
	system := extractionSystemPrompt
	if customEntities {
		system += customEntitiesPrompt
	}

	var b strings.Builder
	b.WriteString("PREVIOUS EPISODES:\n")
	if len(prior) == 0 {
		b.WriteString("(none)\n")
	}
	for _, ep := range prior {
		fmt.Fprintf(&b, "- [%s] %s\n", ep.ValidAt.Format("2006-01-02 15:04"), ep.Content)
	}

	b.WriteString("\nCURRENT EPISODE")
	fmt.Fprintf(&b, " (source: %s", episode.Source)
	if episode.SourceDescription != "" {
		fmt.Fprintf(&b, ", %s", episode.SourceDescription)
	}
	fmt.Fprintf(&b, ", observed at %s):\n", episode.ValidAt.Format("2006-01-02 15:04"))
	b.WriteString(episode.Content)

	return []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: b.String()},
	}
}
