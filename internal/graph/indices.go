package graph

import (
	"context"
	"strings"
)

var neo4jIndices = []string{
	"CREATE INDEX episode_uuid IF NOT EXISTS FOR (e:Episodic) ON (e.uuid)",
	"CREATE INDEX episode_group_id IF NOT EXISTS FOR (e:Episodic) ON (e.group_id)",
	"CREATE INDEX episode_valid_at IF NOT EXISTS FOR (e:Episodic) ON (e.valid_at)",
	"CREATE INDEX entity_uuid IF NOT EXISTS FOR (n:Entity) ON (n.uuid)",
	"CREATE INDEX entity_group_name IF NOT EXISTS FOR (n:Entity) ON (n.group_id, n.name_norm)",
	"CREATE INDEX relation_uuid IF NOT EXISTS FOR ()-[r:RELATES_TO]-() ON (r.uuid)",
	"CREATE INDEX relation_group_id IF NOT EXISTS FOR ()-[r:RELATES_TO]-() ON (r.group_id)",
	"CREATE FULLTEXT INDEX node_name_and_summary IF NOT EXISTS FOR (n:Entity) ON EACH [n.name, n.summary]",
	"CREATE FULLTEXT INDEX edge_name_and_fact IF NOT EXISTS FOR ()-[r:RELATES_TO]-() ON EACH [r.name, r.fact]",
}

// FalkorDB has no IF NOT EXISTS and no Lucene fulltext shared with the
// query path, so it gets range indices only and duplicate-index errors are
// tolerated.
var falkorIndices = []string{
	"CREATE INDEX FOR (e:Episodic) ON (e.uuid)",
	"CREATE INDEX FOR (e:Episodic) ON (e.group_id)",
	"CREATE INDEX FOR (e:Episodic) ON (e.valid_at)",
	"CREATE INDEX FOR (n:Entity) ON (n.uuid)",
	"CREATE INDEX FOR (n:Entity) ON (n.group_id)",
	"CREATE INDEX FOR (n:Entity) ON (n.name_norm)",
	"CREATE INDEX FOR ()-[r:RELATES_TO]-() ON (r.uuid)",
	"CREATE INDEX FOR ()-[r:RELATES_TO]-() ON (r.group_id)",
}

// BuildIndices creates the indices the store's queries rely on. It is safe
// to call on every startup.
func (s *Store) BuildIndices(ctx context.Context) error {
	statements := neo4jIndices
	if s.driver.Provider() == ProviderFalkorDB {
		statements = falkorIndices
	}

	for _, stmt := range statements {
		if _, err := s.driver.Query(ctx, stmt, nil); err != nil {
			if isIndexExists(err) {
				continue
			}
			return err
		}
	}
	return nil
}

func isIndexExists(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already indexed") || strings.Contains(msg, "already exists")
}
