package graph

import (
	"context"
	"time"
)

// Provider identifies the graph database backend behind a Driver.
type Provider string

const (
	ProviderNeo4j    Provider = "neo4j"
	ProviderFalkorDB Provider = "falkordb"
)

// Record is one result row, keyed by the aliases in the query's RETURN
// clause.
type Record map[string]any

// Driver executes Cypher against a graph database. Implementations return
// rows as alias-keyed maps so the store can stay backend-agnostic; queries
// must therefore return aliased scalars, arrays, and maps rather than raw
// nodes or relationships.
type Driver interface {
	// Query runs a Cypher statement and returns one Record per result row.
	Query(ctx context.Context, cypher string, params map[string]any) ([]Record, error)

	// Provider reports which backend this driver talks to, for the few
	// queries that cannot be expressed uniformly.
	Provider() Provider

	// Close releases the underlying connections.
	Close(ctx context.Context) error
}

// Config holds connection settings for both supported backends. Backend
// selects which set of fields applies.
type Config struct {
	Backend string

	// Bolt settings
	URI      string
	User     string
	Password string
	Database string

	// FalkorDB settings
	FalkorAddr     string
	FalkorPassword string
	FalkorGraph    string

	// Connection retry settings shared by both backends.
	RetryAttempts  int
	RetryInterval  time.Duration
	ConnectTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Backend == "" {
		c.Backend = string(ProviderNeo4j)
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 5 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 30 * time.Second
	}
	return c
}

// Connect dials the backend named by cfg.Backend and verifies connectivity,
// retrying a few times so the service survives a database that is still
// starting up.
func Connect(ctx context.Context, cfg Config) (Driver, error) {
	cfg = cfg.withDefaults()

	switch Provider(cfg.Backend) {
	case ProviderNeo4j:
		return connectNeo4j(ctx, cfg)
	case ProviderFalkorDB:
		return connectFalkor(ctx, cfg)
	default:
		return nil, ErrUnsupportedBackend
	}
}
