package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/dmitrymomot/engram/pkg/httpserver"
)

// Default model names
const (
	DefaultModel         = "gpt-5-mini"
	DefaultSmallModel    = "gpt-5-nano"
	DefaultEmbedderModel = "text-embedding-3-large"
)

// Config is the full application configuration, assembled from environment
// variables. Use New or MustNew rather than parsing the struct directly so
// the cross-field fallbacks are applied.
type Config struct {
	HTTP     httpserver.Config
	Log      Log
	LLM      LLM
	Embedder Embedder
	Graph    Graph
	Queue    Queue

	// DefaultGroupID is used for episodes submitted without a group.
	DefaultGroupID string `env:"DEFAULT_GROUP_ID" envDefault:"default"`
	// UseCustomEntities enables extraction of typed entities in addition to
	// generic ones.
	UseCustomEntities bool `env:"USE_CUSTOM_ENTITIES" envDefault:"false"`
	// SemaphoreLimit caps concurrent LLM and embedding calls per episode.
	SemaphoreLimit int `env:"SEMAPHORE_LIMIT" envDefault:"10"`
}

// Log configures the structured logger. Level accepts the slog spellings
// (debug, info, warn, error); Format is json or text.
type Log struct {
	Level  slog.Level `env:"LOG_LEVEL" envDefault:"info"`
	Format string     `env:"LOG_FORMAT" envDefault:"json"`
}

// LLM configures the chat completion client.
type LLM struct {
	APIKey      string  `env:"OPENAI_API_KEY,required,notEmpty"`
	BaseURL     string  `env:"OPENAI_BASE_URL"`
	Model       string  `env:"MODEL_NAME" envDefault:"gpt-5-mini"`
	SmallModel  string  `env:"SMALL_MODEL_NAME" envDefault:"gpt-5-nano"`
	Temperature float64 `env:"LLM_TEMPERATURE" envDefault:"1.0"`
}

// Embedder configures the embedding client. The API key is shared with the
// LLM client; the base URL falls back to the LLM base URL when unset.
type Embedder struct {
	APIKey  string `env:"OPENAI_API_KEY,required,notEmpty"`
	BaseURL string `env:"OPENAI_EMBEDDER_BASE_URL"`
	Model   string `env:"EMBEDDER_MODEL_NAME" envDefault:"text-embedding-3-large"`
}

// Graph configures the graph database connection. Backend selects between
// the bolt driver and FalkorDB over the redis protocol.
type Graph struct {
	Backend string `env:"GRAPH_BACKEND" envDefault:"neo4j"`

	URI      string `env:"NEO4J_URI" envDefault:"bolt://localhost:7687"`
	User     string `env:"NEO4J_USER" envDefault:"neo4j"`
	Password string `env:"NEO4J_PASSWORD" envDefault:"password"`
	Database string `env:"NEO4J_DATABASE" envDefault:"neo4j"`

	FalkorAddr     string `env:"FALKORDB_ADDR" envDefault:"localhost:6379"`
	FalkorPassword string `env:"FALKORDB_PASSWORD"`
	FalkorGraph    string `env:"FALKORDB_GRAPH" envDefault:"engram"`
}

// Queue configures the per-group episode queues.
type Queue struct {
	// MaxDepth bounds each group's backlog. Zero leaves it unbounded.
	MaxDepth int `env:"QUEUE_MAX_DEPTH" envDefault:"0"`
	// EpisodeTimeout bounds the processing of a single episode. Zero means
	// no deadline.
	EpisodeTimeout time.Duration `env:"EPISODE_TIMEOUT" envDefault:"0"`
}

// New loads the application configuration from the environment.
func New() (*Config, error) {
	var cfg Config
	if err := Load(&cfg); err != nil {
		return nil, err
	}
	cfg.applyFallbacks()
	return &cfg, nil
}

// MustNew works like New but panics on failure.
func MustNew() *Config {
	cfg, err := New()
	if err != nil {
		panic(err)
	}
	return cfg
}

// applyFallbacks mirrors how operators actually set these variables: a
// variable exported as an empty string means "use the default", and the
// embedder endpoint follows the LLM endpoint unless overridden.
func (c *Config) applyFallbacks() {
	c.LLM.Model = stringOr(c.LLM.Model, DefaultModel)
	c.LLM.SmallModel = stringOr(c.LLM.SmallModel, DefaultSmallModel)
	c.Embedder.Model = stringOr(c.Embedder.Model, DefaultEmbedderModel)
	if c.Embedder.BaseURL == "" {
		c.Embedder.BaseURL = c.LLM.BaseURL
	}
	if c.SemaphoreLimit <= 0 {
		c.SemaphoreLimit = 10
	}
}

func stringOr(v, fallback string) string {
	if s := strings.TrimSpace(v); s != "" {
		return s
	}
	return fallback
}
