package config_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/engram/internal/config"
)

func TestLoad(t *testing.T) {
	type sample struct {
		Addr    string        `env:"TEST_CFG_ADDR" envDefault:":8080"`
		Timeout time.Duration `env:"TEST_CFG_TIMEOUT" envDefault:"5s"`
	}

	t.Run("defaults", func(t *testing.T) {
		var cfg sample
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, ":8080", cfg.Addr)
		assert.Equal(t, 5*time.Second, cfg.Timeout)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("TEST_CFG_ADDR", ":9090")
		t.Setenv("TEST_CFG_TIMEOUT", "250ms")

		var cfg sample
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, ":9090", cfg.Addr)
		assert.Equal(t, 250*time.Millisecond, cfg.Timeout)
	})

	t.Run("nil pointer", func(t *testing.T) {
		err := config.Load[sample](nil)
		assert.ErrorIs(t, err, config.ErrNilPointer)
	})

	t.Run("parse failure keeps sentinel", func(t *testing.T) {
		t.Setenv("TEST_CFG_TIMEOUT", "not-a-duration")

		var cfg sample
		err := config.Load(&cfg)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})
}

func TestNew(t *testing.T) {
	t.Run("defaults applied", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-test")

		cfg, err := config.New()
		require.NoError(t, err)

		assert.Equal(t, config.DefaultModel, cfg.LLM.Model)
		assert.Equal(t, config.DefaultSmallModel, cfg.LLM.SmallModel)
		assert.Equal(t, config.DefaultEmbedderModel, cfg.Embedder.Model)
		assert.Equal(t, "sk-test", cfg.Embedder.APIKey)
		assert.Equal(t, "bolt://localhost:7687", cfg.Graph.URI)
		assert.Equal(t, "neo4j", cfg.Graph.Backend)
		assert.Equal(t, "default", cfg.DefaultGroupID)
		assert.Equal(t, 10, cfg.SemaphoreLimit)
		assert.False(t, cfg.UseCustomEntities)
		assert.Equal(t, 0, cfg.Queue.MaxDepth)
		assert.Equal(t, time.Duration(0), cfg.Queue.EpisodeTimeout)
		assert.Equal(t, ":8080", cfg.HTTP.Addr)
		assert.Equal(t, 5*time.Second, cfg.HTTP.ShutdownTimeout)
		assert.Equal(t, slog.LevelInfo, cfg.Log.Level)
		assert.Equal(t, "json", cfg.Log.Format)
	})

	t.Run("log level parsed from environment", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-test")
		t.Setenv("LOG_LEVEL", "debug")
		t.Setenv("LOG_FORMAT", "text")

		cfg, err := config.New()
		require.NoError(t, err)
		assert.Equal(t, slog.LevelDebug, cfg.Log.Level)
		assert.Equal(t, "text", cfg.Log.Format)
	})

	t.Run("blank model names fall back to defaults", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-test")
		t.Setenv("MODEL_NAME", "   ")
		t.Setenv("EMBEDDER_MODEL_NAME", "")

		cfg, err := config.New()
		require.NoError(t, err)
		assert.Equal(t, config.DefaultModel, cfg.LLM.Model)
		assert.Equal(t, config.DefaultEmbedderModel, cfg.Embedder.Model)
	})

	t.Run("embedder base url follows llm base url", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-test")
		t.Setenv("OPENAI_BASE_URL", "https://proxy.internal/v1")

		cfg, err := config.New()
		require.NoError(t, err)
		assert.Equal(t, "https://proxy.internal/v1", cfg.Embedder.BaseURL)
	})

	t.Run("embedder base url override wins", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-test")
		t.Setenv("OPENAI_BASE_URL", "https://proxy.internal/v1")
		t.Setenv("OPENAI_EMBEDDER_BASE_URL", "https://embed.internal/v1")

		cfg, err := config.New()
		require.NoError(t, err)
		assert.Equal(t, "https://embed.internal/v1", cfg.Embedder.BaseURL)
	})

	t.Run("missing api key rejected", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")

		_, err := config.New()
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})
}
