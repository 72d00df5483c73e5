package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dmitrymomot/engram/internal/api"
	"github.com/dmitrymomot/engram/internal/config"
	"github.com/dmitrymomot/engram/internal/graph"
	"github.com/dmitrymomot/engram/internal/memory"
	"github.com/dmitrymomot/engram/pkg/embeddings"
	"github.com/dmitrymomot/engram/pkg/groupqueue"
	"github.com/dmitrymomot/engram/pkg/httpserver"
	"github.com/dmitrymomot/engram/pkg/llm"
	"github.com/dmitrymomot/engram/pkg/logger"
	"github.com/dmitrymomot/engram/pkg/requestid"
)

const (
	// startupTimeout bounds the initial graph connection and index build.
	startupTimeout = time.Minute
	// drainTimeout bounds how long queued episodes may keep processing
	// after the HTTP server has stopped.
	drainTimeout = 30 * time.Second
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.New()
	if err != nil {
		return err
	}

	log := logger.New(
		logger.WithLevel(cfg.Log.Level),
		logger.WithFormat(logger.Format(cfg.Log.Format)),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	)
	logger.SetAsDefault(log)

	startupCtx, cancelStartup := context.WithTimeout(ctx, startupTimeout)
	defer cancelStartup()

	driver, err := graph.Connect(startupCtx, graph.Config{
		Backend:        cfg.Graph.Backend,
		URI:            cfg.Graph.URI,
		User:           cfg.Graph.User,
		Password:       cfg.Graph.Password,
		Database:       cfg.Graph.Database,
		FalkorAddr:     cfg.Graph.FalkorAddr,
		FalkorPassword: cfg.Graph.FalkorPassword,
		FalkorGraph:    cfg.Graph.FalkorGraph,
	})
	if err != nil {
		return fmt.Errorf("connect graph backend %q: %w", cfg.Graph.Backend, err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := driver.Close(closeCtx); err != nil {
			log.Error("failed to close graph driver", logger.Error(err))
		}
	}()

	store := graph.NewStore(driver)
	if err := store.BuildIndices(startupCtx); err != nil {
		return fmt.Errorf("build graph indices: %w", err)
	}

	completions, err := llm.New(llm.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		SmallModel:  cfg.LLM.SmallModel,
		Temperature: cfg.LLM.Temperature,
	})
	if err != nil {
		return fmt.Errorf("create llm client: %w", err)
	}

	embedder, err := embeddings.NewOpenAIProvider(embeddings.OpenAIConfig{
		APIKey:  cfg.Embedder.APIKey,
		BaseURL: cfg.Embedder.BaseURL,
		Model:   cfg.Embedder.Model,
	})
	if err != nil {
		return fmt.Errorf("create embedding client: %w", err)
	}

	svc := memory.NewService(store, completions, embedder, memory.Config{
		DefaultGroupID:    cfg.DefaultGroupID,
		UseCustomEntities: cfg.UseCustomEntities,
		SemaphoreLimit:    cfg.SemaphoreLimit,
	}, log)

	queueOpts := []groupqueue.Option{groupqueue.WithLogger(log)}
	if cfg.Queue.MaxDepth > 0 {
		queueOpts = append(queueOpts, groupqueue.WithMaxDepth(cfg.Queue.MaxDepth))
	}
	if cfg.Queue.EpisodeTimeout > 0 {
		queueOpts = append(queueOpts, groupqueue.WithTaskTimeout(cfg.Queue.EpisodeTimeout))
	}
	queues := groupqueue.NewRegistry[*memory.AddEpisodeResult](queueOpts...)

	router := api.New(svc, queues, api.Config{
		DefaultGroupID: cfg.DefaultGroupID,
		Model:          cfg.LLM.Model,
		SmallModel:     cfg.LLM.SmallModel,
		Temperature:    cfg.LLM.Temperature,
		CustomEntities: cfg.UseCustomEntities,
		SemaphoreLimit: cfg.SemaphoreLimit,
	}, log).Router()

	srv := httpserver.NewFromConfig(cfg.HTTP,
		httpserver.WithLogger(log),
		httpserver.WithStartHook(func(l *slog.Logger) {
			l.Info("memory server listening",
				slog.String("addr", cfg.HTTP.Addr),
				slog.String("graph_backend", cfg.Graph.Backend),
			)
		}),
	)
	if err := srv.Run(ctx, router); err != nil {
		return err
	}

	// The listener is down; let already queued episodes finish before the
	// graph driver closes.
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), drainTimeout)
	defer cancelDrain()
	if err := queues.Shutdown(drainCtx); err != nil {
		log.Warn("queue drain incomplete", logger.Error(err))
	}
	return nil
}
