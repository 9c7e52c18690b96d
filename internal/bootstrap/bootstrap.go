// Package bootstrap builds the object graph shared by the binaries from a
// loaded Config.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	openaiad "trip_planner/internal/adapters/openai"
	"trip_planner/internal/adapters/qdrant"
	redisad "trip_planner/internal/adapters/redis"
	"trip_planner/internal/agent"
	"trip_planner/internal/analyzer"
	"trip_planner/internal/app"
	"trip_planner/internal/cache"
	"trip_planner/internal/domain"
	"trip_planner/internal/orchestrator"
	"trip_planner/internal/shared"
	mysqlrepo "trip_planner/internal/storage/mysql"
)

type App struct {
	Config       shared.Config
	Caches       *cache.Caches
	Analyzer     *analyzer.Analyzer
	Search       *app.SearchService
	Ingestion    *app.IngestionService
	Orchestrator *orchestrator.Orchestrator
	Vectors      *qdrant.Client

	db      *sqlx.DB
	redis   *redisad.Cache
	watcher *analyzer.Watcher
}

// New connects the stores and assembles the orchestration core. Redis,
// Qdrant and the model provider are optional; without an OpenAI key the
// agents fall back to the rule-based policy and semantic search reports
// itself unavailable.
func New(ctx context.Context, cfg shared.Config) (*App, error) {
	a := &App{Config: cfg}
	if err := a.wire(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context, cfg shared.Config) error {
	a.Caches = cache.NewCaches(cache.Config{
		Embeddings:    cache.Spec{Capacity: cfg.EmbeddingCacheCapacity, TTL: cfg.EmbeddingCacheTTL},
		Retrieval:     cache.Spec{Capacity: cfg.RetrievalCacheCapacity, TTL: cfg.RetrievalCacheTTL},
		Responses:     cache.Spec{Capacity: cfg.ResponseCacheCapacity, TTL: cfg.ResponseCacheTTL},
		SweepInterval: cfg.CacheSweepInterval,
	})
	a.Caches.Start(ctx)

	a.Analyzer = analyzer.New(nil)
	if cfg.LexiconPath != "" {
		w, err := analyzer.Watch(a.Analyzer, cfg.LexiconPath)
		if err != nil {
			return fmt.Errorf("lexicon: %w", err)
		}
		a.watcher = w
		go w.Run(ctx)
	}

	db, err := mysqlrepo.Open(ctx, cfg.MySQLDSN)
	if err != nil {
		return err
	}
	a.db = db
	repo := mysqlrepo.New(db)
	log.Info().Msg("database connection ok")

	var remote domain.Cache
	if cfg.RedisAddr != "" {
		a.redis = redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err := a.redis.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, continuing without shared cache")
		}
		remote = a.redis
	}

	var (
		index domain.VectorIndex
		emb   domain.Embedder
	)
	if cfg.OpenAIKey != "" {
		vc, err := qdrant.New(cfg.QdrantURL, cfg.QdrantCollectionPrefix, cfg.QdrantAPIKey, cfg.QdrantRPS)
		if err != nil {
			return err
		}
		a.Vectors = vc
		index = vc
		emb = openaiad.NewEmbedder(openaiad.EmbedderConfig{
			BaseURL: cfg.OpenAIBaseURL,
			APIKey:  cfg.OpenAIKey,
			Model:   cfg.EmbeddingModel,
		}, a.Caches.Embeddings)
	}

	a.Search = app.NewSearchService(repo, index, emb, a.Caches.Retrieval, remote, app.SearchOptions{
		DefaultLimit:      cfg.SearchLimit,
		SemanticThreshold: cfg.SemanticThreshold,
		RetryAttempts:     cfg.SearchRetryAttempts,
		RetryDelay:        cfg.SearchRetryDelay,
		CacheTTL:          cfg.RetrievalCacheTTL,
	})
	a.Ingestion = app.NewIngestionService(repo, index, emb, remote, cfg.IngestWorkers)

	agentCfg := agent.Config{
		MaxTurns:          cfg.AgentMaxTurns,
		MinResults:        cfg.MinResults,
		SearchLimit:       cfg.SearchLimit,
		SemanticThreshold: cfg.SemanticThreshold,
	}
	agents := agent.NewPolicySet(a.Search, agentCfg)
	var synth orchestrator.Synthesizer = orchestrator.TemplateSynthesizer{}

	chat := &openaiad.ChatConfig{
		BaseURL:   cfg.OpenAIBaseURL,
		APIKey:    cfg.OpenAIKey,
		Model:     cfg.ChatModel,
		MaxTokens: cfg.ChatMaxTokens,
		Timeout:   cfg.ChatTimeout,
	}
	if chat.Enabled() {
		m, err := chat.New(ctx)
		if err != nil {
			return err
		}
		agents, err = agent.NewModelSet(m, a.Search, agentCfg)
		if err != nil {
			return err
		}
		synth = orchestrator.NewModelSynthesizer(m, a.Caches.Responses)
		log.Info().Str("model", cfg.ChatModel).Msg("model-driven agents enabled")
	}

	a.Orchestrator = orchestrator.New(a.Analyzer, agents, synth, orchestrator.Config{
		Timeout:          cfg.OrchestrationTimeout,
		HistoryLimit:     cfg.HistoryLimit,
		EarlyStopRecords: cfg.EarlyStopRecords,
		Language:         cfg.SummaryLanguage,
	})
	return nil
}

func (a *App) Close() {
	if a.watcher != nil {
		_ = a.watcher.Close()
	}
	if a.Caches != nil {
		a.Caches.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
