package main

import (
	"context"
	"flag"
	"os"

	"github.com/rs/zerolog/log"

	"trip_planner/internal/adapters/observability"
	"trip_planner/internal/app"
	"trip_planner/internal/bootstrap"
	"trip_planner/internal/domain"
	"trip_planner/internal/shared"
)

func main() {
	envFile := flag.String("env", "", "path to .env file")
	seedPath := flag.String("seed", "", "seed file (defaults to SEED_FILE)")
	flag.Parse()

	ctx := context.Background()
	cfg := shared.MustLoad(*envFile)
	if *seedPath != "" {
		cfg.SeedFile = *seedPath
	}

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	log.Info().
		Str("seed", cfg.SeedFile).
		Int("workers", cfg.IngestWorkers).
		Bool("vectors", cfg.OpenAIKey != "").
		Msg("ingestor starting")

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:      cfg.TracingEnabled,
		ServiceName:  "trip-ingestor",
		OTLPEndpoint: cfg.OTLPEndpoint,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("tracing init failed")
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	f, err := os.Open(cfg.SeedFile)
	if err != nil {
		log.Fatal().Err(err).Msg("open seed file")
	}
	seed, err := app.ReadSeed(f)
	_ = f.Close()
	if err != nil {
		log.Fatal().Err(err).Msg("read seed file")
	}

	a, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("bootstrap failed")
	}
	defer a.Close()

	if a.Vectors != nil {
		for _, d := range domain.All {
			if err := a.Vectors.EnsureCollection(ctx, d, cfg.EmbeddingDims); err != nil {
				log.Fatal().Err(err).Str("domain", string(d)).Msg("ensure collection failed")
			}
		}
	}

	rep, err := a.Ingestion.Ingest(ctx, seed)
	if err != nil {
		log.Warn().Err(err).Msg("some records failed")
	}
	log.Info().
		Int("stored", rep.Stored).
		Int("indexed", rep.Indexed).
		Int("rejected", rep.Rejected).
		Str("domains", domain.DomainList(rep.Touched)).
		Msg("ingestion completed")
}
