package cache

import (
	"context"
	"time"

	"trip_planner/internal/domain"
)

const (
	NameEmbeddings = "embeddings"
	NameRetrieval  = "retrieval"
	NameResponses  = "responses"
)

type Spec struct {
	Capacity int
	TTL      time.Duration
}

type Config struct {
	Embeddings    Spec
	Retrieval     Spec
	Responses     Spec
	SweepInterval time.Duration
	Clock         Clock
}

// Caches groups the three named instances the orchestration core uses.
type Caches struct {
	Embeddings *TTL[[]float32]
	Retrieval  *TTL[domain.SearchResponse]
	Responses  *TTL[string]
}

func NewCaches(cfg Config) *Caches {
	opts := func(name string, s Spec) Options {
		return Options{Name: name, Capacity: s.Capacity, TTL: s.TTL, SweepInterval: cfg.SweepInterval, Clock: cfg.Clock}
	}
	return &Caches{
		Embeddings: New[[]float32](opts(NameEmbeddings, cfg.Embeddings)),
		Retrieval:  New[domain.SearchResponse](opts(NameRetrieval, cfg.Retrieval)),
		Responses:  New[string](opts(NameResponses, cfg.Responses)),
	}
}

func (c *Caches) Start(ctx context.Context) {
	c.Embeddings.Start(ctx)
	c.Retrieval.Start(ctx)
	c.Responses.Start(ctx)
}

func (c *Caches) Close() {
	c.Embeddings.Close()
	c.Retrieval.Close()
	c.Responses.Close()
}
