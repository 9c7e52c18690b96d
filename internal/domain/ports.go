package domain

import "context"

// InventoryRepository backs filtered search. Rows come back in the
// domain-specific shape of each table.
type InventoryRepository interface {
	Search(ctx context.Context, d Domain, p FilterParams) ([]map[string]any, error)
	Upsert(ctx context.Context, rec CanonicalRecord) error
}

type ScoredPayload struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// VectorIndex backs semantic search, one collection per domain.
type VectorIndex interface {
	Search(ctx context.Context, d Domain, vector []float32, limit int, threshold float64) ([]ScoredPayload, error)
	Upsert(ctx context.Context, d Domain, id string, vector []float32, payload map[string]any) error
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Cache is the shared remote cache (L2). Values are JSON encoded.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
	DelPrefix(ctx context.Context, prefix string) (int, error)
}

// SearchCapability is the query contract of one domain backend. Both forms
// report failures inside the response and never return an error.
type SearchCapability interface {
	Domain() Domain
	FilteredSearch(ctx context.Context, p FilterParams) SearchResponse
	SemanticSearch(ctx context.Context, query string, limit int, threshold float64) SearchResponse
}
