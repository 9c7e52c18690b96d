package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"

	"trip_planner/internal/cache"
	"trip_planner/internal/domain"
)

const maxSearchLimit = 50

type SearchOptions struct {
	DefaultLimit      int
	SemanticThreshold float64
	RetryAttempts     uint
	RetryDelay        time.Duration
	CacheTTL          time.Duration
}

// SearchService is the Domain Search Capability for all four domains.
// Filtered search goes to the inventory store, semantic search to the
// vector index. Retries for rate limits and transient outages live here
// and nowhere above.
type SearchService struct {
	repo     domain.InventoryRepository
	index    domain.VectorIndex
	embedder domain.Embedder
	local    *cache.TTL[domain.SearchResponse]
	remote   domain.Cache
	opts     SearchOptions
}

// NewSearchService wires the capability. index, embedder, local and remote
// may be nil; semantic search then reports itself unavailable and results
// are not memoized.
func NewSearchService(repo domain.InventoryRepository, index domain.VectorIndex, emb domain.Embedder,
	local *cache.TTL[domain.SearchResponse], remote domain.Cache, opts SearchOptions) *SearchService {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 10
	}
	if opts.SemanticThreshold <= 0 {
		opts.SemanticThreshold = 0.7
	}
	if opts.RetryAttempts == 0 {
		opts.RetryAttempts = 3
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 15 * time.Minute
	}
	return &SearchService{repo: repo, index: index, embedder: emb, local: local, remote: remote, opts: opts}
}

// For binds the service to one domain.
func (s *SearchService) For(d domain.Domain) domain.SearchCapability {
	return domainSearch{s: s, d: d}
}

type domainSearch struct {
	s *SearchService
	d domain.Domain
}

func (ds domainSearch) Domain() domain.Domain { return ds.d }

func (ds domainSearch) FilteredSearch(ctx context.Context, p domain.FilterParams) domain.SearchResponse {
	return ds.s.filtered(ctx, ds.d, p)
}

func (ds domainSearch) SemanticSearch(ctx context.Context, query string, limit int, threshold float64) domain.SearchResponse {
	return ds.s.semantic(ctx, ds.d, query, limit, threshold)
}

func (s *SearchService) filtered(ctx context.Context, d domain.Domain, p domain.FilterParams) domain.SearchResponse {
	if s.repo == nil {
		return domain.FailedSearch(fmt.Errorf("%w: no inventory store", domain.ErrBackendUnavailable))
	}
	p.Limit = s.limit(p.Limit)
	key := cache.Key(append([]string{cache.NameRetrieval, string(d), string(domain.ToolFiltered)}, p.CacheKeyParts()...)...)
	if out, ok := s.cached(ctx, d, key); ok {
		return out
	}

	var rows []map[string]any
	err := s.retry(ctx, func() error {
		var err error
		rows, err = s.repo.Search(ctx, d, p)
		return err
	})
	if err != nil {
		log.Warn().Err(err).Str("domain", string(d)).Msg("filtered search failed")
		return domain.FailedSearch(err)
	}
	out := found(d, rows)
	s.store(ctx, d, key, out)
	return out
}

func (s *SearchService) semantic(ctx context.Context, d domain.Domain, query string, limit int, threshold float64) domain.SearchResponse {
	if s.index == nil || s.embedder == nil {
		return domain.FailedSearch(domain.ErrSemanticDisabled)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.FailedSearch(errors.New("semantic search needs a query"))
	}
	limit = s.limit(limit)
	if threshold <= 0 || threshold > 1 {
		threshold = s.opts.SemanticThreshold
	}
	key := cache.Key(cache.NameRetrieval, string(d), string(domain.ToolSemantic), query,
		fmt.Sprint(limit), fmt.Sprintf("%.2f", threshold))
	if out, ok := s.cached(ctx, d, key); ok {
		return out
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		log.Warn().Err(err).Str("domain", string(d)).Msg("embedding failed")
		return domain.FailedSearch(err)
	}
	var hits []domain.ScoredPayload
	err = s.retry(ctx, func() error {
		var err error
		hits, err = s.index.Search(ctx, d, vec, limit, threshold)
		return err
	})
	if err != nil {
		log.Warn().Err(err).Str("domain", string(d)).Msg("semantic search failed")
		return domain.FailedSearch(err)
	}

	rows := make([]map[string]any, 0, len(hits))
	for _, h := range hits {
		row := make(map[string]any, len(h.Payload)+2)
		for k, v := range h.Payload {
			row[k] = v
		}
		if _, ok := row["id"]; !ok && h.ID != "" {
			row["id"] = h.ID
		}
		row["similarity"] = h.Score
		rows = append(rows, row)
	}
	out := found(d, rows)
	s.store(ctx, d, key, out)
	return out
}

func (s *SearchService) limit(n int) int {
	if n <= 0 {
		n = s.opts.DefaultLimit
	}
	if n > maxSearchLimit {
		n = maxSearchLimit
	}
	return n
}

// retry runs fn with fixed backoff, only for retryable backend errors.
func (s *SearchService) retry(ctx context.Context, fn func() error) error {
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(s.opts.RetryAttempts),
		retry.Delay(s.opts.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(domain.Retryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Debug().Err(err).Uint("attempt", n+1).Msg("retrying search")
		}),
	)
}

// cached checks the in-process cache first, then the shared one.
func (s *SearchService) cached(ctx context.Context, d domain.Domain, key string) (domain.SearchResponse, bool) {
	if s.local != nil {
		if out, ok := s.local.Get(key); ok {
			return out, true
		}
	}
	if s.remote != nil {
		var out domain.SearchResponse
		if ok, err := s.remote.Get(ctx, remoteKey(d, key), &out); err == nil && ok {
			if s.local != nil {
				s.local.Set(key, out, 0)
			}
			return out, true
		}
	}
	return domain.SearchResponse{}, false
}

// store memoizes successful responses only.
func (s *SearchService) store(ctx context.Context, d domain.Domain, key string, out domain.SearchResponse) {
	if !out.Success {
		return
	}
	if s.local != nil {
		s.local.Set(key, out, 0)
	}
	if s.remote != nil {
		if err := s.remote.Set(ctx, remoteKey(d, key), out, int(s.opts.CacheTTL.Seconds())); err != nil {
			log.Debug().Err(err).Str("key", key).Msg("remote cache set failed")
		}
	}
}

func found(d domain.Domain, rows []map[string]any) domain.SearchResponse {
	if rows == nil {
		rows = []map[string]any{}
	}
	return domain.SearchResponse{
		Success: true,
		Data:    rows,
		Message: fmt.Sprintf("found %d %s", len(rows), d.Label("en")),
	}
}

// RetrievalPrefix is the shared-cache key prefix of every retrieval entry
// of d.
func RetrievalPrefix(d domain.Domain) string {
	return cache.Key(cache.NameRetrieval, string(d)) + ":"
}

func remoteKey(d domain.Domain, key string) string {
	return cache.HashedKey(RetrievalPrefix(d), key)
}
