package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/semaphore"

	"trip_planner/internal/domain"
	"trip_planner/internal/extract"
)

// Seed is a vendor export keyed by domain name. Items keep whatever field
// names the vendor uses; normalization maps them.
type Seed map[string][]map[string]any

// ReadSeed decodes a seed document and validates its domain keys.
func ReadSeed(r io.Reader) (Seed, error) {
	var s Seed
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	for k := range s {
		if _, err := domain.ParseDomain(k); err != nil {
			return nil, err
		}
	}
	return s, nil
}

type IngestReport struct {
	Stored   int
	Indexed  int
	Rejected int
	Touched  []domain.Domain
}

type IngestionService struct {
	repo     domain.InventoryRepository
	index    domain.VectorIndex
	embedder domain.Embedder
	cache    domain.Cache
	workers  int64
}

// NewIngestionService wires ingestion. index and embedder are optional;
// without them records are only stored for filtered search.
func NewIngestionService(r domain.InventoryRepository, idx domain.VectorIndex, emb domain.Embedder, c domain.Cache, workers int) *IngestionService {
	if workers <= 0 {
		workers = 8
	}
	return &IngestionService{repo: r, index: idx, embedder: emb, cache: c, workers: int64(workers)}
}

// Ingest normalizes and stores every seed item. Items that fail to
// normalize are counted and skipped; store failures are collected and
// returned together after all workers finish.
func (s *IngestionService) Ingest(ctx context.Context, seed Seed) (IngestReport, error) {
	var (
		rep             IngestReport
		stored, indexed int64
		rejected        int64
		mu              sync.Mutex
		errs            *multierror.Error
	)
	ctx, span := otel.Tracer("trip_planner/app").Start(ctx, "ingest")
	defer span.End()

	sem := semaphore.NewWeighted(s.workers)
	var wg sync.WaitGroup

domains:
	for _, d := range domain.All {
		items := seed[string(d)]
		if len(items) == 0 {
			continue
		}
		rep.Touched = append(rep.Touched, d)
		for _, raw := range items {
			rec, err := extract.Normalize(d, raw, domain.SourceFiltered)
			if err != nil {
				atomic.AddInt64(&rejected, 1)
				log.Warn().Err(err).Str("domain", string(d)).Msg("seed item rejected")
				continue
			}
			if err := sem.Acquire(ctx, 1); err != nil {
				mu.Lock()
				errs = multierror.Append(errs, err)
				mu.Unlock()
				break domains
			}
			wg.Add(1)
			go func(rec domain.CanonicalRecord) {
				defer sem.Release(1)
				defer wg.Done()
				ok, err := s.ingestOne(ctx, rec)
				if err != nil {
					mu.Lock()
					errs = multierror.Append(errs, fmt.Errorf("%s: %w", rec.ID, err))
					mu.Unlock()
					return
				}
				atomic.AddInt64(&stored, 1)
				if ok {
					atomic.AddInt64(&indexed, 1)
				}
			}(rec)
		}
	}
	wg.Wait()

	rep.Stored, rep.Indexed, rep.Rejected = int(stored), int(indexed), int(rejected)
	s.invalidate(ctx, rep.Touched)

	span.SetAttributes(
		attribute.Int("stored", rep.Stored),
		attribute.Int("indexed", rep.Indexed),
		attribute.Int("rejected", rep.Rejected),
	)
	if err := errs.ErrorOrNil(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return rep, err
	}
	return rep, nil
}

// ingestOne stores rec, then indexes it when semantic search is wired.
// The relational row is the parent; a failed embed leaves it searchable
// through the filtered form.
func (s *IngestionService) ingestOne(ctx context.Context, rec domain.CanonicalRecord) (bool, error) {
	if err := s.repo.Upsert(ctx, rec); err != nil {
		return false, fmt.Errorf("upsert: %w", err)
	}
	if s.index == nil || s.embedder == nil {
		return false, nil
	}
	vec, err := s.embedder.Embed(ctx, EmbeddingText(rec))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return false, err
		}
		log.Warn().Err(err).Str("id", rec.ID).Msg("embedding failed; record stored without vector")
		return false, nil
	}
	if err := s.index.Upsert(ctx, rec.Domain, rec.ID, vec, PayloadFor(rec)); err != nil {
		return false, fmt.Errorf("index: %w", err)
	}
	return true, nil
}

// invalidate drops shared retrieval entries of the touched domains.
func (s *IngestionService) invalidate(ctx context.Context, ds []domain.Domain) {
	if s.cache == nil {
		return
	}
	for _, d := range ds {
		n, err := s.cache.DelPrefix(ctx, RetrievalPrefix(d))
		if err != nil {
			log.Warn().Err(err).Str("domain", string(d)).Msg("retrieval cache invalidation failed")
			continue
		}
		log.Debug().Int("keys", n).Str("domain", string(d)).Msg("retrieval cache invalidated")
	}
}
