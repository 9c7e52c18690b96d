package openaiad

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"trip_planner/internal/adapters/observability"
	"trip_planner/internal/cache"
	"trip_planner/internal/domain"
)

type EmbedderConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Embedder turns text into vectors with the OpenAI embeddings endpoint.
// Results are memoized in the embeddings cache and concurrent requests for
// the same text share one upstream call. The SDK's own retries are off;
// the search capability decides what to retry.
type Embedder struct {
	client  openai.Client
	model   string
	timeout time.Duration
	cache   *cache.TTL[[]float32]
	group   singleflight.Group
}

func NewEmbedder(cfg EmbedderConfig, c *cache.TTL[[]float32]) *Embedder {
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		opts = append(opts, option.WithBaseURL(base+"/"))
	}
	return &Embedder{client: openai.NewClient(opts...), model: cfg.Model, timeout: cfg.Timeout, cache: c}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("embed: empty text")
	}
	key := cache.Key(e.model, text)
	if e.cache != nil {
		if v, ok := e.cache.Get(key); ok {
			return v, nil
		}
	}

	// the shared call outlives any single caller; each caller only waits
	// as long as its own context allows
	ch := e.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
		defer cancel()
		vec, err := e.fetch(fctx, text)
		if err == nil && e.cache != nil {
			e.cache.Set(key, vec, 0)
		}
		return vec, err
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		if r.Shared {
			log.Debug().Str("model", e.model).Msg("embedding request shared")
		}
		return r.Val.([]float32), nil
	}
}

func (e *Embedder) fetch(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{text}},
		Model: openai.EmbeddingModel(e.model),
	})
	status := http.StatusOK
	if err != nil {
		status = statusOf(err)
		observability.ObserveExternal("openai", "embeddings", status, time.Since(start))
		return nil, classify(status, err)
	}
	observability.ObserveExternal("openai", "embeddings", status, time.Since(start))
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embed: %w: no embedding returned", domain.ErrMalformedPayload)
	}
	out := make([]float32, len(resp.Data[0].Embedding))
	for i, f := range resp.Data[0].Embedding {
		out[i] = float32(f)
	}
	return out, nil
}

func statusOf(err error) int {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func classify(status int, err error) error {
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("embed: %w: %v", domain.ErrRateLimited, err)
	case status == 0 || status >= 500:
		return fmt.Errorf("embed: %w: %v", domain.ErrBackendUnavailable, err)
	}
	return fmt.Errorf("embed: %w", err)
}
