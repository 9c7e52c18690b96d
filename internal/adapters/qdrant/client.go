package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"trip_planner/internal/adapters/observability"
	"trip_planner/internal/domain"
)

// Client is a minimal Qdrant REST client with one collection per domain.
// Transient failures are classified, not retried; retry policy belongs to
// the caller.
type Client struct {
	base   string
	prefix string
	hc     *http.Client
	key    string
	rl     *rate.Limiter
}

func New(base, collectionPrefix, apiKey string, rps int) (*Client, error) {
	if strings.TrimSpace(base) == "" {
		return nil, fmt.Errorf("qdrant base URL is required")
	}
	if rps <= 0 {
		rps = 10
	}
	return &Client{
		base:   strings.TrimRight(base, "/"),
		prefix: collectionPrefix,
		hc:     &http.Client{Timeout: 10 * time.Second},
		key:    apiKey,
		rl:     rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// Collection is the collection name of d.
func (c *Client) Collection(d domain.Domain) string { return c.prefix + string(d) }

// PointID maps a record id onto the UUID space Qdrant accepts. The same
// record always lands on the same point.
func PointID(recordID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(recordID)).String()
}

type queryRequest struct {
	Query          []float32 `json:"query"`
	Limit          int       `json:"limit"`
	ScoreThreshold *float64  `json:"score_threshold,omitempty"`
	WithPayload    bool      `json:"with_payload"`
}

type point struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

type queryResponse struct {
	Result struct {
		Points []point `json:"points"`
	} `json:"result"`
	Status string `json:"status"`
}

// Search queries the domain collection. Hits come back best first.
func (c *Client) Search(ctx context.Context, d domain.Domain, vector []float32, limit int, threshold float64) ([]domain.ScoredPayload, error) {
	req := queryRequest{Query: vector, Limit: limit, WithPayload: true}
	if threshold > 0 {
		req.ScoreThreshold = &threshold
	}
	var out queryResponse
	url := fmt.Sprintf("%s/collections/%s/points/query", c.base, c.Collection(d))
	if err := c.do(ctx, http.MethodPost, url, "query", req, &out); err != nil {
		return nil, err
	}
	hits := make([]domain.ScoredPayload, 0, len(out.Result.Points))
	for _, p := range out.Result.Points {
		id := fmt.Sprint(p.ID)
		if rid, ok := p.Payload["id"].(string); ok && rid != "" {
			id = rid
		}
		hits = append(hits, domain.ScoredPayload{ID: id, Score: p.Score, Payload: p.Payload})
	}
	return hits, nil
}

// Upsert writes one point; the record id is kept in the payload.
func (c *Client) Upsert(ctx context.Context, d domain.Domain, id string, vector []float32, payload map[string]any) error {
	body := map[string]any{
		"points": []map[string]any{{
			"id":      PointID(id),
			"vector":  vector,
			"payload": withID(payload, id),
		}},
	}
	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.base, c.Collection(d))
	return c.do(ctx, http.MethodPut, url, "upsert", body, nil)
}

// EnsureCollection creates the domain collection when missing.
func (c *Client) EnsureCollection(ctx context.Context, d domain.Domain, size int) error {
	url := fmt.Sprintf("%s/collections/%s", c.base, c.Collection(d))
	if err := c.do(ctx, http.MethodGet, url, "collection", nil, nil); err == nil {
		return nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	body := map[string]any{"vectors": map[string]any{"size": size, "distance": "Cosine"}}
	return c.do(ctx, http.MethodPut, url, "create_collection", body, nil)
}

func withID(payload map[string]any, id string) map[string]any {
	out := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		out[k] = v
	}
	out["id"] = id
	return out
}

// do performs one rate-limited call and decodes the JSON body into out.
func (c *Client) do(ctx context.Context, method, url, endpoint string, in, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.key != "" {
		req.Header.Set("api-key", c.key)
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal("qdrant", endpoint, 0, time.Since(start))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: qdrant %s: %v", domain.ErrBackendUnavailable, endpoint, err)
	}
	defer resp.Body.Close()
	observability.ObserveExternal("qdrant", endpoint, resp.StatusCode, time.Since(start))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: qdrant %s", domain.ErrNotFound, endpoint)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: qdrant %s", domain.ErrRateLimited, endpoint)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: qdrant %s status %d", domain.ErrBackendUnavailable, endpoint, resp.StatusCode)
	default:
		// read a small error body for diagnostics
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("qdrant %s: bad status %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(b)))
	}
}
