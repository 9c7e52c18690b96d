package openaiad

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trip_planner/internal/cache"
	"trip_planner/internal/domain"
)

func embeddingsServer(t *testing.T, status int, calls *int32) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"requests","code":"rate_limit_exceeded"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"object":"list","model":"text-embedding-3-small",
			"data":[{"object":"embedding","index":0,"embedding":[0.25,-0.5,1]}],
			"usage":{"prompt_tokens":3,"total_tokens":3}}`))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newEmbedder(url string) *Embedder {
	c := cache.New[[]float32](cache.Options{Name: cache.NameEmbeddings, Capacity: 16})
	return NewEmbedder(EmbedderConfig{BaseURL: url, APIKey: "test"}, c)
}

func TestEmbedder_ConvertsAndCaches(t *testing.T) {
	var calls int32
	ts := embeddingsServer(t, http.StatusOK, &calls)
	e := newEmbedder(ts.URL)

	v, err := e.Embed(context.Background(), "hotel romantico a Roma")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -0.5, 1}, v)

	// same text modulo case and spacing is served from the cache
	_, err = e.Embed(context.Background(), "  Hotel  romantico a ROMA ")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestEmbedder_ConcurrentCallsAllSucceed(t *testing.T) {
	var calls int32
	ts := embeddingsServer(t, http.StatusOK, &calls)
	e := newEmbedder(ts.URL)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Embed(context.Background(), "trattoria")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(8))
}

func TestEmbedder_RateLimitIsRetryable(t *testing.T) {
	var calls int32
	ts := embeddingsServer(t, http.StatusTooManyRequests, &calls)
	e := newEmbedder(ts.URL)

	_, err := e.Embed(context.Background(), "museo")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.True(t, domain.Retryable(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "sdk retries are disabled")
}

func TestEmbedder_EmptyText(t *testing.T) {
	e := newEmbedder("http://127.0.0.1:1")
	_, err := e.Embed(context.Background(), "   ")
	assert.Error(t, err)
}

func TestChatConfig_Enabled(t *testing.T) {
	c := &ChatConfig{Model: "gpt-4o-mini"}
	assert.False(t, c.Enabled())
	_, err := c.New(context.Background())
	assert.Error(t, err)

	c.APIKey = "test"
	assert.True(t, c.Enabled())
}

func TestEmbedder_CancelledCallerDoesNotFailSharedCall(t *testing.T) {
	var calls int32
	arrived := make(chan struct{}, 1)
	release := make(chan struct{})
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		arrived <- struct{}{}
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"text-embedding-3-small",
			"data":[{"object":"embedding","index":0,"embedding":[0.5,0.5]}],
			"usage":{"prompt_tokens":1,"total_tokens":1}}`))
	}))
	t.Cleanup(ts.Close)
	t.Cleanup(unblock)
	e := newEmbedder(ts.URL)

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := e.Embed(first, "agriturismo in Toscana")
		firstErr <- err
	}()
	<-arrived

	type result struct {
		v   []float32
		err error
	}
	second := make(chan result, 1)
	go func() {
		v, err := e.Embed(context.Background(), "agriturismo in Toscana")
		second <- result{v, err}
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	unblock()
	r := <-second
	require.NoError(t, r.err)
	assert.Equal(t, []float32{0.5, 0.5}, r.v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
