package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trip_planner/internal/agent"
	"trip_planner/internal/analyzer"
	"trip_planner/internal/domain"
	"trip_planner/internal/orchestrator"
)

type fakeCapability struct {
	d     domain.Domain
	resp  domain.SearchResponse
	delay time.Duration
}

func (f fakeCapability) Domain() domain.Domain { return f.d }

func (f fakeCapability) wait(ctx context.Context) bool {
	if f.delay == 0 {
		return true
	}
	select {
	case <-time.After(f.delay):
		return true
	case <-ctx.Done():
		return false
	}
}

func (f fakeCapability) FilteredSearch(ctx context.Context, p domain.FilterParams) domain.SearchResponse {
	if !f.wait(ctx) {
		return domain.FailedSearch(ctx.Err())
	}
	return f.resp
}

func (f fakeCapability) SemanticSearch(ctx context.Context, q string, limit int, thr float64) domain.SearchResponse {
	return domain.FailedSearch(domain.ErrSemanticDisabled)
}

type fakeProvider struct {
	resp  domain.SearchResponse
	delay time.Duration
}

func (p fakeProvider) For(d domain.Domain) domain.SearchCapability {
	return fakeCapability{d: d, resp: p.resp, delay: p.delay}
}

func hotels(names ...string) domain.SearchResponse {
	out := domain.SearchResponse{Success: true, Data: []map[string]any{}}
	for i, n := range names {
		out.Data = append(out.Data, map[string]any{"id": i + 1, "name": n, "city": "roma"})
	}
	return out
}

func newTestServer(t *testing.T, p fakeProvider, timeout time.Duration) *httptest.Server {
	t.Helper()
	o := orchestrator.New(analyzer.New(nil), agent.NewPolicySet(p, agent.Config{}), nil,
		orchestrator.Config{Timeout: timeout, Language: "en"})
	srv := New(5 * time.Second)
	srv.MountHandlers(&Handlers{O: o})
	ts := httptest.NewServer(srv.Mux())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	res, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Body.Close() })
	return res
}

func TestOrchestrate_OK(t *testing.T) {
	ts := newTestServer(t, fakeProvider{resp: hotels("Hotel Sole", "Hotel Luna", "Hotel Stella")}, time.Second)

	res := postJSON(t, ts.URL+"/v1/orchestrate", `{"query":"hotel economico a Roma per due persone"}`)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))

	var out domain.OrchestratorResult
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	assert.True(t, out.Success)
	assert.Len(t, out.Records, 3)
	assert.Equal(t, domain.ModeSequential, out.ExecutionSummary.Mode)
	assert.Equal(t, "I found 3 places to stay for your request.", out.Message)
	assert.NotEmpty(t, out.RunID)
}

func TestOrchestrate_Problems(t *testing.T) {
	ts := newTestServer(t, fakeProvider{resp: hotels("Hotel Sole")}, time.Second)

	res := postJSON(t, ts.URL+"/v1/orchestrate", `not json`)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "application/problem+json", res.Header.Get("Content-Type"))

	res = postJSON(t, ts.URL+"/v1/orchestrate", `{"query":"   "}`)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	var p problem
	require.NoError(t, json.NewDecoder(res.Body).Decode(&p))
	assert.Equal(t, "empty query", p.Detail)
}

func TestOrchestrate_TimeoutIs504(t *testing.T) {
	ts := newTestServer(t, fakeProvider{resp: hotels("Hotel Sole"), delay: time.Second}, 30*time.Millisecond)

	res := postJSON(t, ts.URL+"/v1/orchestrate", `{"query":"hotel a Roma"}`)
	assert.Equal(t, http.StatusGatewayTimeout, res.StatusCode)
}

func TestAnalyze_ETag(t *testing.T) {
	ts := newTestServer(t, fakeProvider{}, time.Second)
	u := ts.URL + "/v1/analyze?q=" + url.QueryEscape("hotel economico a Roma per due persone")

	res, err := http.Get(u)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	var a domain.QueryAnalysis
	require.NoError(t, json.NewDecoder(res.Body).Decode(&a))
	assert.Equal(t, []domain.Domain{domain.Lodging}, a.DetectedDomains)
	assert.Equal(t, "roma", a.SearchTerms.Location)

	etag := res.Header.Get("ETag")
	require.NotEmpty(t, etag)
	req, _ := http.NewRequest(http.MethodGet, u, nil)
	req.Header.Set("If-None-Match", etag)
	res2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res2.Body.Close()
	assert.Equal(t, http.StatusNotModified, res2.StatusCode)

	res3, err := http.Get(ts.URL + "/v1/analyze")
	require.NoError(t, err)
	defer res3.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res3.StatusCode)
}

func TestStream_SendsProgressUntilEnd(t *testing.T) {
	ts := newTestServer(t, fakeProvider{resp: hotels("Hotel Sole", "Hotel Luna", "Hotel Stella")}, time.Second)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/orchestrate/stream"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(map[string]any{"query": "hotel economico a Roma per due persone"}))

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var got []orchestrator.EventType
	var complete orchestrator.Event
	for {
		var ev orchestrator.Event
		require.NoError(t, conn.ReadJSON(&ev))
		got = append(got, ev.Type)
		if ev.Type == orchestrator.EventComplete {
			complete = ev
		}
		if ev.Type == orchestrator.EventEnd {
			break
		}
	}
	assert.Equal(t, []orchestrator.EventType{
		orchestrator.EventAnalyzing, orchestrator.EventAgentStart, orchestrator.EventAgentComplete,
		orchestrator.EventFinalizing, orchestrator.EventComplete, orchestrator.EventEnd,
	}, got)
	assert.Len(t, complete.Records, 3)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, fakeProvider{}, time.Second)
	res, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}
