package qdrant_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"trip_planner/internal/adapters/qdrant"
	"trip_planner/internal/domain"
)

func TestClient_Search_DecodesPoints(t *testing.T) {
	var body map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/trip_lodging/points/query" || r.Method != http.MethodPost {
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"result": map[string]any{"points": []map[string]any{
				{"id": "6f1c", "score": 0.93, "payload": map[string]any{"id": "lodging:7", "name": "Villa Aurora"}},
				{"id": 12, "score": 0.81, "payload": map[string]any{"name": "Ostello Blu"}},
			}},
		})
	}))
	defer ts.Close()

	cl, err := qdrant.New(ts.URL, "trip_", "", 100) // high RPS for tests
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	hits, err := cl.Search(ctx, domain.Lodging, []float32{0.1, 0.2}, 5, 0.7)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(hits) != 2 || hits[0].ID != "lodging:7" || hits[1].ID != "12" || hits[0].Score != 0.93 {
		t.Fatalf("unexpected hits: %+v", hits)
	}
	if body["limit"].(float64) != 5 || body["score_threshold"].(float64) != 0.7 || body["with_payload"] != true {
		t.Fatalf("unexpected request body: %+v", body)
	}
}

func TestClient_StatusClassification(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, domain.ErrRateLimited},
		{http.StatusServiceUnavailable, domain.ErrBackendUnavailable},
		{http.StatusNotFound, domain.ErrNotFound},
	}
	for _, tc := range cases {
		var hits int32
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&hits, 1)
			w.WriteHeader(tc.status)
		}))
		cl, _ := qdrant.New(ts.URL, "trip_", "", 100)
		_, err := cl.Search(context.Background(), domain.Dining, []float32{1}, 3, 0)
		ts.Close()
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
		if atomic.LoadInt32(&hits) != 1 {
			t.Fatalf("status %d: client must not retry, got %d calls", tc.status, hits)
		}
	}
}

func TestClient_UpsertUsesStablePointID(t *testing.T) {
	var got map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/collections/trip_dining/points" {
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","result":{"status":"completed"}}`))
	}))
	defer ts.Close()

	cl, _ := qdrant.New(ts.URL, "trip_", "", 100)
	err := cl.Upsert(context.Background(), domain.Dining, "dining:r7", []float32{0.5}, map[string]any{"name": "Da Enzo"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	pts := got["points"].([]any)
	p := pts[0].(map[string]any)
	if p["id"] != qdrant.PointID("dining:r7") {
		t.Fatalf("point id: %v", p["id"])
	}
	if p["payload"].(map[string]any)["id"] != "dining:r7" {
		t.Fatalf("record id should travel in the payload: %+v", p["payload"])
	}
	if qdrant.PointID("dining:r7") != qdrant.PointID("dining:r7") || qdrant.PointID("a") == qdrant.PointID("b") {
		t.Fatalf("point ids must be deterministic and distinct")
	}
}

func TestClient_EnsureCollectionCreatesWhenMissing(t *testing.T) {
	var created int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			atomic.AddInt32(&created, 1)
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer ts.Close()

	cl, _ := qdrant.New(ts.URL, "trip_", "", 100)
	if err := cl.EnsureCollection(context.Background(), domain.Activity, 1536); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if created != 1 {
		t.Fatalf("expected a create call, got %d", created)
	}
}
