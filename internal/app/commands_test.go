package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hashicorp/go-multierror"

	"trip_planner/internal/app"
	"trip_planner/internal/domain"
)

const seedDoc = `{
  "lodging": [
    {"id": 1, "hotel_name": "Hotel Sole", "city": "Roma", "price_per_night": "120", "facilities": ["wifi", "colazione"], "stars": 4},
    {"hotel_name": ""}
  ],
  "dining": [
    {"id": "r7", "restaurant_name": "Trattoria Da Enzo", "city": "Roma", "cuisine": "Romana", "menu_highlights": "carbonara, amatriciana"}
  ]
}`

func TestReadSeed(t *testing.T) {
	s, err := app.ReadSeed(strings.NewReader(seedDoc))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(s["lodging"]) != 2 || len(s["dining"]) != 1 {
		t.Fatalf("unexpected seed: %+v", s)
	}

	if _, err := app.ReadSeed(strings.NewReader(`{"spa": []}`)); !errors.Is(err, domain.ErrUnknownDomain) {
		t.Fatalf("expected unknown domain, got %v", err)
	}
}

func TestIngest_StoresIndexesAndInvalidates(t *testing.T) {
	seed, err := app.ReadSeed(strings.NewReader(seedDoc))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	repo := &fakeRepo{}
	idx := &fakeIndex{}
	remote := &fakeCache{}
	_ = remote.Set(context.Background(), app.RetrievalPrefix(domain.Lodging)+"abc", "stale", 60)
	_ = remote.Set(context.Background(), app.RetrievalPrefix(domain.Transport)+"abc", "keep", 60)

	svc := app.NewIngestionService(repo, idx, &fakeEmbedder{}, remote, 2)
	rep, err := svc.Ingest(context.Background(), seed)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if rep.Stored != 2 || rep.Indexed != 2 || rep.Rejected != 1 {
		t.Fatalf("report: %+v", rep)
	}
	if len(rep.Touched) != 2 || rep.Touched[0] != domain.Lodging || rep.Touched[1] != domain.Dining {
		t.Fatalf("touched: %v", rep.Touched)
	}

	p, ok := idx.points["dining:r7"]
	if !ok {
		t.Fatalf("dining record not indexed: %v", idx.points)
	}
	if p["cuisine"] != "romana" {
		t.Fatalf("payload should use the domain's field names: %+v", p)
	}
	if hl, _ := p["menu_highlights"].([]string); len(hl) != 2 {
		t.Fatalf("menu highlights: %+v", p["menu_highlights"])
	}

	if len(remote.store) != 1 {
		t.Fatalf("only touched domains are invalidated, left: %v", remote.store)
	}
}

func TestIngest_CollectsStoreErrors(t *testing.T) {
	seed, _ := app.ReadSeed(strings.NewReader(seedDoc))
	repo := &fakeRepo{upErr: domain.ErrBackendUnavailable}

	rep, err := app.NewIngestionService(repo, nil, nil, nil, 4).Ingest(context.Background(), seed)
	if err == nil || !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("expected joined backend error, got %v", err)
	}
	if rep.Stored != 0 || rep.Rejected != 1 {
		t.Fatalf("report: %+v", rep)
	}
}

func TestIngest_EmbeddingFailureKeepsRow(t *testing.T) {
	seed, _ := app.ReadSeed(strings.NewReader(seedDoc))
	repo := &fakeRepo{}
	rep, err := app.NewIngestionService(repo, &fakeIndex{}, &fakeEmbedder{err: domain.ErrRateLimited}, nil, 1).
		Ingest(context.Background(), seed)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if rep.Stored != 2 || rep.Indexed != 0 || len(repo.upserted) != 2 {
		t.Fatalf("report: %+v", rep)
	}
}

func TestEmbeddingText(t *testing.T) {
	rec := domain.CanonicalRecord{
		Name: "Hotel Sole", Category: "hotel",
		Location:  domain.Location{City: "roma"},
		Amenities: []string{"wifi", "spa"},
	}
	if got := app.EmbeddingText(rec); got != "Hotel Sole. hotel. roma. wifi, spa" {
		t.Fatalf("got %q", got)
	}
}

func TestIngest_CancelledContextStopsAllDomains(t *testing.T) {
	seed, _ := app.ReadSeed(strings.NewReader(seedDoc))
	repo := &fakeRepo{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := app.NewIngestionService(repo, nil, nil, nil, 1).Ingest(ctx, seed)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	var merr *multierror.Error
	if !errors.As(err, &merr) || len(merr.Errors) != 1 {
		t.Fatalf("expected exactly one error, got %v", err)
	}
	if len(rep.Touched) != 1 || rep.Touched[0] != domain.Lodging {
		t.Fatalf("ingestion should stop at the first domain, touched %v", rep.Touched)
	}
	if len(repo.upserted) != 0 || rep.Stored != 0 {
		t.Fatalf("nothing should be stored: %+v", rep)
	}
}
