//go:build integration

package mysql_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"trip_planner/internal/domain"
	"trip_planner/internal/extract"
	mysqlrepo "trip_planner/internal/storage/mysql"
)

// ---------- small helpers ----------
func pfloat(f float64) *float64 { return &f }

func migrationsDir(t *testing.T) string {
	t.Helper()
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		return v
	}
	return filepath.Join("..", "..", "..", "migrations")
}

func applyMigrations(t *testing.T, db *sqlx.DB) {
	t.Helper()
	dir := migrationsDir(t)

	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir %s: %v", dir, err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)

	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

// ---------- the test ----------
func TestRepo_MySQL_UpsertAndSearch(t *testing.T) {
	// Start isolated MySQL; let Docker pick a free host port.
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}

	runOpts := &dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=trip",
		},
	}
	resource, err := pool.RunWithOptions(runOpts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	hostPort := resource.GetPort("3306/tcp")
	dsn := fmt.Sprintf("root:%s@tcp(127.0.0.1:%s)/%s?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		"root", hostPort, "trip")

	var db *sqlx.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sqlx.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	applyMigrations(t, db)

	repo := mysqlrepo.New(db)
	ctx := context.Background()

	recs := []domain.CanonicalRecord{
		{
			ID: "lodging:1", Name: "Hotel Sole", Domain: domain.Lodging,
			Location:   domain.Location{Text: "Via del Sole 1", City: "roma"},
			PriceRange: domain.PriceRange{Level: 2, Amount: pfloat(120), Currency: "EUR"},
			Rating:     4.2, Amenities: []string{"wifi", "colazione"}, Category: "hotel",
			Attributes: map[string]string{"max_guests": "4"},
		},
		{
			ID: "lodging:2", Name: "Grand Hotel Palace", Domain: domain.Lodging,
			Location:   domain.Location{City: "roma"},
			PriceRange: domain.PriceRange{Level: 4, Amount: pfloat(480)},
			Rating:     4.9, Category: "hotel",
		},
		{
			ID: "lodging:3", Name: "Ostello Milano", Domain: domain.Lodging,
			Location: domain.Location{City: "milano"}, PriceRange: domain.PriceRange{Level: 1},
			Rating: domain.RatingUnknown,
		},
	}
	for _, r := range recs {
		if err := repo.Upsert(ctx, r); err != nil {
			t.Fatalf("Upsert %s: %v", r.ID, err)
		}
	}
	// second upsert of the same id updates in place
	recs[0].Rating = 4.4
	if err := repo.Upsert(ctx, recs[0]); err != nil {
		t.Fatalf("re-Upsert: %v", err)
	}

	rows, err := repo.Search(ctx, domain.Lodging, domain.FilterParams{Location: "Roma", MaxPriceLevel: 2, Guests: 2, Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one economy lodging in roma, got %d: %+v", len(rows), rows)
	}

	rec, err := extract.Normalize(domain.Lodging, rows[0], domain.SourceFiltered)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if rec.ID != "lodging:1" || rec.Rating != 4.4 || len(rec.Amenities) != 2 || rec.Attributes["max_guests"] != "4" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}
