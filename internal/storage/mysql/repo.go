package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"trip_planner/internal/adapters/observability"
	"trip_planner/internal/domain"
)

func valStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
func valInt(n int) any {
	if n <= 0 {
		return nil
	}
	return n
}
func valJSON(v []string) any {
	if len(v) == 0 {
		return nil
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// jsonList scans a JSON array column; NULL and malformed values read as
// empty.
type jsonList []string

func (j *jsonList) Scan(src any) error {
	*j = nil
	var b []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("jsonList: unsupported type %T", src)
	}
	var out []string
	if err := json.Unmarshal(b, &out); err != nil {
		return nil
	}
	*j = out
	return nil
}

// jsonObject scans the folded extras column.
type jsonObject map[string]any

func (j *jsonObject) Scan(src any) error {
	*j = nil
	var b []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("jsonObject: unsupported type %T", src)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil
	}
	*j = out
	return nil
}

type inventoryRow struct {
	ID          string          `db:"id"`
	Name        string          `db:"name"`
	Description sql.NullString  `db:"description"`
	Address     sql.NullString  `db:"address"`
	City        sql.NullString  `db:"city"`
	Lat         sql.NullFloat64 `db:"lat"`
	Lng         sql.NullFloat64 `db:"lng"`
	PriceLevel  sql.NullInt64   `db:"price_level"`
	Price       sql.NullFloat64 `db:"price"`
	Currency    sql.NullString  `db:"currency"`
	Rating      sql.NullFloat64 `db:"rating"`
	Category    sql.NullString  `db:"category"`
	Amenities   jsonList        `db:"amenities"`
	Images      jsonList        `db:"images"`
	Phone       sql.NullString  `db:"phone"`
	Email       sql.NullString  `db:"email"`
	Website     sql.NullString  `db:"website"`
	Extras      jsonObject      `db:"extras"`
}

// payload renders the row with the domain's own column names. NULL columns
// are left out.
func (r inventoryRow) payload(s tableSpec) map[string]any {
	out := map[string]any{"id": r.ID, "name": r.Name}
	str := func(k string, v sql.NullString) {
		if v.Valid && v.String != "" {
			out[k] = v.String
		}
	}
	num := func(k string, v sql.NullFloat64) {
		if v.Valid {
			out[k] = v.Float64
		}
	}
	str("description", r.Description)
	str("address", r.Address)
	str("city", r.City)
	num("latitude", r.Lat)
	num("longitude", r.Lng)
	if r.PriceLevel.Valid && r.PriceLevel.Int64 > 0 {
		out["price_level"] = r.PriceLevel.Int64
	}
	num(s.price, r.Price)
	str("currency", r.Currency)
	num("rating", r.Rating)
	str(s.category, r.Category)
	if len(r.Amenities) > 0 {
		out[s.amenity] = []string(r.Amenities)
	}
	if len(r.Images) > 0 {
		out["images"] = []string(r.Images)
	}
	str("phone", r.Phone)
	str("email", r.Email)
	str("website", r.Website)
	for k, v := range r.Extras {
		if v == nil {
			continue
		}
		if _, taken := out[k]; !taken {
			out[k] = v
		}
	}
	return out
}

// Repo is the relational inventory store behind filtered search.
type Repo struct{ db *sqlx.DB }

func New(db *sqlx.DB) *Repo { return &Repo{db: db} }

// Open connects with the mysql driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql connect: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func (r *Repo) Search(ctx context.Context, d domain.Domain, p domain.FilterParams) ([]map[string]any, error) {
	s, err := specFor(d)
	if err != nil {
		return nil, err
	}
	q, args := s.searchSQL(p)

	start := time.Now()
	var rows []inventoryRow
	err = r.db.SelectContext(ctx, &rows, q, args...)
	observability.ObserveExternal("mysql", "search_"+string(d), statusOf(err), time.Since(start))
	if err != nil {
		return nil, classify(err)
	}
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.payload(s))
	}
	return out, nil
}

func (r *Repo) Upsert(ctx context.Context, rec domain.CanonicalRecord) error {
	s, err := specFor(rec.Domain)
	if err != nil {
		return err
	}
	args := map[string]any{
		"id":          rec.ID,
		"name":        rec.Name,
		"description": valStr(rec.Description),
		"address":     valStr(rec.Location.Text),
		"city":        valStr(strings.ToLower(rec.Location.City)),
		"lat":         valF64(rec.Location.Lat),
		"lng":         valF64(rec.Location.Lng),
		"price_level": valInt(rec.PriceRange.Level),
		"price":       valF64(rec.PriceRange.Amount),
		"currency":    valStr(rec.PriceRange.Currency),
		"rating":      nil,
		"category":    valStr(rec.Category),
		"amenities":   valJSON(rec.Amenities),
		"images":      valJSON(rec.Images),
		"phone":       nil,
		"email":       nil,
		"website":     nil,
	}
	if rec.HasRating() {
		args["rating"] = rec.Rating
	}
	if c := rec.Contact; c != nil {
		args["phone"], args["email"], args["website"] = valStr(c.Phone), valStr(c.Email), valStr(c.Website)
	}
	for _, e := range s.extras {
		args["x_"+e] = valStr(rec.Attributes[e])
	}

	start := time.Now()
	_, err = r.db.NamedExecContext(ctx, s.upsertSQL(), args)
	observability.ObserveExternal("mysql", "upsert_"+string(rec.Domain), statusOf(err), time.Since(start))
	return classify(err)
}

// classify maps transient driver failures onto ErrBackendUnavailable so the
// search capability retries them.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, gomysql.ErrInvalidConn) {
		return fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	var me *gomysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case 1040, 1205, 1213: // too many connections, lock wait timeout, deadlock
			return fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
		}
	}
	return err
}

func statusOf(err error) int {
	if err != nil {
		return 500
	}
	return 200
}
