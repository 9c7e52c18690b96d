package mysql

import (
	"fmt"
	"strings"

	"trip_planner/internal/domain"
)

// tableSpec describes one domain table. Shared columns have the same name
// everywhere; the price, amenity and category columns keep each domain's
// own vocabulary, and extras are plain nullable text columns.
type tableSpec struct {
	table    string
	price    string
	amenity  string
	category string
	extras   []string
	// guests is the capacity column compared against FilterParams.Guests.
	guests string
}

var tables = map[domain.Domain]tableSpec{
	domain.Lodging: {
		table: "accommodations", price: "price_per_night", amenity: "amenities",
		category: "accommodation_type", extras: []string{"max_guests", "check_in"}, guests: "max_guests",
	},
	domain.Dining: {
		table: "restaurants", price: "avg_price", amenity: "menu_highlights",
		category: "cuisine", extras: []string{"opening_hours"},
	},
	domain.Activity: {
		table: "activities", price: "price", amenity: "includes",
		category: "category", extras: []string{"duration"},
	},
	domain.Transport: {
		table: "transports", price: "price", amenity: "features",
		category: "transport_type", extras: []string{"origin", "destination", "departure_time", "duration"},
	},
}

func specFor(d domain.Domain) (tableSpec, error) {
	s, ok := tables[d]
	if !ok {
		return tableSpec{}, fmt.Errorf("%w: %q", domain.ErrUnknownDomain, d)
	}
	return s, nil
}

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

// selectSQL aliases the domain columns onto inventoryRow and folds the
// extras into one JSON object.
func (s tableSpec) selectSQL() string {
	pairs := make([]string, 0, len(s.extras))
	for _, e := range s.extras {
		pairs = append(pairs, fmt.Sprintf("'%s', `%s`", e, e))
	}
	extras := "JSON_OBJECT()"
	if len(pairs) > 0 {
		extras = "JSON_OBJECT(" + strings.Join(pairs, ", ") + ")"
	}
	return fmt.Sprintf("SELECT id, name, description, address, city, lat, lng, price_level, "+
		"`%s` AS price, currency, rating, `%s` AS category, `%s` AS amenities, images, phone, email, website, "+
		"%s AS extras FROM `%s`", s.price, s.category, s.amenity, extras, s.table)
}

// searchSQL builds the filtered query and its positional args. Only
// non-empty filters become predicates.
func (s tableSpec) searchSQL(p domain.FilterParams) (string, []any) {
	var (
		where []string
		args  []any
	)
	if loc := strings.ToLower(strings.TrimSpace(p.Location)); loc != "" {
		where = append(where, "(LOWER(city) = ? OR LOWER(address) LIKE ?)")
		args = append(args, loc, "%"+loc+"%")
	}
	if s.has("origin") {
		if v := strings.ToLower(strings.TrimSpace(p.Origin)); v != "" {
			where = append(where, "LOWER(origin) = ?")
			args = append(args, v)
		}
		if v := strings.ToLower(strings.TrimSpace(p.Destination)); v != "" {
			where = append(where, "LOWER(destination) = ?")
			args = append(args, v)
		}
	}
	if v := strings.ToLower(strings.TrimSpace(p.Category)); v != "" {
		where = append(where, fmt.Sprintf("LOWER(`%s`) = ?", s.category))
		args = append(args, v)
	}
	if p.MinPriceLevel > 0 {
		where = append(where, "price_level >= ?")
		args = append(args, p.MinPriceLevel)
	}
	if p.MaxPriceLevel > 0 {
		where = append(where, "price_level <= ?")
		args = append(args, p.MaxPriceLevel)
	}
	if p.MaxPrice != nil {
		where = append(where, fmt.Sprintf("`%s` <= ?", s.price))
		args = append(args, *p.MaxPrice)
	}
	if p.MinRating != nil {
		where = append(where, "rating >= ?")
		args = append(args, *p.MinRating)
	}
	if s.guests != "" && p.Guests > 0 {
		where = append(where, fmt.Sprintf("(`%s` IS NULL OR `%s` >= ?)", s.guests, s.guests))
		args = append(args, p.Guests)
	}

	q := s.selectSQL()
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY rating IS NULL, rating DESC, name LIMIT ?"
	args = append(args, p.Limit)
	return q, args
}

func (s tableSpec) has(col string) bool {
	for _, e := range s.extras {
		if e == col {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// WRITE QUERIES
// -----------------------------------------------------------------------------

// upsertSQL uses named params; extras bind as :x_<column>.
func (s tableSpec) upsertSQL() string {
	cols := []string{"id", "name", "description", "address", "city", "lat", "lng", "price_level",
		s.price, "currency", "rating", s.category, s.amenity, "images", "phone", "email", "website"}
	params := []string{":id", ":name", ":description", ":address", ":city", ":lat", ":lng", ":price_level",
		":price", ":currency", ":rating", ":category", ":amenities", ":images", ":phone", ":email", ":website"}
	for _, e := range s.extras {
		cols = append(cols, e)
		params = append(params, ":x_"+e)
	}
	quoted := make([]string, len(cols))
	updates := make([]string, 0, len(cols)-1)
	for i, c := range cols {
		quoted[i] = "`" + c + "`"
		if c != "id" {
			updates = append(updates, fmt.Sprintf("`%s` = VALUES(`%s`)", c, c))
		}
	}
	updates = append(updates, "updated_at = CURRENT_TIMESTAMP")
	return fmt.Sprintf("INSERT INTO `%s` (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
		s.table, strings.Join(quoted, ", "), strings.Join(params, ", "), strings.Join(updates, ", "))
}
