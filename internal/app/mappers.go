package app

import (
	"strings"

	"trip_planner/internal/domain"
)

/********** field registries (single source of truth) **********/

// payloadNames gives each canonical field its column name in the domain's
// own schema. Semantic hits carry these names so both search forms hand the
// extractor the same shape.
var payloadNames = map[domain.Domain]map[string]string{
	domain.Lodging: {
		"price":     "price_per_night",
		"amenities": "amenities",
		"category":  "accommodation_type",
	},
	domain.Dining: {
		"price":     "avg_price",
		"amenities": "menu_highlights",
		"category":  "cuisine",
	},
	domain.Activity: {
		"price":     "price",
		"amenities": "includes",
		"category":  "category",
	},
	domain.Transport: {
		"price":     "price",
		"amenities": "features",
		"category":  "transport_type",
	},
}

/********** record mapper **********/

// PayloadFor renders rec in its domain's own field names.
func PayloadFor(rec domain.CanonicalRecord) map[string]any {
	names := payloadNames[rec.Domain]
	out := map[string]any{
		"id":          rec.ID,
		"name":        rec.Name,
		"description": rec.Description,
		"address":     rec.Location.Text,
		"city":        rec.Location.City,
	}
	if rec.Location.Lat != nil && rec.Location.Lng != nil {
		out["latitude"], out["longitude"] = *rec.Location.Lat, *rec.Location.Lng
	}
	if rec.PriceRange.Label != "" {
		out["price_range"] = rec.PriceRange.Label
	} else if rec.PriceRange.Level > 0 {
		out["price_range"] = strings.Repeat("€", rec.PriceRange.Level)
	}
	if rec.PriceRange.Amount != nil {
		out[names["price"]] = *rec.PriceRange.Amount
		if rec.PriceRange.Currency != "" {
			out["currency"] = rec.PriceRange.Currency
		}
	}
	if rec.HasRating() {
		out["rating"] = rec.Rating
	}
	if len(rec.Amenities) > 0 {
		out[names["amenities"]] = append([]string(nil), rec.Amenities...)
	}
	if len(rec.Images) > 0 {
		out["images"] = append([]string(nil), rec.Images...)
	}
	if rec.Category != "" {
		out[names["category"]] = rec.Category
	}
	if rec.Contact != nil {
		for k, v := range map[string]string{"phone": rec.Contact.Phone, "email": rec.Contact.Email, "website": rec.Contact.Website} {
			if v != "" {
				out[k] = v
			}
		}
	}
	for k, v := range rec.Attributes {
		if _, taken := out[k]; !taken {
			out[k] = v
		}
	}
	return out
}

// EmbeddingText is the text indexed for semantic search.
func EmbeddingText(rec domain.CanonicalRecord) string {
	parts := []string{rec.Name}
	if rec.Category != "" {
		parts = append(parts, rec.Category)
	}
	if rec.Location.Text != "" {
		parts = append(parts, rec.Location.Text)
	} else if rec.Location.City != "" {
		parts = append(parts, rec.Location.City)
	}
	if rec.Description != "" {
		parts = append(parts, rec.Description)
	}
	if len(rec.Amenities) > 0 {
		parts = append(parts, strings.Join(rec.Amenities, ", "))
	}
	return strings.Join(parts, ". ")
}
