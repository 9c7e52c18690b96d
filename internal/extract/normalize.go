package extract

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"

	"trip_planner/internal/domain"
)

/********** alias registries (single source of truth) **********/

// commonAliases maps each canonical field to its synonyms, in preference
// order. Domain tables below extend or reorder them.
var commonAliases = map[string][]string{
	"id":          {"id", "record_id", "external_id", "uuid", "code"},
	"name":        {"name", "title", "display_name"},
	"description": {"description", "summary", "details", "short_description", "overview"},
	"address":     {"address", "location.address", "full_address", "address_raw", "location_text", "location"},
	"city":        {"city", "location.city", "address.city", "town", "locality"},
	"lat":         {"latitude", "lat", "location.lat", "coordinates.lat"},
	"lng":         {"longitude", "lng", "lon", "location.lng", "location.lon", "coordinates.lng"},
	"price_level": {"price_level", "price_range", "price_tier", "pricing.level"},
	"price":       {"price", "price_per_night", "price_from", "avg_price", "cost", "pricing.amount"},
	"currency":    {"currency", "pricing.currency", "currency_code"},
	"rating":      {"rating", "stars", "score", "rating.value", "average_rating", "review_score"},
	"amenities":   {"amenities", "menu_highlights", "includes", "features", "facilities", "services"},
	"images":      {"images", "photos", "image_urls", "gallery", "image"},
	"phone":       {"phone", "contact.phone", "telephone", "phone_number"},
	"email":       {"email", "contact.email"},
	"website":     {"website", "url", "contact.website", "booking_url", "link"},
}

type normalizer struct {
	domain     domain.Domain
	aliases    map[string][]string
	category   []string
	attributes map[string][]string
}

func withOverrides(over map[string][]string) map[string][]string {
	out := make(map[string][]string, len(commonAliases))
	for k, v := range commonAliases {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

var (
	lodgingNormalizer = normalizer{
		domain: domain.Lodging,
		aliases: withOverrides(map[string][]string{
			"name":      {"name", "hotel_name", "property_name", "title"},
			"price":     {"price_per_night", "nightly_rate", "price", "price_from"},
			"amenities": {"amenities", "facilities", "features", "services", "includes", "menu_highlights"},
		}),
		category: []string{"accommodation_type", "property_type", "type", "category"},
		attributes: map[string][]string{
			"max_guests": {"max_guests", "capacity", "guests"},
			"check_in":   {"check_in", "checkin_time"},
		},
	}
	diningNormalizer = normalizer{
		domain: domain.Dining,
		aliases: withOverrides(map[string][]string{
			"name":      {"name", "restaurant_name", "title"},
			"price":     {"avg_price", "average_cost", "price", "price_from"},
			"amenities": {"menu_highlights", "specialties", "dishes", "amenities", "features", "includes"},
		}),
		category: []string{"cuisine", "cuisine_type", "category", "type"},
		attributes: map[string][]string{
			"opening_hours": {"opening_hours", "hours"},
		},
	}
	activityNormalizer = normalizer{
		domain: domain.Activity,
		aliases: withOverrides(map[string][]string{
			"name":      {"name", "title", "activity_name", "tour_name"},
			"amenities": {"includes", "included", "highlights", "amenities", "features", "menu_highlights"},
		}),
		category: []string{"category", "activity_type", "type"},
		attributes: map[string][]string{
			"duration": {"duration", "duration_text", "length"},
		},
	}
	transportNormalizer = normalizer{
		domain: domain.Transport,
		aliases: withOverrides(map[string][]string{
			"name":      {"name", "provider", "operator", "carrier", "title"},
			"city":      {"origin", "city", "departure_city", "from"},
			"price":     {"price", "fare", "price_from", "cost"},
			"amenities": {"features", "amenities", "services", "includes", "menu_highlights"},
		}),
		category: []string{"transport_type", "mode", "type", "category"},
		attributes: map[string][]string{
			"origin":         {"origin", "departure_city", "from"},
			"destination":    {"destination", "arrival_city", "to"},
			"departure_time": {"departure_time", "departure"},
			"duration":       {"duration", "travel_time"},
		},
	}
)

func normalizerFor(d domain.Domain) (normalizer, error) {
	switch d {
	case domain.Lodging:
		return lodgingNormalizer, nil
	case domain.Dining:
		return diningNormalizer, nil
	case domain.Activity:
		return activityNormalizer, nil
	case domain.Transport:
		return transportNormalizer, nil
	}
	return normalizer{}, fmt.Errorf("%w: %q", domain.ErrUnknownDomain, d)
}

// Normalize maps one backend item of domain d onto the canonical record.
// Items without a name are rejected.
func Normalize(d domain.Domain, raw map[string]any, src domain.Source) (domain.CanonicalRecord, error) {
	n, err := normalizerFor(d)
	if err != nil {
		return domain.CanonicalRecord{}, err
	}
	return n.normalize(raw, src)
}

func (n normalizer) normalize(raw map[string]any, src domain.Source) (domain.CanonicalRecord, error) {
	if raw == nil {
		return domain.CanonicalRecord{}, fmt.Errorf("%w: nil item", domain.ErrMalformedPayload)
	}
	name := firstAlias(raw, n.aliases, "name")
	if name == "" {
		return domain.CanonicalRecord{}, fmt.Errorf("%w: %s item without name", domain.ErrMalformedPayload, n.domain)
	}

	rec := domain.CanonicalRecord{
		Name:        name,
		Domain:      n.domain,
		Description: firstAlias(raw, n.aliases, "description"),
		Location: domain.Location{
			Text: n.locationText(raw),
			City: strings.ToLower(firstAlias(raw, n.aliases, "city")),
			Lat:  getFloatFlexible(raw, n.aliases["lat"]...),
			Lng:  getFloatFlexible(raw, n.aliases["lng"]...),
		},
		PriceRange: n.priceRange(raw),
		Rating:     normalizeRating(getFloatFlexible(raw, n.aliases["rating"]...)),
		Amenities:  firstSliceStrings(raw, n.aliases["amenities"]...),
		Images:     firstSliceStrings(raw, n.aliases["images"]...),
		Category:   strings.ToLower(firstString(raw, n.category...)),
		Source:     src,
	}

	contact := &domain.Contact{
		Phone:   firstAlias(raw, n.aliases, "phone"),
		Email:   firstAlias(raw, n.aliases, "email"),
		Website: firstAlias(raw, n.aliases, "website"),
	}
	if !contact.Empty() {
		rec.Contact = contact
	}

	for attr, paths := range n.attributes {
		if v := firstString(raw, paths...); v != "" {
			if rec.Attributes == nil {
				rec.Attributes = make(map[string]string, len(n.attributes))
			}
			rec.Attributes[attr] = v
		}
	}

	rec.ID = n.recordID(raw, rec)
	return rec, nil
}

// recordID prefixes the source id with the domain so ids from different
// tables never collide. Items without an id get a stable hash of name and
// location.
func (n normalizer) recordID(raw map[string]any, rec domain.CanonicalRecord) string {
	prefix := string(n.domain) + ":"
	if id := firstAlias(raw, n.aliases, "id"); id != "" {
		if strings.HasPrefix(id, prefix) {
			return id
		}
		return prefix + id
	}
	sig := strings.ToLower(strings.Join([]string{rec.Name, rec.Location.Text, rec.Location.City}, "|"))
	sum := sha1.Sum([]byte(sig))
	return prefix + hex.EncodeToString(sum[:8])
}

func (n normalizer) locationText(raw map[string]any) string {
	if n.domain == domain.Transport {
		from := firstString(raw, n.attributes["origin"]...)
		to := firstString(raw, n.attributes["destination"]...)
		if from != "" && to != "" {
			return from + " → " + to
		}
	}
	// "location" may be an object; only accept plain strings here
	for _, p := range n.aliases["address"] {
		if s, ok := lookupAny(raw, p).(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return firstAlias(raw, n.aliases, "city")
}

func (n normalizer) priceRange(raw map[string]any) domain.PriceRange {
	var pr domain.PriceRange
	if s := firstAlias(raw, n.aliases, "price_level"); s != "" {
		pr.Label = s
		pr.Level = priceLevel(s)
	}
	if f := getFloatFlexible(raw, n.aliases["price"]...); f != nil && *f >= 0 {
		pr.Amount = f
		pr.Currency = strings.ToUpper(firstAlias(raw, n.aliases, "currency"))
		if pr.Currency == "" {
			pr.Currency = currencyFromText(firstString(raw, n.aliases["price"]...))
		}
	}
	return pr
}

// priceLevel reads "€€", "$$$", "2" or a budget word as an ordinal 1..4.
func priceLevel(s string) int {
	s = strings.TrimSpace(strings.ToLower(s))
	if n := strings.Count(s, "€") + strings.Count(s, "$") + strings.Count(s, "£"); n > 0 {
		return clampLevel(n)
	}
	if f, ok := parseFlexibleFloat(s); ok {
		return clampLevel(int(f))
	}
	switch s {
	case "cheap", "budget", "economico", "economica", "low", "inexpensive":
		return 1
	case "moderate", "mid", "medium", "medio", "moderato":
		return 2
	case "expensive", "high", "upscale", "caro":
		return 3
	case "luxury", "lusso", "premium":
		return 4
	}
	return 0
}

func clampLevel(n int) int {
	if n < 1 {
		return 0
	}
	if n > 4 {
		return 4
	}
	return n
}

func currencyFromText(s string) string {
	switch {
	case strings.Contains(s, "€"), strings.Contains(strings.ToUpper(s), "EUR"):
		return "EUR"
	case strings.Contains(s, "$"), strings.Contains(strings.ToUpper(s), "USD"):
		return "USD"
	case strings.Contains(s, "£"), strings.Contains(strings.ToUpper(s), "GBP"):
		return "GBP"
	}
	return ""
}

// normalizeRating maps ratings onto 0..5. Ten-point scores are halved;
// anything missing or out of range becomes the sentinel.
func normalizeRating(f *float64) float64 {
	if f == nil || *f < 0 {
		return domain.RatingUnknown
	}
	r := *f
	if r > 5 && r <= 10 {
		r /= 2
	}
	if r > 5 {
		return domain.RatingUnknown
	}
	return r
}
