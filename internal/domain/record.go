package domain

import (
	"fmt"
	"strings"
)

// Domain is one of the four inventory backends. The set is closed: every
// switch over Domain in this module is expected to cover all of All.
type Domain string

const (
	Lodging   Domain = "lodging"
	Dining    Domain = "dining"
	Activity  Domain = "activity"
	Transport Domain = "transport"
)

// All lists the domains in declaration order. Ties in analyzer confidence
// and the fallback fan-out both follow this order.
var All = []Domain{Lodging, Dining, Activity, Transport}

func (d Domain) Valid() bool {
	switch d {
	case Lodging, Dining, Activity, Transport:
		return true
	}
	return false
}

// Index returns the declaration position of d, or -1 for unknown values.
func (d Domain) Index() int {
	for i, x := range All {
		if x == d {
			return i
		}
	}
	return -1
}

// Label is the plural noun used in summaries.
func (d Domain) Label(lang string) string {
	it := strings.HasPrefix(strings.ToLower(lang), "it")
	switch d {
	case Lodging:
		if it {
			return "alloggi"
		}
		return "places to stay"
	case Dining:
		if it {
			return "ristoranti"
		}
		return "restaurants"
	case Activity:
		if it {
			return "attività"
		}
		return "activities"
	case Transport:
		if it {
			return "trasporti"
		}
		return "transport options"
	}
	return string(d)
}

// ParseDomain accepts the canonical names plus a few common aliases.
func ParseDomain(s string) (Domain, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lodging", "accommodation", "accommodations", "hotel", "hotels":
		return Lodging, nil
	case "dining", "restaurant", "restaurants", "food":
		return Dining, nil
	case "activity", "activities", "experience", "experiences":
		return Activity, nil
	case "transport", "transportation", "transfer", "transfers":
		return Transport, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDomain, s)
}

// RatingUnknown marks a record whose source carried no rating.
const RatingUnknown = -1.0

// Source tells which search form produced a record.
type Source string

const (
	SourceFiltered Source = "filtered"
	SourceSemantic Source = "semantic"
)

type CanonicalRecord struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Domain      Domain            `json:"domain"`
	Description string            `json:"description,omitempty"`
	Location    Location          `json:"location"`
	PriceRange  PriceRange        `json:"priceRange"`
	Rating      float64           `json:"rating"`
	Amenities   []string          `json:"amenities,omitempty"`
	Images      []string          `json:"images,omitempty"`
	Contact     *Contact          `json:"contact,omitempty"`
	Category    string            `json:"category,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Source      Source            `json:"source,omitempty"`
}

// HasRating reports whether the source provided a rating.
func (r CanonicalRecord) HasRating() bool { return r.Rating >= 0 }

type Location struct {
	Text string   `json:"text,omitempty"`
	City string   `json:"city,omitempty"`
	Lat  *float64 `json:"lat,omitempty"`
	Lng  *float64 `json:"lng,omitempty"`
}

// PriceRange is either an ordinal level (1 cheapest .. 4 most expensive),
// a concrete amount, or both. Level 0 means unknown.
type PriceRange struct {
	Level    int      `json:"level,omitempty"`
	Amount   *float64 `json:"amount,omitempty"`
	Currency string   `json:"currency,omitempty"`
	Label    string   `json:"label,omitempty"`
}

type Contact struct {
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Website string `json:"website,omitempty"`
}

func (c *Contact) Empty() bool {
	return c == nil || (c.Phone == "" && c.Email == "" && c.Website == "")
}
