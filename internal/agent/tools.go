package agent

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/schema"

	"trip_planner/internal/domain"
)

// filterParamsFor declares the filtered-search parameters of each domain.
// Every domain takes a location except transport, which takes a route.
func filterParamsFor(d domain.Domain) map[string]*schema.ParameterInfo {
	common := map[string]*schema.ParameterInfo{
		"max_price":   {Type: schema.Number, Desc: "Maximum price in EUR"},
		"min_rating":  {Type: schema.Number, Desc: "Minimum rating from 0 to 5"},
		"price_level": {Type: schema.Integer, Desc: "Price level from 1 (cheap) to 4 (luxury)"},
		"limit":       {Type: schema.Integer, Desc: "Maximum number of results"},
	}
	switch d {
	case domain.Lodging:
		common["location"] = &schema.ParameterInfo{Type: schema.String, Desc: "City or area"}
		common["accommodation_type"] = &schema.ParameterInfo{Type: schema.String, Desc: "hotel, b&b, apartment, hostel, villa"}
		common["guests"] = &schema.ParameterInfo{Type: schema.Integer, Desc: "Number of guests"}
	case domain.Dining:
		common["location"] = &schema.ParameterInfo{Type: schema.String, Desc: "City or area"}
		common["cuisine"] = &schema.ParameterInfo{Type: schema.String, Desc: "Cuisine, e.g. romana, pizza, pesce"}
	case domain.Activity:
		common["location"] = &schema.ParameterInfo{Type: schema.String, Desc: "City or area"}
		common["category"] = &schema.ParameterInfo{Type: schema.String, Desc: "museum, tour, outdoor, food, nightlife"}
	case domain.Transport:
		common["origin"] = &schema.ParameterInfo{Type: schema.String, Desc: "Departure city"}
		common["destination"] = &schema.ParameterInfo{Type: schema.String, Desc: "Arrival city"}
		common["transport_type"] = &schema.ParameterInfo{Type: schema.String, Desc: "train, bus, ferry, flight, car"}
	}
	return common
}

// Tools is the tool catalog of one domain agent, derived from the domain.
func Tools(d domain.Domain) []*schema.ToolInfo {
	label := d.Label("en")
	return []*schema.ToolInfo{
		{
			Name:        domain.ToolName(d, domain.ToolFiltered),
			Desc:        fmt.Sprintf("Search %s with structured filters.", label),
			ParamsOneOf: schema.NewParamsOneOfByParams(filterParamsFor(d)),
		},
		{
			Name: domain.ToolName(d, domain.ToolSemantic),
			Desc: fmt.Sprintf("Find %s similar to a free text description.", label),
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query":     {Type: schema.String, Desc: "What the traveller is looking for", Required: true},
				"limit":     {Type: schema.Integer, Desc: "Maximum number of results"},
				"threshold": {Type: schema.Number, Desc: "Minimum similarity between 0 and 1"},
			}),
		},
	}
}

// categoryArg is the domain's name for FilterParams.Category.
func categoryArg(d domain.Domain) string {
	switch d {
	case domain.Lodging:
		return "accommodation_type"
	case domain.Dining:
		return "cuisine"
	case domain.Transport:
		return "transport_type"
	}
	return "category"
}

// paramsFromArgs maps tool arguments onto FilterParams. Unknown keys are
// ignored, numbers may arrive as strings.
func paramsFromArgs(d domain.Domain, args map[string]any) domain.FilterParams {
	p := domain.FilterParams{
		Location:    argString(args, "location"),
		Origin:      argString(args, "origin"),
		Destination: argString(args, "destination"),
		Category:    argString(args, categoryArg(d)),
		Guests:      argInt(args, "guests"),
		Limit:       argInt(args, "limit"),
		MaxPrice:    argFloat(args, "max_price"),
		MinRating:   argFloat(args, "min_rating"),
	}
	if lvl := argInt(args, "price_level"); lvl > 0 {
		p.MinPriceLevel, p.MaxPriceLevel = lvl, lvl
	}
	if d == domain.Transport && p.Destination == "" {
		p.Destination = p.Location
		p.Location = ""
	}
	return p
}

// argsFromParams is the inverse, used to record deterministic calls.
func argsFromParams(d domain.Domain, p domain.FilterParams) map[string]any {
	out := map[string]any{}
	put := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	put("location", p.Location)
	put("origin", p.Origin)
	put("destination", p.Destination)
	put(categoryArg(d), p.Category)
	if p.Guests > 0 {
		out["guests"] = p.Guests
	}
	if p.MinPriceLevel > 0 {
		out["min_price_level"] = p.MinPriceLevel
	}
	if p.MaxPriceLevel > 0 {
		out["max_price_level"] = p.MaxPriceLevel
	}
	if p.Limit > 0 {
		out["limit"] = p.Limit
	}
	return out
}

func parseArgs(raw string) (map[string]any, error) {
	args := map[string]any{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("invalid tool arguments: %w", err)
	}
	return args, nil
}

func argString(args map[string]any, k string) string {
	switch v := args[k].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func argFloat(args map[string]any, k string) *float64 {
	switch v := args[k].(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return &f
		}
	}
	return nil
}

func argInt(args map[string]any, k string) int {
	if f := argFloat(args, k); f != nil && *f > 0 {
		return int(*f)
	}
	return 0
}
