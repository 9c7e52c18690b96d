package agent

import (
	"bytes"
	_ "embed"
	"strings"
	"text/template"

	"trip_planner/internal/domain"
)

//go:embed prompts/domain.tmpl
var domainPromptRaw string

var domainPrompt = template.Must(template.New("domain").Parse(domainPromptRaw))

var hints = map[domain.Domain]string{
	domain.Lodging:   "Filters: location, accommodation_type, guests, max_price, min_rating, price_level.",
	domain.Dining:    "Filters: location, cuisine, max_price, min_rating, price_level.",
	domain.Activity:  "Filters: location, category, max_price, min_rating.",
	domain.Transport: "Filters: origin, destination, transport_type, max_price.",
}

// SystemPrompt renders the policy text of the domain agent.
func SystemPrompt(d domain.Domain, cfg Config) string {
	cfg = cfg.withDefaults()
	var b bytes.Buffer
	_ = domainPrompt.Execute(&b, map[string]any{
		"Label":       d.Label("en"),
		"Filtered":    domain.ToolName(d, domain.ToolFiltered),
		"Semantic":    domain.ToolName(d, domain.ToolSemantic),
		"Hint":        hints[d],
		"MinResults":  cfg.MinResults,
		"MaxSearches": cfg.MaxSearches,
	})
	return strings.TrimSpace(b.String())
}
