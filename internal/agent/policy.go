package agent

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"trip_planner/internal/domain"
)

// PolicyAgent applies the search policy without a language model:
// filtered search from the analyzed terms, then one semantic search when
// that yields too little.
type PolicyAgent struct {
	search domain.SearchCapability
	cfg    Config
}

func NewPolicyAgent(sc domain.SearchCapability, cfg Config) *PolicyAgent {
	return &PolicyAgent{search: sc, cfg: cfg.withDefaults()}
}

func (a *PolicyAgent) Domain() domain.Domain { return a.search.Domain() }

func (a *PolicyAgent) Run(ctx context.Context, req Request) (Run, error) {
	d := a.search.Domain()
	run := Run{Trace: domain.Trace{Domain: d}}

	p := FilterFromTerms(d, req.Terms, a.cfg.SearchLimit)
	id := callID(1)
	run.Trace.Invoke(id, domain.ToolFiltered, argsFromParams(d, p))
	first := a.search.FilteredSearch(ctx, p)
	run.Trace.Output(id, first)
	if err := ctx.Err(); err != nil {
		return run, err
	}

	total := len(first.Data)
	if !first.Success {
		total = 0
	}
	if total < a.cfg.MinResults && a.cfg.MaxSearches > 1 {
		q := broaden(d, req)
		id = callID(2)
		run.Trace.Invoke(id, domain.ToolSemantic, map[string]any{
			"query": q, "limit": a.cfg.SearchLimit, "threshold": a.cfg.SemanticThreshold,
		})
		second := a.search.SemanticSearch(ctx, q, a.cfg.SearchLimit, a.cfg.SemanticThreshold)
		run.Trace.Output(id, second)
		if second.Success {
			total += len(second.Data)
		}
	}
	run.Text = fmt.Sprintf("found %d %s", total, d.Label("en"))
	return run, nil
}

// FilterFromTerms turns analyzed search terms into filtered-search params.
// Budget tiers map onto price levels; group size only applies to lodging.
func FilterFromTerms(d domain.Domain, t domain.SearchTerms, limit int) domain.FilterParams {
	p := domain.FilterParams{Limit: limit}
	if d == domain.Transport {
		p.Destination = t.Location
	} else {
		p.Location = t.Location
	}
	switch t.BudgetTier {
	case "economy":
		p.MaxPriceLevel = 2
	case "mid":
		p.MinPriceLevel, p.MaxPriceLevel = 2, 3
	case "luxury":
		p.MinPriceLevel = 3
	}
	if d == domain.Lodging {
		if n, err := strconv.Atoi(t.GroupSize); err == nil && n > 0 {
			p.Guests = n
		}
	}
	return p
}

// broaden builds the semantic query: the user's own words, anchored to the
// domain and the location when the words do not carry them.
func broaden(d domain.Domain, req Request) string {
	q := strings.TrimSpace(req.Conversation.Query())
	low := strings.ToLower(q)
	parts := []string{q}
	if loc := req.Terms.Location; loc != "" && !strings.Contains(low, loc) {
		parts = append(parts, loc)
	}
	if label := d.Label("it"); !strings.Contains(low, strings.ToLower(label)) {
		parts = append([]string{label}, parts...)
	}
	if req.Terms.Occasion != "" && !strings.Contains(low, req.Terms.Occasion) {
		parts = append(parts, req.Terms.Occasion)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
