// Package analyzer turns a user utterance into a QueryAnalysis: which
// domains to query, how confident each is, and the search terms to pass
// along. It is pure lexicon scoring; no model calls.
package analyzer

import (
	"sync/atomic"

	"trip_planner/internal/domain"
)

type Analyzer struct {
	lex atomic.Pointer[Lexicon]
}

// New returns an analyzer over lex, or the embedded default when nil.
func New(lex *Lexicon) *Analyzer {
	if lex == nil {
		lex = Default()
	}
	a := &Analyzer{}
	a.lex.Store(lex)
	return a
}

func (a *Analyzer) Lexicon() *Lexicon { return a.lex.Load() }

// Swap installs a new lexicon for subsequent calls. In-flight calls keep
// the one they started with.
func (a *Analyzer) Swap(lex *Lexicon) {
	if lex != nil {
		a.lex.Store(lex)
	}
}

// Analyze scores the current query. History only fills search terms the
// query leaves empty; it never changes which domains are selected.
func (a *Analyzer) Analyze(cc domain.ConversationContext) domain.QueryAnalysis {
	lex := a.lex.Load()
	th := lex.Thresholds

	out := domain.QueryAnalysis{
		DetectedDomains: []domain.Domain{},
		Confidence:      make(map[domain.Domain]float64, len(domain.All)),
	}
	norm := normalizeText(cc.Query())
	if norm == "" {
		return out
	}
	padded := pad(norm)

	maxDomain := 0.0
	for _, d := range domain.All {
		c := lex.score(padded, lex.domainTerms[d])
		out.Confidence[d] = c
		if c > maxDomain {
			maxDomain = c
		}
	}
	general := make([]string, 0, len(lex.General)+len(lex.Occasions)+len(lex.Months))
	general = append(append(append(general, lex.General...), lex.Occasions...), lex.Months...)
	out.GeneralConfidence = lex.score(padded, general)
	out.HasDateRange = lex.hasDateRange(cc.Query(), padded)

	out.SearchTerms = lex.extractTerms(cc.Query())
	queryLocation := out.SearchTerms.Location
	for _, turn := range cc.UserTurns() {
		fill(&out.SearchTerms, lex.extractTerms(turn))
	}

	switch {
	case out.GeneralConfidence > th.General,
		out.HasDateRange,
		maxDomain < th.LowDomain && out.GeneralConfidence > th.MinGeneral:
		out.IsGeneral = true
		out.DetectedDomains = append(out.DetectedDomains, domain.All...)
		return out
	}

	var selected []domain.Domain
	for _, d := range domain.All {
		if out.Confidence[d] > th.Selectivity {
			selected = append(selected, d)
		}
	}
	if len(selected) == 0 && queryLocation != "" {
		out.DetectedDomains = append(out.DetectedDomains, domain.All...)
		return out
	}
	out.DetectedDomains = append(out.DetectedDomains, domain.RankDomains(selected, out.Confidence)...)
	return out
}
