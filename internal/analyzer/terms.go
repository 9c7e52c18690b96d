package analyzer

import (
	"regexp"
	"strconv"
	"strings"

	"trip_planner/internal/domain"
)

var (
	// "dal 10 al 15", "from 3 to 7", "tra il 2 e il 5" plus the word after
	// the span; matched on normalized text
	spanRe = regexp.MustCompile(`(?:^| )(dal|dall|da|from|tra|between)( il| l)? (\d{1,2})(?: [^\s\d]+)? (al|all|a|to|until|till|fino al|e|and)( il| l)? (\d{1,2})(?: (\S+))?`)
	// 10/06, 10/06/2025 and ISO dates; matched on the raw lowercase query
	slashDateRe = regexp.MustCompile(`\b\d{1,2}/\d{1,2}(?:/\d{2,4})?\b`)
	isoDateRe   = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
)

// hasDateRange detects explicit spans, calendar dates and month names.
func (l *Lexicon) hasDateRange(raw, padded string) bool {
	for _, m := range spanRe.FindAllStringSubmatch(strings.TrimSpace(padded), -1) {
		if l.isDateSpan(m) {
			return true
		}
	}
	low := strings.ToLower(raw)
	if slashDateRe.MatchString(low) || isoDateRe.MatchString(low) {
		return true
	}
	for _, m := range l.Months {
		if contains(padded, m) {
			return true
		}
	}
	return false
}

// isDateSpan decides whether a numeric span names days. A month after it
// settles it; a currency or a group noun after it means prices or people.
// Otherwise only the articulated Italian forms ("dal 3 al 7", "tra il 2 e
// il 5") with day-sized numbers count.
func (l *Lexicon) isDateSpan(m []string) bool {
	open, openArt, from, closing, closeArt, to, next := m[1], m[2], m[3], m[4], m[5], m[6], m[7]
	if next != "" {
		if l.isMonth(next) {
			return true
		}
		if l.isCurrency(next) || l.isGroupNoun(next) {
			return false
		}
	}
	for _, n := range []string{from, to} {
		if d, err := strconv.Atoi(n); err != nil || d < 1 || d > 31 {
			return false
		}
	}
	switch {
	case (open == "dal" || open == "dall") && (closing == "al" || closing == "all"):
		return true
	case open == "tra" && openArt != "" && closing == "e" && closeArt != "":
		return true
	}
	return false
}

func (l *Lexicon) isMonth(w string) bool     { return inTerms(l.Months, w) }
func (l *Lexicon) isCurrency(w string) bool  { return inTerms(l.Currencies, w) }
func (l *Lexicon) isGroupNoun(w string) bool { return inTerms(l.GroupNouns, w) }

func inTerms(terms []string, w string) bool {
	for _, t := range terms {
		if t == w {
			return true
		}
	}
	return false
}

// extractTerms pulls the optional search terms out of one utterance.
func (l *Lexicon) extractTerms(raw string) domain.SearchTerms {
	padded := pad(normalizeText(raw))
	var t domain.SearchTerms
	t.Location = l.location(raw, padded)
	t.Budget, t.BudgetTier = l.budget(padded)
	t.GroupSize = l.groupSize(padded)
	for _, o := range l.Occasions {
		if contains(padded, o) {
			t.Occasion = o
			break
		}
	}
	return t
}

// location prefers a capitalized name after a locative preposition, then
// any known place. The result is lowercased.
func (l *Lexicon) location(raw, padded string) string {
	if l.locationRe != nil {
		for _, m := range l.locationRe.FindAllStringSubmatch(raw, -1) {
			cand := normalizeText(m[1])
			if cand == "" {
				continue
			}
			if _, reserved := l.reserved[cand]; reserved {
				continue
			}
			if _, reserved := l.reserved[strings.Fields(cand)[0]]; reserved {
				continue
			}
			return cand
		}
	}
	for _, p := range l.Places {
		if contains(padded, p) {
			return p
		}
	}
	return ""
}

func (l *Lexicon) budget(padded string) (term, tier string) {
	for _, tr := range l.tierOrder {
		for _, b := range l.Budget[tr] {
			if contains(padded, b) {
				return b, tr
			}
		}
	}
	return "", ""
}

// groupSize returns the head count as a decimal string.
func (l *Lexicon) groupSize(padded string) string {
	if l.groupRe != nil {
		if m := l.groupRe.FindStringSubmatch(strings.TrimSpace(padded)); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				return strconv.Itoa(n)
			}
			for w, n := range l.Numbers {
				if normalizeText(w) == m[1] && n > 0 {
					return strconv.Itoa(n)
				}
			}
		}
	}
	best, bestLen := 0, 0
	for w, n := range l.GroupWords {
		nw := normalizeText(w)
		if contains(padded, nw) && len(nw) > bestLen {
			best, bestLen = n, len(nw)
		}
	}
	if best > 0 {
		return strconv.Itoa(best)
	}
	return ""
}

// fill copies empty fields of t from src.
func fill(t *domain.SearchTerms, src domain.SearchTerms) {
	if t.Location == "" {
		t.Location = src.Location
	}
	if t.Budget == "" {
		t.Budget, t.BudgetTier = src.Budget, src.BudgetTier
	}
	if t.GroupSize == "" {
		t.GroupSize = src.GroupSize
	}
	if t.Occasion == "" {
		t.Occasion = src.Occasion
	}
}
