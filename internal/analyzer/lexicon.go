package analyzer

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"trip_planner/internal/domain"
)

//go:embed lexicon.yaml
var defaultLexicon []byte

// Thresholds drive the general/selective decision. All confidences are in
// [0,1].
type Thresholds struct {
	General      float64 `yaml:"general"`
	Selectivity  float64 `yaml:"selectivity"`
	LowDomain    float64 `yaml:"low_domain"`
	MinGeneral   float64 `yaml:"min_general"`
	Saturation   float64 `yaml:"saturation"`
	LengthWeight float64 `yaml:"length_weight"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{General: 0.3, Selectivity: 0.2, LowDomain: 0.15, MinGeneral: 0.1, Saturation: 3.0, LengthWeight: 0.1}
}

// budgetTiers fixes the order tiers are checked in. Tiers not listed here
// are checked afterwards in name order.
var budgetTiers = []string{"economy", "mid", "luxury"}

// Lexicon holds the marker tables the analyzer scores against. Build it
// with Parse, LoadFile or Default; the zero value is not usable.
type Lexicon struct {
	Thresholds           Thresholds          `yaml:"thresholds"`
	Domains              map[string][]string `yaml:"domains"`
	General              []string            `yaml:"general"`
	Budget               map[string][]string `yaml:"budget"`
	Occasions            []string            `yaml:"occasions"`
	Months               []string            `yaml:"months"`
	Currencies           []string            `yaml:"currencies"`
	Numbers              map[string]int      `yaml:"numbers"`
	GroupWords           map[string]int      `yaml:"group_words"`
	GroupNouns           []string            `yaml:"group_nouns"`
	LocationPrepositions []string            `yaml:"location_prepositions"`
	Places               []string            `yaml:"places"`

	domainTerms map[domain.Domain][]string
	tierOrder   []string
	groupRe     *regexp.Regexp
	locationRe  *regexp.Regexp
	reserved    map[string]struct{}
}

// Default returns the compiled-in tables.
func Default() *Lexicon {
	l, err := Parse(defaultLexicon)
	if err != nil {
		panic(fmt.Sprintf("analyzer: embedded lexicon invalid: %v", err))
	}
	return l
}

func LoadFile(path string) (*Lexicon, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon %s: %w", path, err)
	}
	l, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("lexicon %s: %w", path, err)
	}
	return l, nil
}

// Parse decodes and validates a lexicon. Omitted thresholds keep their
// defaults.
func Parse(b []byte) (*Lexicon, error) {
	l := &Lexicon{Thresholds: DefaultThresholds()}
	if err := yaml.Unmarshal(b, l); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := l.compile(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Lexicon) compile() error {
	th := l.Thresholds
	for name, v := range map[string]float64{
		"general": th.General, "selectivity": th.Selectivity,
		"low_domain": th.LowDomain, "min_general": th.MinGeneral,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("threshold %s=%v outside [0,1]", name, v)
		}
	}
	if th.Saturation <= 0 {
		return errors.New("threshold saturation must be positive")
	}
	if th.LengthWeight < 0 {
		return errors.New("threshold length_weight must not be negative")
	}

	l.domainTerms = make(map[domain.Domain][]string, len(domain.All))
	for name, terms := range l.Domains {
		d, err := domain.ParseDomain(name)
		if err != nil || string(d) != strings.ToLower(strings.TrimSpace(name)) {
			return fmt.Errorf("unknown domain table %q", name)
		}
		l.domainTerms[d] = normalizeTerms(terms)
	}
	for _, d := range domain.All {
		if len(l.domainTerms[d]) == 0 {
			return fmt.Errorf("domain %s has no terms", d)
		}
	}

	l.General = normalizeTerms(l.General)
	l.Occasions = normalizeTerms(l.Occasions)
	l.Months = normalizeTerms(l.Months)
	l.Currencies = normalizeTerms(l.Currencies)
	l.GroupNouns = normalizeTerms(l.GroupNouns)
	l.Places = normalizeTerms(l.Places)
	for tier, terms := range l.Budget {
		l.Budget[tier] = normalizeTerms(terms)
	}
	l.tierOrder = tierOrder(l.Budget)

	if len(l.GroupNouns) > 0 {
		nums := []string{`\d{1,2}`}
		for w := range l.Numbers {
			nums = append(nums, regexp.QuoteMeta(normalizeText(w)))
		}
		sort.Strings(nums[1:])
		nouns := make([]string, len(l.GroupNouns))
		for i, n := range l.GroupNouns {
			nouns[i] = regexp.QuoteMeta(n)
		}
		l.groupRe = regexp.MustCompile(`(?:^| )(` + strings.Join(nums, "|") + `) (?:` + strings.Join(nouns, "|") + `)(?: |$)`)
	}

	if len(l.LocationPrepositions) > 0 {
		preps := make([]string, len(l.LocationPrepositions))
		for i, p := range l.LocationPrepositions {
			preps[i] = regexp.QuoteMeta(strings.ToLower(strings.TrimSpace(p)))
		}
		// longest first so "vicino a" wins over "a"
		sort.Slice(preps, func(i, j int) bool { return len(preps[i]) > len(preps[j]) })
		l.locationRe = regexp.MustCompile(`(?:^|[\s,(])(?i:` + strings.Join(preps, "|") + `)\s+(\p{Lu}[\p{L}'’]+(?:\s+\p{Lu}[\p{L}'’]+)*)`)
	}

	l.reserved = make(map[string]struct{})
	for _, set := range [][]string{l.General, l.Occasions, l.Months} {
		for _, t := range set {
			l.reserved[t] = struct{}{}
		}
	}
	for _, terms := range l.domainTerms {
		for _, t := range terms {
			l.reserved[t] = struct{}{}
		}
	}
	return nil
}

func tierOrder(budget map[string][]string) []string {
	out := make([]string, 0, len(budget))
	known := map[string]bool{}
	for _, t := range budgetTiers {
		known[t] = true
		if _, ok := budget[t]; ok {
			out = append(out, t)
		}
	}
	var rest []string
	for t := range budget {
		if !known[t] {
			rest = append(rest, t)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// DomainTerms exposes the normalized terms of one domain.
func (l *Lexicon) DomainTerms(d domain.Domain) []string { return l.domainTerms[d] }

// weight grows with term length so specific phrases count more than
// short generic words.
func (l *Lexicon) weight(term string) float64 {
	return 1 + l.Thresholds.LengthWeight*float64(utf8.RuneCountInString(term))
}

// score sums the weights of distinct matched terms and scales the total
// into [0,1].
func (l *Lexicon) score(padded string, terms []string) float64 {
	sum := 0.0
	for _, t := range terms {
		if contains(padded, t) {
			sum += l.weight(t)
		}
	}
	c := sum / l.Thresholds.Saturation
	if c > 1 {
		return 1
	}
	return c
}

func normalizeTerms(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, t := range in {
		n := normalizeText(t)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// normalizeText lowercases and reduces text to space separated words.
// Letters, digits and '&' survive; everything else splits words.
func normalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '&' {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// pad wraps normalized text in spaces for whole-word matching.
func pad(normalized string) string { return " " + normalized + " " }

func contains(padded, term string) bool { return strings.Contains(padded, " "+term+" ") }
