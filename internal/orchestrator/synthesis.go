package orchestrator

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"trip_planner/internal/cache"
	"trip_planner/internal/domain"
)

// DomainCount is what a synthesizer gets to see: never the records.
type DomainCount struct {
	Domain domain.Domain
	Label  string
	Count  int
}

type Synthesizer interface {
	Summarize(ctx context.Context, counts []DomainCount, lang string) (string, error)
}

func isItalian(lang string) bool { return strings.HasPrefix(strings.ToLower(lang), "it") }

// NoResultsMessage is the uniform reply for an empty outcome.
func NoResultsMessage(lang string) string {
	if isItalian(lang) {
		return "Nessun risultato trovato. Prova con termini di ricerca diversi."
	}
	return "No results found. Try different search terms."
}

// TemplateSynthesizer renders a fixed sentence from the counts.
type TemplateSynthesizer struct{}

func (TemplateSynthesizer) Summarize(_ context.Context, counts []DomainCount, lang string) (string, error) {
	parts := make([]string, 0, len(counts))
	for _, c := range counts {
		if c.Count > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", c.Count, c.Domain.Label(lang)))
		}
	}
	if len(parts) == 0 {
		return NoResultsMessage(lang), nil
	}
	if isItalian(lang) {
		return "Ho trovato " + joinList(parts, " e ") + " per la tua richiesta.", nil
	}
	return "I found " + joinList(parts, " and ") + " for your request.", nil
}

func joinList(parts []string, last string) string {
	if len(parts) == 1 {
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + last + parts[len(parts)-1]
}

//go:embed prompts/summary.tmpl
var summaryPromptRaw string

var summaryPrompt = template.Must(template.New("summary").Parse(summaryPromptRaw))

// ModelSynthesizer asks a chat model for a friendlier summary. Replies are
// cached by counts and language; any model failure falls back to the
// template.
type ModelSynthesizer struct {
	model    einomodel.BaseChatModel
	cache    *cache.TTL[string]
	fallback TemplateSynthesizer
}

func NewModelSynthesizer(m einomodel.BaseChatModel, c *cache.TTL[string]) *ModelSynthesizer {
	return &ModelSynthesizer{model: m, cache: c}
}

func (s *ModelSynthesizer) Summarize(ctx context.Context, counts []DomainCount, lang string) (string, error) {
	key := summaryKey(counts, lang)
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			return v, nil
		}
	}

	prompt, err := renderSummaryPrompt(counts, lang)
	if err != nil {
		return s.fallback.Summarize(ctx, counts, lang)
	}
	msg, err := s.model.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil || msg == nil || strings.TrimSpace(msg.Content) == "" {
		log.Warn().Err(err).Msg("summary model failed, using template")
		return s.fallback.Summarize(ctx, counts, lang)
	}
	out := strings.TrimSpace(msg.Content)
	if s.cache != nil {
		s.cache.Set(key, out, 0)
	}
	return out, nil
}

func renderSummaryPrompt(counts []DomainCount, lang string) (string, error) {
	data := struct {
		Language string
		Counts   []DomainCount
	}{Language: "en", Counts: make([]DomainCount, 0, len(counts))}
	if isItalian(lang) {
		data.Language = "it"
	}
	for _, c := range counts {
		if c.Count > 0 {
			c.Label = c.Domain.Label(data.Language)
			data.Counts = append(data.Counts, c)
		}
	}
	var buf bytes.Buffer
	if err := summaryPrompt.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func summaryKey(counts []DomainCount, lang string) string {
	parts := []string{"summary", lang}
	for _, c := range counts {
		parts = append(parts, fmt.Sprintf("%s=%d", c.Domain, c.Count))
	}
	return cache.Key(parts...)
}
