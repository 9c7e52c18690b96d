package domain

import (
	"sort"
	"strings"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ConversationContext is the immutable input of one orchestration: the
// current query plus a bounded tail of prior turns. Build it with
// NewConversationContext; accessors hand out copies.
type ConversationContext struct {
	query   string
	history []Message
}

// NewConversationContext trims the query, drops empty messages and keeps
// only the last limit turns of history. limit <= 0 keeps no history.
func NewConversationContext(query string, history []Message, limit int) ConversationContext {
	kept := make([]Message, 0, len(history))
	for _, m := range history {
		c := strings.TrimSpace(m.Content)
		if c == "" {
			continue
		}
		role := m.Role
		if role == "" {
			role = RoleUser
		}
		kept = append(kept, Message{Role: role, Content: c})
	}
	if limit <= 0 {
		kept = nil
	} else if len(kept) > limit {
		kept = kept[len(kept)-limit:]
	}
	return ConversationContext{query: strings.TrimSpace(query), history: kept}
}

func (c ConversationContext) Query() string { return c.query }

func (c ConversationContext) History() []Message {
	out := make([]Message, len(c.history))
	copy(out, c.history)
	return out
}

// UserTurns returns prior user messages, most recent first.
func (c ConversationContext) UserTurns() []string {
	var out []string
	for i := len(c.history) - 1; i >= 0; i-- {
		if c.history[i].Role == RoleUser {
			out = append(out, c.history[i].Content)
		}
	}
	return out
}

// Prompt renders the contextualized prompt handed to each Domain Agent.
func (c ConversationContext) Prompt() string {
	if len(c.history) == 0 {
		return c.query
	}
	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	for _, m := range c.history {
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteByte('\n')
	}
	b.WriteString("\nCurrent request: ")
	b.WriteString(c.query)
	return b.String()
}

type SearchTerms struct {
	Location   string `json:"location,omitempty"`
	Budget     string `json:"budget,omitempty"`
	BudgetTier string `json:"budgetTier,omitempty"`
	GroupSize  string `json:"groupSize,omitempty"`
	Occasion   string `json:"occasion,omitempty"`
}

func (t SearchTerms) Empty() bool { return t == SearchTerms{} }

type QueryAnalysis struct {
	DetectedDomains   []Domain           `json:"detectedDomains"`
	Confidence        map[Domain]float64 `json:"confidence"`
	GeneralConfidence float64            `json:"generalConfidence"`
	IsGeneral         bool               `json:"isGeneral"`
	SearchTerms       SearchTerms        `json:"searchTerms"`
	HasDateRange      bool               `json:"hasDateRange"`
}

// MaxConfidence is the highest per-domain confidence.
func (a QueryAnalysis) MaxConfidence() float64 {
	m := 0.0
	for _, v := range a.Confidence {
		if v > m {
			m = v
		}
	}
	return m
}

// RankDomains orders domains by descending score; equal scores keep
// declaration order.
func RankDomains(ds []Domain, score map[Domain]float64) []Domain {
	out := make([]Domain, len(ds))
	copy(out, ds)
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := score[out[i]], score[out[j]]
		if si != sj {
			return si > sj
		}
		return out[i].Index() < out[j].Index()
	})
	return out
}
