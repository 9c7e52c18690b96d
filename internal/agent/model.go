package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"trip_planner/internal/domain"
)

// ModelAgent lets a tool-calling chat model drive the searches. The model
// decides arguments; this type enforces the turn and search budgets and
// keeps the trace.
type ModelAgent struct {
	search  domain.SearchCapability
	model   einomodel.ToolCallingChatModel
	system  string
	allowed map[string]domain.ToolKind
	cfg     Config
}

func NewModelAgent(m einomodel.ToolCallingChatModel, sc domain.SearchCapability, cfg Config) (*ModelAgent, error) {
	d := sc.Domain()
	cfg = cfg.withDefaults()
	tools := Tools(d)
	bound, err := m.WithTools(tools)
	if err != nil {
		return nil, fmt.Errorf("%w: bind tools for %s: %v", domain.ErrModelInvoke, d, err)
	}
	allowed := make(map[string]domain.ToolKind, len(tools))
	for _, t := range tools {
		if k, ok := domain.ParseToolName(d, t.Name); ok {
			allowed[t.Name] = k
		}
	}
	return &ModelAgent{search: sc, model: bound, system: SystemPrompt(d, cfg), allowed: allowed, cfg: cfg}, nil
}

// NewModelSet builds a model-driven agent per domain.
func NewModelSet(m einomodel.ToolCallingChatModel, p CapabilityProvider, cfg Config) (map[domain.Domain]Agent, error) {
	out := make(map[domain.Domain]Agent, len(domain.All))
	for _, d := range domain.All {
		a, err := NewModelAgent(m, p.For(d), cfg)
		if err != nil {
			return nil, err
		}
		out[d] = a
	}
	return out, nil
}

func (a *ModelAgent) Domain() domain.Domain { return a.search.Domain() }

func (a *ModelAgent) Run(ctx context.Context, req Request) (Run, error) {
	d := a.search.Domain()
	run := Run{Trace: domain.Trace{Domain: d}}
	logger := log.With().Str("domain", string(d)).Logger()

	msgs := []*schema.Message{
		schema.SystemMessage(a.system),
		schema.UserMessage(userPrompt(req)),
	}
	seq := 0
	for turn := 0; turn < a.cfg.MaxTurns; turn++ {
		msg, err := a.model.Generate(ctx, msgs)
		if err != nil {
			return run, fmt.Errorf("%w: %s turn %d: %v", domain.ErrModelInvoke, d, turn+1, err)
		}
		if msg == nil {
			return run, fmt.Errorf("%w: %s turn %d: empty response", domain.ErrModelInvoke, d, turn+1)
		}
		if len(msg.ToolCalls) == 0 {
			run.Text = strings.TrimSpace(msg.Content)
			return run, nil
		}
		msgs = append(msgs, msg)
		for _, call := range msg.ToolCalls {
			seq++
			id := call.ID
			if strings.TrimSpace(id) == "" {
				id = callID(seq)
			}
			out := a.dispatch(ctx, &run.Trace, id, call)
			msgs = append(msgs, schema.ToolMessage(out, id))
		}
		if err := ctx.Err(); err != nil {
			return run, err
		}
	}
	logger.Debug().Int("turns", a.cfg.MaxTurns).Msg("agent turn budget exhausted")
	return run, nil
}

// dispatch executes one tool call and returns the tool message content.
// Calls past the search budget or to unknown tools never reach a backend
// and are not recorded as searches.
func (a *ModelAgent) dispatch(ctx context.Context, tr *domain.Trace, id string, call schema.ToolCall) string {
	name := strings.TrimSpace(call.Function.Name)
	kind, ok := a.allowed[name]
	if !ok {
		return refusal(fmt.Errorf("%w: %s", domain.ErrUnknownTool, name))
	}
	if tr.SearchCalls() >= a.cfg.MaxSearches {
		return refusal(domain.ErrBudgetExhausted)
	}
	args, err := parseArgs(call.Function.Arguments)
	if err != nil {
		return refusal(err)
	}

	tr.Invoke(id, kind, args)
	var resp domain.SearchResponse
	switch kind {
	case domain.ToolFiltered:
		p := paramsFromArgs(a.search.Domain(), args)
		if p.Limit == 0 {
			p.Limit = a.cfg.SearchLimit
		}
		resp = a.search.FilteredSearch(ctx, p)
	case domain.ToolSemantic:
		limit := argInt(args, "limit")
		if limit == 0 {
			limit = a.cfg.SearchLimit
		}
		thr := a.cfg.SemanticThreshold
		if f := argFloat(args, "threshold"); f != nil {
			thr = *f
		}
		resp = a.search.SemanticSearch(ctx, argString(args, "query"), limit, thr)
	}

	b, err := json.Marshal(resp)
	if err != nil {
		// the output stays uncorrelated and yields no records
		return refusal(err)
	}
	tr.Output(id, string(b))
	return string(b)
}

func refusal(err error) string {
	b, _ := json.Marshal(domain.FailedSearch(err))
	return string(b)
}

func userPrompt(req Request) string {
	var b strings.Builder
	b.WriteString(req.Conversation.Prompt())
	if !req.Terms.Empty() {
		t, _ := json.Marshal(req.Terms)
		b.WriteString("\n\nExtracted search terms: ")
		b.Write(t)
	}
	return b.String()
}
