package domain

import "strings"

// ToolKind is the closed set of search forms a Domain Agent can call.
type ToolKind string

const (
	ToolFiltered ToolKind = "filtered"
	ToolSemantic ToolKind = "semantic"
)

// ToolName derives the declared tool name from the domain and kind.
func ToolName(d Domain, k ToolKind) string {
	if k == ToolSemantic {
		return "semantic_search_" + string(d)
	}
	return "search_" + string(d)
}

// ParseToolName is the inverse of ToolName for the given domain. Tools of
// other domains are rejected.
func ParseToolName(d Domain, name string) (ToolKind, bool) {
	switch strings.TrimSpace(name) {
	case ToolName(d, ToolFiltered):
		return ToolFiltered, true
	case ToolName(d, ToolSemantic):
		return ToolSemantic, true
	}
	return "", false
}

type EntryKind string

const (
	EntryInvocation EntryKind = "invocation"
	EntryOutput     EntryKind = "output"
)

// TraceEntry is one step of an agent run. Invocations carry Args, outputs
// carry Output in whatever encoding the runner produced.
type TraceEntry struct {
	Kind   EntryKind      `json:"kind"`
	CallID string         `json:"callId"`
	Tool   ToolKind       `json:"tool,omitempty"`
	Args   map[string]any `json:"args,omitempty"`
	Output any            `json:"output,omitempty"`
}

// Trace is the unordered bag of entries produced by one Domain Agent run.
type Trace struct {
	Domain  Domain       `json:"domain"`
	Entries []TraceEntry `json:"entries"`
}

func (t *Trace) Invoke(callID string, k ToolKind, args map[string]any) {
	t.Entries = append(t.Entries, TraceEntry{Kind: EntryInvocation, CallID: callID, Tool: k, Args: args})
}

func (t *Trace) Output(callID string, out any) {
	t.Entries = append(t.Entries, TraceEntry{Kind: EntryOutput, CallID: callID, Output: out})
}

// SearchCalls counts invocations.
func (t Trace) SearchCalls() int {
	n := 0
	for _, e := range t.Entries {
		if e.Kind == EntryInvocation {
			n++
		}
	}
	return n
}
