package domain

import (
	"fmt"
	"strings"
)

// FilterParams is the structured query of a filtered search. Fields that do
// not apply to a domain are ignored by the store.
type FilterParams struct {
	Location      string   `json:"location,omitempty"`
	Origin        string   `json:"origin,omitempty"`
	Destination   string   `json:"destination,omitempty"`
	Category      string   `json:"category,omitempty"`
	MinPriceLevel int      `json:"minPriceLevel,omitempty"`
	MaxPriceLevel int      `json:"maxPriceLevel,omitempty"`
	MaxPrice      *float64 `json:"maxPrice,omitempty"`
	MinRating     *float64 `json:"minRating,omitempty"`
	Guests        int      `json:"guests,omitempty"`
	Limit         int      `json:"limit,omitempty"`
}

// CacheKeyParts flattens the params into normalized key fragments.
func (p FilterParams) CacheKeyParts() []string {
	f := func(v *float64) string {
		if v == nil {
			return ""
		}
		return fmt.Sprintf("%.2f", *v)
	}
	return []string{
		p.Location, p.Origin, p.Destination, p.Category,
		fmt.Sprint(p.MinPriceLevel), fmt.Sprint(p.MaxPriceLevel),
		f(p.MaxPrice), f(p.MinRating),
		fmt.Sprint(p.Guests), fmt.Sprint(p.Limit),
	}
}

// SearchResponse is the uniform envelope every search tool returns. Data
// keeps the domain-specific field names of the backend; normalization
// happens later in the extractor.
type SearchResponse struct {
	Success bool             `json:"success"`
	Data    []map[string]any `json:"data"`
	Message string           `json:"message,omitempty"`
	Error   string           `json:"error,omitempty"`
}

func FailedSearch(err error) SearchResponse {
	return SearchResponse{Success: false, Data: []map[string]any{}, Error: err.Error()}
}

type AgentResult struct {
	Domain          Domain            `json:"domain"`
	Success         bool              `json:"success"`
	Message         string            `json:"message"`
	Records         []CanonicalRecord `json:"records"`
	ExecutionTimeMs int64             `json:"executionTimeMs"`
	Error           string            `json:"error,omitempty"`
}

type DispatchMode string

const (
	ModeParallel   DispatchMode = "parallel"
	ModeSequential DispatchMode = "sequential"
	ModeNone       DispatchMode = "none"
)

type ExecutionSummary struct {
	Mode              DispatchMode `json:"mode"`
	TotalAgents       int          `json:"totalAgents"`
	SuccessfulAgents  int          `json:"successfulAgents"`
	FailedAgents      int          `json:"failedAgents"`
	TotalRecords      int          `json:"totalRecords"`
	DuplicatesRemoved int          `json:"duplicatesRemoved"`
	EarlyTerminated   bool         `json:"earlyTerminated"`
	ExecutionTimeMs   int64        `json:"executionTimeMs"`
	MaxConfidence     float64      `json:"maxConfidence"`
}

type OrchestratorResult struct {
	RunID            string            `json:"runId"`
	Success          bool              `json:"success"`
	Message          string            `json:"message"`
	Records          []CanonicalRecord `json:"records"`
	AgentResults     []AgentResult     `json:"agentResults"`
	ExecutionSummary ExecutionSummary  `json:"executionSummary"`
	Analysis         *QueryAnalysis    `json:"analysis,omitempty"`
	Error            string            `json:"error,omitempty"`
}

// CountByDomain tallies records per domain.
func CountByDomain(rs []CanonicalRecord) map[Domain]int {
	out := make(map[Domain]int, len(All))
	for _, r := range rs {
		out[r.Domain]++
	}
	return out
}

// DomainList joins domain names for logs.
func DomainList(ds []Domain) string {
	s := make([]string, len(ds))
	for i, d := range ds {
		s[i] = string(d)
	}
	return strings.Join(s, ",")
}
