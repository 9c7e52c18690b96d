// Package agent holds the Domain Agents. An agent wraps one domain's
// search capability with a decision policy and records every tool call in
// a trace; records are only ever extracted from that trace.
package agent

import (
	"context"
	"fmt"

	"trip_planner/internal/domain"
)

type Request struct {
	Conversation domain.ConversationContext
	Terms        domain.SearchTerms
}

// Run is the raw outcome of one agent invocation.
type Run struct {
	Trace domain.Trace
	Text  string
}

type Agent interface {
	Domain() domain.Domain
	Run(ctx context.Context, req Request) (Run, error)
}

// CapabilityProvider hands out the search capability of a domain.
type CapabilityProvider interface {
	For(d domain.Domain) domain.SearchCapability
}

type Config struct {
	MaxTurns          int
	MaxSearches       int
	MinResults        int
	SearchLimit       int
	SemanticThreshold float64
}

func (c Config) withDefaults() Config {
	if c.MaxTurns <= 0 {
		c.MaxTurns = 4
	}
	if c.MaxSearches <= 0 {
		c.MaxSearches = 2
	}
	if c.MinResults <= 0 {
		c.MinResults = 3
	}
	if c.SearchLimit <= 0 {
		c.SearchLimit = 10
	}
	if c.SemanticThreshold <= 0 {
		c.SemanticThreshold = 0.7
	}
	return c
}

// NewPolicySet builds a deterministic agent per domain.
func NewPolicySet(p CapabilityProvider, cfg Config) map[domain.Domain]Agent {
	out := make(map[domain.Domain]Agent, len(domain.All))
	for _, d := range domain.All {
		out[d] = NewPolicyAgent(p.For(d), cfg)
	}
	return out
}

func callID(n int) string { return fmt.Sprintf("call_%d", n) }
