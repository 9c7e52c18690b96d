package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"trip_planner/internal/adapters/observability"
	"trip_planner/internal/agent"
	"trip_planner/internal/domain"
	"trip_planner/internal/extract"
)

var errNoAgent = errors.New("no agent configured")

// modeFor picks parallel dispatch for broad queries and sequential dispatch
// for one or two targeted domains.
func modeFor(a domain.QueryAnalysis) domain.DispatchMode {
	switch {
	case len(a.DetectedDomains) == 0:
		return domain.ModeNone
	case a.IsGeneral || len(a.DetectedDomains) > 2:
		return domain.ModeParallel
	default:
		return domain.ModeSequential
	}
}

type dispatch struct {
	results []domain.AgentResult
	early   bool
}

func (o *Orchestrator) dispatch(ctx context.Context, mode domain.DispatchMode, ds []domain.Domain, req agent.Request, sink Sink) dispatch {
	switch mode {
	case domain.ModeParallel:
		return o.parallel(ctx, ds, req, sink)
	case domain.ModeSequential:
		return o.sequential(ctx, ds, req, sink)
	}
	return dispatch{}
}

// parallel waits for every agent. Results land by index so the final order
// follows dispatch order, not completion order.
func (o *Orchestrator) parallel(ctx context.Context, ds []domain.Domain, req agent.Request, sink Sink) dispatch {
	out := make([]domain.AgentResult, len(ds))
	var g errgroup.Group
	g.SetLimit(o.cfg.MaxParallel)
	for i, d := range ds {
		g.Go(func() error {
			out[i] = o.runAgent(ctx, d, req, sink)
			return nil
		})
	}
	_ = g.Wait()
	return dispatch{results: out}
}

// sequential runs agents in confidence order and stops after the first
// one when it alone returned enough records.
func (o *Orchestrator) sequential(ctx context.Context, ds []domain.Domain, req agent.Request, sink Sink) dispatch {
	var out dispatch
	for i, d := range ds {
		if ctx.Err() != nil {
			break
		}
		res := o.runAgent(ctx, d, req, sink)
		out.results = append(out.results, res)
		if i == 0 && len(ds) > 1 && res.Success && len(res.Records) >= o.cfg.EarlyStopRecords {
			out.early = true
			log.Debug().Str("domain", string(d)).Int("records", len(res.Records)).Msg("early termination")
			break
		}
	}
	return out
}

// runAgent invokes one Domain Agent in isolation. Every failure, panics
// included, becomes a failed AgentResult for that domain only.
func (o *Orchestrator) runAgent(ctx context.Context, d domain.Domain, req agent.Request, sink Sink) (res domain.AgentResult) {
	start := time.Now()
	res = domain.AgentResult{Domain: d, Records: []domain.CanonicalRecord{}}
	sink.Emit(Event{Type: EventAgentStart, Domain: d})

	ctx, span := o.tracer.Start(ctx, "agent.run")
	span.SetAttributes(attribute.String("domain", string(d)))
	logger := log.With().Str("domain", string(d)).Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("agent panicked")
			res.Success = false
			res.Records = []domain.CanonicalRecord{}
			res.Error = fmt.Sprintf("agent panic: %v", r)
		}
		res.ExecutionTimeMs = time.Since(start).Milliseconds()
		if res.Success {
			span.SetStatus(codes.Ok, "")
		} else {
			span.SetStatus(codes.Error, res.Error)
		}
		span.SetAttributes(attribute.Int("records", len(res.Records)))
		span.End()
		observability.ObserveAgent(string(d), res.Success, time.Since(start))
		sink.Emit(Event{Type: EventAgentComplete, Domain: d, RecordsFound: count(len(res.Records))})
	}()

	a, ok := o.agents[d]
	if !ok {
		res.Error = errNoAgent.Error()
		return res
	}
	run, err := a.Run(ctx, req)
	ex := extract.Extract(run.Trace)
	if ex.Records != nil {
		res.Records = ex.Records
	}

	switch {
	case err != nil && len(ex.Records) == 0:
		logger.Warn().Err(err).Msg("agent failed")
		res.Error = err.Error()
	case err == nil && ex.AllFailed():
		res.Error = strings.Join(ex.Errors, "; ")
		if res.Error == "" {
			res.Error = "all searches failed"
		}
		logger.Warn().Str("err", res.Error).Msg("agent searches failed")
	default:
		if err != nil {
			logger.Warn().Err(err).Int("records", len(ex.Records)).Msg("agent stopped early, keeping its records")
		}
		res.Success = true
		res.Message = run.Text
		if res.Message == "" {
			res.Message = fmt.Sprintf("found %d %s", len(res.Records), d.Label("en"))
		}
	}
	return res
}
