// Package orchestrator runs one trip query end to end: analyze the text,
// dispatch the relevant Domain Agents, merge their records and write the
// summary. It holds no state between calls apart from the injected caches.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"trip_planner/internal/adapters/observability"
	"trip_planner/internal/agent"
	"trip_planner/internal/domain"
)

type Analyzer interface {
	Analyze(cc domain.ConversationContext) domain.QueryAnalysis
}

type Config struct {
	Timeout          time.Duration
	HistoryLimit     int
	EarlyStopRecords int
	MaxParallel      int
	Language         string
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.HistoryLimit < 0 {
		c.HistoryLimit = 0
	} else if c.HistoryLimit == 0 {
		c.HistoryLimit = 6
	}
	if c.EarlyStopRecords <= 0 {
		c.EarlyStopRecords = 3
	}
	if c.MaxParallel <= 0 {
		c.MaxParallel = 4
	}
	if c.Language == "" {
		c.Language = "it"
	}
	if c.TracerProvider == nil {
		c.TracerProvider = otel.GetTracerProvider()
	}
	return c
}

type Orchestrator struct {
	analyzer Analyzer
	agents   map[domain.Domain]agent.Agent
	synth    Synthesizer
	cfg      Config
	tracer   trace.Tracer
}

func New(an Analyzer, agents map[domain.Domain]agent.Agent, synth Synthesizer, cfg Config) *Orchestrator {
	if synth == nil {
		synth = TemplateSynthesizer{}
	}
	cfg = cfg.withDefaults()
	return &Orchestrator{
		analyzer: an,
		agents:   agents,
		synth:    synth,
		cfg:      cfg,
		tracer:   cfg.TracerProvider.Tracer("trip_planner/orchestrator"),
	}
}

type runOptions struct {
	sink Sink
	lang string
}

type Option func(*runOptions)

// WithProgress streams progress events of the run to s.
func WithProgress(s Sink) Option { return func(o *runOptions) { o.sink = s } }

// WithLanguage overrides the summary language for one run.
func WithLanguage(lang string) Option { return func(o *runOptions) { o.lang = lang } }

// Analyze exposes the analysis step alone.
func (o *Orchestrator) Analyze(query string, history []domain.Message) (domain.QueryAnalysis, error) {
	cc := domain.NewConversationContext(query, history, o.cfg.HistoryLimit)
	if cc.Query() == "" {
		return domain.QueryAnalysis{}, domain.ErrEmptyQuery
	}
	return o.analyze(cc)
}

func (o *Orchestrator) analyze(cc domain.ConversationContext) (a domain.QueryAnalysis, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", domain.ErrAnalysisFailed, r)
		}
	}()
	return o.analyzer.Analyze(cc), nil
}

// Orchestrate answers one query. The returned error is reserved for hard
// failures: an empty query, a failed analysis or the overall timeout.
// Backend failures of single domains only show up in the result.
func (o *Orchestrator) Orchestrate(ctx context.Context, query string, history []domain.Message, opts ...Option) (domain.OrchestratorResult, error) {
	ro := runOptions{lang: o.cfg.Language}
	for _, opt := range opts {
		opt(&ro)
	}
	runID := uuid.NewString()
	sink := newFence(ro.sink, runID)
	logger := log.With().Str("run_id", runID).Logger()

	ctx, span := o.tracer.Start(ctx, "orchestrate")
	span.SetAttributes(attribute.String("run_id", runID))
	defer span.End()

	fail := func(err error) (domain.OrchestratorResult, error) {
		span.SetStatus(codes.Error, err.Error())
		sink.Emit(Event{Type: EventError, Message: err.Error()})
		sink.Emit(Event{Type: EventEnd})
		return domain.OrchestratorResult{
			RunID:   runID,
			Records: []domain.CanonicalRecord{},
			Error:   err.Error(),
		}, err
	}

	cc := domain.NewConversationContext(query, history, o.cfg.HistoryLimit)
	if cc.Query() == "" {
		return fail(domain.ErrEmptyQuery)
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	done := make(chan domain.OrchestratorResult, 1)
	errc := make(chan error, 1)
	go func() {
		res, err := o.run(ctx, runID, cc, ro.lang, sink)
		if err != nil {
			errc <- err
			return
		}
		done <- res
	}()

	select {
	case res := <-done:
		span.SetAttributes(
			attribute.String("mode", string(res.ExecutionSummary.Mode)),
			attribute.Int("records", len(res.Records)),
		)
		sink.Emit(Event{Type: EventComplete, Message: res.Message, Records: res.Records})
		sink.Emit(Event{Type: EventEnd})
		return res, nil
	case err := <-errc:
		logger.Error().Err(err).Msg("orchestration failed")
		return fail(err)
	case <-ctx.Done():
		err := ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = domain.ErrOrchestrationTimeout
			observability.ObserveOrchestration("unknown", "timeout")
		}
		logger.Error().Err(err).Dur("timeout", o.cfg.Timeout).Msg("orchestration did not finish")
		return fail(err)
	}
}

// run does the work behind Orchestrate. It may outlive the caller after a
// timeout; its result then goes into the buffered channel and is dropped.
func (o *Orchestrator) run(ctx context.Context, runID string, cc domain.ConversationContext, lang string, sink Sink) (domain.OrchestratorResult, error) {
	start := time.Now()
	sink.Emit(Event{Type: EventAnalyzing})
	analysis, err := o.analyze(cc)
	if err != nil {
		return domain.OrchestratorResult{}, err
	}

	mode := modeFor(analysis)
	ds := analysis.DetectedDomains
	log.Info().
		Str("run_id", runID).
		Str("mode", string(mode)).
		Str("domains", domain.DomainList(ds)).
		Bool("general", analysis.IsGeneral).
		Msg("dispatching")

	req := agent.Request{Conversation: cc, Terms: analysis.SearchTerms}
	disp := o.dispatch(ctx, mode, ds, req, sink)

	sink.Emit(Event{Type: EventFinalizing})
	agg := aggregateResults(disp.results)

	res := domain.OrchestratorResult{
		RunID:        runID,
		Success:      agg.succeeded > 0,
		Records:      agg.records,
		AgentResults: disp.results,
		Analysis:     &analysis,
		ExecutionSummary: domain.ExecutionSummary{
			Mode:              mode,
			TotalAgents:       len(disp.results),
			SuccessfulAgents:  agg.succeeded,
			FailedAgents:      agg.failed,
			TotalRecords:      len(agg.records),
			DuplicatesRemoved: agg.duplicates,
			EarlyTerminated:   disp.early,
			MaxConfidence:     analysis.MaxConfidence(),
		},
	}
	if res.AgentResults == nil {
		res.AgentResults = []domain.AgentResult{}
	}
	if agg.err != nil {
		res.Error = agg.err.Error()
	}

	if len(agg.records) == 0 {
		res.Message = NoResultsMessage(lang)
	} else {
		msg, err := o.synth.Summarize(ctx, agg.counts, lang)
		if err != nil || msg == "" {
			msg, _ = TemplateSynthesizer{}.Summarize(ctx, agg.counts, lang)
		}
		res.Message = msg
	}
	res.ExecutionSummary.ExecutionTimeMs = time.Since(start).Milliseconds()

	observability.ObserveOrchestration(string(mode), outcome(res))
	if disp.early {
		observability.ObserveOrchestration(string(mode), "early_stop")
	}
	return res, nil
}

func outcome(r domain.OrchestratorResult) string {
	switch {
	case !r.Success && r.Error != "":
		return "failed"
	case len(r.Records) == 0:
		return "empty"
	case r.ExecutionSummary.FailedAgents > 0:
		return "partial"
	}
	return "ok"
}
