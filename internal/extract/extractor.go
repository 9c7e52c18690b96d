package extract

import (
	"github.com/rs/zerolog/log"

	"trip_planner/internal/adapters/observability"
	"trip_planner/internal/domain"
)

// Extraction is what one agent trace yields.
type Extraction struct {
	Records []domain.CanonicalRecord
	// Calls counts correlated search calls by outcome.
	Calls     int
	Succeeded int
	Failed    int
	// Errors holds backend error messages of failed calls, in call order.
	Errors []string
	// Skipped counts entries and items dropped as malformed.
	Skipped int
	// Uncorrelated counts invocations without an output.
	Uncorrelated int
}

// Extract walks a trace, pairs each invocation with its output by call id
// and normalizes every returned item. It never fails: malformed entries
// are logged and skipped. Records keep invocation order and are unique by
// id within the trace.
func Extract(tr domain.Trace) Extraction {
	var ex Extraction
	n, err := normalizerFor(tr.Domain)
	if err != nil {
		log.Warn().Err(err).Msg("extract: trace for unknown domain")
		ex.Skipped = len(tr.Entries)
		return ex
	}
	logger := log.With().Str("domain", string(tr.Domain)).Logger()

	outputs := make(map[string]any, len(tr.Entries))
	for _, e := range tr.Entries {
		if e.Kind != domain.EntryOutput || e.CallID == "" {
			continue
		}
		if _, dup := outputs[e.CallID]; dup {
			logger.Debug().Str("call_id", e.CallID).Msg("extract: duplicate output ignored")
			continue
		}
		outputs[e.CallID] = e.Output
	}

	seenCall := make(map[string]struct{})
	seenRec := make(map[string]struct{})
	for _, e := range tr.Entries {
		if e.Kind != domain.EntryInvocation || e.CallID == "" {
			continue
		}
		if _, dup := seenCall[e.CallID]; dup {
			continue
		}
		seenCall[e.CallID] = struct{}{}

		out, ok := outputs[e.CallID]
		if !ok {
			ex.Uncorrelated++
			logger.Debug().Str("call_id", e.CallID).Msg("extract: invocation without output")
			continue
		}

		resp, enc, err := DecodePayload(out)
		if err != nil {
			ex.Skipped++
			observability.ObserveExtractionFailure(string(tr.Domain))
			logger.Warn().Err(err).Str("call_id", e.CallID).Msg("extract: undecodable output skipped")
			continue
		}
		ex.Calls++
		if !resp.Success {
			ex.Failed++
			if resp.Error != "" {
				ex.Errors = append(ex.Errors, resp.Error)
			}
			continue
		}
		ex.Succeeded++

		src := domain.SourceFiltered
		if e.Tool == domain.ToolSemantic {
			src = domain.SourceSemantic
		}
		for _, item := range resp.Data {
			rec, err := n.normalize(item, src)
			if err != nil {
				ex.Skipped++
				observability.ObserveExtractionFailure(string(tr.Domain))
				logger.Warn().Err(err).Str("call_id", e.CallID).Str("encoding", enc.String()).Msg("extract: item skipped")
				continue
			}
			if _, dup := seenRec[rec.ID]; dup {
				continue
			}
			seenRec[rec.ID] = struct{}{}
			ex.Records = append(ex.Records, rec)
		}
	}
	return ex
}

// AllFailed reports whether at least one search ran and none succeeded.
func (e Extraction) AllFailed() bool { return e.Calls > 0 && e.Succeeded == 0 }
