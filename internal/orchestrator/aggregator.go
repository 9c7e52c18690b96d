package orchestrator

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"trip_planner/internal/domain"
)

// aggregate is the union of all agent records in dispatch order, first
// occurrence of an id wins.
type aggregate struct {
	records    []domain.CanonicalRecord
	duplicates int
	succeeded  int
	failed     int
	counts     []DomainCount
	// err is set only when no agent succeeded.
	err error
}

func aggregateResults(results []domain.AgentResult) aggregate {
	var (
		agg  aggregate
		errs *multierror.Error
		seen = make(map[string]struct{})
	)
	for _, r := range results {
		if !r.Success {
			agg.failed++
			msg := r.Error
			if msg == "" {
				msg = "failed"
			}
			errs = multierror.Append(errs, fmt.Errorf("%s: %s", r.Domain, msg))
			continue
		}
		agg.succeeded++
		kept := 0
		for _, rec := range r.Records {
			if _, dup := seen[rec.ID]; dup {
				agg.duplicates++
				continue
			}
			seen[rec.ID] = struct{}{}
			agg.records = append(agg.records, rec)
			kept++
		}
		agg.counts = append(agg.counts, DomainCount{Domain: r.Domain, Count: kept})
	}
	if agg.records == nil {
		agg.records = []domain.CanonicalRecord{}
	}
	if agg.succeeded == 0 && errs != nil {
		errs.ErrorFormat = inline
		agg.err = fmt.Errorf("%w: %s", domain.ErrAllDomainsFailed, errs.Error())
	}
	return agg
}

func inline(es []error) string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}
