package workflow

import (
	"context"
	"fmt"

	"expdash/internal/dataset"
	"expdash/internal/engine"
	"expdash/internal/eventlog"
)

// attachDisplayMetadata copies display attributes (name, unit, currency,
// decimals) from the configured metrics onto the engine results, keyed by
// metric id.
func attachDisplayMetadata(results *engine.AnalysisResults, metrics []dataset.Metric) {
	byID := make(map[string]dataset.Metric, len(metrics))
	for _, m := range metrics {
		byID[m.ID] = m
	}

	for i := range results.Metrics {
		m, ok := byID[results.Metrics[i].MetricID]
		if !ok {
			continue
		}
		if results.Metrics[i].MetricName == "" {
			results.Metrics[i].MetricName = m.Name
		}
		results.Metrics[i].Unit = m.Unit
		results.Metrics[i].Currency = m.Currency
		results.Metrics[i].Decimals = m.Decimals
	}
}

// AttachTransactions maps and submits transaction-level rows as an enrichment
// of the completed analysis job, then displays the enriched results. The
// enrichment job id is remembered: later filtered re-enrichments are keyed by
// it, because the enrichment cache lives under the original job id.
func (s *Session) AttachTransactions(ctx context.Context, rows []dataset.Row, mapping dataset.Mapping) error {
	s.mu.Lock()
	if s.step != StepResultsView {
		s.mu.Unlock()
		return fmt.Errorf("%w: transaction data can only be attached from the results view", ErrWrongStep)
	}
	run := s.run
	s.mu.Unlock()

	if run == nil || run.Status() != engine.StatusCompleted {
		return fmt.Errorf("transaction enrichment requires a completed analysis")
	}

	enriched, err := dataset.BuildEnrichment(rows, mapping)
	if err != nil {
		return err
	}
	if len(enriched) == 0 {
		return fmt.Errorf("no usable transaction rows after mapping")
	}

	enrichJobID, err := s.engine.Enrich(ctx, run.JobID, enriched)
	if err != nil {
		return err
	}
	if err := s.pollToCompletion(ctx, enrichJobID); err != nil {
		return err
	}

	results, err := s.engine.GetResults(ctx, enrichJobID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	attachDisplayMetadata(results, s.metrics)
	s.transactionRows = enriched
	s.enrichmentJobID = enrichJobID
	s.unfilteredResults = results
	s.displayedResults = results
	s.mu.Unlock()

	s.events.Record(s.ID, run.ID, enrichJobID, eventlog.Enriched,
		fmt.Sprintf("%d transaction rows attached", len(enriched)))
	return nil
}

// ApplyDimensionFilters recomputes the displayed results for the given
// dimension filters.
//
// With no active filters the cached unfiltered (or previously enriched)
// results are restored by reference. With filters and no enrichment the full
// dataset is resubmitted as a new job. With enrichment active, a filtered
// re-analysis runs on the base dataset, the stored transaction rows are
// filtered locally with the same predicate, and any remaining rows are
// re-enriched against the ORIGINAL enrichment job id, with the filtered
// analysis job id passed along as provenance.
//
// On any error the last known good results stay displayed, a RunDegraded
// event is recorded, and the error is returned to the caller for explicit
// surfacing.
func (s *Session) ApplyDimensionFilters(ctx context.Context, filters dataset.Filters) (*engine.AnalysisResults, error) {
	s.mu.Lock()
	if s.step != StepResultsView {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: filters can only be applied from the results view", ErrWrongStep)
	}
	run := s.run
	s.mu.Unlock()

	if run == nil || run.Status() != engine.StatusCompleted {
		return nil, fmt.Errorf("filtering requires a completed analysis")
	}

	if filters.Empty() {
		s.mu.Lock()
		s.activeFilters = nil
		s.displayedResults = s.unfilteredResults
		results := s.displayedResults
		s.mu.Unlock()
		return results, nil
	}

	s.events.Record(s.ID, run.ID, run.JobID, eventlog.FilterApplied,
		fmt.Sprintf("%d dimension(s) filtered", len(filters)))

	results, err := s.recomputeFiltered(ctx, run, filters)
	if err != nil {
		s.events.Record(s.ID, run.ID, run.JobID, eventlog.RunDegraded, err.Error())
		s.mu.Lock()
		lastGood := s.displayedResults
		s.mu.Unlock()
		return lastGood, err
	}

	s.mu.Lock()
	attachDisplayMetadata(results, s.metrics)
	s.activeFilters = filters
	s.displayedResults = results
	s.mu.Unlock()
	return results, nil
}

func (s *Session) recomputeFiltered(ctx context.Context, run *Run, filters dataset.Filters) (*engine.AnalysisResults, error) {
	s.mu.Lock()
	req := s.buildStartRequest(filters)
	transactions := s.transactionRows
	enrichmentJobID := s.enrichmentJobID
	s.mu.Unlock()

	// (a) Filtered re-analysis on the base dataset.
	filteredJobID, err := s.engine.StartAnalysis(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.pollToCompletion(ctx, filteredJobID); err != nil {
		return nil, err
	}

	if enrichmentJobID == "" {
		return s.engine.GetResults(ctx, filteredJobID)
	}

	// (b) Filter the stored transaction rows with the same predicate.
	filteredRows := dataset.ApplyFilters(transactions, filters)
	if len(filteredRows) == 0 {
		return s.engine.GetResults(ctx, filteredJobID)
	}

	// (c) Re-enrich keyed by the original enrichment job: the enrichment
	// cache lives there, the filtered job id is only provenance.
	enrichJobID, err := s.engine.EnrichFiltered(ctx, enrichmentJobID, filteredRows, filteredJobID)
	if err != nil {
		return nil, err
	}
	if err := s.pollToCompletion(ctx, enrichJobID); err != nil {
		return nil, err
	}

	// (d) Fetch the enriched, filtered results.
	return s.engine.GetResults(ctx, enrichJobID)
}
