package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"expdash/internal/engine"
	"expdash/internal/eventlog"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Run tracks a single analysis job from submission to a terminal state. It
// owns the polling loop; at most one poll loop exists per run, and no polls
// are issued after the run reaches a terminal state.
type Run struct {
	ID    string
	JobID string

	mu        sync.Mutex
	status    engine.Status
	startedAt time.Time
	errMsg    string
	results   *engine.AnalysisResults

	cancel context.CancelFunc
	done   chan struct{}
}

// Status returns the current run state.
func (r *Run) Status() engine.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Error returns the verbatim failure message for a failed run.
func (r *Run) Error() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errMsg
}

// Results returns the enriched analysis results once the run completed.
func (r *Run) Results() *engine.AnalysisResults {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.results
}

// Progress returns a synthetic completion percentage derived from elapsed
// wall-clock time. It is UI feedback only, not a measure of engine work.
func (r *Run) Progress() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.status {
	case engine.StatusCompleted:
		return 100
	case engine.StatusFailed:
		return 0
	case engine.StatusQueued:
		return 10
	}
	return syntheticProgress(time.Since(r.startedAt))
}

// Cancel stops the polling loop. The remote job is left to finish on its own;
// there is no engine-side cancellation.
func (r *Run) Cancel() {
	if r.cancel != nil {
		r.cancel()
	}
}

// Done returns a channel closed when the polling loop has exited.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// syntheticProgress maps elapsed time onto a piecewise-linear percentage:
// 30% -> 60% over the first 5 seconds, 60% -> 90% over the next 10 seconds,
// then it holds at 90% until the job reports completion.
func syntheticProgress(elapsed time.Duration) float64 {
	const (
		firstRamp  = 5 * time.Second
		secondRamp = 10 * time.Second
	)
	switch {
	case elapsed <= 0:
		return 30
	case elapsed < firstRamp:
		return 30 + 30*float64(elapsed)/float64(firstRamp)
	case elapsed < firstRamp+secondRamp:
		return 60 + 30*float64(elapsed-firstRamp)/float64(secondRamp)
	default:
		return 90
	}
}

// StartRun submits the configured job to the analysis engine and begins the
// fixed-interval polling loop. A session allows at most one non-terminal run;
// retrying a failed run re-invokes this same submit path.
func (s *Session) StartRun(ctx context.Context) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireStep(StepRunScript); err != nil {
		return nil, err
	}
	if s.run != nil && !s.run.Status().Terminal() {
		return nil, ErrRunActive
	}

	req := s.buildStartRequest(nil)

	run := &Run{
		ID:     uuid.New().String(),
		status: engine.StatusQueued,
		done:   make(chan struct{}),
	}

	jobID, err := s.engine.StartAnalysis(ctx, req)
	if err != nil {
		run.mu.Lock()
		run.status = engine.StatusFailed
		run.errMsg = err.Error()
		run.mu.Unlock()
		close(run.done)
		s.run = run
		s.events.Record(s.ID, run.ID, "", eventlog.Failed, err.Error())
		return run, err
	}

	run.JobID = jobID
	run.mu.Lock()
	run.status = engine.StatusProcessing
	run.startedAt = time.Now()
	run.mu.Unlock()

	s.events.Record(s.ID, run.ID, jobID, eventlog.Submitted, "analysis job submitted")

	pollCtx, cancel := context.WithCancel(context.Background())
	run.cancel = cancel
	s.run = run

	go s.poll(pollCtx, run)

	return run, nil
}

// poll drives the run to a terminal state. Any per-tick error is terminal:
// a transient poll failure aborts the whole job rather than masking a
// persistent backend failure. Retry is user-initiated resubmission.
func (s *Session) poll(ctx context.Context, run *Run) {
	defer close(run.done)
	defer run.cancel()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Cancellation is terminal for the run: the guard against a second
			// submission keys on Terminal(), so a cancelled run must not stay
			// at processing.
			run.mu.Lock()
			if !run.status.Terminal() {
				run.status = engine.StatusFailed
				run.errMsg = "analysis run cancelled"
			}
			run.mu.Unlock()
			log.Debug().Str("job", run.JobID).Msg("Polling cancelled")
			return
		case <-ticker.C:
		}

		status, err := s.engine.GetStatus(ctx, run.JobID)
		if err != nil {
			s.failRun(run, err.Error())
			return
		}

		switch status.Status {
		case engine.StatusQueued, engine.StatusProcessing:
			// Progress is synthetic, so identical polls record nothing; only
			// an actual state flip lands in the audit trail.
			if status.Status != run.Status() {
				run.mu.Lock()
				run.status = status.Status
				run.mu.Unlock()
				s.events.Record(s.ID, run.ID, run.JobID, eventlog.StatusChanged,
					fmt.Sprintf("job moved to %s", status.Status))
			}
			continue
		case engine.StatusFailed:
			s.failRun(run, status.Error)
			return
		case engine.StatusCompleted:
			s.completeRun(ctx, run)
			return
		default:
			s.failRun(run, fmt.Sprintf("analysis engine reported unknown status %q", status.Status))
			return
		}
	}
}

func (s *Session) failRun(run *Run, message string) {
	run.mu.Lock()
	run.status = engine.StatusFailed
	run.errMsg = message
	run.mu.Unlock()

	s.events.Record(s.ID, run.ID, run.JobID, eventlog.Failed, message)
	log.Warn().Str("job", run.JobID).Str("error", message).Msg("Analysis run failed")
}

func (s *Session) completeRun(ctx context.Context, run *Run) {
	results, err := s.engine.GetResults(ctx, run.JobID)
	if err != nil {
		s.failRun(run, err.Error())
		return
	}

	s.mu.Lock()
	attachDisplayMetadata(results, s.metrics)
	s.unfilteredResults = results
	s.displayedResults = results
	s.step = StepResultsView
	s.mu.Unlock()

	run.mu.Lock()
	run.status = engine.StatusCompleted
	run.results = results
	run.mu.Unlock()

	s.events.Record(s.ID, run.ID, run.JobID, eventlog.Completed, "analysis completed")
	log.Info().Str("job", run.JobID).Int("metrics", len(results.Metrics)).Msg("Analysis run completed")
}

// pollToCompletion synchronously polls a secondary job (filter re-analysis or
// enrichment) until it terminates. Used outside the primary run loop.
func (s *Session) pollToCompletion(ctx context.Context, jobID string) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		status, err := s.engine.GetStatus(ctx, jobID)
		if err != nil {
			return err
		}

		switch status.Status {
		case engine.StatusCompleted:
			return nil
		case engine.StatusFailed:
			if status.Error != "" {
				return fmt.Errorf("%s", status.Error)
			}
			return fmt.Errorf("job %s failed", jobID)
		}
	}
}
