package workflow

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"expdash/internal/dataset"
	"expdash/internal/engine"
	"expdash/internal/eventlog"

	"github.com/google/uuid"
)

var (
	// ErrWrongStep is returned when an operation does not belong to the
	// session's current wizard step.
	ErrWrongStep = errors.New("wrong wizard step")
	// ErrRunActive is returned when a second analysis submission is attempted
	// while one is still in flight.
	ErrRunActive = errors.New("analysis already running")
)

// Step identifies a wizard step. The wizard is linear with backtracking:
// Next hands validated state to the following step, Back discards all
// forward state.
type Step string

const (
	StepDataImport             Step = "DataImport"
	StepSelectColumns          Step = "SelectColumns"
	StepTestConfiguration      Step = "TestConfiguration"
	StepSuggestedMetrics       Step = "SuggestedMetrics"
	StepStatisticConfiguration Step = "StatisticConfiguration"
	StepRunScript              Step = "RunScript"
	StepResultsView            Step = "ResultsView"
)

// stepOrder is the canonical wizard sequence.
var stepOrder = []Step{
	StepDataImport,
	StepSelectColumns,
	StepTestConfiguration,
	StepSuggestedMetrics,
	StepStatisticConfiguration,
	StepRunScript,
	StepResultsView,
}

func stepIndex(s Step) int {
	for i, st := range stepOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// ColumnSelection binds the dataset columns the analysis needs.
type ColumnSelection struct {
	VariationColumn string   `json:"variation_column"`
	UserColumn      string   `json:"user_column"`
	Dimensions      []string `json:"dimensions,omitempty"`
}

// TestConfig carries the experiment metadata for the run.
type TestConfig struct {
	Name         string `json:"name"`
	Hypothesis   string `json:"hypothesis,omitempty"`
	ExperimentID string `json:"experiment_id,omitempty"`
}

// StatsConfig carries the statistical settings submitted to the engine.
type StatsConfig struct {
	ConfidenceLevel           float64 `json:"confidence_level"`
	StatisticalMethod         string  `json:"statistical_method"`
	MultipleTestingCorrection string  `json:"multiple_testing_correction"`
}

// Session is the explicit state holder for one analysis workflow instance.
// All state is scoped to the session; there are no process-wide singletons.
type Session struct {
	ID string

	mu   sync.Mutex
	step Step

	data       *dataset.Dataset
	uploadKind dataset.UploadKind
	columns    ColumnSelection
	test       TestConfig
	metrics    []dataset.Metric
	suggested  []dataset.Metric
	stats      StatsConfig

	run *Run

	// Result state for the results view.
	unfilteredResults *engine.AnalysisResults
	displayedResults  *engine.AnalysisResults
	activeFilters     dataset.Filters

	// Transaction enrichment state.
	transactionRows []dataset.Row
	enrichmentJobID string

	engine       engine.Client
	events       *eventlog.Store
	pollInterval time.Duration
}

// NewSession creates a workflow session bound to an engine client and an
// event store.
func NewSession(client engine.Client, events *eventlog.Store) *Session {
	return &Session{
		ID:           uuid.New().String(),
		step:         StepDataImport,
		engine:       client,
		events:       events,
		pollInterval: 500 * time.Millisecond,
	}
}

// SetPollInterval adjusts the engine polling cadence (default 500ms).
func (s *Session) SetPollInterval(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d > 0 {
		s.pollInterval = d
	}
}

// Step returns the current wizard step.
func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

func (s *Session) requireStep(expected Step) error {
	if s.step != expected {
		return fmt.Errorf("%w: operation belongs to step %s but session is at %s", ErrWrongStep, expected, s.step)
	}
	return nil
}

// ImportData accepts the parsed dataset and advances to column selection.
func (s *Session) ImportData(ds *dataset.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireStep(StepDataImport); err != nil {
		return err
	}
	if ds == nil || len(ds.Rows) == 0 {
		return fmt.Errorf("imported dataset is empty")
	}

	s.data = ds
	s.uploadKind = dataset.ClassifyUpload(ds.Headers)
	s.step = StepSelectColumns
	return nil
}

// SelectColumns validates the chosen columns against the dataset and advances
// to test configuration.
func (s *Session) SelectColumns(sel ColumnSelection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireStep(StepSelectColumns); err != nil {
		return err
	}
	if sel.VariationColumn == "" || sel.UserColumn == "" {
		return fmt.Errorf("variation and user columns are required")
	}
	for _, col := range append([]string{sel.VariationColumn, sel.UserColumn}, sel.Dimensions...) {
		if !s.data.HasHeader(col) {
			return fmt.Errorf("column %q not found in the imported dataset", col)
		}
	}

	s.columns = sel
	s.step = StepTestConfiguration
	return nil
}

// ConfigureTest records the experiment metadata and advances to the
// suggested-metrics step, running auto-detection on the dataset.
func (s *Session) ConfigureTest(cfg TestConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireStep(StepTestConfiguration); err != nil {
		return err
	}
	if cfg.Name == "" {
		return fmt.Errorf("test name is required")
	}

	s.test = cfg
	s.suggested = dataset.DetectMetrics(s.data)
	s.step = StepSuggestedMetrics
	return nil
}

// SuggestedMetrics returns the auto-detected metric proposals for the
// current dataset.
func (s *Session) SuggestedMetrics() []dataset.Metric {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]dataset.Metric, len(s.suggested))
	copy(out, s.suggested)
	return out
}

// ConfigureMetrics accepts the user-confirmed metric set (suggested, edited
// or fully custom) and advances to statistic configuration.
func (s *Session) ConfigureMetrics(metrics []dataset.Metric) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireStep(StepSuggestedMetrics); err != nil {
		return err
	}
	if len(metrics) == 0 {
		return fmt.Errorf("at least one metric is required")
	}
	for _, m := range metrics {
		if m.ID == "" || m.Name == "" {
			return fmt.Errorf("metric definitions need both an id and a name")
		}
	}

	s.metrics = metrics
	s.step = StepStatisticConfiguration
	return nil
}

// ConfigureStatistics validates the statistical settings and advances to the
// run step.
func (s *Session) ConfigureStatistics(cfg StatsConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireStep(StepStatisticConfiguration); err != nil {
		return err
	}
	if cfg.ConfidenceLevel < 0.5 || cfg.ConfidenceLevel >= 1 {
		return fmt.Errorf("confidence level must be in [0.5, 1)")
	}
	if cfg.StatisticalMethod == "" {
		cfg.StatisticalMethod = "frequentist"
	}
	if cfg.MultipleTestingCorrection == "" {
		cfg.MultipleTestingCorrection = "none"
	}

	s.stats = cfg
	s.step = StepRunScript
	return nil
}

// Back steps the wizard one step backwards, discarding the state the current
// step introduced. Backing out of a run cancels it.
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := stepIndex(s.step)
	if idx <= 0 {
		return fmt.Errorf("already at the first step")
	}

	// Discard forward state for the step we are leaving.
	switch s.step {
	case StepSelectColumns:
		s.data = nil
		s.uploadKind = ""
	case StepTestConfiguration:
		s.columns = ColumnSelection{}
	case StepSuggestedMetrics:
		s.test = TestConfig{}
		s.suggested = nil
	case StepStatisticConfiguration:
		s.metrics = nil
	case StepRunScript:
		s.stats = StatsConfig{}
		// Detach the run as well as cancelling it, so a later return to this
		// step starts from a clean slate instead of tripping the
		// one-active-run guard on the abandoned run.
		if s.run != nil {
			s.run.Cancel()
			s.run = nil
		}
	case StepResultsView:
		s.unfilteredResults = nil
		s.displayedResults = nil
		s.activeFilters = nil
		s.transactionRows = nil
		s.enrichmentJobID = ""
	}

	s.step = stepOrder[idx-1]
	return nil
}

// Run returns the current (or last) analysis run, if any.
func (s *Session) Run() *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run
}

// DisplayedResults returns the results the results view should show.
func (s *Session) DisplayedResults() *engine.AnalysisResults {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayedResults
}

// ActiveFilters returns the dimension filters currently applied.
func (s *Session) ActiveFilters() dataset.Filters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeFilters
}

// UploadKind returns the heuristic classification of the imported dataset.
func (s *Session) UploadKind() dataset.UploadKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploadKind
}

// Columns returns the validated column selection.
func (s *Session) Columns() ColumnSelection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.columns
}

// buildStartRequest assembles the engine payload from session state.
// Caller must hold s.mu.
func (s *Session) buildStartRequest(filters dataset.Filters) engine.StartRequest {
	dataType := "user_level"
	if s.uploadKind == dataset.UploadAggregated {
		dataType = "aggregated"
	}
	return engine.StartRequest{
		Data:                      s.data.Rows,
		MetricsConfig:             s.metrics,
		VariationColumn:           s.columns.VariationColumn,
		UserColumn:                s.columns.UserColumn,
		ConfidenceLevel:           s.stats.ConfidenceLevel,
		StatisticalMethod:         s.stats.StatisticalMethod,
		MultipleTestingCorrection: s.stats.MultipleTestingCorrection,
		DataType:                  dataType,
		Filters:                   filters,
	}
}
