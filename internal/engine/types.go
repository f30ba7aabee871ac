package engine

import "expdash/internal/dataset"

// Status is the lifecycle state of a remote analysis job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further status changes can occur.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// StartRequest is the full configuration submitted to the analysis engine.
type StartRequest struct {
	Data                      []map[string]string `json:"data"`
	MetricsConfig             []dataset.Metric    `json:"metrics_config"`
	VariationColumn           string              `json:"variation_column"`
	UserColumn                string              `json:"user_column"`
	ConfidenceLevel           float64             `json:"confidence_level"`
	StatisticalMethod         string              `json:"statistical_method"`
	MultipleTestingCorrection string              `json:"multiple_testing_correction"`
	DataType                  string              `json:"data_type"`
	Filters                   map[string][]string `json:"filters,omitempty"`
}

// StartResponse carries the identifier of a newly created job.
type StartResponse struct {
	JobID string `json:"job_id"`
}

// StatusResponse is the polled job state.
type StatusResponse struct {
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// VariationStats are the per-arm aggregates for one metric.
type VariationStats struct {
	SampleSize  int64   `json:"sample_size"`
	Mean        float64 `json:"mean"`
	Conversions int64   `json:"conversions"`
	Revenue     float64 `json:"revenue"`
}

// Comparison is a pairwise test between a variation and its baseline.
type Comparison struct {
	Baseline    string  `json:"baseline"`
	Variation   string  `json:"variation"`
	Uplift      float64 `json:"uplift"`
	PValue      float64 `json:"p_value"`
	CILower     float64 `json:"ci_lower"`
	CIUpper     float64 `json:"ci_upper"`
	Significant bool    `json:"significant"`
}

// MetricResult bundles the stats and comparisons for a single metric.
// Unit, Currency and Decimals are display metadata attached client-side
// during result enrichment; the engine does not return them.
type MetricResult struct {
	MetricID            string                    `json:"metric_id"`
	MetricName          string                    `json:"metric_name"`
	MetricType          string                    `json:"metric_type"`
	VariationStats      map[string]VariationStats `json:"variation_stats"`
	PairwiseComparisons []Comparison              `json:"pairwise_comparisons"`

	Unit     string `json:"unit,omitempty"`
	Currency string `json:"currency,omitempty"`
	Decimals int    `json:"decimals,omitempty"`
}

// OverallStats summarizes the dataset the job ran on.
type OverallStats struct {
	TotalUsers      int64            `json:"total_users"`
	VariationCounts map[string]int64 `json:"variation_counts"`
	DataType        string           `json:"data_type"`
}

// AnalysisResults is the final output of a completed job.
type AnalysisResults struct {
	Overall OverallStats   `json:"overall"`
	Metrics []MetricResult `json:"metrics"`
}

type resultsResponse struct {
	Results AnalysisResults `json:"results"`
}

type enrichRequest struct {
	TransactionData []map[string]string `json:"transactionData"`
}

type enrichFilteredRequest struct {
	FilteredTransactionData []map[string]string `json:"filteredTransactionData"`
	ReferenceJobID          string              `json:"referenceJobId"`
}
