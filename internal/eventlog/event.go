package eventlog

// EventType defines the objective nature of a workflow run state change.
type EventType string

const (
	// Submitted indicates a job configuration was sent to the analysis engine.
	Submitted EventType = "Submitted"
	// StatusChanged indicates the polled job status moved to a new state.
	StatusChanged EventType = "StatusChanged"
	// Completed indicates the job finished and results were fetched.
	Completed EventType = "Completed"
	// Failed indicates the job reached a terminal failure.
	Failed EventType = "Failed"
	// Enriched indicates transaction-level data was attached to the job.
	Enriched EventType = "Enriched"
	// FilterApplied indicates a dimension filter recomputation was requested.
	FilterApplied EventType = "FilterApplied"
	// RunDegraded indicates a filter recomputation failed and the view fell
	// back to the last known good results.
	RunDegraded EventType = "RunDegraded"
)

// RunEvent represents a single atomic change in an analysis run's lifecycle.
type RunEvent struct {
	// RunID identifies the analysis run within the session.
	RunID string `json:"runId"`
	// JobID is the engine-side job identifier, when one exists.
	JobID string `json:"jobId,omitempty"`
	// EventType is the type of change being recorded.
	EventType EventType `json:"eventType"`
	// Timestamp is the physical time the event occurred (Unix microseconds).
	Timestamp int64 `json:"ts"`

	// Message carries the human-readable detail (e.g. a verbatim engine error).
	Message string `json:"message,omitempty"`

	// Metadata stores extensible fields that might be relevant for audits.
	Metadata map[string]any `json:"metadata,omitempty"`
}
