package server

import (
	"expdash/internal/dataset"
	"expdash/internal/workflow"
)

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// PatchExperimentRequest carries only the fields the client actually changed.
type PatchExperimentRequest struct {
	Fields map[string]any `json:"fields"`
}

// SessionResponse describes a workflow session's externally visible state.
type SessionResponse struct {
	ID         string             `json:"id"`
	Step       workflow.Step      `json:"step"`
	UploadKind dataset.UploadKind `json:"upload_kind,omitempty"`
}

// NextStepRequest is the polymorphic payload for advancing the wizard; the
// handler picks the member matching the session's current step.
type NextStepRequest struct {
	Columns    *workflow.ColumnSelection `json:"columns,omitempty"`
	Test       *workflow.TestConfig      `json:"test,omitempty"`
	Metrics    []dataset.Metric          `json:"metrics,omitempty"`
	Statistics *workflow.StatsConfig     `json:"statistics,omitempty"`
}

// DatasetResponse summarizes an accepted upload.
type DatasetResponse struct {
	Rows       int                `json:"rows"`
	Headers    []string           `json:"headers"`
	UploadKind dataset.UploadKind `json:"upload_kind"`
}

// TransactionUploadResponse reports a transaction enrichment submission.
type TransactionUploadResponse struct {
	ProposedMapping dataset.Mapping `json:"proposed_mapping"`
	RowsSubmitted   int             `json:"rows_submitted"`
}

// RunResponse is the polled run state for the UI.
type RunResponse struct {
	RunID    string  `json:"run_id"`
	JobID    string  `json:"job_id,omitempty"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Error    string  `json:"error,omitempty"`
}

// FiltersRequest sets the active dimension filters.
type FiltersRequest struct {
	Filters dataset.Filters `json:"filters"`
}
