package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"expdash/internal/dataset"
	"expdash/internal/workflow"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

func workflowError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, workflow.ErrWrongStep):
		return c.Status(http.StatusConflict).JSON(ErrorResponse{
			Error:   "wrong_step",
			Message: err.Error(),
		})
	case errors.Is(err, workflow.ErrRunActive):
		return c.Status(http.StatusConflict).JSON(ErrorResponse{
			Error:   "run_active",
			Message: err.Error(),
		})
	default:
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
			Error:   "workflow_error",
			Message: err.Error(),
		})
	}
}

func (s *Server) sessionOr404(c *fiber.Ctx) (*workflow.Session, error) {
	session, ok := s.session(c.Params("id"))
	if !ok {
		return nil, c.Status(http.StatusNotFound).JSON(ErrorResponse{
			Error: "session_not_found",
		})
	}
	return session, nil
}

// CreateSession opens a new analysis workflow session.
func (s *Server) CreateSession(c *fiber.Ctx) error {
	session := workflow.NewSession(s.engine, s.events)

	s.sessionMutex.Lock()
	s.sessions[session.ID] = session
	s.sessionMutex.Unlock()

	log.Info().Str("session", session.ID).Msg("Workflow session created")
	return c.Status(http.StatusCreated).JSON(SessionResponse{
		ID:   session.ID,
		Step: session.Step(),
	})
}

// GetSession returns the session's current wizard state.
func (s *Server) GetSession(c *fiber.Ctx) error {
	session, errResp := s.sessionOr404(c)
	if session == nil {
		return errResp
	}
	return c.JSON(SessionResponse{
		ID:         session.ID,
		Step:       session.Step(),
		UploadKind: session.UploadKind(),
	})
}

// readUploadedCSV extracts the CSV payload from either a multipart "file"
// part or the raw request body.
func readUploadedCSV(c *fiber.Ctx) (*dataset.Dataset, error) {
	if file, err := c.FormFile("file"); err == nil {
		f, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return dataset.ParseCSV(f)
	}
	return dataset.ParseCSV(bytes.NewReader(c.Body()))
}

// UploadDataset parses the uploaded CSV and feeds it into the DataImport step.
func (s *Server) UploadDataset(c *fiber.Ctx) error {
	session, errResp := s.sessionOr404(c)
	if session == nil {
		return errResp
	}

	ds, err := readUploadedCSV(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_csv",
			Message: err.Error(),
		})
	}

	if err := session.ImportData(ds); err != nil {
		return workflowError(c, err)
	}

	return c.JSON(DatasetResponse{
		Rows:       len(ds.Rows),
		Headers:    ds.Headers,
		UploadKind: session.UploadKind(),
	})
}

// NextStep advances the wizard. The request payload member matching the
// session's current step is validated and handed forward.
func (s *Server) NextStep(c *fiber.Ctx) error {
	session, errResp := s.sessionOr404(c)
	if session == nil {
		return errResp
	}

	var req NextStepRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Error: "invalid_json"})
	}

	var err error
	switch step := session.Step(); step {
	case workflow.StepSelectColumns:
		if req.Columns == nil {
			err = errors.New("column selection payload required")
		} else {
			err = session.SelectColumns(*req.Columns)
		}
	case workflow.StepTestConfiguration:
		if req.Test == nil {
			err = errors.New("test configuration payload required")
		} else {
			err = session.ConfigureTest(*req.Test)
		}
	case workflow.StepSuggestedMetrics:
		metrics := req.Metrics
		if len(metrics) == 0 {
			metrics = session.SuggestedMetrics()
		}
		err = session.ConfigureMetrics(metrics)
	case workflow.StepStatisticConfiguration:
		if req.Statistics == nil {
			err = errors.New("statistic configuration payload required")
		} else {
			err = session.ConfigureStatistics(*req.Statistics)
		}
	default:
		return c.Status(http.StatusConflict).JSON(ErrorResponse{
			Error:   "wrong_step",
			Message: "step " + string(step) + " does not advance via next",
		})
	}
	if err != nil {
		return workflowError(c, err)
	}

	resp := SessionResponse{ID: session.ID, Step: session.Step(), UploadKind: session.UploadKind()}
	if session.Step() == workflow.StepSuggestedMetrics {
		return c.JSON(fiber.Map{
			"session":   resp,
			"suggested": session.SuggestedMetrics(),
		})
	}
	return c.JSON(resp)
}

// BackStep reverses the wizard one step, discarding forward state.
func (s *Server) BackStep(c *fiber.Ctx) error {
	session, errResp := s.sessionOr404(c)
	if session == nil {
		return errResp
	}
	if err := session.Back(); err != nil {
		return workflowError(c, err)
	}
	return c.JSON(SessionResponse{
		ID:         session.ID,
		Step:       session.Step(),
		UploadKind: session.UploadKind(),
	})
}

// StartRun submits the configured analysis job and starts polling.
func (s *Server) StartRun(c *fiber.Ctx) error {
	session, errResp := s.sessionOr404(c)
	if session == nil {
		return errResp
	}

	run, err := session.StartRun(c.UserContext())
	if err != nil {
		if errors.Is(err, workflow.ErrWrongStep) || errors.Is(err, workflow.ErrRunActive) {
			return workflowError(c, err)
		}
		// Submission failures are terminal for the run but surfaced as a
		// failed run state, matching the retry-by-resubmission contract.
		return c.Status(http.StatusBadGateway).JSON(RunResponse{
			RunID:  run.ID,
			Status: string(run.Status()),
			Error:  run.Error(),
		})
	}

	return c.Status(http.StatusAccepted).JSON(RunResponse{
		RunID:    run.ID,
		JobID:    run.JobID,
		Status:   string(run.Status()),
		Progress: run.Progress(),
	})
}

// GetRun returns the polled run state, including results once completed.
func (s *Server) GetRun(c *fiber.Ctx) error {
	session, errResp := s.sessionOr404(c)
	if session == nil {
		return errResp
	}

	run := session.Run()
	if run == nil {
		return c.Status(http.StatusNotFound).JSON(ErrorResponse{Error: "no_run"})
	}

	resp := RunResponse{
		RunID:    run.ID,
		JobID:    run.JobID,
		Status:   string(run.Status()),
		Progress: run.Progress(),
		Error:    run.Error(),
	}
	if results := session.DisplayedResults(); results != nil {
		return c.JSON(fiber.Map{
			"run":     resp,
			"results": results,
			"filters": session.ActiveFilters(),
		})
	}
	return c.JSON(fiber.Map{"run": resp})
}

// UploadTransactions accepts transaction-level CSV data, proposes or applies
// a column mapping and submits the enrichment. An incomplete mapping blocks
// submission and returns the proposal for the user to resolve.
func (s *Server) UploadTransactions(c *fiber.Ctx) error {
	session, errResp := s.sessionOr404(c)
	if session == nil {
		return errResp
	}

	ds, err := readUploadedCSV(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_csv",
			Message: err.Error(),
		})
	}

	mapping := dataset.ProposeMapping(ds.Headers)
	if raw := c.FormValue("mapping"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
			return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
				Error:   "invalid_mapping",
				Message: err.Error(),
			})
		}
	}

	if !mapping.Complete() {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error":            "mapping_incomplete",
			"proposed_mapping": mapping,
		})
	}

	if err := session.AttachTransactions(c.UserContext(), ds.Rows, mapping); err != nil {
		return workflowError(c, err)
	}

	return c.JSON(TransactionUploadResponse{
		ProposedMapping: mapping,
		RowsSubmitted:   len(ds.Rows),
	})
}

// ApplyFilters recomputes the displayed results for the given dimension
// filters. Errors keep the last good results but are surfaced explicitly.
func (s *Server) ApplyFilters(c *fiber.Ctx) error {
	session, errResp := s.sessionOr404(c)
	if session == nil {
		return errResp
	}

	var req FiltersRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Error: "invalid_json"})
	}

	results, err := session.ApplyDimensionFilters(c.UserContext(), req.Filters)
	if err != nil {
		if errors.Is(err, workflow.ErrWrongStep) {
			return workflowError(c, err)
		}
		return c.Status(http.StatusBadGateway).JSON(fiber.Map{
			"error":   "filter_recompute_failed",
			"message": err.Error(),
			"results": results, // last known good
		})
	}

	return c.JSON(fiber.Map{
		"results": results,
		"filters": session.ActiveFilters(),
	})
}

// RunEvents returns the audit trail for the session's runs.
func (s *Server) RunEvents(c *fiber.Ctx) error {
	session, errResp := s.sessionOr404(c)
	if session == nil {
		return errResp
	}
	return c.JSON(s.events.Events(session.ID))
}
