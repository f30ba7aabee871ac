package server

import (
	"io"
	"net/http"
	"time"

	"expdash/internal/dashboard"
	"expdash/internal/records"
	"expdash/internal/tickets"

	"github.com/gofiber/fiber/v2"
)

func (s *Server) loadExperiments(c *fiber.Ctx) ([]tickets.Experiment, error) {
	recs, err := s.records.ListRecords(c.UserContext(), records.TableExperiments)
	if err != nil {
		return nil, err
	}

	lookups := s.resolveLookups(c.UserContext())
	experiments := make([]tickets.Experiment, len(recs))
	for i, rec := range recs {
		experiments[i] = tickets.FromRecord(rec, lookups)
	}
	return experiments, nil
}

// ListExperiments returns every experiment ticket.
func (s *Server) ListExperiments(c *fiber.Ctx) error {
	experiments, err := s.loadExperiments(c)
	if err != nil {
		return c.Status(http.StatusBadGateway).JSON(ErrorResponse{
			Error:   "record_backend_error",
			Message: err.Error(),
		})
	}
	return c.JSON(experiments)
}

// GetExperiment returns a single ticket by record id.
func (s *Server) GetExperiment(c *fiber.Ctx) error {
	rec, err := s.records.GetRecord(c.UserContext(), records.TableExperiments, c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadGateway).JSON(ErrorResponse{
			Error:   "record_backend_error",
			Message: err.Error(),
		})
	}

	exp := tickets.FromRecord(*rec, s.resolveLookups(c.UserContext()))
	return c.JSON(exp)
}

// PatchExperiment forwards a field diff to the record backend. Clients send
// only changed fields, preserving the diff-only save protocol end to end.
func (s *Server) PatchExperiment(c *fiber.Ctx) error {
	var req PatchExperimentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Error: "invalid_json"})
	}
	if len(req.Fields) == 0 {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
			Error:   "empty_patch",
			Message: "no fields to update",
		})
	}

	if status, ok := req.Fields[tickets.FieldStatus].(string); ok {
		if !tickets.ValidStatus(tickets.Status(status)) {
			return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
				Error:   "invalid_status",
				Message: "unknown ticket status " + status,
			})
		}
	}

	rec, err := s.records.UpdateRecordFields(c.UserContext(), records.TableExperiments, c.Params("id"), req.Fields)
	if err != nil {
		return c.Status(http.StatusBadGateway).JSON(ErrorResponse{
			Error:   "record_backend_error",
			Message: err.Error(),
		})
	}

	exp := tickets.FromRecord(*rec, s.resolveLookups(c.UserContext()))
	return c.JSON(exp)
}

// imageField maps the route's image kind to the backing attachment field.
func imageField(kind string) (string, bool) {
	switch kind {
	case "control":
		return tickets.FieldControlImage, true
	case "variation":
		return tickets.FieldVariationImage, true
	}
	return "", false
}

// UploadExperimentImage stores an uploaded screenshot and links it to the
// control or variation image field of the ticket.
func (s *Server) UploadExperimentImage(c *fiber.Ctx) error {
	field, ok := imageField(c.Params("kind"))
	if !ok {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_image_kind",
			Message: "image kind must be control or variation",
		})
	}

	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
			Error:   "missing_file",
			Message: "multipart file part required",
		})
	}
	f, err := file.Open()
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
			Error:   "unreadable_file",
			Message: err.Error(),
		})
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
			Error:   "unreadable_file",
			Message: err.Error(),
		})
	}

	att, err := s.records.UploadAttachment(c.UserContext(), file.Filename, data)
	if err != nil {
		return c.Status(http.StatusBadGateway).JSON(ErrorResponse{
			Error:   "record_backend_error",
			Message: err.Error(),
		})
	}

	fields := map[string]any{
		field: []any{map[string]any{"id": att.ID, "url": att.URL, "filename": att.Filename}},
	}
	rec, err := s.records.UpdateRecordFields(c.UserContext(), records.TableExperiments, c.Params("id"), fields)
	if err != nil {
		return c.Status(http.StatusBadGateway).JSON(ErrorResponse{
			Error:   "record_backend_error",
			Message: err.Error(),
		})
	}

	return c.JSON(tickets.FromRecord(*rec, s.resolveLookups(c.UserContext())))
}

// DeleteExperimentImage removes the stored attachment and clears the
// referencing image field on the ticket.
func (s *Server) DeleteExperimentImage(c *fiber.Ctx) error {
	field, ok := imageField(c.Params("kind"))
	if !ok {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_image_kind",
			Message: "image kind must be control or variation",
		})
	}
	attachmentID := c.Query("attachment")
	if attachmentID == "" {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
			Error:   "missing_attachment",
			Message: "attachment query parameter required",
		})
	}

	err := s.records.DeleteAttachment(c.UserContext(), records.TableExperiments, c.Params("id"), field, attachmentID)
	if err != nil {
		return c.Status(http.StatusBadGateway).JSON(ErrorResponse{
			Error:   "record_backend_error",
			Message: err.Error(),
		})
	}

	return c.SendStatus(http.StatusNoContent)
}

// DashboardSummary returns the derived aggregate views.
func (s *Server) DashboardSummary(c *fiber.Ctx) error {
	experiments, err := s.loadExperiments(c)
	if err != nil {
		return c.Status(http.StatusBadGateway).JSON(ErrorResponse{
			Error:   "record_backend_error",
			Message: err.Error(),
		})
	}
	return c.JSON(dashboard.BuildSummary(experiments, time.Now()))
}

// Timeline returns Gantt spans for the requested window (defaults to the
// last quarter through the next).
func (s *Server) Timeline(c *fiber.Ctx) error {
	experiments, err := s.loadExperiments(c)
	if err != nil {
		return c.Status(http.StatusBadGateway).JSON(ErrorResponse{
			Error:   "record_backend_error",
			Message: err.Error(),
		})
	}

	now := time.Now()
	from := now.AddDate(0, -3, 0)
	to := now.AddDate(0, 3, 0)
	if v := c.Query("from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			from = t
		}
	}
	if v := c.Query("to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			to = t
		}
	}

	return c.JSON(tickets.BuildTimeline(experiments, from, to))
}

// Kanban returns the board columns grouped by ticket status.
func (s *Server) Kanban(c *fiber.Ctx) error {
	experiments, err := s.loadExperiments(c)
	if err != nil {
		return c.Status(http.StatusBadGateway).JSON(ErrorResponse{
			Error:   "record_backend_error",
			Message: err.Error(),
		})
	}
	return c.JSON(tickets.BuildKanban(experiments))
}
