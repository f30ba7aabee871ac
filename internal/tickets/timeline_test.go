package tickets

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

func TestBuildTimeline(t *testing.T) {
	from := date(2026, time.June, 1)
	to := date(2026, time.September, 1)

	experiments := []Experiment{
		{ID: "a", Title: "Checkout CTA", Status: StatusRunning, StartDate: datePtr(2026, time.June, 10), EndDate: datePtr(2026, time.July, 10)},
		{ID: "b", Title: "Hero Banner", Status: StatusRunning, StartDate: datePtr(2026, time.July, 1)}, // no end date, still running
		{ID: "c", Title: "Old Test", Status: StatusDone, StartDate: datePtr(2026, time.January, 1), EndDate: datePtr(2026, time.February, 1)},
		{ID: "d", Title: "No Dates", Status: StatusRefinement},
		{ID: "e", Title: "Spans Window", Status: StatusRunning, StartDate: datePtr(2026, time.May, 1), EndDate: datePtr(2026, time.October, 1)},
	}

	spans := BuildTimeline(experiments, from, to)

	if len(spans) != 3 {
		t.Fatalf("BuildTimeline() returned %d spans, want 3: %+v", len(spans), spans)
	}

	// Sorted by start date: e (clamped to window start), a, b.
	if spans[0].ExperimentID != "e" || spans[1].ExperimentID != "a" || spans[2].ExperimentID != "b" {
		t.Errorf("span order = %s, %s, %s, want e, a, b", spans[0].ExperimentID, spans[1].ExperimentID, spans[2].ExperimentID)
	}

	// Spans crossing the window edge are clamped.
	if !spans[0].Start.Equal(from) {
		t.Errorf("clamped start = %v, want %v", spans[0].Start, from)
	}
	if !spans[0].End.Equal(to) {
		t.Errorf("clamped end = %v, want %v", spans[0].End, to)
	}
	if spans[0].Ongoing {
		t.Errorf("span with an end date marked ongoing")
	}

	// Missing end date means ongoing, clamped to the window end.
	if !spans[2].Ongoing {
		t.Errorf("span without an end date not marked ongoing")
	}
	if !spans[2].End.Equal(to) {
		t.Errorf("ongoing span end = %v, want window end %v", spans[2].End, to)
	}
}

func TestBuildTimeline_StableTitleTiebreak(t *testing.T) {
	from := date(2026, time.June, 1)
	to := date(2026, time.July, 1)
	start := datePtr(2026, time.June, 5)
	end := datePtr(2026, time.June, 20)

	experiments := []Experiment{
		{ID: "b", Title: "Bravo", StartDate: start, EndDate: end},
		{ID: "a", Title: "Alpha", StartDate: start, EndDate: end},
	}

	spans := BuildTimeline(experiments, from, to)
	if len(spans) != 2 || spans[0].Title != "Alpha" || spans[1].Title != "Bravo" {
		t.Errorf("equal-start spans not ordered by title: %+v", spans)
	}
}

func TestBuildKanban(t *testing.T) {
	experiments := []Experiment{
		{ID: "1", Title: "Zeta", Status: StatusRunning},
		{ID: "2", Title: "Alpha", Status: StatusRunning},
		{ID: "3", Title: "Done Test", Status: StatusDone},
	}

	columns := BuildKanban(experiments)

	if len(columns) != len(StatusOrder) {
		t.Fatalf("BuildKanban() returned %d columns, want %d (empty lanes included)", len(columns), len(StatusOrder))
	}
	for i, col := range columns {
		if col.Status != StatusOrder[i] {
			t.Errorf("column %d status = %q, want %q", i, col.Status, StatusOrder[i])
		}
	}

	var running KanbanColumn
	for _, col := range columns {
		if col.Status == StatusRunning {
			running = col
		}
	}
	if len(running.Experiments) != 2 {
		t.Fatalf("Running lane has %d experiments, want 2", len(running.Experiments))
	}
	if running.Experiments[0].Title != "Alpha" {
		t.Errorf("lane not sorted by title: %+v", running.Experiments)
	}
}

func TestValidStatus(t *testing.T) {
	if !ValidStatus(StatusRunning) {
		t.Errorf("ValidStatus(%q) = false, want true", StatusRunning)
	}
	if ValidStatus("Archived") {
		t.Errorf("ValidStatus(%q) = true, want false", "Archived")
	}
}

func TestSuccessCriterionField(t *testing.T) {
	if got := SuccessCriterionField(2); got != "Success Criteria 2" {
		t.Errorf("SuccessCriterionField(2) = %q, want %q", got, "Success Criteria 2")
	}
	if got := SuccessCriterionMetField(3); got != "Success Criteria 3 Met" {
		t.Errorf("SuccessCriterionMetField(3) = %q, want %q", got, "Success Criteria 3 Met")
	}
}
