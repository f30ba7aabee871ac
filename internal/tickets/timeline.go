package tickets

import (
	"sort"
	"time"
)

// Span is one bar on the Gantt-style timeline.
type Span struct {
	ExperimentID string    `json:"experiment_id"`
	Title        string    `json:"title"`
	Status       Status    `json:"status"`
	Market       string    `json:"market"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Ongoing      bool      `json:"ongoing"`
}

// BuildTimeline derives timeline spans for experiments overlapping the
// [from, to) window. Experiments without a start date are skipped; a missing
// end date means the test is still running and the span is clamped to the
// window end. Spans are sorted by start date, then title for stable output.
func BuildTimeline(experiments []Experiment, from, to time.Time) []Span {
	var spans []Span

	for _, exp := range experiments {
		if exp.StartDate == nil {
			continue
		}

		start := *exp.StartDate
		end := to
		ongoing := true
		if exp.EndDate != nil {
			end = *exp.EndDate
			ongoing = false
		}

		// Skip experiments entirely outside the window.
		if !end.After(from) || !start.Before(to) {
			continue
		}

		if start.Before(from) {
			start = from
		}
		if end.After(to) {
			end = to
		}

		spans = append(spans, Span{
			ExperimentID: exp.ID,
			Title:        exp.Title,
			Status:       exp.Status,
			Market:       exp.Market,
			Start:        start,
			End:          end,
			Ongoing:      ongoing,
		})
	}

	sort.Slice(spans, func(i, j int) bool {
		if !spans[i].Start.Equal(spans[j].Start) {
			return spans[i].Start.Before(spans[j].Start)
		}
		return spans[i].Title < spans[j].Title
	})

	return spans
}

// KanbanColumn is one status lane of the board overlay.
type KanbanColumn struct {
	Status      Status       `json:"status"`
	Experiments []Experiment `json:"experiments"`
}

// BuildKanban groups experiments into columns following the canonical status
// order. Empty columns are included so the board renders every lane.
func BuildKanban(experiments []Experiment) []KanbanColumn {
	byStatus := make(map[Status][]Experiment)
	for _, exp := range experiments {
		byStatus[exp.Status] = append(byStatus[exp.Status], exp)
	}

	columns := make([]KanbanColumn, 0, len(StatusOrder))
	for _, status := range StatusOrder {
		lane := byStatus[status]
		sort.Slice(lane, func(i, j int) bool {
			return lane[i].Title < lane[j].Title
		})
		columns = append(columns, KanbanColumn{Status: status, Experiments: lane})
	}
	return columns
}
