package dashboard

import (
	"sort"
	"time"

	"expdash/internal/tickets"
)

// Summary bundles the dashboard's derived views. Everything here is computed
// from the in-memory experiment list; nothing is persisted.
type Summary struct {
	Total          int                    `json:"total"`
	StatusCounts   map[tickets.Status]int `json:"status_counts"`
	MonthOverMonth MonthDelta             `json:"month_over_month"`
	TopOwners      []OwnerRank            `json:"top_owners"`
	ConclusiveRate float64                `json:"conclusive_rate"`
	WinRate        float64                `json:"win_rate"`
}

// MonthDelta compares tests started this month against the previous month.
type MonthDelta struct {
	CurrentMonth  int     `json:"current_month"`
	PreviousMonth int     `json:"previous_month"`
	DeltaPercent  float64 `json:"delta_percent"`
}

// OwnerRank is one entry of the top-owner ranking.
type OwnerRank struct {
	Owner string `json:"owner"`
	Count int    `json:"count"`
}

// StatusCounts tallies experiments per lifecycle status.
func StatusCounts(experiments []tickets.Experiment) map[tickets.Status]int {
	counts := make(map[tickets.Status]int)
	for _, exp := range experiments {
		counts[exp.Status]++
	}
	return counts
}

// MonthOverMonth counts tests started in the month containing now against the
// month before. The delta is a percentage of the previous month; with an
// empty previous month it is 100 when anything started, 0 otherwise.
func MonthOverMonth(experiments []tickets.Experiment, now time.Time) MonthDelta {
	currentStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	previousStart := currentStart.AddDate(0, -1, 0)

	var current, previous int
	for _, exp := range experiments {
		if exp.StartDate == nil {
			continue
		}
		start := *exp.StartDate
		switch {
		case !start.Before(currentStart) && start.Before(currentStart.AddDate(0, 1, 0)):
			current++
		case !start.Before(previousStart) && start.Before(currentStart):
			previous++
		}
	}

	delta := MonthDelta{CurrentMonth: current, PreviousMonth: previous}
	switch {
	case previous > 0:
		delta.DeltaPercent = 100 * float64(current-previous) / float64(previous)
	case current > 0:
		delta.DeltaPercent = 100
	}
	return delta
}

// TopOwners ranks owners by experiment count, descending, ties broken by
// owner name for deterministic output. Experiments without an owner are
// ignored.
func TopOwners(experiments []tickets.Experiment, n int) []OwnerRank {
	counts := make(map[string]int)
	for _, exp := range experiments {
		if exp.Owner == "" {
			continue
		}
		counts[exp.Owner]++
	}

	ranks := make([]OwnerRank, 0, len(counts))
	for owner, count := range counts {
		ranks = append(ranks, OwnerRank{Owner: owner, Count: count})
	}

	sort.Slice(ranks, func(i, j int) bool {
		if ranks[i].Count != ranks[j].Count {
			return ranks[i].Count > ranks[j].Count
		}
		return ranks[i].Owner < ranks[j].Owner
	})

	if n > 0 && len(ranks) > n {
		ranks = ranks[:n]
	}
	return ranks
}

// ConclusiveRate is the share of finished (Done) experiments marked
// conclusive, as a percentage.
func ConclusiveRate(experiments []tickets.Experiment) float64 {
	var done, conclusive int
	for _, exp := range experiments {
		if exp.Status != tickets.StatusDone {
			continue
		}
		done++
		if exp.Conclusive {
			conclusive++
		}
	}
	if done == 0 {
		return 0
	}
	return 100 * float64(conclusive) / float64(done)
}

// WinRate is the share of conclusive Done experiments with a winning outcome,
// as a percentage.
func WinRate(experiments []tickets.Experiment) float64 {
	var conclusive, wins int
	for _, exp := range experiments {
		if exp.Status != tickets.StatusDone || !exp.Conclusive {
			continue
		}
		conclusive++
		if exp.Outcome == "Win" {
			wins++
		}
	}
	if conclusive == 0 {
		return 0
	}
	return 100 * float64(wins) / float64(conclusive)
}

// BuildSummary computes the full dashboard summary.
func BuildSummary(experiments []tickets.Experiment, now time.Time) Summary {
	return Summary{
		Total:          len(experiments),
		StatusCounts:   StatusCounts(experiments),
		MonthOverMonth: MonthOverMonth(experiments, now),
		TopOwners:      TopOwners(experiments, 5),
		ConclusiveRate: ConclusiveRate(experiments),
		WinRate:        WinRate(experiments),
	}
}
