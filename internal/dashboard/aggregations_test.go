package dashboard

import (
	"reflect"
	"testing"
	"time"

	"expdash/internal/tickets"
)

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestStatusCounts(t *testing.T) {
	experiments := []tickets.Experiment{
		{Status: tickets.StatusRunning},
		{Status: tickets.StatusRunning},
		{Status: tickets.StatusDone},
	}

	counts := StatusCounts(experiments)
	if counts[tickets.StatusRunning] != 2 || counts[tickets.StatusDone] != 1 {
		t.Errorf("StatusCounts() = %v", counts)
	}
}

func TestMonthOverMonth(t *testing.T) {
	now := time.Date(2026, time.August, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		experiments []tickets.Experiment
		want        MonthDelta
	}{
		{
			name: "Growth",
			experiments: []tickets.Experiment{
				{StartDate: datePtr(2026, time.August, 1)},
				{StartDate: datePtr(2026, time.August, 20)},
				{StartDate: datePtr(2026, time.July, 10)},
			},
			want: MonthDelta{CurrentMonth: 2, PreviousMonth: 1, DeltaPercent: 100},
		},
		{
			name: "Decline",
			experiments: []tickets.Experiment{
				{StartDate: datePtr(2026, time.August, 5)},
				{StartDate: datePtr(2026, time.July, 1)},
				{StartDate: datePtr(2026, time.July, 31)},
			},
			want: MonthDelta{CurrentMonth: 1, PreviousMonth: 2, DeltaPercent: -50},
		},
		{
			name: "EmptyPreviousMonth",
			experiments: []tickets.Experiment{
				{StartDate: datePtr(2026, time.August, 5)},
			},
			want: MonthDelta{CurrentMonth: 1, PreviousMonth: 0, DeltaPercent: 100},
		},
		{
			name:        "NothingStarted",
			experiments: []tickets.Experiment{{}, {StartDate: datePtr(2026, time.January, 1)}},
			want:        MonthDelta{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MonthOverMonth(tt.experiments, now); got != tt.want {
				t.Errorf("MonthOverMonth() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTopOwners(t *testing.T) {
	experiments := []tickets.Experiment{
		{Owner: "Alex"}, {Owner: "Alex"}, {Owner: "Alex"},
		{Owner: "Sam"}, {Owner: "Sam"},
		{Owner: "Kim"}, {Owner: "Jo"},
		{Owner: ""}, // ignored
	}

	got := TopOwners(experiments, 3)
	want := []OwnerRank{
		{Owner: "Alex", Count: 3},
		{Owner: "Sam", Count: 2},
		{Owner: "Jo", Count: 1}, // ties broken by name
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TopOwners() = %v, want %v", got, want)
	}
}

func TestConclusiveRate(t *testing.T) {
	experiments := []tickets.Experiment{
		{Status: tickets.StatusDone, Conclusive: true},
		{Status: tickets.StatusDone, Conclusive: false},
		{Status: tickets.StatusRunning, Conclusive: true}, // not done, ignored
	}

	if got := ConclusiveRate(experiments); got != 50 {
		t.Errorf("ConclusiveRate() = %v, want 50", got)
	}
	if got := ConclusiveRate(nil); got != 0 {
		t.Errorf("ConclusiveRate(nil) = %v, want 0", got)
	}
}

func TestWinRate(t *testing.T) {
	experiments := []tickets.Experiment{
		{Status: tickets.StatusDone, Conclusive: true, Outcome: "Win"},
		{Status: tickets.StatusDone, Conclusive: true, Outcome: "Loss"},
		{Status: tickets.StatusDone, Conclusive: false, Outcome: "Win"},   // inconclusive, ignored
		{Status: tickets.StatusRunning, Conclusive: true, Outcome: "Win"}, // not done, ignored
	}

	if got := WinRate(experiments); got != 50 {
		t.Errorf("WinRate() = %v, want 50", got)
	}
	if got := WinRate(nil); got != 0 {
		t.Errorf("WinRate(nil) = %v, want 0", got)
	}
}

func TestBuildSummary(t *testing.T) {
	now := time.Date(2026, time.August, 15, 0, 0, 0, 0, time.UTC)
	experiments := []tickets.Experiment{
		{Owner: "Alex", Status: tickets.StatusDone, Conclusive: true, Outcome: "Win", StartDate: datePtr(2026, time.August, 2)},
		{Owner: "Sam", Status: tickets.StatusRunning, StartDate: datePtr(2026, time.July, 20)},
	}

	summary := BuildSummary(experiments, now)

	if summary.Total != 2 {
		t.Errorf("Total = %d, want 2", summary.Total)
	}
	if summary.MonthOverMonth.CurrentMonth != 1 || summary.MonthOverMonth.PreviousMonth != 1 {
		t.Errorf("MonthOverMonth = %+v", summary.MonthOverMonth)
	}
	if len(summary.TopOwners) != 2 {
		t.Errorf("TopOwners = %v", summary.TopOwners)
	}
	if summary.ConclusiveRate != 100 || summary.WinRate != 100 {
		t.Errorf("rates = %v/%v, want 100/100", summary.ConclusiveRate, summary.WinRate)
	}
}
