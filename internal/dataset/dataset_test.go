package dataset

import (
	"strings"
	"testing"
)

func TestParseCSV(t *testing.T) {
	input := "user_id,variation,revenue\nu1,Control,10.5\nu2,Treatment,20\n"

	ds, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}

	wantHeaders := []string{"user_id", "variation", "revenue"}
	if len(ds.Headers) != len(wantHeaders) {
		t.Fatalf("headers = %v, want %v", ds.Headers, wantHeaders)
	}
	for i, h := range wantHeaders {
		if ds.Headers[i] != h {
			t.Errorf("headers[%d] = %q, want %q", i, ds.Headers[i], h)
		}
	}

	if len(ds.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(ds.Rows))
	}
	if ds.Rows[0]["revenue"] != "10.5" {
		t.Errorf("rows[0][revenue] = %q, want %q", ds.Rows[0]["revenue"], "10.5")
	}
	if ds.Rows[1]["variation"] != "Treatment" {
		t.Errorf("rows[1][variation] = %q, want %q", ds.Rows[1]["variation"], "Treatment")
	}
}

func TestParseCSV_PadsShortRows(t *testing.T) {
	input := "a,b,c\n1,2\n"

	ds, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if got := ds.Rows[0]["c"]; got != "" {
		t.Errorf("padded cell = %q, want empty string", got)
	}
}

func TestParseCSV_TruncatesLongRows(t *testing.T) {
	input := "a,b\n1,2,3\n"

	ds, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if len(ds.Rows[0]) != 2 {
		t.Errorf("row has %d cells, want 2: %v", len(ds.Rows[0]), ds.Rows[0])
	}
}

func TestParseCSV_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"Empty", ""},
		{"HeaderOnly", "a,b,c\n"},
		{"MalformedQuote", "a,b\n\"unterminated,2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseCSV(strings.NewReader(tt.input)); err == nil {
				t.Errorf("ParseCSV(%q) should fail", tt.input)
			}
		})
	}
}

func TestDatasetColumn(t *testing.T) {
	ds := &Dataset{
		Headers: []string{"a", "b"},
		Rows:    []Row{{"a": "1", "b": "x"}, {"a": "2", "b": "y"}},
	}

	got := ds.Column("a")
	if len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Errorf("Column(a) = %v, want [1 2]", got)
	}

	missing := ds.Column("zzz")
	if len(missing) != 2 || missing[0] != "" {
		t.Errorf("Column(zzz) = %v, want empty strings per row", missing)
	}
}

func TestDatasetHasHeader(t *testing.T) {
	ds := &Dataset{Headers: []string{"a", "b"}}
	if !ds.HasHeader("a") {
		t.Errorf("HasHeader(a) = false, want true")
	}
	if ds.HasHeader("c") {
		t.Errorf("HasHeader(c) = true, want false")
	}
}
