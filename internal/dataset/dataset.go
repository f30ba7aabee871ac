package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Row is a single parsed record, keyed by column header. It aliases the plain
// map type so row slices can be handed to the engine client without copying.
type Row = map[string]string

// Dataset is an ordered, ephemeral collection of parsed rows. It is held in
// workflow state only and never persisted.
type Dataset struct {
	Headers []string
	Rows    []Row
}

// ParseCSV reads an uploaded CSV stream into a Dataset. The first non-empty
// line is treated as the header. Rows shorter than the header are padded with
// empty strings; longer rows keep only the headed columns.
func ParseCSV(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("uploaded file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV header: %w", err)
	}

	headers := make([]string, len(header))
	for i, h := range header {
		headers[i] = strings.TrimSpace(h)
	}

	ds := &Dataset{Headers: headers}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV line %d: %w", line+1, err)
		}
		line++

		row := make(Row, len(headers))
		for i, h := range headers {
			if i < len(record) {
				row[h] = strings.TrimSpace(record[i])
			} else {
				row[h] = ""
			}
		}
		ds.Rows = append(ds.Rows, row)
	}

	if len(ds.Rows) == 0 {
		return nil, fmt.Errorf("uploaded file contains no data rows")
	}

	return ds, nil
}

// Column returns all values of a column in row order. Missing cells come back
// as empty strings.
func (d *Dataset) Column(name string) []string {
	values := make([]string, len(d.Rows))
	for i, row := range d.Rows {
		values[i] = row[name]
	}
	return values
}

// HasHeader reports whether the dataset contains the named column.
func (d *Dataset) HasHeader(name string) bool {
	for _, h := range d.Headers {
		if h == name {
			return true
		}
	}
	return false
}
