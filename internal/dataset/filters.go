package dataset

// Filters maps a dimension column name to the set of allowed values.
type Filters map[string][]string

// Empty reports whether no dimension is being filtered on. Dimensions with
// an empty allowed set do not count as active filters.
func (f Filters) Empty() bool {
	return !f.anyValues()
}

func (f Filters) anyValues() bool {
	for _, values := range f {
		if len(values) > 0 {
			return true
		}
	}
	return false
}

// ApplyFilters returns the rows matching every filtered dimension. A row
// passes a dimension when the dimension key is entirely absent from the row
// (absence of a field never excludes a row) or its value is in the allowed
// set. An empty filter map returns the input slice unchanged.
func ApplyFilters(rows []Row, filters Filters) []Row {
	if !filters.anyValues() {
		return rows
	}

	allowed := make(map[string]map[string]bool, len(filters))
	for dim, values := range filters {
		if len(values) == 0 {
			continue
		}
		set := make(map[string]bool, len(values))
		for _, v := range values {
			set[v] = true
		}
		allowed[dim] = set
	}

	var out []Row
	for _, row := range rows {
		pass := true
		for dim, set := range allowed {
			value, present := row[dim]
			if !present {
				continue
			}
			if !set[value] {
				pass = false
				break
			}
		}
		if pass {
			out = append(out, row)
		}
	}
	return out
}
