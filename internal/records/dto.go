package records

import "time"

// listResponse is the top-level container for paginated record listings.
type listResponse struct {
	Records []recordDTO `json:"records"`
	Offset  string      `json:"offset,omitempty"`
}

// recordDTO represents a single record in a backend response.
type recordDTO struct {
	ID          string         `json:"id"`
	Fields      map[string]any `json:"fields"`
	CreatedTime string         `json:"createdTime"`
}

// attachmentDTO represents an uploaded file object.
type attachmentDTO struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// updateRequest is the payload for partial field updates.
type updateRequest struct {
	Fields map[string]any `json:"fields"`
}

// ParseTime is a helper for the backend's record timestamp format.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func mapRecord(dto recordDTO) Record {
	r := Record{
		ID:     dto.ID,
		Fields: dto.Fields,
	}
	if r.Fields == nil {
		r.Fields = make(map[string]any)
	}
	if t, err := ParseTime(dto.CreatedTime); err == nil {
		r.CreatedTime = t
	}
	return r
}
