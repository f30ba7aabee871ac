package tickets

import (
	"time"

	"expdash/internal/records"
)

// Status is the lifecycle state of an experiment ticket.
type Status string

const (
	StatusToBePrioritized  Status = "To be prioritized"
	StatusDenied           Status = "Denied"
	StatusRefinement       Status = "Refinement"
	StatusDesignDev        Status = "Design & Development"
	StatusSetup            Status = "Setup"
	StatusRunning          Status = "Running"
	StatusReadyForAnalysis Status = "Ready for Analysis"
	StatusAnalysing        Status = "Analysing"
	StatusOpen             Status = "Open"
	StatusDone             Status = "Done"
)

// StatusOrder is the canonical board ordering of ticket statuses.
var StatusOrder = []Status{
	StatusToBePrioritized,
	StatusDenied,
	StatusRefinement,
	StatusDesignDev,
	StatusSetup,
	StatusRunning,
	StatusReadyForAnalysis,
	StatusAnalysing,
	StatusOpen,
	StatusDone,
}

// Field names in the experiments table.
const (
	FieldTitle             = "Title"
	FieldStatus            = "Status"
	FieldOwner             = "Owner"
	FieldAnalysisOwner     = "Analysis Owner"
	FieldMarket            = "Market"
	FieldPage              = "Page"
	FieldProduct           = "Product"
	FieldTestType          = "Test Type"
	FieldStartDate         = "Start Date"
	FieldEndDate           = "End Date"
	FieldMDE               = "MDE"
	FieldTrafficAllocation = "Traffic Allocation"
	FieldHypothesis        = "Hypothesis"
	FieldDescription       = "Description"
	FieldContext           = "Context"
	FieldControlImage      = "Control Image"
	FieldVariationImage    = "Variation Image"
	FieldLearnings         = "Learnings"
	FieldNextSteps         = "Next Steps"
	FieldConclusive        = "Conclusive"
	FieldOutcome           = "Outcome"
)

// SuccessCriterion is one of up to three free-text criteria with a met flag.
type SuccessCriterion struct {
	Text string `json:"text"`
	Met  bool   `json:"met"`
}

// Experiment is the dashboard view of one experiment ticket. Records are
// created and destroyed externally; this type is fetched on load and
// optimistically mutated through the panel edit protocol.
type Experiment struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Status        Status `json:"status"`
	Owner         string `json:"owner"`
	AnalysisOwner string `json:"analysis_owner"`
	Market        string `json:"market"`
	Page          string `json:"page"`
	Product       string `json:"product"`
	TestType      string `json:"test_type"`

	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`

	MDE               float64 `json:"mde"`
	TrafficAllocation float64 `json:"traffic_allocation"`

	SuccessCriteria []SuccessCriterion `json:"success_criteria"`

	Hypothesis  string `json:"hypothesis"`
	Description string `json:"description"`
	Context     string `json:"context"`

	ControlImageURL   string `json:"control_image_url,omitempty"`
	VariationImageURL string `json:"variation_image_url,omitempty"`

	Learnings  string `json:"learnings"`
	NextSteps  string `json:"next_steps"`
	Conclusive bool   `json:"conclusive"`
	Outcome    string `json:"outcome"`

	Created time.Time `json:"created"`
}

// ValidStatus reports whether s is one of the known ticket statuses.
func ValidStatus(s Status) bool {
	for _, known := range StatusOrder {
		if known == s {
			return true
		}
	}
	return false
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asFloat(v any) float64 {
	f, _ := v.(float64)
	return f
}

// asLinked resolves the first id of a linked-record field against a lookup
// map, falling back to the raw id when no display name is known.
func asLinked(v any, lookup map[string]string) string {
	ids, ok := v.([]any)
	if !ok || len(ids) == 0 {
		return asString(v)
	}
	id := asString(ids[0])
	if name, ok := lookup[id]; ok {
		return name
	}
	return id
}

// asAttachmentURL extracts the URL of the first attachment object.
func asAttachmentURL(v any) string {
	items, ok := v.([]any)
	if !ok || len(items) == 0 {
		return ""
	}
	obj, ok := items[0].(map[string]any)
	if !ok {
		return ""
	}
	return asString(obj["url"])
}

func asDate(v any) *time.Time {
	s := asString(v)
	if s == "" {
		return nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return &t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t
	}
	return nil
}

// FromRecord transforms a backend record into a domain Experiment, resolving
// linked-record fields to display names via lookups (which may be nil).
func FromRecord(rec records.Record, lookups *records.Lookups) Experiment {
	owners := map[string]string{}
	markets := map[string]string{}
	pages := map[string]string{}
	products := map[string]string{}
	if lookups != nil {
		owners = lookups.Owners
		markets = lookups.Markets
		pages = lookups.Pages
		products = lookups.Products
	}

	exp := Experiment{
		ID:                rec.ID,
		Title:             asString(rec.Fields[FieldTitle]),
		Owner:             asLinked(rec.Fields[FieldOwner], owners),
		AnalysisOwner:     asLinked(rec.Fields[FieldAnalysisOwner], owners),
		Market:            asLinked(rec.Fields[FieldMarket], markets),
		Page:              asLinked(rec.Fields[FieldPage], pages),
		Product:           asLinked(rec.Fields[FieldProduct], products),
		TestType:          asString(rec.Fields[FieldTestType]),
		StartDate:         asDate(rec.Fields[FieldStartDate]),
		EndDate:           asDate(rec.Fields[FieldEndDate]),
		MDE:               asFloat(rec.Fields[FieldMDE]),
		TrafficAllocation: asFloat(rec.Fields[FieldTrafficAllocation]),
		Hypothesis:        asString(rec.Fields[FieldHypothesis]),
		Description:       asString(rec.Fields[FieldDescription]),
		Context:           asString(rec.Fields[FieldContext]),
		ControlImageURL:   asAttachmentURL(rec.Fields[FieldControlImage]),
		VariationImageURL: asAttachmentURL(rec.Fields[FieldVariationImage]),
		Learnings:         asString(rec.Fields[FieldLearnings]),
		NextSteps:         asString(rec.Fields[FieldNextSteps]),
		Conclusive:        asBool(rec.Fields[FieldConclusive]),
		Outcome:           asString(rec.Fields[FieldOutcome]),
		Created:           rec.CreatedTime,
	}

	status := Status(asString(rec.Fields[FieldStatus]))
	if ValidStatus(status) {
		exp.Status = status
	} else {
		exp.Status = StatusToBePrioritized
	}

	for i := 1; i <= 3; i++ {
		text := asString(rec.Fields[SuccessCriterionField(i)])
		if text == "" {
			continue
		}
		exp.SuccessCriteria = append(exp.SuccessCriteria, SuccessCriterion{
			Text: text,
			Met:  asBool(rec.Fields[SuccessCriterionMetField(i)]),
		})
	}

	return exp
}

// SuccessCriterionField returns the record field name of the i-th criterion text.
func SuccessCriterionField(i int) string {
	return "Success Criteria " + string(rune('0'+i))
}

// SuccessCriterionMetField returns the record field name of the i-th met flag.
func SuccessCriterionMetField(i int) string {
	return SuccessCriterionField(i) + " Met"
}
