package engine

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// startRequestSchema describes the shape the engine accepts for
// start-analysis. Requests are validated locally before submission so a
// malformed configuration never reaches the engine.
var startRequestSchema = &jsonschema.Schema{
	Type:     "object",
	Required: []string{"data", "metrics_config", "variation_column", "user_column", "confidence_level"},
	Properties: map[string]*jsonschema.Schema{
		"data": {
			Type:  "array",
			Items: &jsonschema.Schema{Type: "object"},
		},
		"metrics_config": {
			Type: "array",
			Items: &jsonschema.Schema{
				Type:     "object",
				Required: []string{"id", "name", "type"},
				Properties: map[string]*jsonschema.Schema{
					"id":   {Type: "string"},
					"name": {Type: "string"},
					"type": {Type: "string", Enum: []any{"binary", "continuous"}},
				},
			},
		},
		"variation_column": {Type: "string"},
		"user_column":      {Type: "string"},
		"confidence_level": {Type: "number", Minimum: f64(0.5), Maximum: f64(0.999)},
		"statistical_method": {
			Type: "string",
			Enum: []any{"frequentist", "bayesian"},
		},
		"multiple_testing_correction": {
			Type: "string",
			Enum: []any{"none", "bonferroni", "benjamini-hochberg"},
		},
		"data_type": {Type: "string", Enum: []any{"user_level", "aggregated"}},
		"filters":   {Type: "object"},
	},
}

func f64(v float64) *float64 { return &v }

var (
	resolvedSchema     *jsonschema.Resolved
	resolveSchemaOnce  sync.Once
	resolveSchemaError error
)

// ValidateStartRequest checks a request against the engine's start-analysis
// schema. Empty data and missing columns are rejected before any network IO.
func ValidateStartRequest(req StartRequest) error {
	if len(req.Data) == 0 {
		return fmt.Errorf("analysis request has no data rows")
	}
	if len(req.MetricsConfig) == 0 {
		return fmt.Errorf("analysis request has no metrics configured")
	}

	resolveSchemaOnce.Do(func() {
		resolvedSchema, resolveSchemaError = startRequestSchema.Resolve(nil)
	})
	if resolveSchemaError != nil {
		return fmt.Errorf("failed to resolve start-analysis schema: %w", resolveSchemaError)
	}

	raw, err := json.Marshal(req)
	if err != nil {
		return err
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return err
	}

	if err := resolvedSchema.Validate(instance); err != nil {
		return fmt.Errorf("invalid analysis configuration: %w", err)
	}
	return nil
}
