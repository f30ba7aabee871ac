package dataset

import (
	"fmt"
	"strings"
)

// detectSampleSize bounds how many rows are inspected per column. Sampling a
// prefix keeps detection cheap on large files without changing the outcome
// for well-formed data.
const detectSampleSize = 200

var (
	currencyNameHints = []string{"revenue", "amount", "price", "total", "value", "spend", "aov"}
	countNameHints    = []string{"count", "quantity", "qty", "items", "orders", "clicks", "views", "sessions", "pageviews"}
	identityNameHints = []string{"id", "date", "time", "timestamp"}
)

// columnKind is the sampled value shape of a column.
type columnKind int

const (
	kindOther columnKind = iota
	kindBoolean
	kindNumeric
)

func classifyValues(values []string) columnKind {
	seen := 0
	booleanLike := true
	numeric := true

	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		seen++
		if seen > detectSampleSize {
			break
		}

		switch strings.ToLower(v) {
		case "0", "1", "true", "false", "yes", "no":
			// still boolean-like and numeric-parseable for 0/1
		default:
			booleanLike = false
		}

		if _, err := ParseAmount(v); err != nil {
			numeric = false
		}

		if !booleanLike && !numeric {
			return kindOther
		}
	}

	if seen == 0 {
		return kindOther
	}
	if booleanLike {
		return kindBoolean
	}
	if numeric {
		return kindNumeric
	}
	return kindOther
}

func metricID(header string) string {
	slug := strings.ToLower(header)
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, slug)
	return "metric_" + slug
}

func displayName(header string) string {
	name := strings.NewReplacer("_", " ", "-", " ").Replace(header)
	words := strings.Fields(name)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// DetectMetrics inspects a dataset's column names and sampled values and
// proposes candidate metric definitions. It is deterministic and side-effect
// free: identical input always yields identical suggestions, in header order.
//
// Boolean-like columns become binary conversion metrics, numeric columns with
// currency-like names become continuous revenue metrics, and numeric columns
// with count-like names become continuous count metrics. Identifier and
// timestamp columns are skipped.
func DetectMetrics(ds *Dataset) []Metric {
	var metrics []Metric
	if ds == nil {
		return metrics
	}

	for _, header := range ds.Headers {
		if matchesAny(header, identityNameHints) && !matchesAny(header, currencyNameHints) {
			continue
		}
		if matchesAny(header, variationHints) || matchesAny(header, userIDHints) {
			continue
		}

		switch classifyValues(ds.Column(header)) {
		case kindBoolean:
			metrics = append(metrics, Metric{
				ID:          metricID(header),
				Name:        displayName(header) + " Rate",
				Type:        MetricBinary,
				Numerator:   header,
				Description: fmt.Sprintf("Share of users with %s", displayName(header)),
				Unit:        "%",
				Decimals:    2,
			})
		case kindNumeric:
			switch {
			case matchesAny(header, currencyNameHints):
				metrics = append(metrics, Metric{
					ID:          metricID(header),
					Name:        displayName(header) + " per User",
					Type:        MetricContinuous,
					ValueColumn: header,
					Description: fmt.Sprintf("Average %s per user", displayName(header)),
					Currency:    "EUR",
					Decimals:    2,
				})
			case matchesAny(header, countNameHints):
				metrics = append(metrics, Metric{
					ID:          metricID(header),
					Name:        "Average " + displayName(header),
					Type:        MetricContinuous,
					ValueColumn: header,
					Description: fmt.Sprintf("Average %s per user", displayName(header)),
					Decimals:    1,
				})
			}
		}
	}

	return metrics
}
