package dataset

import (
	"fmt"
	"strconv"
	"strings"
)

// UploadKind is the heuristic classification of an uploaded file.
type UploadKind string

const (
	// UploadTransaction means one row per transaction/order.
	UploadTransaction UploadKind = "transaction"
	// UploadAggregated means pre-aggregated rows (one per user or variation).
	UploadAggregated UploadKind = "aggregated"
)

// Canonical field names produced by column mapping.
const (
	FieldTransactionID = "transaction_id"
	FieldVariation     = "variation"
	FieldRevenue       = "revenue"
	FieldQuantity      = "quantity"
)

var (
	transactionIDHints = []string{"transaction", "order"}
	userIDHints        = []string{"user", "visitor"}
	variationHints     = []string{"variation", "variant", "group"}
	revenueHints       = []string{"revenue", "amount", "price"}
	quantityHints      = []string{"quantity", "qty", "units", "items"}
)

func matchesAny(header string, hints []string) bool {
	h := strings.ToLower(header)
	for _, hint := range hints {
		if strings.Contains(h, hint) {
			return true
		}
	}
	return false
}

func firstMatch(headers []string, hints []string) string {
	for _, h := range headers {
		if matchesAny(h, hints) {
			return h
		}
	}
	return ""
}

// ClassifyUpload inspects header names and decides whether the file looks
// transaction-level or pre-aggregated. A file with a transaction/order id
// column and a revenue-like column is transaction-level; everything else is
// treated as aggregated.
func ClassifyUpload(headers []string) UploadKind {
	hasTxnID := firstMatch(headers, transactionIDHints) != ""
	hasRevenue := firstMatch(headers, revenueHints) != ""
	if hasTxnID && hasRevenue {
		return UploadTransaction
	}
	return UploadAggregated
}

// Mapping binds canonical enrichment fields to source CSV columns.
// Quantity is optional; the other three are required before submission.
type Mapping struct {
	TransactionID string `json:"transaction_id"`
	Variation     string `json:"variation"`
	Revenue       string `json:"revenue"`
	Quantity      string `json:"quantity,omitempty"`
}

// Complete reports whether all non-optional mappings are resolved.
func (m Mapping) Complete() bool {
	return m.TransactionID != "" && m.Variation != "" && m.Revenue != ""
}

// ProposeMapping suggests a column-to-canonical-field mapping from header
// names. Unmatched fields are left empty for the user to resolve.
func ProposeMapping(headers []string) Mapping {
	return Mapping{
		TransactionID: firstMatch(headers, transactionIDHints),
		Variation:     firstMatch(headers, variationHints),
		Revenue:       firstMatch(headers, revenueHints),
		Quantity:      firstMatch(headers, quantityHints),
	}
}

// ParseAmount parses a numeric cell, tolerating currency symbols, spaces,
// thousands separators and a comma decimal mark.
func ParseAmount(s string) (float64, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimLeft(cleaned, "$€£ ")
	cleaned = strings.ReplaceAll(cleaned, " ", "")

	if strings.Contains(cleaned, ",") {
		if strings.Contains(cleaned, ".") {
			// 1,234.56 style: comma is a thousands separator
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		} else {
			// 10,5 style: comma is the decimal mark
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		}
	}

	return strconv.ParseFloat(cleaned, 64)
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// BuildEnrichment converts mapped CSV rows into enrichment-ready records.
// Every original column is preserved; the canonically named fields are added
// alongside. Revenue and quantity are parsed and re-serialized as plain
// decimal strings (no separators, '.' decimal mark) because rows stay
// homogeneous string maps on the wire and the engine parses the values
// server-side. Quantity defaults to 1 when unmapped. Rows missing a required
// canonical field are discarded.
func BuildEnrichment(rows []Row, m Mapping) ([]Row, error) {
	if !m.Complete() {
		return nil, fmt.Errorf("column mapping incomplete: transaction id, variation and revenue are required")
	}

	var out []Row
	for _, row := range rows {
		txnID := strings.TrimSpace(row[m.TransactionID])
		variation := strings.TrimSpace(row[m.Variation])
		if txnID == "" || variation == "" {
			continue
		}

		revenue, err := ParseAmount(row[m.Revenue])
		if err != nil {
			continue
		}

		quantity := 1.0
		if m.Quantity != "" {
			q, err := ParseAmount(row[m.Quantity])
			if err != nil {
				continue
			}
			quantity = q
		}

		enriched := make(Row, len(row)+4)
		for k, v := range row {
			enriched[k] = v
		}
		enriched[FieldTransactionID] = txnID
		enriched[FieldVariation] = variation
		enriched[FieldRevenue] = formatAmount(revenue)
		enriched[FieldQuantity] = formatAmount(quantity)

		out = append(out, enriched)
	}

	return out, nil
}
