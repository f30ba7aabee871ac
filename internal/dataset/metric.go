package dataset

// MetricType distinguishes conversion-style from value-style metrics.
type MetricType string

const (
	MetricBinary     MetricType = "binary"
	MetricContinuous MetricType = "continuous"
)

// Metric is a single metric definition, either proposed by auto-detection or
// authored manually. It lives in workflow state until submitted to the
// analysis engine as part of the metrics config.
type Metric struct {
	ID   string     `json:"id"`
	Name string     `json:"name"`
	Type MetricType `json:"type"`

	// Binary metrics: conversion column (and optional exposure denominator).
	Numerator   string `json:"numerator,omitempty"`
	Denominator string `json:"denominator,omitempty"`

	// Continuous metrics: value column (and optional secondary column).
	ValueColumn  string `json:"value_column,omitempty"`
	ValueColumn2 string `json:"value_column2,omitempty"`

	Description string `json:"description,omitempty"`
	Unit        string `json:"unit,omitempty"`
	Currency    string `json:"currency,omitempty"`
	Decimals    int    `json:"decimals"`
	IsCustom    bool   `json:"is_custom"`
}
