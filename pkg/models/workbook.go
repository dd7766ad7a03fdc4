// Package models holds the plain data types exchanged between the engine and
// its callers: workbook snapshots going in, simulation results coming out.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// CategoryType classifies a category as a benefit or a cost stream.
type CategoryType string

const (
	CategoryBenefit CategoryType = "benefit"
	CategoryCost    CategoryType = "cost"
)

// Valid reports whether the type is one of the known category types.
func (c CategoryType) Valid() bool {
	switch CategoryType(strings.ToLower(string(c))) {
	case CategoryBenefit, CategoryCost:
		return true
	}
	return false
}

// IsBenefit reports whether the category adds to benefits.
func (c CategoryType) IsBenefit() bool {
	return CategoryType(strings.ToLower(string(c))) == CategoryBenefit
}

// Distribution is a bounded three-point estimate (min / most likely / max).
type Distribution struct {
	Min  float64 `json:"min"  yaml:"min"`
	Mode float64 `json:"mode" yaml:"mode"`
	Max  float64 `json:"max"  yaml:"max"`
}

// Valid reports whether min <= mode <= max.
func (d Distribution) Valid() bool {
	return d.Min <= d.Mode && d.Mode <= d.Max
}

// Metric is an input quantity of the business case.
// A non-empty Formula overrides both Value and Distribution.
type Metric struct {
	ID           string        `json:"id"                     yaml:"id"`
	Name         string        `json:"name"                   yaml:"name"`
	Unit         string        `json:"unit,omitempty"         yaml:"unit,omitempty"` // e.g. "$", "hours", "%"
	Value        *float64      `json:"value,omitempty"        yaml:"value,omitempty"`
	Distribution *Distribution `json:"distribution,omitempty" yaml:"distribution,omitempty"`
	Formula      string        `json:"formula,omitempty"      yaml:"formula,omitempty"`
}

// HasFormula reports whether the metric is computed.
func (m Metric) HasFormula() bool {
	return strings.TrimSpace(m.Formula) != ""
}

// IsStochastic reports whether the metric is sampled per trial.
func (m Metric) IsStochastic() bool {
	return !m.HasFormula() && m.Distribution != nil
}

// FixedValue returns the metric's fixed value, 0 when absent.
func (m Metric) FixedValue() float64 {
	if m.Value == nil {
		return 0
	}
	return *m.Value
}

// MostLikely returns the mode of the distribution when present, otherwise the fixed value.
func (m Metric) MostLikely() float64 {
	if m.Distribution != nil {
		return m.Distribution.Mode
	}
	return m.FixedValue()
}

// Formula is a named computed expression.
type Formula struct {
	ID         string `json:"id"         yaml:"id"`
	Name       string `json:"name"       yaml:"name"`
	Expression string `json:"expression" yaml:"expression"`
}

// Category groups metrics for financial rollups.
type Category struct {
	ID        string       `json:"id"        yaml:"id"`
	Name      string       `json:"name"      yaml:"name"`
	Type      CategoryType `json:"type"      yaml:"type"`
	MetricIDs []string     `json:"metricIds" yaml:"metricIds"`
}

// Workbook is a snapshot of a business case: metrics, formulas and categories.
type Workbook struct {
	Name       string     `json:"name,omitempty" yaml:"name,omitempty"`
	Metrics    []Metric   `json:"metrics"        yaml:"metrics"`
	Formulas   []Formula  `json:"formulas"       yaml:"formulas"`
	Categories []Category `json:"categories"     yaml:"categories"`
}

// IDs returns every metric and formula id in declaration order.
func (w *Workbook) IDs() []string {
	ids := make([]string, 0, len(w.Metrics)+len(w.Formulas))
	for _, m := range w.Metrics {
		ids = append(ids, m.ID)
	}
	for _, f := range w.Formulas {
		ids = append(ids, f.ID)
	}
	return ids
}

// Float returns a pointer to v, handy for building metrics with fixed values.
func Float(v float64) *float64 {
	return &v
}

// Fingerprint returns a SHA-256 digest of the workbook's content. Two
// snapshots with equal content share a fingerprint. Non-finite numbers are
// hashed by their text form, so NaN and ±Inf values are told apart.
func (w *Workbook) Fingerprint() string {
	h := sha256.New()
	// Length prefixes keep adjacent fields from running into each other.
	put := func(fields ...string) {
		for _, f := range fields {
			fmt.Fprintf(h, "%d:%s;", len(f), f)
		}
	}
	num := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

	put("workbook", w.Name)
	for _, m := range w.Metrics {
		put("metric", m.ID, m.Name, m.Unit, m.Formula)
		if m.Value != nil {
			put("value", num(*m.Value))
		}
		if d := m.Distribution; d != nil {
			put("distribution", num(d.Min), num(d.Mode), num(d.Max))
		}
	}
	for _, f := range w.Formulas {
		put("formula", f.ID, f.Name, f.Expression)
	}
	for _, c := range w.Categories {
		put("category", c.ID, c.Name, string(c.Type), strconv.Itoa(len(c.MetricIDs)))
		put(c.MetricIDs...)
	}
	return hex.EncodeToString(h.Sum(nil))
}
