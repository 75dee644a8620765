// Package models defines the domain types shared by packlint components.
package models

import (
	"slices"
	"strings"
)

// Severity follows the language-server numbering: lower is stricter.
type Severity int

// Diagnostic severities.
const (
	SeverityError   Severity = 1
	SeverityWarning Severity = 2
	SeverityInfo    Severity = 3
	SeverityHint    Severity = 4
)

// String returns the human-readable severity name.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "Error"
	case SeverityWarning:
		return "Warning"
	case SeverityInfo:
		return "Info"
	case SeverityHint:
		return "Hint"
	default:
		return "Unknown"
	}
}

// Reportable reports whether diagnostics of this severity count toward pass/fail.
func (s Severity) Reportable() bool {
	return s == SeverityError || s == SeverityWarning
}

// Diagnostic is a single validator finding. Line and Column are 1-based.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Line     int      `json:"line"`
	Column   int      `json:"column"`
	Message  string   `json:"message"`
}

// FailCount tallies reportable diagnostics.
type FailCount struct {
	Error   int `json:"error"`
	Warning int `json:"warning"`
}

// Add accumulates o into c.
func (c *FailCount) Add(o FailCount) {
	c.Error += o.Error
	c.Warning += o.Warning
}

// Total returns errors plus warnings.
func (c FailCount) Total() int {
	return c.Error + c.Warning
}

// SortDiagnostics orders diagnostics by line, then column, then message.
func SortDiagnostics(diags []Diagnostic) {
	slices.SortStableFunc(diags, func(a, b Diagnostic) int {
		if a.Line != b.Line {
			return a.Line - b.Line
		}
		if a.Column != b.Column {
			return a.Column - b.Column
		}
		return strings.Compare(a.Message, b.Message)
	})
}

// CountDiagnostics returns the fail count of the reportable diagnostics.
func CountDiagnostics(diags []Diagnostic) FailCount {
	var c FailCount
	for _, d := range diags {
		switch d.Severity {
		case SeverityError:
			c.Error++
		case SeverityWarning:
			c.Warning++
		}
	}
	return c
}
