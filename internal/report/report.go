// Package report assembles per-file lint results into the run report.
package report

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/starford/packlint/internal/models"
)

// Markers prefixing a file's title line.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// DefinesHeading introduces the define report.
const DefinesHeading = "Defines:"

// Result is the rendered outcome of one file. It is what results.json stores.
type Result struct {
	Title     string           `json:"title"`
	Messages  []string         `json:"messages"`
	FailCount models.FailCount `json:"failCount"`
	Skipped   bool             `json:"skipped,omitempty"`
}

// Passed reports whether the file had no errors or warnings.
func (r Result) Passed() bool { return r.FailCount.Total() == 0 && !r.Skipped }

// Title formats "<id> (<root name>/<rel>)".
func Title(id, rootName, rel string) string {
	return fmt.Sprintf("%s (%s/%s)", id, rootName, rel)
}

// NewResult renders the reportable diagnostics of a file. Info and hint
// diagnostics are dropped.
func NewResult(title string, diags []models.Diagnostic) Result {
	var reportable []models.Diagnostic
	for _, d := range diags {
		if d.Severity.Reportable() {
			reportable = append(reportable, d)
		}
	}
	models.SortDiagnostics(reportable)

	res := Result{Title: title, FailCount: models.CountDiagnostics(reportable)}
	if len(reportable) == 0 {
		res.Messages = []string{PassMark + "  " + title}
		return res
	}
	res.Messages = make([]string, 0, len(reportable)+1)
	res.Messages = append(res.Messages, FailMark+"  "+title)
	for _, d := range reportable {
		res.Messages = append(res.Messages, FormatDiagnostic(d))
	}
	return res
}

// Skipped returns the result of a file the validator could not process.
func Skipped(title string) Result {
	return Result{
		Title:    title,
		Messages: []string{FailMark + "  " + title + " (skipped)"},
		Skipped:  true,
	}
}

// FormatDiagnostic renders a diagnostic line: the line number right-aligned
// in four columns, the column left-aligned in five, then the severity.
func FormatDiagnostic(d models.Diagnostic) string {
	indent, sev := " ", "Warning"
	if d.Severity == models.SeverityError {
		indent, sev = "   ", "Error  "
	}
	return fmt.Sprintf("%s%4d:%-5d %s %s", indent, d.Line, d.Column, sev, d.Message)
}

// Report collects results concurrently and emits them sorted by path.
type Report struct {
	mu      sync.Mutex
	results map[string]Result
	define  map[string][]string
	header  []string
}

// New returns an empty report.
func New() *Report {
	return &Report{
		results: make(map[string]Result),
		define:  make(map[string][]string),
	}
}

// Add records the result of path, replacing any earlier one.
func (r *Report) Add(path string, res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[path] = res
}

// AddDefine records the define report lines of path.
func (r *Report) AddDefine(path string, lines []string) {
	if len(lines) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.define[path] = lines
}

// AddHeader appends an informational line printed before the results.
func (r *Report) AddHeader(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.header = append(r.header, line)
}

// Header returns the informational lines added with AddHeader.
func (r *Report) Header() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.header)
}

// Get returns the result recorded for path.
func (r *Report) Get(path string) (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.results[path]
	return res, ok
}

// Paths returns the recorded paths in sorted order.
func (r *Report) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Sorted(maps.Keys(r.results))
}

// Results returns a copy of every recorded result keyed by path.
func (r *Report) Results() map[string]Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.results)
}

// Define returns the define report lines ordered by path.
func (r *Report) Define() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, p := range slices.Sorted(maps.Keys(r.define)) {
		out = append(out, r.define[p]...)
	}
	return out
}

// FailCount sums the tallies of every result.
func (r *Report) FailCount() models.FailCount {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total models.FailCount
	for _, res := range r.results {
		total.Add(res.FailCount)
	}
	return total
}

// Failed reports whether any error or warning was found.
func (r *Report) Failed() bool {
	return r.FailCount().Total() > 0
}

// Summary returns the final status line.
func (r *Report) Summary() string {
	fc := r.FailCount()
	if fc.Total() == 0 {
		return "Check successful"
	}
	return fmt.Sprintf("Check failed (%s)", FailCountMessage(fc))
}

// FailCountMessage renders "N error(s), M warning(s)".
func FailCountMessage(fc models.FailCount) string {
	return fmt.Sprintf("%d %s, %d %s", fc.Error, plural("error", fc.Error), fc.Warning, plural("warning", fc.Warning))
}

func plural(word string, n int) string {
	if n > 1 {
		return word + "s"
	}
	return word
}

// Lines returns the unstyled report body: header, results, define report.
func (r *Report) Lines() []string {
	r.mu.Lock()
	out := slices.Clone(r.header)
	paths := slices.Sorted(maps.Keys(r.results))
	for _, p := range paths {
		out = append(out, r.results[p].Messages...)
	}
	r.mu.Unlock()

	if def := r.Define(); len(def) > 0 {
		out = append(out, "", DefinesHeading)
		out = append(out, def...)
	}
	return out
}

// String renders the unstyled report with its summary.
func (r *Report) String() string {
	return strings.Join(append(r.Lines(), r.Summary()), "\n") + "\n"
}
