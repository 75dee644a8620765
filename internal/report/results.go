package report

import (
	"slices"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// ResultsFile is the name of the lint-result cache inside the state directory.
const ResultsFile = "results.json"

// Results is the persisted lint-result cache: path to rendered result.
type Results map[string]Result

// Drift returns a unified diff between the cached and fresh messages of a
// file, or "" when they are equal.
func Drift(name string, cached, fresh Result) string {
	if slices.Equal(cached.Messages, fresh.Messages) {
		return ""
	}
	u := difflib.UnifiedDiff{
		A:        withNewlines(cached.Messages),
		B:        withNewlines(fresh.Messages),
		FromFile: "cached/" + name,
		ToFile:   "fresh/" + name,
		Context:  2,
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil {
		return ""
	}
	return s
}

func withNewlines(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = strings.TrimRight(l, "\n") + "\n"
	}
	return out
}
