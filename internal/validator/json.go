package validator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/starford/packlint/internal/models"
)

// parseJSON checks syntax and extracts references from tags and advancements.
func parseJSON(doc Document, res *Result) {
	var v any
	if err := json.Unmarshal(doc.Content, &v); err != nil {
		line, col := 1, 1
		var syn *json.SyntaxError
		if errors.As(err, &syn) {
			line, col = lineCol(doc.Content, int(syn.Offset))
		}
		res.Diagnostics = append(res.Diagnostics, models.Diagnostic{
			Severity: models.SeverityError,
			Line:     line,
			Column:   col,
			Message:  "Invalid JSON: " + err.Error(),
		})
		return
	}

	obj, ok := v.(map[string]any)
	if !ok {
		res.Diagnostics = append(res.Diagnostics, models.Diagnostic{
			Severity: models.SeverityError,
			Line:     1,
			Column:   1,
			Message:  "Expected a JSON object",
		})
		return
	}

	category := doc.Resource.Category
	switch {
	case strings.HasPrefix(category, "tag/"):
		parseTag(doc, category, obj, res)
	case category == "advancement":
		parseAdvancement(doc, obj, res)
	}
}

func parseTag(doc Document, category string, obj map[string]any, res *Result) {
	if r, ok := obj["replace"]; ok {
		if _, isBool := r.(bool); !isBool {
			line, col := keyPos(doc.Content, "replace")
			res.Diagnostics = append(res.Diagnostics, models.Diagnostic{
				Severity: models.SeverityError,
				Line:     line,
				Column:   col,
				Message:  `"replace" must be a boolean`,
			})
		}
	}

	raw, ok := obj["values"]
	if !ok {
		return
	}
	values, ok := raw.([]any)
	if !ok {
		line, col := keyPos(doc.Content, "values")
		res.Diagnostics = append(res.Diagnostics, models.Diagnostic{
			Severity: models.SeverityError,
			Line:     line,
			Column:   col,
			Message:  `"values" must be an array`,
		})
		return
	}

	tagged := strings.TrimPrefix(category, "tag/")
	search := bytes.Index(doc.Content, []byte(`"values"`))
	for _, entry := range values {
		id, ok := tagEntryID(entry)
		if !ok {
			line, col := keyPos(doc.Content, "values")
			res.Diagnostics = append(res.Diagnostics, models.Diagnostic{
				Severity: models.SeverityWarning,
				Line:     line,
				Column:   col,
				Message:  "Expected a string or an object with an id",
			})
			continue
		}
		var line, col int
		line, col, search = findString(doc.Content, id, search)

		sym := models.Symbol{Category: tagged, ID: models.NormalizeID(id)}
		if strings.HasPrefix(id, "#") {
			sym = models.Symbol{Category: category, ID: models.NormalizeID(id[1:])}
		}
		res.References = append(res.References, models.Reference{
			Symbol:   sym,
			Position: models.Position{Line: line, Column: col},
		})
	}
}

func tagEntryID(entry any) (string, bool) {
	switch e := entry.(type) {
	case string:
		return e, e != ""
	case map[string]any:
		id, ok := e["id"].(string)
		return id, ok && id != ""
	}
	return "", false
}

func parseAdvancement(doc Document, obj map[string]any, res *Result) {
	rewards, ok := obj["rewards"].(map[string]any)
	if !ok {
		return
	}
	fn, ok := rewards["function"].(string)
	if !ok || fn == "" {
		return
	}
	line, col, _ := findString(doc.Content, fn, bytes.Index(doc.Content, []byte(`"rewards"`)))
	res.References = append(res.References, models.Reference{
		Symbol:   models.Symbol{Category: "function", ID: models.NormalizeID(fn)},
		Position: models.Position{Line: line, Column: col},
	})
}

// findString locates the quoted literal s at or after from and returns its
// position plus the offset to continue searching from.
func findString(content []byte, s string, from int) (line, col, next int) {
	if from < 0 {
		from = 0
	}
	quoted := []byte(fmt.Sprintf("%q", s))
	idx := bytes.Index(content[from:], quoted)
	if idx < 0 {
		return 1, 1, from
	}
	at := from + idx
	line, col = lineCol(content, at)
	return line, col, at + len(quoted)
}

func keyPos(content []byte, key string) (int, int) {
	idx := bytes.Index(content, []byte(`"`+key+`"`))
	if idx < 0 {
		return 1, 1
	}
	return lineCol(content, idx)
}

// lineCol converts a byte offset to a 1-based line and column.
func lineCol(content []byte, offset int) (int, int) {
	if offset > len(content) {
		offset = len(content)
	}
	before := content[:offset]
	line := bytes.Count(before, []byte("\n")) + 1
	col := offset - bytes.LastIndexByte(before, '\n')
	return line, col
}
