package validator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/starford/packlint/internal/models"
)

var commands = map[string]struct{}{
	"advancement": {}, "attribute": {}, "bossbar": {}, "clear": {}, "clone": {},
	"damage": {}, "data": {}, "datapack": {}, "debug": {}, "defaultgamemode": {},
	"difficulty": {}, "effect": {}, "enchant": {}, "execute": {}, "experience": {},
	"fill": {}, "fillbiome": {}, "forceload": {}, "function": {}, "gamemode": {},
	"gamerule": {}, "give": {}, "item": {}, "kill": {}, "list": {},
	"locate": {}, "loot": {}, "me": {}, "msg": {}, "particle": {},
	"place": {}, "playsound": {}, "random": {}, "recipe": {}, "reload": {},
	"return": {}, "ride": {}, "rotate": {}, "say": {}, "schedule": {},
	"scoreboard": {}, "seed": {}, "setblock": {}, "setworldspawn": {}, "spawnpoint": {},
	"spectate": {}, "spreadplayers": {}, "stopsound": {}, "summon": {}, "tag": {},
	"team": {}, "teammsg": {}, "teleport": {}, "tell": {}, "tellraw": {},
	"test": {}, "tick": {}, "time": {}, "title": {}, "tm": {},
	"tp": {}, "transfer": {}, "trigger": {}, "w": {}, "weather": {},
	"worldborder": {}, "xp": {},
}

var (
	declareRe = regexp.MustCompile(`^#\s*(declare|define)\b\s*(\S*)\s*(\S*)`)
	visRe     = regexp.MustCompile(`^#\s*@(public|private|internal|within)\b\s*(\S*)`)
)

// parseFunction reads a .mcfunction document line by line.
func parseFunction(doc Document, res *Result) {
	ns := doc.Resource.Namespace()
	var pending []models.Visibility

	lines := strings.Split(strings.ReplaceAll(string(doc.Content), "\r\n", "\n"), "\n")
	for i, raw := range lines {
		lineNo := i + 1
		if trimmed := strings.TrimRight(raw, " \t"); len(trimmed) != len(raw) && trimmed != "" {
			res.Diagnostics = append(res.Diagnostics, models.Diagnostic{
				Severity: models.SeverityWarning,
				Line:     lineNo,
				Column:   len(trimmed) + 1,
				Message:  "Trailing whitespace",
			})
		}

		indent := len(raw) - len(strings.TrimLeft(raw, " \t"))
		line := strings.TrimSpace(raw)
		if line == "" {
			pending = nil
			continue
		}

		if strings.HasPrefix(line, "#") {
			if m := visRe.FindStringSubmatch(line); m != nil {
				v, ok := visibilityFor(m[1], m[2], doc.Resource.ID, ns)
				if !ok {
					res.Diagnostics = append(res.Diagnostics, models.Diagnostic{
						Severity: models.SeverityWarning,
						Line:     lineNo,
						Column:   indent + 1,
						Message:  "Expected a pattern after @within",
					})
					continue
				}
				pending = append(pending, v)
				continue
			}
			if m := declareRe.FindStringSubmatch(line); m != nil {
				if m[2] == "" || m[3] == "" {
					res.Diagnostics = append(res.Diagnostics, models.Diagnostic{
						Severity: models.SeverityWarning,
						Line:     lineNo,
						Column:   indent + 1,
						Message:  fmt.Sprintf("Expected a category and an id after #%s", m[1]),
					})
				} else {
					res.Declarations = append(res.Declarations, models.Declaration{
						Symbol:     models.Symbol{Category: m[2], ID: models.NormalizeID(m[3])},
						Position:   models.Position{Line: lineNo, Column: indent + 1},
						Visibility: pending,
					})
				}
				pending = nil
			}
			continue
		}
		pending = nil

		body := line
		offset := indent
		if strings.HasPrefix(body, "$") {
			body = body[1:]
			offset++
		}
		fields := strings.Fields(body)
		if len(fields) == 0 {
			continue
		}
		if _, ok := commands[fields[0]]; !ok {
			res.Diagnostics = append(res.Diagnostics, models.Diagnostic{
				Severity: models.SeverityError,
				Line:     lineNo,
				Column:   offset + 1,
				Message:  fmt.Sprintf("Unknown command %q", fields[0]),
			})
			continue
		}
		res.References = append(res.References, functionRefs(body, lineNo, offset)...)
	}
}

// functionRefs finds every "function <id>" argument in a command body.
func functionRefs(body string, lineNo, offset int) []models.Reference {
	var out []models.Reference
	pos := 0
	fields := strings.Fields(body)
	for i, f := range fields {
		idx := strings.Index(body[pos:], f) + pos
		pos = idx + len(f)
		if f != "function" || i+1 >= len(fields) {
			continue
		}
		arg := fields[i+1]
		if strings.Contains(arg, "$(") {
			continue
		}
		col := strings.Index(body[pos:], arg) + pos
		category := "function"
		if strings.HasPrefix(arg, "#") {
			category = "tag/function"
			arg = arg[1:]
		}
		out = append(out, models.Reference{
			Symbol:   models.Symbol{Category: category, ID: models.NormalizeID(arg)},
			Position: models.Position{Line: lineNo, Column: offset + col + 1},
		})
	}
	return out
}

// visibilityFor maps a visibility comment to a pattern rooted at the declaring file.
func visibilityFor(kind, arg, ownID, ns string) (models.Visibility, bool) {
	switch kind {
	case "public":
		return models.Visibility{Type: "*", Pattern: "**"}, true
	case "private":
		return models.Visibility{Type: "*", Pattern: ownID}, true
	case "internal":
		return models.Visibility{Type: "*", Pattern: ns + ":**"}, true
	default:
		if arg == "" {
			return models.Visibility{}, false
		}
		return models.Visibility{Type: "*", Pattern: arg}, true
	}
}
