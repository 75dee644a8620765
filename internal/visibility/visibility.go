// Package visibility matches resource ids against declaration visibility patterns.
package visibility

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/starford/packlint/internal/models"
)

// Compile translates a visibility glob into an anchored regular expression.
// "?" matches one character other than ':' and '/', "*" a run of them,
// "**/" any prefix and "**" anything. Other characters are literal.
func Compile(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteByte('^')
	for i := 0; i < len(pattern); {
		switch {
		case strings.HasPrefix(pattern[i:], "**/"):
			b.WriteString(".*")
			i += 3
		case strings.HasPrefix(pattern[i:], "**"):
			b.WriteString(".*")
			i += 2
		case pattern[i] == '*':
			b.WriteString("[^:/]*")
			i++
		case pattern[i] == '?':
			b.WriteString("[^:/]")
			i++
		default:
			j := i
			for j < len(pattern) && pattern[j] != '*' && pattern[j] != '?' {
				j++
			}
			b.WriteString(regexp.QuoteMeta(pattern[i:j]))
			i = j
		}
	}
	b.WriteByte('$')
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("visibility: compile %q: %w", pattern, err)
	}
	return re, nil
}

// Default is the visibility applied to declarations that carry none.
// Mode is "public", "private" or "internal"; otherwise Patterns are used.
type Default struct {
	Mode     string
	Patterns []string
}

// Matcher tests declarations against a fixed set of test ids. It is not safe
// for concurrent use.
type Matcher struct {
	ids   []string
	def   Default
	cache map[string]*regexp.Regexp
}

// NewMatcher returns a matcher for testIDs. Ids without a namespace are also
// tried with the default namespace.
func NewMatcher(testIDs []string, def Default) *Matcher {
	var ids []string
	for _, id := range testIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		ids = append(ids, id)
		if !strings.Contains(id, ":") {
			ids = append(ids, models.DefaultNamespace+":"+id)
		}
	}
	return &Matcher{ids: ids, def: def, cache: make(map[string]*regexp.Regexp)}
}

// Empty reports whether the matcher has no test ids.
func (m *Matcher) Empty() bool { return len(m.ids) == 0 }

// Visible reports whether any test id may see decl.
func (m *Matcher) Visible(decl models.Declaration) (bool, error) {
	vis := decl.Visibility
	if len(vis) == 0 {
		var public bool
		vis, public = m.defaults(decl.Symbol)
		if public {
			return true, nil
		}
	}
	for _, v := range vis {
		ok, err := m.match(v.Pattern)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (m *Matcher) defaults(sym models.Symbol) ([]models.Visibility, bool) {
	switch m.def.Mode {
	case "public":
		return nil, true
	case "private":
		return []models.Visibility{{Type: "*", Pattern: sym.ID}}, false
	case "internal":
		ns := sym.Namespace()
		out := []models.Visibility{{Type: "*", Pattern: ns + ":**"}}
		if ns != models.DefaultNamespace {
			out = append(out, models.Visibility{Type: "*", Pattern: models.DefaultNamespace + ":**"})
		}
		return out, false
	}
	if len(m.def.Patterns) == 0 {
		return nil, true
	}
	out := make([]models.Visibility, 0, len(m.def.Patterns))
	for _, p := range m.def.Patterns {
		out = append(out, models.Visibility{Type: "*", Pattern: p})
	}
	return out, false
}

func (m *Matcher) match(pattern string) (bool, error) {
	re, ok := m.cache[pattern]
	if !ok {
		var err error
		if re, err = Compile(pattern); err != nil {
			return false, err
		}
		m.cache[pattern] = re
	}
	for _, id := range m.ids {
		if re.MatchString(id) {
			return true, nil
		}
	}
	return false, nil
}
