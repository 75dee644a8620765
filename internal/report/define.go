package report

import (
	"github.com/starford/packlint/internal/models"
	"github.com/starford/packlint/internal/visibility"
)

// DefineLines lists the declarations of a file visible to the matcher's test
// ids: "<root name>/<rel>" followed by indented "<category> <id>" lines.
// Repeated symbols are listed once.
func DefineLines(rootName, rel string, decls []models.Declaration, m *visibility.Matcher) ([]string, error) {
	if m == nil || m.Empty() {
		return nil, nil
	}
	var out []string
	seen := make(map[models.Symbol]struct{})
	for _, d := range decls {
		if _, ok := seen[d.Symbol]; ok {
			continue
		}
		ok, err := m.Visible(d)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		seen[d.Symbol] = struct{}{}
		if len(out) == 0 {
			out = append(out, rootName+"/"+rel)
		}
		out = append(out, "    "+d.Category+" "+d.ID)
	}
	return out, nil
}
