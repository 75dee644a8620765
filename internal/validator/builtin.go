package validator

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/starford/packlint/internal/apperr"
	"github.com/starford/packlint/internal/models"
)

// Builtin validates function and JSON resources without an external language server.
type Builtin struct{}

// NewBuiltin returns the built-in validator.
func NewBuiltin() *Builtin { return &Builtin{} }

var _ Validator = (*Builtin)(nil)

// Supports reports whether rel has a lintable extension.
func (b *Builtin) Supports(rel string) bool {
	switch path.Ext(rel) {
	case ".mcfunction", ".json":
		return true
	}
	return false
}

// Parse validates doc. Every document declares its own resource.
func (b *Builtin) Parse(ctx context.Context, doc Document) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if doc.Resource.Category == "" || doc.Resource.ID == "" {
		return nil, fmt.Errorf("validator: %s: no resource identity: %w", doc.Rel, apperr.ErrValidator)
	}

	res := &Result{
		Declarations: []models.Declaration{{
			Symbol:   doc.Resource.Symbol,
			Position: models.Position{Line: 1, Column: 1},
		}},
	}
	switch {
	case strings.HasSuffix(doc.Rel, ".mcfunction"):
		parseFunction(doc, res)
	case strings.HasSuffix(doc.Rel, ".json"):
		parseJSON(doc, res)
	default:
		return nil, fmt.Errorf("validator: %s: unsupported file type: %w", doc.Rel, apperr.ErrValidator)
	}
	models.SortDiagnostics(res.Diagnostics)
	return res, nil
}
