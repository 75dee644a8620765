// Package validator parses pack documents into declarations, references and diagnostics.
package validator

import (
	"context"

	"github.com/starford/packlint/internal/models"
)

// Document is a single pack file handed to a Validator.
type Document struct {
	// Path is the absolute file path.
	Path string
	// Rel is the slash-separated path relative to the pack root.
	Rel      string
	Resource models.Resource
	Content  []byte
}

// Result is the output of parsing one document.
type Result struct {
	Declarations []models.Declaration
	References   []models.Reference
	Diagnostics  []models.Diagnostic
}

// Validator parses documents. Implementations must be safe for concurrent use
// and must not depend on other documents.
type Validator interface {
	Parse(ctx context.Context, doc Document) (*Result, error)
	Supports(rel string) bool
}
