package index

import (
	"context"

	"github.com/starford/packlint/internal/models"
	"github.com/starford/packlint/internal/validator"
)

// ValidationCache defines the operations the run coordinator needs.
// Consumers should depend on this interface rather than the concrete *Cache.
type ValidationCache interface {
	OnAdded(ctx context.Context, path, sum string, doc validator.Document) (*validator.Result, error)
	OnModified(ctx context.Context, path, sum string, doc validator.Document) (*validator.Result, error)
	OnDeleted(path string) error
	Trim() (int64, error)
	AddPressure(n int) bool
	Collect() error
	Files() ([]string, error)
	Checksum(path string) (string, error)
	Entry(path string) (*Entry, error)
	Declarations(path string) ([]models.Declaration, error)
	DeclaredBy(sym models.Symbol) ([]string, error)
	Referrers(syms []models.Symbol) ([]string, error)
	Unresolved(path string) ([]models.Reference, error)
	Load(ctx context.Context, path string) error
	Save(ctx context.Context, path string) error
	Reset() error
	Close() error
}

// Verify *Cache satisfies ValidationCache at compile time.
var _ ValidationCache = (*Cache)(nil)
