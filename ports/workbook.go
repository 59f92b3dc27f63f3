package ports

import (
	"context"

	"emkm/domain/kinetics"
)

// WorkbookPort loads a reaction/species model from a spreadsheet. Callers
// get an immutable parsed model; implementations are free to cache.
type WorkbookPort interface {
	Load(ctx context.Context, path string) (*kinetics.Model, error)
}
