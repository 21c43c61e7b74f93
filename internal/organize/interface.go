package organize

import (
	"context"

	"mfo/internal/config"
	"mfo/pkg/types"
)

// Organizer is what the watcher and scheduler need from this package.
// It allows substituting the engine in tests.
type Organizer interface {
	// OrganizeFile organizes a single file against one config snapshot.
	OrganizeFile(ctx context.Context, path string, cfg *config.Config) types.MoveOutcome

	// OrganizeDirectory organizes every file directly inside dir.
	OrganizeDirectory(ctx context.Context, dir string, cfg *config.Config) ([]types.MoveOutcome, error)
}

// Ensure Engine implements the Organizer interface
var _ Organizer = (*Engine)(nil)
