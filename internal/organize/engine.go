package organize

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"mfo/internal/config"
	"mfo/internal/log"
	"mfo/pkg/types"
)

// Engine organizes whole directories: a one-shot sweep over files that
// are already present, as opposed to the watcher's per-event path.
type Engine struct {
	mover  *Mover
	logger log.Logging
	dryRun bool
}

// NewEngine creates an Engine that moves files through mover.
func NewEngine(mover *Mover, logger log.Logging) *Engine {
	if logger == nil {
		logger = log.Discard()
	}
	return &Engine{mover: mover, logger: logger}
}

// SetDryRun sets whether operations should be performed or just planned.
func (e *Engine) SetDryRun(dryRun bool) {
	e.dryRun = dryRun
}

// IsDryRun returns whether the engine only plans.
func (e *Engine) IsDryRun() bool {
	return e.dryRun
}

// Plan returns where path would go under cfg, without touching anything.
func (e *Engine) Plan(path string, cfg *config.Config) types.MoveOutcome {
	outcome := types.MoveOutcome{SourcePath: path}
	verdict := e.mover.Classifier().ClassifyFile(path, cfg)
	if verdict.Ignored {
		outcome.Result = types.Skipped
		return outcome
	}
	outcome.Category = verdict.Category
	if dir, ok := cfg.FolderFor(verdict.Category); ok {
		dest, err := UniquePath(dir, filepath.Base(path))
		if err != nil {
			outcome.Result = types.Failed
			outcome.Err = err
			return outcome
		}
		outcome.DestinationPath = dest
	}
	return outcome
}

// OrganizeFile moves (or, in dry-run mode, plans) a single file.
func (e *Engine) OrganizeFile(ctx context.Context, path string, cfg *config.Config) types.MoveOutcome {
	if e.dryRun {
		return e.Plan(path, cfg)
	}
	return e.mover.Move(ctx, path, cfg)
}

// OrganizeDirectory processes every regular file directly inside
// directory. Subdirectories, including the category folders, are left
// alone. It stops early when ctx is cancelled.
func (e *Engine) OrganizeDirectory(ctx context.Context, directory string, cfg *config.Config) ([]types.MoveOutcome, error) {
	dirInfo, err := os.Stat(directory)
	if err != nil {
		return nil, fmt.Errorf("error accessing directory: %w", err)
	}
	if !dirInfo.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", directory)
	}

	entries, err := os.ReadDir(directory)
	if err != nil {
		return nil, fmt.Errorf("error reading directory: %w", err)
	}

	var results []types.MoveOutcome
	for _, entry := range entries {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		if !entry.Type().IsRegular() {
			continue
		}
		results = append(results, e.OrganizeFile(ctx, filepath.Join(directory, entry.Name()), cfg))
	}

	e.logger.With(
		log.F("directory", directory),
		log.F("files", len(results)),
		log.F("dry_run", e.dryRun),
	).Info("Directory organized")
	return results, nil
}
