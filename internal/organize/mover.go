package organize

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"mfo/internal/config"
	"mfo/internal/errors"
	"mfo/internal/log"
	"mfo/internal/notify"
	"mfo/pkg/types"

	"github.com/dustin/go-humanize"
)

// MoveFunc relocates src to dst. It must not replace an existing dst.
type MoveFunc func(src, dst string) error

// Mover runs the classify, resolve and relocate cycle for one file with
// bounded retries.
type Mover struct {
	classifier *Classifier
	notifier   notify.Notifier
	logger     log.Logging
	move       MoveFunc
	sleep      func(ctx context.Context, d time.Duration) error
}

// MoverOption configures a Mover.
type MoverOption func(*Mover)

// WithMoveFunc replaces the relocation primitive. Tests use it to inject
// failures.
func WithMoveFunc(fn MoveFunc) MoverOption {
	return func(m *Mover) { m.move = fn }
}

// WithClassifier shares a classifier between components.
func WithClassifier(c *Classifier) MoverOption {
	return func(m *Mover) { m.classifier = c }
}

// NewMover creates a Mover. A nil notifier or logger is replaced by a
// no-op.
func NewMover(notifier notify.Notifier, logger log.Logging, opts ...MoverOption) *Mover {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = log.Discard()
	}
	m := &Mover{
		classifier: NewClassifier(),
		notifier:   notifier,
		logger:     logger,
		move:       Relocate,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Classifier returns the classifier the Mover uses.
func (m *Mover) Classifier() *Classifier {
	return m.classifier
}

// Move processes one file against the snapshot cfg. The snapshot is held
// for the whole operation, so a concurrent reload never changes where this
// file goes. Cancelling ctx cuts a retry sleep short and ends the loop.
func (m *Mover) Move(ctx context.Context, path string, cfg *config.Config) types.MoveOutcome {
	outcome := types.MoveOutcome{SourcePath: path}
	logger := m.logger.With(log.F("file", path), log.F("config_version", cfg.Version))

	verdict := m.classifier.ClassifyFile(path, cfg)
	if verdict.Ignored {
		outcome.Result = types.Skipped
		logger.With(log.F("rule", verdict.Rule)).Debug("Ignoring temporary file")
		return outcome
	}
	outcome.Category = verdict.Category

	destDir, ok := cfg.FolderFor(verdict.Category)
	if !ok {
		outcome.Result = types.Failed
		outcome.Err = errors.NewConfigError("category has no folder", verdict.Category, errors.InvalidConfig, nil)
		logger.WithError(outcome.Err).Error("Cannot move file")
		return outcome
	}

	var size string
	if info, err := os.Stat(path); err == nil {
		size = humanize.Bytes(uint64(info.Size()))
	}

	name := filepath.Base(path)
	delay := cfg.RetryDelayDuration()
	for attempt := 1; attempt <= cfg.RetryAttempts; attempt++ {
		outcome.Attempts = attempt
		if err := ctx.Err(); err != nil {
			outcome.Err = err
			break
		}

		if err := os.MkdirAll(destDir, 0o755); err != nil {
			kind := errors.FileOperationFailed
			if os.IsPermission(err) {
				kind = errors.FileAccessDenied
			}
			outcome.Err = errors.NewFileError("cannot create category folder", destDir, kind, err)
			m.logAttempt(logger, attempt, cfg.RetryAttempts, outcome.Err)
			if m.sleep(ctx, delay) != nil {
				break
			}
			continue
		}

		dest, err := UniquePath(destDir, name)
		if err != nil {
			outcome.Err = err
			m.logAttempt(logger, attempt, cfg.RetryAttempts, err)
			if m.sleep(ctx, delay) != nil {
				break
			}
			continue
		}
		err = m.move(path, dest)
		if err == nil {
			outcome.DestinationPath = dest
			outcome.Result = types.Success
			outcome.Err = nil
			logger.With(
				log.F("destination", dest),
				log.F("category", verdict.Category),
				log.F("attempt", attempt),
				log.F("size", size),
			).Info("Moved file")
			if cfg.Notifications {
				m.notifier.Notify("File Moved", fmt.Sprintf("%s moved to %s", name, verdict.Category))
			}
			return outcome
		}
		outcome.Err = err

		attemptLog := logger.With(log.F("attempt", attempt), log.F("max_attempts", cfg.RetryAttempts))
		switch {
		case errors.IsTargetExists(err):
			// Someone took the name after it was resolved. Resolve again
			// right away.
			attemptLog.With(log.F("destination", dest)).Warn("Destination appeared during move, resolving a new name")
			continue
		case errors.IsFileNotFound(err):
			attemptLog.Warn("File not found, it may have been moved or deleted")
		default:
			m.logAttempt(logger, attempt, cfg.RetryAttempts, err)
		}
		if m.sleep(ctx, delay) != nil {
			break
		}
	}

	outcome.Result = types.Failed
	if ctx.Err() != nil {
		logger.With(log.F("attempts", outcome.Attempts)).Warn("Move abandoned on shutdown")
		return outcome
	}
	logger.With(log.F("attempts", outcome.Attempts)).WithError(outcome.Err).Error("Failed to move file: exhausted all retry attempts")
	return outcome
}

func (m *Mover) logAttempt(logger log.Logging, attempt, maxAttempts int, err error) {
	l := logger.With(log.F("attempt", attempt), log.F("max_attempts", maxAttempts)).WithError(err)
	if errors.IsFileAccessDenied(err) {
		l.Error("Permission denied moving file, check ownership of the source and category folders")
		return
	}
	l.Error("Error moving file")
}

// sleepContext waits for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
