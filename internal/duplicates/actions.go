package duplicates

import (
	"fmt"
	"os"
	"path/filepath"

	"mfo/internal/config"
	"mfo/internal/errors"
	"mfo/internal/log"
	"mfo/internal/notify"
	"mfo/internal/organize"

	"github.com/dustin/go-humanize"
)

// ActionResult records what happened to the extra members of the groups.
type ActionResult struct {
	Action  config.DuplicateAction `json:"action"`
	Moved   map[string]string      `json:"moved,omitempty"` // source -> destination
	Deleted []string               `json:"deleted,omitempty"`
	Failed  map[string]error       `json:"-"`
}

// Apply runs action on report. The first member of each group is always
// kept. Failures on single files are recorded and do not stop the rest.
func Apply(report Report, action config.DuplicateAction, cfg *config.Config, notifier notify.Notifier, logger log.Logging) ActionResult {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.With(log.F("scan_id", report.ID), log.F("action", string(action)))
	result := ActionResult{Action: action, Moved: map[string]string{}, Failed: map[string]error{}}

	switch action {
	case config.ActionNotify:
	case config.ActionMove:
		dir := cfg.DuplicatesDir()
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.With(log.F("folder", dir)).WithError(err).Error("Cannot create duplicates folder")
			for _, g := range report.Groups {
				for _, p := range g.extras() {
					result.Failed[p] = err
				}
			}
			break
		}
		for _, g := range report.Groups {
			for _, p := range g.extras() {
				dst, err := organize.UniquePath(dir, filepath.Base(p))
				if err == nil {
					err = organize.Relocate(p, dst)
				}
				if err != nil {
					result.Failed[p] = err
					logger.With(log.F("file", p)).WithError(err).Error("Cannot move duplicate")
					continue
				}
				result.Moved[p] = dst
				logger.With(log.F("file", p), log.F("destination", dst), log.F("keeper", g.Members[0])).Info("Moved duplicate")
			}
		}
	case config.ActionDelete:
		for _, g := range report.Groups {
			for _, p := range g.extras() {
				if err := os.Remove(p); err != nil {
					result.Failed[p] = errors.NewFileError("cannot delete duplicate", p, errors.FileOperationFailed, err)
					logger.With(log.F("file", p)).WithError(err).Error("Cannot delete duplicate")
					continue
				}
				result.Deleted = append(result.Deleted, p)
				logger.With(log.F("file", p), log.F("keeper", g.Members[0])).Info("Deleted duplicate")
			}
		}
	default:
		logger.Warnf("Unknown duplicate action %q, reporting only", action)
	}

	if len(report.Groups) > 0 && cfg.Notifications {
		notifier.Notify("Duplicates Found", summary(report, result))
	}
	return result
}

func summary(report Report, result ActionResult) string {
	msg := fmt.Sprintf("%d duplicate files in %d groups (%s)",
		report.DuplicateFiles(), len(report.Groups), humanize.Bytes(uint64(report.ReclaimableBytes())))
	switch {
	case len(result.Moved) > 0:
		msg += fmt.Sprintf(", %d moved", len(result.Moved))
	case len(result.Deleted) > 0:
		msg += fmt.Sprintf(", %d deleted", len(result.Deleted))
	}
	if len(result.Failed) > 0 {
		msg += fmt.Sprintf(", %d failed", len(result.Failed))
	}
	return msg
}
