package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"mfo/internal/errors"

	"github.com/gobwas/glob"
)

func invalid(param, format string, args ...interface{}) error {
	return errors.NewConfigError("invalid configuration", param, errors.InvalidConfig, fmt.Errorf(format, args...))
}

// Validate checks a decoded snapshot. A config that fails here is never
// published.
func (c *Config) Validate() error {
	if c == nil {
		return invalid("", "nil config")
	}
	if strings.TrimSpace(c.DownloadsFolder) == "" {
		return invalid("downloads_folder", "must not be empty")
	}
	if c.Folders.Len() == 0 {
		return invalid("folders", "at least one category is required")
	}
	if _, ok := c.Folders.Get(OtherCategory); !ok {
		return invalid("folders", "the %q category is required", OtherCategory)
	}
	var err error
	c.Folders.Each(func(name, dir string) bool {
		if strings.TrimSpace(name) == "" {
			err = invalid("folders", "category name must not be empty")
		} else if strings.TrimSpace(dir) == "" {
			err = invalid("folders", "category %q has no directory", name)
		}
		return err == nil
	})
	if err != nil {
		return err
	}

	c.FileTypes.Each(func(category string, exts []string) bool {
		if _, ok := c.Folders.Get(category); !ok {
			err = invalid("file_types", "category %q is not defined in folders", category)
			return false
		}
		for _, ext := range exts {
			if ext == "" {
				err = invalid("file_types", "category %q has an empty extension", category)
				return false
			}
		}
		return true
	})
	if err != nil {
		return err
	}
	for ext, category := range c.DefaultFolderMappings {
		if ext == "" {
			return invalid("default_folder_mappings", "empty extension")
		}
		if _, ok := c.Folders.Get(category); !ok {
			return invalid("default_folder_mappings", "%s maps to undefined category %q", ext, category)
		}
	}

	if c.RetryAttempts < 1 {
		return invalid("retry_attempts", "must be >= 1, got %d", c.RetryAttempts)
	}
	if c.RetryDelay < 0 {
		return invalid("retry_delay", "must be >= 0, got %v", c.RetryDelay)
	}
	switch c.DuplicateDetection.Action {
	case ActionNotify, ActionMove, ActionDelete:
	default:
		return invalid("duplicate_detection.action", "unknown action %q", c.DuplicateDetection.Action)
	}
	if err := c.ScheduledOrganization.validate(); err != nil {
		return err
	}
	if c.QuiescenceSeconds < 0 {
		return invalid("quiescence_seconds", "must be >= 0")
	}
	if c.MaxConcurrentMoves < 1 {
		return invalid("max_concurrent_moves", "must be >= 1, got %d", c.MaxConcurrentMoves)
	}
	if c.ShutdownTimeoutSeconds < 0 {
		return invalid("shutdown_timeout_seconds", "must be >= 0")
	}
	for _, p := range c.IgnorePatterns {
		if _, gerr := glob.Compile(p); gerr != nil {
			return invalid("ignore_patterns", "bad pattern %q: %v", p, gerr)
		}
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return invalid("log_level", "unknown level %q", c.LogLevel)
	}
	return nil
}

func (s ScheduledOrganization) validate() error {
	if !s.Enabled {
		return nil
	}
	switch s.Frequency {
	case Daily, Weekly, Monthly:
	default:
		return invalid("scheduled_organization.frequency", "unknown frequency %q", s.Frequency)
	}
	if _, _, err := s.Clock(); err != nil {
		return invalid("scheduled_organization.time", "%v", err)
	}
	return nil
}

// Clock returns the hour and minute of the scheduled time.
func (s ScheduledOrganization) Clock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", s.Time)
	if err != nil {
		return 0, 0, fmt.Errorf("time must be HH:MM, got %q", s.Time)
	}
	return t.Hour(), t.Minute(), nil
}

// Lint returns non-fatal findings: extensions without a leading dot, which
// never match, and extensions claimed by more than one category.
func (c *Config) Lint() []string {
	var warnings []string
	owner := make(map[string]string)
	c.FileTypes.Each(func(category string, exts []string) bool {
		for _, ext := range exts {
			if !strings.HasPrefix(ext, ".") {
				warnings = append(warnings, fmt.Sprintf("file_types.%s: extension %q has no leading dot", category, ext))
			}
			if first, dup := owner[ext]; dup && first != category {
				warnings = append(warnings, fmt.Sprintf("file_types.%s: %q is already claimed by %s and will never match here", category, ext, first))
				continue
			}
			owner[ext] = category
		}
		return true
	})
	mapped := make([]string, 0, len(c.DefaultFolderMappings))
	for ext := range c.DefaultFolderMappings {
		mapped = append(mapped, ext)
	}
	sort.Strings(mapped)
	for _, ext := range mapped {
		if !strings.HasPrefix(ext, ".") {
			warnings = append(warnings, fmt.Sprintf("default_folder_mappings: extension %q has no leading dot", ext))
		}
	}
	return warnings
}
