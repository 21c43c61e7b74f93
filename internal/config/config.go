package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// OtherCategory receives every file no rule claims.
const OtherCategory = "Other"

// DefaultIconPath is used when the config file has no icon_path.
const DefaultIconPath = "mfo.png"

// DuplicateAction is what happens to the extra members of a duplicate group.
type DuplicateAction string

const (
	ActionNotify DuplicateAction = "notify"
	ActionMove   DuplicateAction = "move"
	ActionDelete DuplicateAction = "delete"
)

// Frequency values for scheduled organization.
const (
	Daily   = "daily"
	Weekly  = "weekly"
	Monthly = "monthly"
)

// DuplicateDetection controls duplicate handling after a scan.
type DuplicateDetection struct {
	Enabled bool            `json:"enabled" yaml:"enabled"`
	Action  DuplicateAction `json:"action" yaml:"action"`
}

// ScheduledOrganization sweeps the downloads folder at a fixed time.
type ScheduledOrganization struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Frequency string `json:"frequency" yaml:"frequency"` // daily, weekly or monthly
	Time      string `json:"time" yaml:"time"`           // HH:MM, local time
}

// Config is one immutable configuration snapshot. Nothing mutates a Config
// after the Store publishes it; a reload builds a new one.
type Config struct {
	DownloadsFolder       string                `json:"downloads_folder" yaml:"downloads_folder"`
	Folders               OrderedMap[string]    `json:"folders" yaml:"folders"`
	FileTypes             OrderedMap[[]string]  `json:"file_types" yaml:"file_types"`
	DefaultFolderMappings map[string]string     `json:"default_folder_mappings" yaml:"default_folder_mappings"`
	Notifications         bool                  `json:"notifications" yaml:"notifications"`
	RetryAttempts         int                   `json:"retry_attempts" yaml:"retry_attempts"`
	RetryDelay            float64               `json:"retry_delay" yaml:"retry_delay"` // seconds
	DuplicateDetection    DuplicateDetection    `json:"duplicate_detection" yaml:"duplicate_detection"`
	ScheduledOrganization ScheduledOrganization `json:"scheduled_organization" yaml:"scheduled_organization"`
	IconPath              string                `json:"icon_path" yaml:"icon_path"`

	LogLevel               string   `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	QuiescenceSeconds      float64  `json:"quiescence_seconds" yaml:"quiescence_seconds"`
	MaxConcurrentMoves     int      `json:"max_concurrent_moves" yaml:"max_concurrent_moves"`
	ShutdownTimeoutSeconds float64  `json:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds"`
	DuplicatesFolder       string   `json:"duplicates_folder,omitempty" yaml:"duplicates_folder,omitempty"`
	IgnorePatterns         []string `json:"ignore_patterns,omitempty" yaml:"ignore_patterns,omitempty"`
	SniffExtensionless     bool     `json:"sniff_extensionless,omitempty" yaml:"sniff_extensionless,omitempty"`

	// Version is assigned by the Store on publication; zero for snapshots
	// that never went through a Store.
	Version uint64 `json:"-" yaml:"-"`
}

// Clone returns a deep-enough copy for building a modified snapshot.
func (c *Config) Clone() *Config {
	out := *c
	out.Folders = c.Folders.Clone()
	out.FileTypes = c.FileTypes.Clone()
	out.DefaultFolderMappings = make(map[string]string, len(c.DefaultFolderMappings))
	for k, v := range c.DefaultFolderMappings {
		out.DefaultFolderMappings[k] = v
	}
	out.IgnorePatterns = append([]string(nil), c.IgnorePatterns...)
	return &out
}

// FolderFor returns the destination directory of a category.
func (c *Config) FolderFor(category string) (string, bool) {
	return c.Folders.Get(category)
}

// CategoryFolders returns every distinct destination directory in
// declaration order.
func (c *Config) CategoryFolders() []string {
	seen := make(map[string]bool, c.Folders.Len())
	var out []string
	c.Folders.Each(func(_ string, dir string) bool {
		clean := filepath.Clean(dir)
		if !seen[clean] {
			seen[clean] = true
			out = append(out, clean)
		}
		return true
	})
	return out
}

// DuplicatesDir is where the move action relocates duplicates.
func (c *Config) DuplicatesDir() string {
	if c.DuplicatesFolder != "" {
		return c.DuplicatesFolder
	}
	return filepath.Join(c.DownloadsFolder, "Duplicates")
}

// RetryDelayDuration converts retry_delay to a duration.
func (c *Config) RetryDelayDuration() time.Duration {
	return seconds(c.RetryDelay)
}

// Quiescence is how long a new file must sit before it is moved.
func (c *Config) Quiescence() time.Duration {
	return seconds(c.QuiescenceSeconds)
}

// ShutdownTimeout bounds how long Stop waits for in-flight moves.
func (c *Config) ShutdownTimeout() time.Duration {
	return seconds(c.ShutdownTimeoutSeconds)
}

func seconds(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}

// DefaultPath returns $XDG_CONFIG_HOME/mfo/config.json.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "mfo", "config.json")
}

// baseDefaults holds the values used for keys a file leaves out. Required
// keys are still rejected by Validate when missing.
func baseDefaults() *Config {
	return &Config{
		DefaultFolderMappings: map[string]string{},
		RetryAttempts:         3,
		RetryDelay:            2,
		DuplicateDetection: DuplicateDetection{
			Enabled: false,
			Action:  ActionNotify,
		},
		ScheduledOrganization: ScheduledOrganization{
			Enabled:   false,
			Frequency: Daily,
			Time:      "00:00",
		},
		IconPath:               DefaultIconPath,
		LogLevel:               "info",
		QuiescenceSeconds:      5,
		MaxConcurrentMoves:     4,
		ShutdownTimeoutSeconds: 10,
	}
}

// Default returns the starter configuration written by `mfo config init`,
// rooted at the user's download directory.
func Default() *Config {
	downloads := xdg.UserDirs.Download
	if downloads == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		downloads = filepath.Join(home, "Downloads")
	}
	return DefaultFor(downloads)
}

// DefaultFor returns the starter configuration for a given downloads folder.
func DefaultFor(downloads string) *Config {
	cfg := baseDefaults()
	cfg.DownloadsFolder = downloads
	cfg.Notifications = true

	folders := NewOrderedMap[string]()
	for _, name := range []string{"Documents", "Apps", "Images", "Videos", "Archives", "Music", OtherCategory} {
		folders.Set(name, filepath.Join(downloads, name))
	}
	cfg.Folders = *folders

	types := NewOrderedMap[[]string]()
	types.Set("Documents", []string{".pdf", ".docx", ".doc", ".txt", ".pptx", ".ppt", ".xlsx", ".xls"})
	types.Set("Apps", []string{".exe", ".msi", ".deb", ".rpm", ".AppImage"})
	types.Set("Images", []string{".png", ".jpg", ".jpeg", ".webp", ".gif", ".bmp"})
	types.Set("Videos", []string{".mp4", ".mkv", ".mov", ".avi", ".flv", ".wmv"})
	types.Set("Archives", []string{".zip", ".rar", ".tar.gz", ".tar.xz", ".gz", ".7z", ".dmg", ".iso", ".pak",
		".tgz", ".tar.Z", ".tar.bz2", ".tbz2", ".tar.lz", ".tlz", ".txz", ".tar.zst"})
	types.Set("Music", []string{".mp3", ".wav", ".aac", ".flac", ".ogg"})
	cfg.FileTypes = *types

	cfg.DefaultFolderMappings = map[string]string{
		".md":   "Documents",
		".json": "Documents",
		".log":  "Documents",
	}
	cfg.IgnorePatterns = []string{"*.part", "*.crdownload", "*.download"}
	return cfg
}

// expandTilde resolves a leading ~ to the user's home directory.
func expandTilde(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// normalize expands ~ and resolves relative category folders against the
// downloads folder.
func (c *Config) normalize() {
	c.DownloadsFolder = expandTilde(c.DownloadsFolder)
	folders := NewOrderedMap[string]()
	c.Folders.Each(func(name, dir string) bool {
		dir = expandTilde(dir)
		if dir != "" && !filepath.IsAbs(dir) && c.DownloadsFolder != "" {
			dir = filepath.Join(c.DownloadsFolder, dir)
		}
		folders.Set(name, dir)
		return true
	})
	c.Folders = *folders
	if c.DuplicatesFolder != "" {
		c.DuplicatesFolder = expandTilde(c.DuplicatesFolder)
		if !filepath.IsAbs(c.DuplicatesFolder) && c.DownloadsFolder != "" {
			c.DuplicatesFolder = filepath.Join(c.DownloadsFolder, c.DuplicatesFolder)
		}
	}
	c.IconPath = expandTilde(c.IconPath)
	if c.DefaultFolderMappings == nil {
		c.DefaultFolderMappings = map[string]string{}
	}
	if c.DuplicateDetection.Action == "" {
		c.DuplicateDetection.Action = ActionNotify
	}
}

// EnsureFolders creates the downloads folder and every category folder.
// It is idempotent.
func EnsureFolders(c *Config) error {
	dirs := append([]string{c.DownloadsFolder}, c.CategoryFolders()...)
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
