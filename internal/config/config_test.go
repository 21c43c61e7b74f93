package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mfo/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalJSON = `{
    "downloads_folder": "%s",
    "folders": {"Documents": "Documents", "Other": "Other"},
    "file_types": {"Documents": [".pdf"]},
    "notifications": false,
    "retry_attempts": 3,
    "retry_delay": 0.5
}`

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func minimalConfig(downloads string) string {
	return fmt.Sprintf(minimalJSON, filepath.ToSlash(downloads))
}

func TestLoadMinimalConfigAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.json", minimalConfig(dir))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DownloadsFolder)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryDelayDuration())
	assert.Empty(t, cfg.DefaultFolderMappings)
	assert.NotNil(t, cfg.DefaultFolderMappings)
	assert.False(t, cfg.DuplicateDetection.Enabled)
	assert.Equal(t, ActionNotify, cfg.DuplicateDetection.Action)
	assert.Equal(t, DefaultIconPath, cfg.IconPath)
	assert.Equal(t, 5*time.Second, cfg.Quiescence())
	assert.Equal(t, 4, cfg.MaxConcurrentMoves)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout())
	assert.Equal(t, filepath.Join(cfg.DownloadsFolder, "Duplicates"), cfg.DuplicatesDir())

	docs, ok := cfg.FolderFor("Documents")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(cfg.DownloadsFolder, "Documents"), docs, "relative folders resolve against downloads")
}

func TestLoadRejectsMissingRequiredKeys(t *testing.T) {
	for _, key := range RequiredKeys {
		t.Run(key, func(t *testing.T) {
			dir := t.TempDir()
			cfg := DefaultFor(dir)
			data, err := Marshal(cfg, "config.json")
			require.NoError(t, err)

			var raw map[string]interface{}
			require.NoError(t, json.Unmarshal(data, &raw))
			delete(raw, key)
			stripped, err := json.Marshal(raw)
			require.NoError(t, err)

			_, err = Parse(stripped, false)
			require.Error(t, err)
			assert.True(t, errors.IsInvalidConfig(err))
			var ce *errors.ConfigError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, key, ce.Param())
		})
	}
}

func TestLoadMalformedJSON(t *testing.T) {
	_, err := Parse([]byte(`{"downloads_folder": `), false)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidConfig(err))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Equal(t, errors.ConfigNotFound, errors.KindOf(err))
}

func TestFileTypesKeepDeclaredOrder(t *testing.T) {
	dir := t.TempDir()
	content := fmt.Sprintf(`{
    "downloads_folder": "%s",
    "folders": {"Zeta": "z", "Alpha": "a", "Other": "o"},
    "file_types": {"Zeta": [".x"], "Alpha": [".x", ".y"]},
    "notifications": true,
    "retry_attempts": 1,
    "retry_delay": 0
}`, filepath.ToSlash(dir))
	cfg, err := Parse([]byte(content), false)
	require.NoError(t, err)

	assert.Equal(t, []string{"Zeta", "Alpha"}, cfg.FileTypes.Keys())
	assert.Equal(t, []string{"Zeta", "Alpha", "Other"}, cfg.Folders.Keys())
	assert.NotEmpty(t, cfg.Lint(), "duplicated .x should be reported")
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	content := fmt.Sprintf(`downloads_folder: %s
folders:
  Music: Music
  Other: Other
file_types:
  Music: [".mp3", ".flac"]
default_folder_mappings:
  ".ogg": Music
notifications: true
retry_attempts: 2
retry_delay: 1
duplicate_detection:
  enabled: true
  action: move
`, filepath.ToSlash(dir))
	path := writeConfig(t, dir, "config.yaml", content)

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Music", "Other"}, cfg.Folders.Keys())
	exts, _ := cfg.FileTypes.Get("Music")
	assert.Equal(t, []string{".mp3", ".flac"}, exts)
	assert.Equal(t, "Music", cfg.DefaultFolderMappings[".ogg"])
	assert.Equal(t, ActionMove, cfg.DuplicateDetection.Action)
	assert.True(t, cfg.Notifications)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name   string
		modify func(*Config)
		param  string
	}{
		{"zero retries", func(c *Config) { c.RetryAttempts = 0 }, "retry_attempts"},
		{"negative delay", func(c *Config) { c.RetryDelay = -1 }, "retry_delay"},
		{"unknown action", func(c *Config) { c.DuplicateDetection.Action = "shred" }, "duplicate_detection.action"},
		{"no other", func(c *Config) {
			folders := NewOrderedMap[string]()
			folders.Set("Documents", filepath.Join(dir, "Documents"))
			c.Folders = *folders
			c.DefaultFolderMappings = map[string]string{}
			c.FileTypes = *NewOrderedMap[[]string]()
		}, "folders"},
		{"undefined category", func(c *Config) { c.FileTypes.Set("Ghosts", []string{".boo"}) }, "file_types"},
		{"undefined mapping", func(c *Config) { c.DefaultFolderMappings[".md"] = "Notes" }, "default_folder_mappings"},
		{"bad schedule", func(c *Config) {
			c.ScheduledOrganization = ScheduledOrganization{Enabled: true, Frequency: "hourly", Time: "10:00"}
		}, "scheduled_organization.frequency"},
		{"bad time", func(c *Config) {
			c.ScheduledOrganization = ScheduledOrganization{Enabled: true, Frequency: Daily, Time: "25:99"}
		}, "scheduled_organization.time"},
		{"bad glob", func(c *Config) { c.IgnorePatterns = []string{"[unclosed"} }, "ignore_patterns"},
		{"zero workers", func(c *Config) { c.MaxConcurrentMoves = 0 }, "max_concurrent_moves"},
		{"bad level", func(c *Config) { c.LogLevel = "chatty" }, "log_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultFor(dir)
			require.NoError(t, cfg.Validate())
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			var ce *errors.ConfigError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.param, ce.Param())
		})
	}
}

func TestLintDotlessExtension(t *testing.T) {
	cfg := DefaultFor(t.TempDir())
	cfg.FileTypes.Set("Archives", []string{"7z"})
	warnings := cfg.Lint()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "no leading dot")
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.json")
	cfg := DefaultFor(dir)
	require.NoError(t, Save(cfg, path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Folders.Keys(), loaded.Folders.Keys())
	assert.Equal(t, cfg.FileTypes.Keys(), loaded.FileTypes.Keys())
	assert.Equal(t, cfg.DefaultFolderMappings, loaded.DefaultFolderMappings)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestWriteDefaultDoesNotOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	wrote, err := WriteDefault(path)
	require.NoError(t, err)
	assert.True(t, wrote)

	require.NoError(t, os.WriteFile(path, []byte("custom"), 0o644))
	wrote, err = WriteDefault(path)
	require.NoError(t, err)
	assert.False(t, wrote)
	data, _ := os.ReadFile(path)
	assert.Equal(t, "custom", string(data))
}

func TestBackupAndRestore(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.json", minimalConfig(dir))

	bak, err := Backup(path)
	require.NoError(t, err)
	assert.Equal(t, path+".bak", bak)

	broken := writeConfig(t, dir, "broken.json", `{"folders": {}}`)
	err = Restore(broken, path)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidConfig(err))

	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))
	require.NoError(t, Restore(bak, path))
	_, err = LoadFile(path)
	assert.NoError(t, err)
}

func TestEnsureFoldersIdempotent(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultFor(filepath.Join(dir, "Downloads"))
	require.NoError(t, EnsureFolders(cfg))
	require.NoError(t, EnsureFolders(cfg))
	for _, folder := range cfg.CategoryFolders() {
		info, err := os.Stat(folder)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestTildeExpansion(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	assert.Equal(t, filepath.Join(home, "Downloads"), expandTilde("~/Downloads"))
	assert.Equal(t, "/abs/path", expandTilde("/abs/path"))
}

func TestCloneIsIndependent(t *testing.T) {
	cfg := DefaultFor(t.TempDir())
	clone := cfg.Clone()
	clone.DefaultFolderMappings[".iso"] = "Archives"
	clone.Folders.Set("Extra", "/tmp/extra")

	_, ok := cfg.DefaultFolderMappings[".iso"]
	assert.False(t, ok)
	_, ok = cfg.Folders.Get("Extra")
	assert.False(t, ok)
}
