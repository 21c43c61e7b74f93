package testutils

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"mfo/internal/config"

	"github.com/stretchr/testify/require"
)

// CreateTestFilesWithContent creates test files with specific content
func CreateTestFilesWithContent(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// CreateTestFilesWithDefault creates test files with default content
func CreateTestFilesWithDefault(t *testing.T, dir string) {
	files := map[string]string{
		"invoice.pdf": "pdf content",
		"photo.jpg":   "image content",
		"song.mp3":    "music content",
	}
	CreateTestFilesWithContent(t, dir, files)
}

// TestConfig returns a validated config rooted at downloads with no
// retry delay, no quiescence and notifications on.
func TestConfig(t *testing.T, downloads string) *config.Config {
	t.Helper()
	cfg := config.DefaultFor(downloads)
	cfg.RetryDelay = 0
	cfg.QuiescenceSeconds = 0
	cfg.ShutdownTimeoutSeconds = 5
	cfg.IconPath = ""
	require.NoError(t, cfg.Validate())
	return cfg
}

// Notification is one recorded Notify call.
type Notification struct {
	Title   string
	Message string
}

// Recorder is a notifier that remembers every call.
type Recorder struct {
	mu    sync.Mutex
	calls []Notification
}

// Notify records the call.
func (r *Recorder) Notify(title, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Notification{Title: title, Message: message})
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.calls...)
}

// StripANSI removes ANSI escape sequences from a string
func StripANSI(str string) string {
	var result []rune
	inEscape := false
	for _, r := range str {
		if r == '\x1b' {
			inEscape = true
			continue
		}
		if inEscape {
			if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
				inEscape = false
			}
			continue
		}
		result = append(result, r)
	}
	return string(result)
}
