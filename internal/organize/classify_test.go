package organize_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"mfo/internal/config"
	"mfo/internal/organize"
	"mfo/pkg/testutils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidateSuffixes(t *testing.T) {
	tests := []struct {
		name string
		want []string
	}{
		{"invoice.pdf", []string{".pdf"}},
		{"backup.tar.gz", []string{".tar.gz", ".gz"}},
		{"/some/dir/my.notes.v2.txt", []string{".notes.v2.txt", ".v2.txt", ".txt"}},
		{"README", nil},
		{".bashrc", nil},
		{".config.json", []string{".json"}},
		{"trailing.", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, organize.CandidateSuffixes(tt.name))
		})
	}
	assert.Equal(t, ".gz", organize.Extension("backup.tar.gz"))
	assert.Equal(t, "", organize.Extension("README"))
}

func TestClassifyIgnoreRule(t *testing.T) {
	cfg := testutils.TestConfig(t, t.TempDir())

	for _, name := range []string{"report.tmp", "notes.txt~", "draft~"} {
		got := organize.Classify(name, cfg)
		assert.True(t, got.Ignored, name)
		assert.Empty(t, got.Category, name)
	}
	// Only the exact last extension counts, and only case-sensitively.
	for _, name := range []string{"report.tmp.pdf", "report.TMP", "download.part"} {
		assert.False(t, organize.Classify(name, cfg).Ignored, name)
	}
}

func TestClassifyDefaultMappingWins(t *testing.T) {
	cfg := testutils.TestConfig(t, t.TempDir())
	cfg.FileTypes.Set("Documents", []string{".pdf", ".md"})
	cfg.DefaultFolderMappings[".md"] = "Other"

	got := organize.Classify("notes.md", cfg)
	assert.Equal(t, "Other", got.Category)
	assert.Equal(t, "default_mapping", got.Rule)

	got = organize.Classify("paper.pdf", cfg)
	assert.Equal(t, "Documents", got.Category)
	assert.Equal(t, "file_types", got.Rule)
}

func TestClassifyDeclaredOrder(t *testing.T) {
	dir := t.TempDir()
	cfg := testutils.TestConfig(t, dir)
	types := config.NewOrderedMap[[]string]()
	types.Set("Images", []string{".svg"}).Set("Documents", []string{".svg", ".pdf"})
	cfg.FileTypes = *types

	assert.Equal(t, "Images", organize.Classify("logo.svg", cfg).Category)
}

func TestClassifyMultiDotSuffix(t *testing.T) {
	cfg := testutils.TestConfig(t, t.TempDir())
	cfg.Folders.Set("Compressed", filepath.Join(cfg.DownloadsFolder, "Compressed"))
	types := config.NewOrderedMap[[]string]()
	types.Set("Compressed", []string{".gz"}).Set("Archives", []string{".tar.gz"})
	cfg.FileTypes = *types
	cfg.DefaultFolderMappings = map[string]string{}

	got := organize.Classify("backup.tar.gz", cfg)
	assert.Equal(t, "Archives", got.Category, "the longer suffix is tried first")
	assert.Equal(t, ".tar.gz", got.Suffix)

	assert.Equal(t, "Compressed", organize.Classify("log.gz", cfg).Category)
}

func TestClassifyExactCase(t *testing.T) {
	cfg := testutils.TestConfig(t, t.TempDir())
	assert.Equal(t, "Documents", organize.Classify("a.pdf", cfg).Category)
	assert.Equal(t, config.OtherCategory, organize.Classify("a.PDF", cfg).Category)
}

func TestClassifyIsTotal(t *testing.T) {
	cfg := testutils.TestConfig(t, t.TempDir())
	names := []string{"x", "x.pdf", "x.unknown", "x.tar.gz", "x.tar.zst", "x.AppImage", ".hidden", "a.b.c.d"}
	for i := 0; i < 50; i++ {
		names = append(names, fmt.Sprintf("file%d.ext%d", i, i))
	}
	for _, name := range names {
		got := organize.Classify(name, cfg)
		require.False(t, got.Ignored, name)
		_, ok := cfg.FolderFor(got.Category)
		assert.True(t, ok, "%s classified into undefined category %q", name, got.Category)
	}
	assert.Equal(t, "fallback", organize.Classify("x.unknown", cfg).Rule)
}

func TestClassifierIgnorePatterns(t *testing.T) {
	dir := t.TempDir()
	cfg := testutils.TestConfig(t, dir)
	cfg.IgnorePatterns = []string{"*.part", "Unconfirmed *"}

	c := organize.NewClassifier()
	assert.True(t, c.ClassifyFile(filepath.Join(dir, "movie.mkv.part"), cfg).Ignored)
	assert.True(t, c.ClassifyFile(filepath.Join(dir, "Unconfirmed 1234.crdownload"), cfg).Ignored)
	assert.False(t, c.ClassifyFile(filepath.Join(dir, "movie.mkv"), cfg).Ignored)

	next := cfg.Clone()
	next.IgnorePatterns = nil
	next.Version = cfg.Version + 1
	assert.False(t, c.ClassifyFile(filepath.Join(dir, "movie.mkv.part"), next).Ignored, "globs follow the snapshot")
}

func TestClassifierSniffsExtensionlessFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := testutils.TestConfig(t, dir)
	path := filepath.Join(dir, "scan")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n<<>>\nendobj\n"), 0o644))

	c := organize.NewClassifier()
	assert.Equal(t, config.OtherCategory, c.ClassifyFile(path, cfg).Category)

	cfg.SniffExtensionless = true
	got := c.ClassifyFile(path, cfg)
	assert.Equal(t, "Documents", got.Category)
	assert.Equal(t, ".pdf", got.Suffix)
}
