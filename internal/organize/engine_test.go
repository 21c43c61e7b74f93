package organize_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"mfo/internal/organize"
	"mfo/pkg/testutils"
	"mfo/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrganizeDirectory(t *testing.T) {
	dir := t.TempDir()
	cfg := testutils.TestConfig(t, dir)
	testutils.CreateTestFilesWithDefault(t, dir)
	testutils.CreateTestFilesWithContent(t, dir, map[string]string{
		"setup.tmp":         "partial",
		"Documents/old.pdf": "already sorted",
	})

	engine := organize.NewEngine(organize.NewMover(nil, nil), nil)
	results, err := engine.OrganizeDirectory(context.Background(), dir, cfg)
	require.NoError(t, err)
	require.Len(t, results, 4)

	byName := make(map[string]types.MoveOutcome)
	for _, r := range results {
		byName[filepath.Base(r.SourcePath)] = r
	}
	assert.Equal(t, types.Skipped, byName["setup.tmp"].Result)
	assert.Equal(t, "Documents", byName["invoice.pdf"].Category)
	assert.Equal(t, "Images", byName["photo.jpg"].Category)
	assert.Equal(t, "Music", byName["song.mp3"].Category)

	assert.FileExists(t, filepath.Join(dir, "Documents", "invoice.pdf"))
	assert.FileExists(t, filepath.Join(dir, "Images", "photo.jpg"))
	assert.FileExists(t, filepath.Join(dir, "Music", "song.mp3"))
	assert.FileExists(t, filepath.Join(dir, "Documents", "old.pdf"), "subdirectories are not descended into")
	assert.FileExists(t, filepath.Join(dir, "setup.tmp"))
}

func TestOrganizeDirectoryDryRun(t *testing.T) {
	dir := t.TempDir()
	cfg := testutils.TestConfig(t, dir)
	testutils.CreateTestFilesWithDefault(t, dir)

	engine := organize.NewEngine(organize.NewMover(nil, nil), nil)
	engine.SetDryRun(true)
	assert.True(t, engine.IsDryRun())

	results, err := engine.OrganizeDirectory(context.Background(), dir, cfg)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.NotEmpty(t, r.DestinationPath)
		assert.Zero(t, r.Attempts)
		assert.FileExists(t, r.SourcePath)
		assert.NoFileExists(t, r.DestinationPath)
	}
	_, err = os.Stat(filepath.Join(dir, "Documents"))
	assert.True(t, os.IsNotExist(err), "dry run creates nothing")
}

func TestOrganizeDirectoryErrors(t *testing.T) {
	dir := t.TempDir()
	cfg := testutils.TestConfig(t, dir)
	engine := organize.NewEngine(organize.NewMover(nil, nil), nil)

	_, err := engine.OrganizeDirectory(context.Background(), filepath.Join(dir, "missing"), cfg)
	assert.Error(t, err)

	file := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = engine.OrganizeDirectory(context.Background(), file, cfg)
	assert.ErrorContains(t, err, "not a directory")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = engine.OrganizeDirectory(ctx, dir, cfg)
	assert.ErrorIs(t, err, context.Canceled)
}

// Many files with the same name race for one destination folder; every
// one of them must land under its own name.
func TestConcurrentMovesSameName(t *testing.T) {
	root := t.TempDir()
	const n = 20
	cfg := testutils.TestConfig(t, root)
	// Each lost race costs one attempt.
	cfg.RetryAttempts = n
	m := organize.NewMover(nil, nil)

	var wg sync.WaitGroup
	results := make([]types.MoveOutcome, n)
	for i := 0; i < n; i++ {
		src := filepath.Join(root, "incoming", string(rune('a'+i)), "report.pdf")
		require.NoError(t, os.MkdirAll(filepath.Dir(src), 0o755))
		require.NoError(t, os.WriteFile(src, []byte{byte(i)}, 0o644))
		wg.Add(1)
		go func(i int, src string) {
			defer wg.Done()
			results[i] = m.Move(context.Background(), src, cfg)
		}(i, src)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, r := range results {
		require.Equal(t, types.Success, r.Result, "attempts=%d err=%v", r.Attempts, r.Err)
		assert.False(t, seen[r.DestinationPath], "duplicate destination %s", r.DestinationPath)
		seen[r.DestinationPath] = true
	}
	entries, err := os.ReadDir(filepath.Join(root, "Documents"))
	require.NoError(t, err)
	assert.Len(t, entries, n)
}
