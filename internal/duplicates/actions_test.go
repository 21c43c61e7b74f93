package duplicates_test

import (
	"context"
	"path/filepath"
	"testing"

	"mfo/internal/config"
	"mfo/internal/duplicates"
	"mfo/pkg/testutils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanFixture(t *testing.T) (*config.Config, duplicates.Report) {
	t.Helper()
	root := t.TempDir()
	cfg := testutils.TestConfig(t, root)
	docs, _ := cfg.FolderFor("Documents")
	testutils.CreateTestFilesWithContent(t, docs, map[string]string{
		"a.pdf": "same",
		"b.pdf": "same",
		"c.pdf": "same",
		"d.pdf": "different",
	})
	report, err := duplicates.NewScanner(nil).Scan(context.Background(), cfg.CategoryFolders(), nil)
	require.NoError(t, err)
	require.Len(t, report.Groups, 1)
	return cfg, report
}

func TestApplyNotify(t *testing.T) {
	cfg, report := scanFixture(t)
	rec := &testutils.Recorder{}

	res := duplicates.Apply(report, config.ActionNotify, cfg, rec, nil)
	assert.Empty(t, res.Moved)
	assert.Empty(t, res.Deleted)
	for _, p := range report.Groups[0].Members {
		assert.FileExists(t, p)
	}
	calls := rec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Duplicates Found", calls[0].Title)
	assert.Contains(t, calls[0].Message, "2 duplicate files in 1 groups")
}

func TestApplyMoveKeepsFirst(t *testing.T) {
	cfg, report := scanFixture(t)
	members := report.Groups[0].Members

	res := duplicates.Apply(report, config.ActionMove, cfg, nil, nil)
	assert.Empty(t, res.Failed)
	assert.Len(t, res.Moved, 2)
	assert.FileExists(t, members[0])
	for _, p := range members[1:] {
		assert.NoFileExists(t, p)
		dst := res.Moved[p]
		assert.Equal(t, cfg.DuplicatesDir(), filepath.Dir(dst))
		assert.FileExists(t, dst)
	}
}

func TestApplyMoveNameClash(t *testing.T) {
	cfg, report := scanFixture(t)
	testutils.CreateTestFilesWithContent(t, cfg.DuplicatesDir(), map[string]string{"b.pdf": "older"})

	res := duplicates.Apply(report, config.ActionMove, cfg, nil, nil)
	assert.Equal(t, filepath.Join(cfg.DuplicatesDir(), "b (1).pdf"), res.Moved[report.Groups[0].Members[1]])
}

func TestApplyDeleteKeepsFirst(t *testing.T) {
	cfg, report := scanFixture(t)
	members := report.Groups[0].Members
	cfg.Notifications = false
	rec := &testutils.Recorder{}

	res := duplicates.Apply(report, config.ActionDelete, cfg, rec, nil)
	assert.Equal(t, members[1:], res.Deleted)
	assert.FileExists(t, members[0])
	for _, p := range members[1:] {
		assert.NoFileExists(t, p)
	}
	assert.Empty(t, rec.Calls())
}

func TestApplyDeleteVanishedFile(t *testing.T) {
	cfg, report := scanFixture(t)
	report.Groups[0].Members = append(report.Groups[0].Members, filepath.Join(cfg.DownloadsFolder, "ghost.pdf"))

	res := duplicates.Apply(report, config.ActionDelete, cfg, nil, nil)
	assert.Len(t, res.Deleted, 2)
	assert.Len(t, res.Failed, 1)
}

func TestApplyNestedCategoryFoldersKeepOnlyCopy(t *testing.T) {
	root := t.TempDir()
	cfg := testutils.TestConfig(t, root)
	other := filepath.Join(root, "Other")
	cfg.Folders.Set("Other", other)
	cfg.Folders.Set("Documents", filepath.Join(other, "Docs"))
	testutils.CreateTestFilesWithContent(t, filepath.Join(other, "Docs"), map[string]string{
		"only.pdf": "one of a kind",
	})

	report, err := duplicates.NewScanner(nil).Scan(context.Background(), cfg.CategoryFolders(), nil)
	require.NoError(t, err)
	assert.Empty(t, report.Groups)
	assert.Equal(t, 1, report.Total)

	res := duplicates.Apply(report, config.ActionDelete, cfg, nil, nil)
	assert.Empty(t, res.Deleted)
	assert.FileExists(t, filepath.Join(other, "Docs", "only.pdf"))
}

func TestApplyNeverTouchesKeeperListedTwice(t *testing.T) {
	root := t.TempDir()
	cfg := testutils.TestConfig(t, root)
	docs, _ := cfg.FolderFor("Documents")
	testutils.CreateTestFilesWithContent(t, docs, map[string]string{"a.pdf": "x"})
	keeper := filepath.Join(docs, "a.pdf")
	report := duplicates.Report{Groups: []duplicates.Group{{
		ContentKey: "k",
		Members:    []string{keeper, keeper},
		Size:       1,
	}}}

	for _, action := range []config.DuplicateAction{config.ActionDelete, config.ActionMove} {
		res := duplicates.Apply(report, action, cfg, nil, nil)
		assert.Empty(t, res.Deleted, string(action))
		assert.Empty(t, res.Moved, string(action))
		assert.FileExists(t, keeper, string(action))
	}
}
