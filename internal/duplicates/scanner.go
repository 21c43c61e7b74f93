// Package duplicates finds byte-identical files across the category
// folders.
//
// Files larger than PrefixSize are fingerprinted by their first PrefixSize
// bytes only. Two large files sharing a prefix but differing later land in
// the same group: a report is a list of likely duplicates, not a proof.
package duplicates

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mfo/internal/log"

	"github.com/google/uuid"
)

// PrefixSize is how many leading bytes of a large file are hashed.
const PrefixSize = 8192

// Group is a set of files with the same fingerprint. Members are in
// traversal order; the first one is the keeper.
type Group struct {
	ContentKey string   `json:"content_key"`
	Members    []string `json:"members"`
	Size       int64    `json:"size"`
}

// extras returns the members after the keeper, leaving out any entry that
// names the keeper itself.
func (g Group) extras() []string {
	if len(g.Members) < 2 {
		return nil
	}
	keeper := filepath.Clean(g.Members[0])
	out := make([]string, 0, len(g.Members)-1)
	for _, p := range g.Members[1:] {
		if filepath.Clean(p) != keeper {
			out = append(out, p)
		}
	}
	return out
}

// Report is the result of one scan.
type Report struct {
	ID       string        `json:"id"`
	Groups   []Group       `json:"groups"`
	Total    int           `json:"total"`
	Hashed   int           `json:"hashed"`
	Errors   int           `json:"errors"`
	Duration time.Duration `json:"duration"`
}

// DuplicateFiles counts the files beyond the first in every group.
func (r Report) DuplicateFiles() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g.Members) - 1
	}
	return n
}

// ReclaimableBytes is the space the extra copies take up.
func (r Report) ReclaimableBytes() int64 {
	var n int64
	for _, g := range r.Groups {
		n += g.Size * int64(len(g.Members)-1)
	}
	return n
}

// Progress is called after every file with the running count.
type Progress func(processed, total int)

// Scanner fingerprints files. It holds no state between scans.
type Scanner struct {
	logger log.Logging
}

// NewScanner creates a Scanner.
func NewScanner(logger log.Logging) *Scanner {
	if logger == nil {
		logger = log.Discard()
	}
	return &Scanner{logger: logger}
}

// Scan walks folders in the given order (duplicates and missing folders
// are skipped), counts files in a first pass and fingerprints them in a
// second. Files that cannot be read are logged and left out. The scan
// stops at the next file once ctx is cancelled and returns ctx's error
// with the partial report.
func (s *Scanner) Scan(ctx context.Context, folders []string, progress Progress) (Report, error) {
	report := Report{ID: uuid.NewString()}
	logger := s.logger.With(log.F("scan_id", report.ID))
	start := time.Now()

	roots := uniqueRoots(folders)

	var files []string
	seen := make(map[string]bool)
	for _, root := range roots {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		found, err := listFiles(ctx, root, logger)
		if err != nil {
			return report, err
		}
		for _, f := range found {
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}
	report.Total = len(files)
	logger.With(log.F("folders", len(roots)), log.F("files", report.Total)).Info("Duplicate scan started")

	type bucket struct {
		members []string
		size    int64
	}
	byKey := make(map[string]*bucket)
	var order []string

	for i, path := range files {
		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(start)
			logger.With(log.F("processed", i)).Warn("Duplicate scan cancelled")
			return report, err
		}
		key, size, err := Fingerprint(path)
		if err != nil {
			report.Errors++
			logger.With(log.F("file", path)).WithError(err).Warn("Cannot fingerprint file, skipping")
		} else {
			report.Hashed++
			b, ok := byKey[key]
			if !ok {
				b = &bucket{size: size}
				byKey[key] = b
				order = append(order, key)
			}
			b.members = append(b.members, path)
		}
		if progress != nil {
			progress(i+1, report.Total)
		}
	}

	for _, key := range order {
		b := byKey[key]
		if len(b.members) < 2 {
			continue
		}
		report.Groups = append(report.Groups, Group{ContentKey: key, Members: b.members, Size: b.size})
	}

	report.Duration = time.Since(start)
	logger.With(
		log.F("groups", len(report.Groups)),
		log.F("duplicates", report.DuplicateFiles()),
		log.F("errors", report.Errors),
		log.F("duration", report.Duration.String()),
	).Info("Duplicate scan finished")
	return report, nil
}

// uniqueRoots cleans folders and drops repeats and any folder inside
// another one, keeping the first-seen order of what remains.
func uniqueRoots(folders []string) []string {
	var out []string
	for _, f := range folders {
		clean := filepath.Clean(f)
		covered := false
		for i := 0; i < len(out); i++ {
			switch {
			case within(clean, out[i]):
				covered = true
			case within(out[i], clean):
				out = append(out[:i], out[i+1:]...)
				i--
			}
		}
		if !covered {
			out = append(out, clean)
		}
	}
	return out
}

// within reports whether path is root or lies below it. Both are clean.
func within(path, root string) bool {
	if path == root {
		return true
	}
	if !strings.HasSuffix(root, string(filepath.Separator)) {
		root += string(filepath.Separator)
	}
	return strings.HasPrefix(path, root)
}

// listFiles returns the regular files under root in lexical order.
// Unreadable subtrees are logged and skipped.
func listFiles(ctx context.Context, root string, logger log.Logging) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && os.IsNotExist(err) {
				logger.With(log.F("folder", root)).Debug("Category folder does not exist yet")
				return filepath.SkipDir
			}
			logger.With(log.F("file", path)).WithError(err).Warn("Cannot read during duplicate scan")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// Fingerprint returns the hex SHA-256 of the file's first PrefixSize bytes
// when it is larger than that, and of the whole content otherwise, plus
// the file size.
func Fingerprint(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", 0, err
	}

	var r io.Reader = f
	if info.Size() > PrefixSize {
		r = io.LimitReader(f, PrefixSize)
	}
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), info.Size(), nil
}
