package organize

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"mfo/internal/errors"
)

// maxNameBytes is the longest file name most filesystems accept.
const maxNameBytes = 255

// splitName splits a file name into base and last extension. Hidden files
// without another dot have no extension.
func splitName(name string) (base, ext string) {
	ext = filepath.Ext(name)
	base = strings.TrimSuffix(name, ext)
	if base == "" || strings.Trim(base, ".") == "" {
		return name, ""
	}
	return base, ext
}

// UniquePath returns dir/filename when nothing exists there, otherwise the
// first free dir/"base (n)ext" for n = 1, 2, .... The base is shortened
// when the suffix would push the name past maxNameBytes. It only inspects
// the filesystem: the result may be taken by someone else before it is
// used. A stat error other than not-exist is returned as is.
func UniquePath(dir, filename string) (string, error) {
	candidate := filepath.Join(dir, filename)
	taken, err := exists(candidate)
	if err != nil || !taken {
		return candidate, err
	}
	base, ext := splitName(filename)
	if len(ext) > maxNameBytes/2 {
		base, ext = filename, ""
	}
	for n := 1; ; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		candidate = filepath.Join(dir, fitName(base, maxNameBytes-len(suffix)-len(ext))+suffix+ext)
		taken, err := exists(candidate)
		if err != nil || !taken {
			return candidate, err
		}
	}
}

// fitName cuts s to at most limit bytes without splitting a rune.
func fitName(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	if limit < 0 {
		limit = 0
	}
	s = s[:limit]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

// exists treats anything Lstat can see, including dangling symlinks, as
// taken.
func exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	case os.IsPermission(err):
		return false, errors.NewFileError("cannot check destination name", path, errors.FileAccessDenied, err)
	}
	return false, errors.NewFileError("cannot check destination name", path, errors.InvalidPath, err)
}
