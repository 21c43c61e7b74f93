package organize

import (
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"mfo/internal/config"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gobwas/glob"
)

// Classification is the verdict for one file name.
type Classification struct {
	// Category is empty when Ignored is set.
	Category string
	Ignored  bool
	// Suffix is the configured extension that matched, if any.
	Suffix string
	// Rule names what decided: "ignore", "ignore_pattern", "default_mapping",
	// "file_types" or "fallback".
	Rule string
}

// CandidateSuffixes returns every dotted suffix of name, longest first:
// "a.tar.gz" gives [".tar.gz", ".gz"]. A leading dot (hidden file) is not
// a suffix separator.
func CandidateSuffixes(name string) []string {
	base := filepath.Base(name)
	trimmed := strings.TrimLeft(base, ".")
	offset := len(base) - len(trimmed)

	var out []string
	for i := 0; i < len(trimmed); i++ {
		if trimmed[i] == '.' && i+1 < len(trimmed) {
			out = append(out, base[offset+i:])
		}
	}
	return out
}

// Extension returns the last dotted suffix of name, or "".
func Extension(name string) string {
	s := CandidateSuffixes(name)
	if len(s) == 0 {
		return ""
	}
	return s[len(s)-1]
}

// IsIgnored reports whether name is a temporary file that must never be
// moved: an exact ".tmp" extension, or a trailing "~".
func IsIgnored(name string) bool {
	base := filepath.Base(name)
	return Extension(base) == ".tmp" || strings.HasSuffix(base, "~")
}

// Classify maps a file name onto a category of cfg. Each candidate suffix,
// longest first, is looked up in default_folder_mappings and then in
// file_types in declared order; the first hit wins. Comparison is exact.
func Classify(name string, cfg *config.Config) Classification {
	if IsIgnored(name) {
		return Classification{Ignored: true, Rule: "ignore"}
	}
	return classifySuffixes(CandidateSuffixes(name), cfg)
}

func classifySuffixes(suffixes []string, cfg *config.Config) Classification {
	for _, suffix := range suffixes {
		if category, ok := cfg.DefaultFolderMappings[suffix]; ok {
			return Classification{Category: category, Suffix: suffix, Rule: "default_mapping"}
		}
		var found string
		cfg.FileTypes.Each(func(category string, exts []string) bool {
			if slices.Contains(exts, suffix) {
				found = category
				return false
			}
			return true
		})
		if found != "" {
			return Classification{Category: found, Suffix: suffix, Rule: "file_types"}
		}
	}
	return Classification{Category: config.OtherCategory, Rule: "fallback"}
}

// Classifier adds the file-aware rules on top of Classify: user ignore
// globs and content sniffing for names without an extension. Compiled
// globs are cached per configuration snapshot.
type Classifier struct {
	mu      sync.Mutex
	version uint64
	source  *config.Config
	globs   []glob.Glob
}

// NewClassifier returns an empty classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

func (c *Classifier) ignoreGlobs(cfg *config.Config) []glob.Glob {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.source == cfg && c.version == cfg.Version {
		return c.globs
	}
	globs := make([]glob.Glob, 0, len(cfg.IgnorePatterns))
	for _, p := range cfg.IgnorePatterns {
		// Validate already rejected bad patterns.
		if g, err := glob.Compile(p); err == nil {
			globs = append(globs, g)
		}
	}
	c.source, c.version, c.globs = cfg, cfg.Version, globs
	return globs
}

// ClassifyFile classifies the file at path.
func (c *Classifier) ClassifyFile(path string, cfg *config.Config) Classification {
	name := filepath.Base(path)
	if IsIgnored(name) {
		return Classification{Ignored: true, Rule: "ignore"}
	}
	for _, g := range c.ignoreGlobs(cfg) {
		if g.Match(name) {
			return Classification{Ignored: true, Rule: "ignore_pattern"}
		}
	}
	suffixes := CandidateSuffixes(name)
	if len(suffixes) == 0 && cfg.SniffExtensionless {
		if ext := SniffExtension(path); ext != "" {
			suffixes = []string{ext}
		}
	}
	return classifySuffixes(suffixes, cfg)
}

// SniffExtension guesses an extension from the file's content, e.g. ".pdf".
// It returns "" when the type is unknown or the file cannot be read.
func SniffExtension(path string) string {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return ""
	}
	return mt.Extension()
}
