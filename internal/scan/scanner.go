// Package scan walks a workspace root and turns supported source files
// into file records for the graph builder.
package scan

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/codegraph-dev/codegraph/internal/config"
	"github.com/codegraph-dev/codegraph/internal/parsers"
)

// Default patterns to ignore (in addition to .gitignore).
var defaultIgnorePatterns = []string{
	".git/",
	"node_modules/",
	".codegraph/",
	"__pycache__/",
	".venv/",
	"venv/",
	"dist/",
	"build/",
	"coverage/",
	".pytest_cache/",
	".mypy_cache/",
	"*.pyc",
	".DS_Store",
}

// Scanner discovers and parses source files under a workspace root.
type Scanner struct {
	root     string
	cfg      config.ScanConfig
	includes gitignore.Matcher
	cache    *recordCache
	log      *logrus.Logger
}

// Result is the outcome of one scan.
type Result struct {
	// Records maps absolute file path to its parsed record.
	Records map[string]*parsers.FileRecord

	// Skipped counts supported files dropped by the MaxFiles ceiling.
	Skipped int

	// Cached counts records served from the parse cache instead of
	// being re-parsed.
	Cached int
}

// NewScanner creates a scanner rooted at root. A nil log falls back to
// the standard logger.
func NewScanner(root string, cfg config.ScanConfig, log *logrus.Logger) (*Scanner, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	cache, err := newRecordCache(cacheSize)
	if err != nil {
		return nil, err
	}

	var includes gitignore.Matcher
	if len(cfg.Include) > 0 {
		patterns := make([]gitignore.Pattern, 0, len(cfg.Include))
		for _, glob := range cfg.Include {
			patterns = append(patterns, gitignore.ParsePattern(glob, nil))
		}
		includes = gitignore.NewMatcher(patterns)
	}

	return &Scanner{
		root:     abs,
		cfg:      cfg,
		includes: includes,
		cache:    cache,
		log:      log,
	}, nil
}

// Root returns the absolute workspace root.
func (s *Scanner) Root() string {
	return s.root
}

// Scan walks the root and parses every supported file, in parallel,
// reusing cached records for unchanged content.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	paths, skipped, err := s.listFiles()
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", s.root, err)
	}

	records := make([]*parsers.FileRecord, len(paths))
	var cached atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			content, err := os.ReadFile(path)
			if err != nil {
				s.log.WithError(err).WithField("path", path).Warn("skipping unreadable file")
				return nil
			}

			key := cacheKey(path, sha256.Sum256(content))
			if rec, ok := s.cache.get(key); ok {
				records[i] = rec
				cached.Add(1)
				return nil
			}

			parser := parsers.ForLanguage(parsers.LanguageForFile(path))
			if parser == nil {
				return nil
			}
			rec, err := parser.Parse(path, content)
			if err != nil {
				s.log.WithError(err).WithField("path", path).Warn("skipping unparsable file")
				return nil
			}

			s.cache.add(key, rec)
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]*parsers.FileRecord, len(records))
	for _, rec := range records {
		if rec != nil {
			out[rec.Path] = rec
		}
	}

	return &Result{Records: out, Skipped: skipped, Cached: int(cached.Load())}, nil
}

// listFiles collects the supported file paths under the root in sorted
// order, applying ignore rules and the MaxFiles ceiling.
func (s *Scanner) listFiles() ([]string, int, error) {
	patterns := make([]gitignore.Pattern, 0, len(defaultIgnorePatterns)+len(s.cfg.Exclude))
	for _, p := range defaultIgnorePatterns {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}
	gitPatterns, err := loadGitignore(s.root)
	if err != nil {
		return nil, 0, err
	}
	patterns = append(patterns, gitPatterns...)
	for _, glob := range s.cfg.Exclude {
		patterns = append(patterns, gitignore.ParsePattern(glob, nil))
	}
	matcher := gitignore.NewMatcher(patterns)

	var paths []string
	err = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != s.root && skipDir(d.Name(), path, s.root, matcher) {
				return filepath.SkipDir
			}
			return nil
		}

		if parsers.LanguageForFile(d.Name()) == "" {
			return nil
		}

		relPath, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		parts := splitPath(relPath)
		if matcher.Match(parts, false) {
			return nil
		}
		if s.includes != nil && !s.includes.Match(parts, false) {
			return nil
		}

		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	sort.Strings(paths)

	skipped := 0
	if max := s.cfg.MaxFiles; max > 0 && len(paths) > max {
		skipped = len(paths) - max
		paths = paths[:max]
		s.log.WithFields(logrus.Fields{
			"limit":   max,
			"skipped": skipped,
		}).Warn("file limit reached, excess files skipped")
	}

	return paths, skipped, nil
}

// loadGitignore loads .gitignore patterns from the workspace root.
func loadGitignore(root string) ([]gitignore.Pattern, error) {
	content, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var patterns []gitignore.Pattern
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return patterns, nil
}

// skipDir checks if a directory should be skipped entirely.
func skipDir(name, path, root string, matcher gitignore.Matcher) bool {
	if name == ".git" {
		return true
	}
	if matcher == nil {
		return false
	}
	relPath, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return matcher.Match(splitPath(relPath), true)
}

// splitPath splits a path into its components.
func splitPath(path string) []string {
	return strings.Split(path, string(filepath.Separator))
}
