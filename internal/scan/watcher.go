package scan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/sirupsen/logrus"

	"github.com/codegraph-dev/codegraph/internal/parsers"
)

// Watcher monitors a workspace for source changes and triggers a rebuild
// once the file system has been quiet for the debounce window. Events
// arriving in bursts (editor saves, branch switches) collapse into a
// single rebuild.
type Watcher struct {
	root     string
	debounce time.Duration
	matcher  gitignore.Matcher
	onChange func(ctx context.Context) error
	log      *logrus.Logger
}

// NewWatcher creates a watcher over root. onChange runs after each quiet
// period with at least one relevant change. A nil log falls back to the
// standard logger.
func NewWatcher(root string, debounce time.Duration, log *logrus.Logger, onChange func(ctx context.Context) error) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	patterns := make([]gitignore.Pattern, 0, len(defaultIgnorePatterns))
	for _, p := range defaultIgnorePatterns {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}
	gitPatterns, err := loadGitignore(abs)
	if err != nil {
		return nil, err
	}
	patterns = append(patterns, gitPatterns...)

	return &Watcher{
		root:     abs,
		debounce: debounce,
		matcher:  gitignore.NewMatcher(patterns),
		onChange: onChange,
		log:      log,
	}, nil
}

// Run blocks watching for changes until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addRecursive(fw, w.root); err != nil {
		return fmt.Errorf("setting up watcher: %w", err)
	}

	changed := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	w.log.WithField("root", w.root).Info("watching for changes")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}

			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					// New directories need their own watch; their
					// contents count as a change.
					if !skipDir(filepath.Base(event.Name), event.Name, w.root, w.matcher) {
						if err := w.addRecursive(fw, event.Name); err != nil {
							w.log.WithError(err).Warn("watching new directory")
						}
						changed[event.Name] = struct{}{}
						timer.Reset(w.debounce)
					}
					continue
				}
			}

			if !w.relevant(event.Name) {
				continue
			}
			changed[event.Name] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("watch error")

		case <-timer.C:
			if len(changed) == 0 {
				continue
			}
			w.log.WithField("changes", len(changed)).Info("rebuilding graph")
			if err := w.onChange(ctx); err != nil && ctx.Err() == nil {
				w.log.WithError(err).Error("rebuild failed")
			}
			changed = make(map[string]struct{})
		}
	}
}

// addRecursive watches dir and every non-ignored directory beneath it.
func (w *Watcher) addRecursive(fw *fsnotify.Watcher, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path != w.root && skipDir(info.Name(), path, w.root, w.matcher) {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}

// relevant reports whether a change to path should trigger a rebuild:
// supported language, not ignored. Deletions of supported files pass
// through — the rebuild drops their nodes.
func (w *Watcher) relevant(path string) bool {
	if parsers.LanguageForFile(path) == "" {
		return false
	}
	relPath, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	return !w.matcher.Match(splitPath(relPath), false)
}
