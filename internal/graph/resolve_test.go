package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveImportTarget(t *testing.T) {
	t.Parallel()

	idx := newFileIndex([]string{
		"/workspace/a.js",
		"/workspace/b.js",
		"/workspace/lib/index.ts",
		"/workspace/sub/b.js",
		"/workspace/utils/strings.py",
	})

	t.Run("ExactMatch", func(t *testing.T) {
		t.Parallel()
		target, ok := resolveImportTarget("/workspace/a.js", idx)
		assert.True(t, ok)
		assert.Equal(t, "/workspace/a.js", target)
	})

	t.Run("ExtensionAppend", func(t *testing.T) {
		t.Parallel()
		target, ok := resolveImportTarget("/workspace/b", idx)
		assert.True(t, ok)
		assert.Equal(t, "/workspace/b.js", target)
	})

	t.Run("IndexFile", func(t *testing.T) {
		t.Parallel()
		target, ok := resolveImportTarget("/workspace/lib", idx)
		assert.True(t, ok)
		assert.Equal(t, "/workspace/lib/index.ts", target)
	})

	t.Run("FuzzyFallback", func(t *testing.T) {
		t.Parallel()
		target, ok := resolveImportTarget("utils/strings", idx)
		assert.True(t, ok)
		assert.Equal(t, "/workspace/utils/strings.py", target)
	})

	t.Run("ExtensionBeatsFuzzy", func(t *testing.T) {
		t.Parallel()
		// /workspace/sub/b.js also contains "/workspace/b" minus the
		// leading path, but extension-append runs first.
		target, ok := resolveImportTarget("/workspace/b", idx)
		assert.True(t, ok)
		assert.Equal(t, "/workspace/b.js", target)
	})

	t.Run("Unresolvable", func(t *testing.T) {
		t.Parallel()
		_, ok := resolveImportTarget("react", idx)
		assert.False(t, ok)

		_, ok = resolveImportTarget("", idx)
		assert.False(t, ok)
	})

	t.Run("ExtensionPriority", func(t *testing.T) {
		t.Parallel()
		both := newFileIndex([]string{
			"/workspace/mod.js",
			"/workspace/mod.ts",
		})
		// .js is tried before .ts.
		target, ok := resolveImportTarget("/workspace/mod", both)
		assert.True(t, ok)
		assert.Equal(t, "/workspace/mod.js", target)
	})
}
