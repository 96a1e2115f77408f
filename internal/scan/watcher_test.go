package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_Relevant(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		".gitignore": "generated.js\n",
	})

	w, err := NewWatcher(root, time.Second, nil, nil)
	require.NoError(t, err)

	assert.True(t, w.relevant(filepath.Join(root, "a.js")))
	assert.True(t, w.relevant(filepath.Join(root, "src", "deep", "b.py")))
	assert.False(t, w.relevant(filepath.Join(root, "README.md")), "unsupported extension")
	assert.False(t, w.relevant(filepath.Join(root, "node_modules", "pkg", "index.js")), "default ignore")
	assert.False(t, w.relevant(filepath.Join(root, "generated.js")), "gitignored")
}

func TestWatcher_RebuildOnChange(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"a.js": "function a() {}\n",
	})

	rebuilt := make(chan struct{}, 1)
	w, err := NewWatcher(root, 50*time.Millisecond, nil, func(ctx context.Context) error {
		select {
		case rebuilt <- struct{}{}:
		default:
		}
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register its directories.
	time.Sleep(300 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.js"), []byte("function a2() {}\n"), 0o644))

	select {
	case <-rebuilt:
	case <-time.After(5 * time.Second):
		t.Fatal("rebuild callback never fired")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop on cancel")
	}
}

func TestWatcher_IgnoresIrrelevantChanges(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"a.js": "function a() {}\n",
	})

	rebuilt := make(chan struct{}, 1)
	w, err := NewWatcher(root, 50*time.Millisecond, nil, func(ctx context.Context) error {
		select {
		case rebuilt <- struct{}{}:
		default:
		}
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	time.Sleep(300 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("scratch"), 0o644))

	select {
	case <-rebuilt:
		t.Fatal("unsupported file must not trigger a rebuild")
	case <-time.After(500 * time.Millisecond):
	}
}
