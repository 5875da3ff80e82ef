package watcher_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/omniedit/internal/watcher"
)

func start(t *testing.T, paths ...string) <-chan []string {
	t.Helper()
	w, err := watcher.New(watcher.Config{Paths: paths, DebounceDur: 50 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	onChange, err := w.Start()
	require.NoError(t, err)
	return onChange
}

func TestWatcher_DebounceMultipleWrites(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "main.lua")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0644))

	onChange := start(t, src)

	for i := 0; i < 10; i++ {
		require.NoError(t, os.WriteFile(src, []byte(fmt.Sprintf("print(%d)", i)), 0644))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case changed := <-onChange:
		require.Equal(t, []string{src}, changed)
	case <-time.After(time.Second):
		t.Fatal("expected notification but got timeout")
	}

	select {
	case <-onChange:
		t.Fatal("unexpected second notification")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_ReportsEveryChangedFile(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	src := filepath.Join(dirA, "main.lua")
	syntaxFile := filepath.Join(dirB, "lua.yaml")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0644))
	require.NoError(t, os.WriteFile(syntaxFile, []byte("rules: []"), 0644))

	onChange := start(t, src, syntaxFile)

	require.NoError(t, os.WriteFile(src, []byte("y"), 0644))
	require.NoError(t, os.WriteFile(syntaxFile, []byte("rules: [] "), 0644))

	select {
	case changed := <-onChange:
		require.ElementsMatch(t, []string{src, syntaxFile}, changed)
	case <-time.After(time.Second):
		t.Fatal("expected notification but got timeout")
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "main.lua")
	other := filepath.Join(dir, "other.txt")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0644))
	require.NoError(t, os.WriteFile(other, []byte("initial"), 0644))

	onChange := start(t, src)
	require.NoError(t, os.WriteFile(other, []byte("changed"), 0644))

	select {
	case <-onChange:
		t.Fatal("unexpected notification for unrelated file")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_DetectsRenameSave(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "main.lua")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0644))

	onChange := start(t, src)

	tmp := filepath.Join(dir, ".main.lua.swp")
	require.NoError(t, os.WriteFile(tmp, []byte("y"), 0644))
	require.NoError(t, os.Rename(tmp, src))

	select {
	case changed := <-onChange:
		require.Equal(t, []string{src}, changed)
	case <-time.After(time.Second):
		t.Fatal("expected notification but got timeout")
	}
}

func TestWatcher_Stop(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "main.lua")

	w, err := watcher.New(watcher.DefaultConfig(src))
	require.NoError(t, err)
	_, err = w.Start()
	require.NoError(t, err)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}

func TestWatcher_Errors(t *testing.T) {
	_, err := watcher.New(watcher.Config{})
	require.Error(t, err)

	w, err := watcher.New(watcher.DefaultConfig(filepath.Join(t.TempDir(), "missing", "x.lua")))
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()
	_, err = w.Start()
	require.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	cfg := watcher.DefaultConfig("a", "b")
	require.Equal(t, []string{"a", "b"}, cfg.Paths)
	require.Equal(t, watcher.DefaultDebounce, cfg.DebounceDur)
}
