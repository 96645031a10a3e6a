package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func waitForReload(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
		return ""
	}
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tools.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tools: []\n"), 0o644))

	reloaded := make(chan string, 8)
	w, err := NewWatcher(path, func(p string) error {
		select {
		case reloaded <- p:
		default:
		}
		return nil
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("tools:\n  - name: qa_engine\n    description: answers\n"), 0o644))

	got := waitForReload(t, reloaded)
	require.Equal(t, path, got)
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tools.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tools: []\n"), 0o644))

	reloaded := make(chan string, 8)
	w, err := NewWatcher(path, func(p string) error {
		select {
		case reloaded <- p:
		default:
		}
		return nil
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o644))

	select {
	case p := <-reloaded:
		t.Fatalf("unexpected reload for %s", p)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherSurvivesReloadError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tools.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tools: []\n"), 0o644))

	calls := make(chan string, 8)
	first := true
	w, err := NewWatcher(path, func(p string) error {
		select {
		case calls <- p:
		default:
		}
		if first {
			first = false
			return errors.New("invalid catalog")
		}
		return nil
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("bogus\n"), 0o644))
	waitForReload(t, calls)

	// A failed reload must not kill the watch loop.
	require.NoError(t, os.WriteFile(path, []byte("tools: []\n"), 0o644))
	waitForReload(t, calls)
}

func TestWatcherStop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tools.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tools: []\n"), 0o644))

	w, err := NewWatcher(path, func(string) error { return nil }, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, w.Stop())
}
