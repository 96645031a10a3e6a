package config

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ReloadFunc re-reads the file at path and applies it. Returning an
// error keeps the previously applied version.
type ReloadFunc func(path string) error

// Watcher reloads a single configuration file when it changes on disk.
// The tool catalog uses this so edits take effect without a restart.
type Watcher struct {
	watcher *fsnotify.Watcher
	logger  *zap.Logger
	path    string
	reload  ReloadFunc
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher starts watching path and invokes reload on every write.
// The parent directory is watched rather than the file itself: editors
// and orchestrators replace config files by rename, which silently
// drops a watch placed on the file.
func NewWatcher(path string, reload ReloadFunc, logger *zap.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve watch path: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{
		watcher: fw,
		logger:  logger,
		path:    abs,
		reload:  reload,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go w.watchLoop()

	logger.Info("Watching configuration file", zap.String("file", abs))
	return w, nil
}

func (w *Watcher) watchLoop() {
	defer close(w.doneCh)
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Watch loop panicked", zap.Any("panic", r))
		}
	}()

	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	name, err := filepath.Abs(event.Name)
	if err != nil || name != w.path {
		return
	}
	// Write covers in-place edits, Create covers atomic replacement.
	// Remove and Rename leave nothing to read; the last good version
	// stays applied until the file reappears.
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	if err := w.reload(w.path); err != nil {
		w.logger.Warn("Configuration reload rejected, keeping previous version",
			zap.String("file", w.path),
			zap.String("op", event.Op.String()),
			zap.Error(err),
		)
		return
	}
	w.logger.Info("Configuration reloaded",
		zap.String("file", w.path),
		zap.String("op", event.Op.String()),
	)
}

// Stop shuts the watcher down and waits for the watch loop to exit.
// Stop must be called at most once.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	err := w.watcher.Close()
	<-w.doneCh
	return err
}
