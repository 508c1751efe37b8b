package registry

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/querystream/percolator/internal/monitor"
	"github.com/querystream/percolator/internal/query"
)

// Watcher hot-reloads a directory of query files into a live monitor.
// A created or modified file re-registers the queries it defines; removing
// a file removes them. The watcher remembers which ids each file
// contributed so removals and renames are precise.
type Watcher struct {
	dir     string
	monitor *monitor.Monitor
	logger  *slog.Logger

	mu      sync.Mutex
	fileIDs map[string][]string
}

// NewWatcher creates a watcher over dir feeding mon.
func NewWatcher(dir string, mon *monitor.Monitor) *Watcher {
	return &Watcher{
		dir:     dir,
		monitor: mon,
		logger:  slog.Default().With("component", "query-watcher", "dir", dir),
		fileIDs: make(map[string][]string),
	}
}

// LoadOnce performs the initial full-directory load.
func (w *Watcher) LoadOnce() error {
	byFile, err := LoadDir(w.dir)
	if err != nil {
		return err
	}
	for path, queries := range byFile {
		if err := w.applyFile(path, queries); err != nil {
			return err
		}
	}
	w.logger.Info("query directory loaded", "files", len(byFile), "queries", w.monitor.Count())
	return nil
}

// Start watches the directory until ctx is cancelled. Per-file reload
// failures are logged, never fatal: one broken file must not stop updates
// to the rest of the registry.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watching query directory %s: %w", w.dir, err)
	}
	w.logger.Info("watching query directory")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("query watcher stopping", "reason", ctx.Err())
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !strings.HasSuffix(event.Name, ".json") {
		return
	}
	path := filepath.Clean(event.Name)
	switch {
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		queries, err := LoadFile(path)
		if err != nil {
			w.logger.Error("reloading query file failed", "file", path, "error", err)
			return
		}
		if err := w.applyFile(path, queries); err != nil {
			w.logger.Error("registering query file failed", "file", path, "error", err)
			return
		}
		w.logger.Info("query file applied", "file", path, "queries", len(queries))
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.dropFile(path)
		w.logger.Info("query file removed", "file", path)
	}
}

// applyFile registers the file's queries and removes ids the file used to
// define but no longer does.
func (w *Watcher) applyFile(path string, queries []*query.MonitorQuery) error {
	if len(queries) > 0 {
		if err := w.monitor.Update(queries...); err != nil {
			return err
		}
	}
	ids := make([]string, 0, len(queries))
	current := make(map[string]struct{}, len(queries))
	for _, q := range queries {
		ids = append(ids, q.ID)
		current[q.ID] = struct{}{}
	}

	w.mu.Lock()
	previous := w.fileIDs[path]
	w.fileIDs[path] = ids
	w.mu.Unlock()

	for _, id := range previous {
		if _, still := current[id]; !still {
			w.monitor.Remove(id)
		}
	}
	return nil
}

// dropFile removes every query the file contributed.
func (w *Watcher) dropFile(path string) {
	w.mu.Lock()
	ids := w.fileIDs[path]
	delete(w.fileIDs, path)
	w.mu.Unlock()

	for _, id := range ids {
		w.monitor.Remove(id)
	}
}
