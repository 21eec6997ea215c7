package seed

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/ansuz/internal/storage"
)

const settleDelay = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the definitions root and imports
// changed files until ctx is cancelled.
//
// Editors often emit several events per save, so changed paths are collected
// and imported after a short quiet period; SyncFile skips content that was
// already imported. New directories are added to the watch list and a full
// Sync runs to pick up files they already contain. Removing a file does not
// remove its object.
func Watch(ctx context.Context, im *Importer, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := im.files.Root()
	if err := addDirsRecursive(w, root); err != nil {
		return err
	}
	logger.Info("seed watcher: started", slog.String("root", root))

	pending := make(map[string]struct{})
	fullSync := false
	timer := time.NewTimer(settleDelay)
	timer.Stop()
	schedule := func() { timer.Reset(settleDelay) }

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info("seed watcher: stopped")
			return nil

		case <-timer.C:
			if fullSync {
				res, err := im.Sync(ctx)
				if err != nil {
					logger.Warn("seed watcher: sync failed", slog.String("error", err.Error()))
				} else {
					logger.Debug("seed watcher: synced",
						slog.Int("created", res.Created),
						slog.Int("updated", res.Updated),
						slog.Int("failed", res.Failed))
				}
			} else {
				for rel := range pending {
					kind, err := im.SyncFile(ctx, rel)
					if err != nil {
						logger.Warn("seed watcher: import failed", slog.String("path", rel), slog.String("error", err.Error()))
						continue
					}
					logger.Debug("seed watcher: imported", slog.String("path", rel), slog.String("op", kind))
				}
			}
			pending = make(map[string]struct{})
			fullSync = false

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("seed watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					fullSync = true
					schedule()
					continue
				}
			}
			// Rename fires on the old path only; the new path arrives as Create.
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 || !storage.IsDefinition(ev.Name) {
				continue
			}
			rel, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil {
				continue
			}
			pending[filepath.ToSlash(rel)] = struct{}{}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("seed watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && len(d.Name()) > 0 && d.Name()[0] == '.' {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
