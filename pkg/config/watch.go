package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDelay = 250 * time.Millisecond

// Watch reloads filename whenever it changes and passes the result to
// onChange. Each reload starts from a fresh value returned by defaults, so
// keys removed from the file fall back to their defaults. Reload errors go
// to onError and the previous configuration stays in effect.
//
// The parent directory is watched rather than the file itself so that
// editors which save by rename are still picked up. Watch blocks until ctx
// is cancelled.
func Watch[T any](ctx context.Context, filename string, defaults func() *T, onChange func(*T), onError func(error)) error {
	abs, err := filepath.Abs(filename)
	if err != nil {
		return fmt.Errorf("config watch: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watch: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("config watch: %w", err)
	}

	timer := time.NewTimer(reloadDelay)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case <-timer.C:
			target := defaults()
			if err := Load(abs, target); err != nil {
				onError(err)
				continue
			}
			onChange(target)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(reloadDelay)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			onError(watchErr)
		}
	}
}
