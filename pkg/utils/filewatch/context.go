// Package filewatch stops a process when its config files change,
// so that the process is restarted with new configs.
package filewatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// ErrModified is the cause of contexts canceled by UntilModifyContext for file changes.
var ErrModified = errors.New("watched file is modified")

// UntilModifyContext derives a context canceled when one of files is
// written, created, removed or renamed. chmod is ignored.
//
// Empty paths are skipped, so unset optional files can be passed as they are.
// context.Cause of the context wraps ErrModified with the file name,
// or tells an error of the watcher.
//
// On error, the context and the cancel function are nil.
func UntilModifyContext(ctx context.Context, files ...string) (context.Context, func(), error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}
	for _, f := range files {
		if f == "" {
			continue
		}
		if err := w.Add(f); err != nil {
			w.Close()
			return nil, nil, fmt.Errorf("cannot watch %s: %w", f, err)
		}
	}

	wctx, cancel := context.WithCancelCause(ctx)
	go func() {
		defer w.Close()
		cancel(watch(wctx, w))
	}()
	return wctx, func() { cancel(nil) }, nil
}

// watch blocks until something happens, and tells what it is.
func watch(ctx context.Context, w *fsnotify.Watcher) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watching files: %w", err)
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) {
				continue
			}
			return fmt.Errorf("%w: %s (%s)", ErrModified, ev.Name, ev.Op)
		}
	}
}
