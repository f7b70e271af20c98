package main

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// fileWatcher re-triggers allocation whenever the input method file
// changes, grounded on SeleniaProject-Orizon's
// internal/runtime/vfs.FSNotifyWatcher: a thin goroutine translating
// fsnotify's event stream into a channel the caller selects on.
type fileWatcher struct {
	w    *fsnotify.Watcher
	evC  chan struct{}
	erC  chan error
}

func newFileWatcher(path string) (*fileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, err
	}
	fw := &fileWatcher{w: w, evC: make(chan struct{}, 8), erC: make(chan error, 1)}
	go fw.loop(path)
	return fw, nil
}

func (fw *fileWatcher) loop(path string) {
	target := filepath.Clean(path)
	for {
		select {
		case ev, ok := <-fw.w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			select {
			case fw.evC <- struct{}{}:
			default:
			}
		case err, ok := <-fw.w.Errors:
			if !ok {
				return
			}
			fw.erC <- err
		}
	}
}

func (fw *fileWatcher) Changes() <-chan struct{} { return fw.evC }
func (fw *fileWatcher) Errors() <-chan error     { return fw.erC }
func (fw *fileWatcher) Close() error             { return fw.w.Close() }

// runWatch re-runs run on every change to path until ctx is cancelled.
func runWatch(ctx context.Context, path string, run func() error) error {
	fw, err := newFileWatcher(path)
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := run(); err != nil {
		slog.Error("allocation failed", "err", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-fw.Errors():
			slog.Error("watch error", "err", err)
		case <-fw.Changes():
			slog.Info("input changed, re-allocating")
			if err := run(); err != nil {
				slog.Error("allocation failed", "err", err)
			}
		}
	}
}
