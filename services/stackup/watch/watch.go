// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch re-runs work when stack files change on disk.
//
// Directories are watched instead of files so that editors which save by
// writing a temporary file and renaming it over the original keep
// triggering events. Events for other files in those directories are
// dropped.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrNoPaths indicates New was given nothing to watch.
var ErrNoPaths = errors.New("watch: no paths")

// Handler receives the changed files of one debounce window, sorted and
// without duplicates. It runs on the watcher goroutine; a slow handler
// delays the next batch but loses nothing.
type Handler func(ctx context.Context, paths []string)

// Options configures a Watcher.
type Options struct {
	// Debounce is how long to wait for more changes before calling the
	// handler. Default: 200ms.
	Debounce time.Duration

	// Logger receives watcher errors. Default: slog.Default().
	Logger *slog.Logger
}

// Watcher calls a Handler when any of a fixed set of files changes.
//
// Thread Safety: Run must be called once. Close is safe from any
// goroutine and may be called more than once.
type Watcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]bool
	handler  Handler
	debounce time.Duration
	logger   *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// New watches the directories holding paths.
//
// Inputs:
//   - paths: Files to watch. They need not exist yet, but their
//     directories must.
//   - handler: Called with each debounced batch.
//   - opts: Debounce window and logger.
//
// Outputs:
//   - *Watcher: Registered with the OS; call Run to deliver events.
//   - error: ErrNoPaths, or a path or fsnotify failure.
func New(paths []string, handler Handler, opts Options) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, ErrNoPaths
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 200 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		watcher:  fw,
		files:    make(map[string]bool, len(paths)),
		handler:  handler,
		debounce: opts.Debounce,
		logger:   opts.Logger,
	}

	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fw.Close()
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		w.files[abs] = true
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
		dirs[dir] = true
	}
	return w, nil
}

// Files returns the absolute paths being watched, sorted.
func (w *Watcher) Files() []string {
	out := make([]string, 0, len(w.files))
	for f := range w.files {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// Run delivers debounced batches until ctx is done or Close is called.
// A pending batch is dropped on exit.
func (w *Watcher) Run(ctx context.Context) error {
	pending := make(map[string]bool)
	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			pending[filepath.Clean(event.Name)] = true
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)

		case <-timerC:
			timer, timerC = nil, nil
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			clear(pending)
			slices.Sort(batch)
			if w.handler != nil {
				w.handler(ctx, batch)
			}
		}
	}
}

// relevant keeps content changes to watched files. Chmod alone is noise.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !w.files[filepath.Clean(event.Name)] {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
		event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove)
}

// Close stops the watcher and makes Run return.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		w.closeErr = w.watcher.Close()
	})
	return w.closeErr
}
