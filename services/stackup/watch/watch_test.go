// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.DiscardHandler)

func start(t *testing.T, paths []string) (<-chan []string, *Watcher) {
	t.Helper()
	batches := make(chan []string, 16)
	w, err := New(paths, func(_ context.Context, p []string) { batches <- p },
		Options{Debounce: 20 * time.Millisecond, Logger: quiet})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
		w.Close()
	})
	return batches, w
}

func next(t *testing.T, batches <-chan []string) []string {
	t.Helper()
	select {
	case b := <-batches:
		return b
	case <-time.After(5 * time.Second):
		t.Fatal("no change delivered")
		return nil
	}
}

func TestNew_NoPaths(t *testing.T) {
	_, err := New(nil, nil, Options{})
	assert.ErrorIs(t, err, ErrNoPaths)
}

func TestNew_MissingDirectory(t *testing.T) {
	_, err := New([]string{filepath.Join(t.TempDir(), "nope", "s.yaml")}, nil, Options{})
	assert.Error(t, err)
}

func TestWatcher_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stack.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))

	batches, w := start(t, []string{path})
	assert.Equal(t, []string{path}, w.Files())

	for _, s := range []string{"b", "c", "d"} {
		require.NoError(t, os.WriteFile(path, []byte(s), 0o644))
	}
	assert.Equal(t, []string{path}, next(t, batches))
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stack.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))
	batches, _ := start(t, []string{path})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o644))
	select {
	case b := <-batches:
		t.Fatalf("unexpected batch %v", b)
	case <-time.After(150 * time.Millisecond):
	}

	require.NoError(t, os.WriteFile(path, []byte("b"), 0o644))
	assert.Equal(t, []string{path}, next(t, batches))
}

func TestWatcher_RenameOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stack.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))
	batches, _ := start(t, []string{path})

	tmp := filepath.Join(dir, ".stack.yaml.swp")
	require.NoError(t, os.WriteFile(tmp, []byte("b"), 0o644))
	require.NoError(t, os.Rename(tmp, path))
	assert.Equal(t, []string{path}, next(t, batches))
}

func TestWatcher_RunStopsOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stack.yaml")
	w, err := New([]string{path}, nil, Options{Logger: quiet})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}
