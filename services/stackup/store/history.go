// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/AleutianAI/tolstack/pkg/validation"
	"github.com/AleutianAI/tolstack/services/stackup/report"
	"github.com/dgraph-io/badger/v4"
)

var (
	// ErrNotFound indicates no run with the requested id.
	ErrNotFound = errors.New("run not found")

	// ErrInvalidRun indicates a report that cannot be stored.
	ErrInvalidRun = errors.New("invalid run")
)

const (
	runPrefix   = "run/"
	indexPrefix = "idx/"
)

func runKey(id string) []byte {
	return []byte(runPrefix + id)
}

// indexKey sorts by creation time, then id.
func indexKey(r *report.Report) []byte {
	return fmt.Appendf(nil, "%s%020d/%s", indexPrefix, r.CreatedAt.UnixNano(), r.RunID)
}

// Save stores r and prunes the oldest runs beyond MaxRuns.
//
// Inputs:
//
//	ctx - Checked before the transaction starts.
//	r - A report with a RunID and CreatedAt.
//
// Outputs:
//
//	error - ErrInvalidRun, or a storage error.
func (d *DB) Save(ctx context.Context, r *report.Report) error {
	if r == nil || r.CreatedAt.IsZero() {
		return ErrInvalidRun
	}
	if err := validation.ValidateRunID(r.RunID); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRun, err)
	}
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrInvalidRun, err)
	}
	summary, err := json.Marshal(r.Summary())
	if err != nil {
		return fmt.Errorf("%w: encode summary: %v", ErrInvalidRun, err)
	}

	var pruned int
	err = d.withTxn(ctx, func(txn *badger.Txn) error {
		// Overwriting a run replaces its index entry.
		if old, err := getReport(txn, r.RunID); err == nil {
			if err := txn.Delete(indexKey(old)); err != nil {
				return err
			}
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}

		if d.maxRuns > 0 {
			n, err := d.prune(txn, d.maxRuns-1)
			if err != nil {
				return err
			}
			pruned = n
		}
		if err := txn.Set(runKey(r.RunID), body); err != nil {
			return err
		}
		return txn.Set(indexKey(r), summary)
	})
	if err != nil {
		return fmt.Errorf("save run %s: %w", r.RunID, err)
	}
	if pruned > 0 {
		d.logger.Debug("pruned run history", "removed", pruned, "max_runs", d.maxRuns)
	}
	return nil
}

// prune deletes the oldest runs until at most keep remain.
func (d *DB) prune(txn *badger.Txn, keep int) (int, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte(indexPrefix)
	it := txn.NewIterator(opts)

	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()

	excess := len(keys) - keep
	for i := 0; i < excess; i++ {
		id := keys[i][len(indexPrefix)+21:]
		if err := txn.Delete(keys[i]); err != nil {
			return i, err
		}
		if err := txn.Delete(runKey(string(id))); err != nil {
			return i, err
		}
	}
	return max(excess, 0), nil
}

// Get returns the run with id.
//
// Outputs:
//
//	*report.Report - The stored report.
//	error - ErrNotFound, or a storage or decode error.
func (d *DB) Get(ctx context.Context, id string) (*report.Report, error) {
	var out *report.Report
	err := d.withReadTxn(ctx, func(txn *badger.Txn) error {
		r, err := getReport(txn, id)
		out = r
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return out, nil
}

func getReport(txn *badger.Txn, id string) (*report.Report, error) {
	item, err := txn.Get(runKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var r report.Report
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &r)
	}); err != nil {
		return nil, fmt.Errorf("decode run: %w", err)
	}
	return &r, nil
}

// List returns up to limit run summaries, newest first. limit <= 0
// returns all.
func (d *DB) List(ctx context.Context, limit int) ([]report.Summary, error) {
	out := []report.Summary{}
	err := d.withReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(indexPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts at the last key at or before the seek key.
		for it.Seek([]byte(indexPrefix + "\xff")); it.Valid(); it.Next() {
			if limit > 0 && len(out) >= limit {
				return nil
			}
			var s report.Summary
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &s)
			}); err != nil {
				return fmt.Errorf("decode summary %s: %w", it.Item().Key(), err)
			}
			out = append(out, s)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}

// Delete removes the run with id.
//
// Outputs:
//
//	error - ErrNotFound, or a storage error.
func (d *DB) Delete(ctx context.Context, id string) error {
	err := d.withTxn(ctx, func(txn *badger.Txn) error {
		r, err := getReport(txn, id)
		if err != nil {
			return err
		}
		if err := txn.Delete(indexKey(r)); err != nil {
			return err
		}
		return txn.Delete(runKey(id))
	})
	if err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	return nil
}
