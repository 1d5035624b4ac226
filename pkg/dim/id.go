// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dim

import "sync/atomic"

// IDGenerator hands out dimension identifiers.
//
// The only contract is uniqueness within one generator.
type IDGenerator interface {
	NextID() int64
}

// Sequence is a lock-free monotonically increasing IDGenerator starting at 0.
//
// Thread Safety: Safe for concurrent use.
type Sequence struct {
	next atomic.Int64
}

// NewSequence returns a sequence whose first id is start.
func NewSequence(start int64) *Sequence {
	s := &Sequence{}
	s.next.Store(start)
	return s
}

// NextID returns the next identifier.
func (s *Sequence) NextID() int64 {
	return s.next.Add(1) - 1
}

// defaultIDs is used when no generator is injected.
var defaultIDs = NewSequence(0)
