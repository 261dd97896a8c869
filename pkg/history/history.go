// Package history keeps a bounded in-memory buffer of analysis bundles.
package history

import (
	"fmt"
	"sync"

	"mobiletriage/pkg/model"
)

// DefaultCapacity matches the prior retention of the last 50 analyses.
const DefaultCapacity = 50

// Buffer is a FIFO ring of bundles with mutex-linearized append+evict.
// Reads copy under the same lock so no caller observes a partial eviction.
type Buffer struct {
	mu       sync.Mutex
	capacity int
	entries  []*model.AnalysisBundle
}

// NewBuffer creates a buffer. Capacity below 1 is a programmer error:
// the config layer rejects it before any buffer is built.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		panic(fmt.Sprintf("history: capacity %d must be at least 1", capacity))
	}
	return &Buffer{capacity: capacity}
}

// Append adds a bundle, evicting the oldest entry on overflow. Returns
// true when an eviction happened.
func (b *Buffer) Append(bundle *model.AnalysisBundle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	evicted := false
	if len(b.entries) >= b.capacity {
		copy(b.entries, b.entries[1:])
		b.entries = b.entries[:len(b.entries)-1]
		evicted = true
	}
	b.entries = append(b.entries, bundle)
	return evicted
}

// List returns a snapshot copy, oldest first, most recent last.
func (b *Buffer) List() []*model.AnalysisBundle {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*model.AnalysisBundle, len(b.entries))
	copy(out, b.entries)
	return out
}

// Len reports the current number of retained bundles.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Capacity reports the configured bound.
func (b *Buffer) Capacity() int { return b.capacity }
