// Package renames remembers directory moves, so that events still carrying a
// pre-move path can be mapped to the entry's current location.
package renames

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/samber/lo"
)

// DefaultCapacity bounds the history; the oldest moves are dropped first.
const DefaultCapacity = 1024

type entry struct {
	original string
	current  string
}

// Tracker is a chronological history of directory moves. It is owned by a
// single tree watcher and discarded with it.
type Tracker struct {
	mu       sync.RWMutex
	entries  []entry
	capacity int
}

func New() *Tracker {
	return NewWithCapacity(DefaultCapacity)
}

func NewWithCapacity(capacity int) *Tracker {
	if capacity < 1 {
		capacity = 1
	}

	return &Tracker{
		entries:  make([]entry, 0, min(capacity, 16)),
		capacity: capacity,
	}
}

// Record stores the move of the directory original to current. A newer move
// of the same original replaces the older one.
func (t *Tracker) Record(original, current string) {
	original, current = filepath.Clean(original), filepath.Clean(current)
	if original == current {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = lo.Filter(t.entries, func(e entry, _ int) bool {
		return e.original != original
	})
	t.entries = append(t.entries, entry{original: original, current: current})

	if over := len(t.entries) - t.capacity; over > 0 {
		t.entries = append(t.entries[:0:0], t.entries[over:]...)
	}
}

// Resolve replays the recorded moves in order, each at most once, so chained
// moves (A to B, then B to C) lead a stale A path to C.
func (t *Tracker) Resolve(path string) string {
	path = filepath.Clean(path)

	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, e := range t.entries {
		if rest, ok := cutPrefix(path, e.original); ok {
			path = e.current + rest
		}
	}

	return path
}

// Forget drops every move whose original is path or lies below it. It is
// used when a new directory appears at a previously moved-away location.
func (t *Tracker) Forget(path string) {
	path = filepath.Clean(path)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = lo.Filter(t.entries, func(e entry, _ int) bool {
		_, under := cutPrefix(e.original, path)
		return !under
	})
}

func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.entries)
}

// cutPrefix matches whole path segments only: "/a/b" is a prefix of "/a/b/c"
// but not of "/a/bc".
func cutPrefix(path, prefix string) (string, bool) {
	if path == prefix {
		return "", true
	}

	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}

	rest, ok := strings.CutPrefix(path, prefix)
	if !ok {
		return "", false
	}

	return string(filepath.Separator) + rest, true
}
