// Package fsutil implements idempotent directory creation with a
// process-wide memo, clonefile using the fastest available mechanism
// (CoW, hardlink, byte copy), manifest-guided materialization, batched
// tree cloning, and atomic move/write. The style — small focused
// functions over *os.File and os.FileInfo, uuid-suffixed temp paths —
// follows a filesystem storage
// driver's conventions.
package fsutil

import (
	"os"
	"sync"
)

// dirCache memoizes directories this process has already created via
// MkdirP, so concurrent workers racing to create the same parent don't
// all pay the stat+mkdir cost. The memo update never holds a lock
// across the syscall itself; entries are write-once and the cache
// never shrinks.
type dirCache struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

var globalDirCache = &dirCache{seen: make(map[string]struct{})}

func (c *dirCache) has(path string) bool {
	c.mu.Lock()
	_, ok := c.seen[path]
	c.mu.Unlock()
	return ok
}

func (c *dirCache) mark(path string) {
	c.mu.Lock()
	c.seen[path] = struct{}{}
	c.mu.Unlock()
}

// MkdirP creates path and any missing parents, like os.MkdirAll, but skips
// the syscall entirely when this process has already observed path
// existing. It is safe for concurrent callers: a lost creation race
// (EEXIST) is treated as success, since the destination is present and
// correct either way.
func MkdirP(path string) error {
	if globalDirCache.has(path) {
		return nil
	}

	if err := os.MkdirAll(path, 0o777); err != nil {
		return err
	}

	// Not holding the lock across the syscall above: a concurrent caller
	// may have marked (or be about to mark) the same path; both outcomes
	// are benign since the set only grows.
	globalDirCache.mark(path)
	return nil
}
