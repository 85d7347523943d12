// Package materialize implements the bulk materializer: moving many
// cached trees into a single destination parent with minimum
// process/syscall overhead, picking one strategy for the whole
// session instead of re-probing per file.
package materialize

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/kraklabs/scint/internal/cache"
	"github.com/kraklabs/scint/internal/errs"
	"github.com/kraklabs/scint/internal/fsutil"
)

// Strategy ranks the four materialization mechanisms, from most to
// least efficient.
type Strategy int

const (
	// StrategyFileListHardlink reads each source's shipped manifest
	// file list and hardlinks only the listed files, skipping a
	// directory walk entirely.
	StrategyFileListHardlink Strategy = iota
	// StrategyBulkHardlink walks each source tree and hardlinks every
	// file, used when no manifest file list is available for a batch.
	StrategyBulkHardlink
	// StrategyBulkReflink is StrategyBulkHardlink's reflink-capable
	// counterpart, chosen at probe time whenever a copy-on-write clone
	// of the probe file succeeds (the probe tries reflink before
	// hardlink).
	StrategyBulkReflink
	// StrategyPlainCopy is the fallback when the host supports neither.
	StrategyPlainCopy
)

func (s Strategy) String() string {
	switch s {
	case StrategyFileListHardlink:
		return "file_list_hardlink"
	case StrategyBulkHardlink:
		return "bulk_hardlink"
	case StrategyBulkReflink:
		return "bulk_reflink"
	default:
		return "plain_copy"
	}
}

// Source is one (source_dir, target_name) pair to materialize, with
// an optional sibling manifest path enabling the file-list-driven
// strategy.
type Source struct {
	Dir        string
	Manifest   string
	TargetName string
}

// Materializer accumulates Source entries and flushes them in chunks,
// fixing its strategy once at construction by probing an arbitrary
// source and detecting the best available mechanism for the whole
// session.
type Materializer struct {
	mu        sync.Mutex
	cond      *sync.Cond
	dstParent string
	chunkSize int
	strategy  Strategy
	pending   []Source
	ready     map[string]struct{}
}

// New constructs a Materializer targeting dstParent, probing probeSrc
// (any real source directory already known to the caller) to fix the
// session-wide strategy. chunkSize <= 0 uses fsutil.DefaultChunkSize.
func New(dstParent, probeSrc string, chunkSize int) (*Materializer, error) {
	if chunkSize <= 0 {
		chunkSize = fsutil.DefaultChunkSize
	}

	strategy, err := probeStrategy(probeSrc)
	if err != nil {
		return nil, errs.New(errs.KindInstall, "materialize.New", probeSrc, err)
	}

	m := &Materializer{
		dstParent: dstParent,
		chunkSize: chunkSize,
		strategy:  strategy,
		ready:     make(map[string]struct{}),
	}
	m.cond = sync.NewCond(&m.mu)
	return m, nil
}

// Strategy reports the session-fixed strategy this Materializer uses.
func (m *Materializer) Strategy() Strategy { return m.strategy }

// probeStrategy determines the best mechanism available by attempting
// one real clone of a file found under src and observing which
// mechanism fsutil.Clonefile actually used.
func probeStrategy(src string) (Strategy, error) {
	probeFile, err := findAnyFile(src)
	if err != nil {
		return StrategyPlainCopy, err
	}
	if probeFile == "" {
		return StrategyBulkHardlink, nil
	}

	tmp := filepath.Join(os.TempDir(), ".scint-materialize-probe."+strconv.Itoa(os.Getpid()))
	os.Remove(tmp)
	defer os.Remove(tmp)

	used, err := fsutil.Clonefile(probeFile, tmp)
	if err != nil {
		return StrategyPlainCopy, err
	}

	switch used {
	case fsutil.StrategyReflink:
		return StrategyBulkReflink, nil
	case fsutil.StrategyHardlink:
		return StrategyFileListHardlink, nil
	default:
		return StrategyPlainCopy, nil
	}
}

func findAnyFile(dir string) (string, error) {
	var found string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if found != "" {
			return filepath.SkipDir
		}
		if !info.IsDir() {
			found = path
			return filepath.SkipDir
		}
		return nil
	})
	return found, err
}

// Enqueue accumulates src, flushing automatically once chunkSize
// sources are pending. A flush materializes each pending source on its
// own; no single bulk operation covers the batch.
func (m *Materializer) Enqueue(src Source) error {
	m.mu.Lock()
	m.pending = append(m.pending, src)
	shouldFlush := len(m.pending) >= m.chunkSize
	m.mu.Unlock()

	if shouldFlush {
		return m.Flush()
	}
	return nil
}

// Flush materializes every currently pending source and wakes any
// caller blocked in WaitFor on a target this flush covered.
func (m *Materializer) Flush() error {
	m.mu.Lock()
	batch := m.pending
	m.pending = nil
	m.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	for _, src := range batch {
		target := filepath.Join(m.dstParent, src.TargetName)
		if _, err := os.Stat(target); err == nil {
			m.markReady(src.TargetName)
			continue
		}

		if err := m.materializeOne(src, target); err != nil {
			return errs.New(errs.KindInstall, "materialize.Flush", src.TargetName, err)
		}
		m.markReady(src.TargetName)
	}
	return nil
}

func (m *Materializer) markReady(name string) {
	m.mu.Lock()
	m.ready[name] = struct{}{}
	m.cond.Broadcast()
	m.mu.Unlock()
}

func (m *Materializer) materializeOne(src Source, target string) error {
	if m.strategy == StrategyFileListHardlink && src.Manifest != "" {
		if manifest, err := cache.Read(src.Manifest); err == nil && manifest != nil {
			return hardlinkFromManifest(src.Dir, target, manifest.Entries())
		}
	}

	switch m.strategy {
	case StrategyBulkHardlink, StrategyFileListHardlink:
		return walkAndLink(src.Dir, target)
	case StrategyBulkReflink:
		return fsutil.CloneTree(src.Dir, target)
	default:
		return copyTree(src.Dir, target)
	}
}

// hardlinkFromManifest materializes only the files a manifest lists,
// skipping a directory walk entirely.
func hardlinkFromManifest(src, dst string, entries []fsutil.Entry) error {
	for _, e := range entries {
		dstPath := filepath.Join(dst, e.Path)
		switch e.Type {
		case fsutil.EntryDir:
			if err := fsutil.MkdirP(dstPath); err != nil {
				return err
			}
		case fsutil.EntrySymlink:
			target, err := os.Readlink(filepath.Join(src, e.Path))
			if err != nil {
				return err
			}
			if err := fsutil.MkdirP(filepath.Dir(dstPath)); err != nil {
				return err
			}
			if err := os.Symlink(target, dstPath); err != nil && !os.IsExist(err) {
				return err
			}
		default:
			if err := fsutil.MkdirP(filepath.Dir(dstPath)); err != nil {
				return err
			}
			if err := os.Link(filepath.Join(src, e.Path), dstPath); err != nil && !os.IsExist(err) {
				return err
			}
		}
	}
	return nil
}

// walkAndLink hardlinks every regular file under src into dst,
// forcing the hardlink mechanism directly rather than Clonefile's
// per-file reflink-then-hardlink probing, since the session-wide
// strategy has already settled that question.
func walkAndLink(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if rel == "." {
			return fsutil.MkdirP(target)
		}

		switch {
		case info.IsDir():
			return fsutil.MkdirP(target)
		case info.Mode()&os.ModeSymlink != 0:
			linkTarget, err := os.Readlink(path)
			if err != nil {
				return err
			}
			if err := fsutil.MkdirP(filepath.Dir(target)); err != nil {
				return err
			}
			if err := os.Symlink(linkTarget, target); err != nil && !os.IsExist(err) {
				return err
			}
			return nil
		default:
			if err := fsutil.MkdirP(filepath.Dir(target)); err != nil {
				return err
			}
			if err := os.Link(path, target); err != nil && !os.IsExist(err) {
				return err
			}
			return nil
		}
	})
}

func copyTree(src, dst string) error {
	return fsutil.CloneTree(src, dst)
}

// WaitFor blocks until targetName exists under the destination
// parent, whether because this caller's own Enqueue triggered the
// flush that covered it or a peer's did.
func (m *Materializer) WaitFor(targetName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		if _, ok := m.ready[targetName]; ok {
			return
		}
		if _, err := os.Stat(filepath.Join(m.dstParent, targetName)); err == nil {
			m.ready[targetName] = struct{}{}
			return
		}
		m.cond.Wait()
	}
}
