package cache

import (
	"path/filepath"
	"sync"

	"github.com/kraklabs/scint/internal/fsutil"
)

// Layout is pure path algebra mapping (PackageId, ABIKey, source) to
// canonical directories under a cache root, plus a
// mutex-protected memo of directories already materialized so repeated
// EnsureDir calls are near free. Safe because the memoized set is
// write-once and never shrinks.
//
// Every method here is pure: it returns a path string and never touches
// the filesystem except through EnsureDir. The method-per-pathSpec shape
// is grounded on registry/storage/paths.go's pathMapper.
type Layout struct {
	root string

	mu      sync.Mutex
	ensured map[string]struct{}
}

// NewLayout returns a Layout rooted at root. root should be absolute;
// every path this Layout produces is guaranteed to be a descendant of
// it.
func NewLayout(root string) *Layout {
	return &Layout{root: root, ensured: make(map[string]struct{})}
}

func (l *Layout) Root() string { return l.root }

func (l *Layout) InboundGem(id PackageId) string {
	return filepath.Join(l.root, "inbound", "gems", id.FullName()+".gem")
}

func (l *Layout) InboundGit(source SourceDescriptor) string {
	return filepath.Join(l.root, "inbound", "gits", source.Slug())
}

func (l *Layout) Assembling(abi ABIKey, id PackageId) string {
	return filepath.Join(l.root, "assembling", string(abi), id.FullName())
}

func (l *Layout) Cached(abi ABIKey, id PackageId) string {
	return filepath.Join(l.root, "cached", string(abi), id.FullName())
}

func (l *Layout) CachedSpec(abi ABIKey, id PackageId) string {
	return filepath.Join(l.root, "cached", string(abi), id.FullName()+".spec")
}

func (l *Layout) CachedManifest(abi ABIKey, id PackageId) string {
	return filepath.Join(l.root, "cached", string(abi), id.FullName()+".manifest")
}

// Extensions is where a prior native-extension build for id under abi
// lives, independent of the cached gem tree itself.
func (l *Layout) Extensions(abi ABIKey, id PackageId) string {
	return filepath.Join(l.root, "extensions", string(abi), id.FullName())
}

func (l *Layout) Index(source SourceDescriptor) string {
	return filepath.Join(l.root, "index", source.Slug())
}

func (l *Layout) PromotionLock(key string) string {
	return filepath.Join(l.root, "locks", "promotion", SanitizeLockKey(key)+".lock")
}

func (l *Layout) Staging() string {
	return filepath.Join(l.root, "staging")
}

func (l *Layout) InstallEnv() string {
	return filepath.Join(l.root, "install-env")
}

// LastLockHash is where runInstall persists the content hash of the
// lockfile its most recent successful run installed from, letting the
// next run's planner.PlanFromLock shortcut re-resolution when nothing
// changed.
func (l *Layout) LastLockHash() string {
	return filepath.Join(l.root, "last-lock-hash")
}

// EnsureDir creates dir (and parents) if this Layout hasn't already
// observed it existing, memoizing success to keep repeated calls cheap.
func (l *Layout) EnsureDir(dir string) error {
	l.mu.Lock()
	_, seen := l.ensured[dir]
	l.mu.Unlock()
	if seen {
		return nil
	}

	if err := fsutil.MkdirP(dir); err != nil {
		return err
	}

	l.mu.Lock()
	l.ensured[dir] = struct{}{}
	l.mu.Unlock()
	return nil
}

// SanitizeLockKey replaces any byte outside [0-9A-Za-z._-] with '_', the
// transform the promoter applies to lock_key before it becomes a
// filename.
func SanitizeLockKey(key string) string {
	out := make([]rune, 0, len(key))
	for _, r := range key {
		if isSlugSafe(r) {
			out = append(out, r)
		} else {
			out = append(out, '_')
		}
	}
	return string(out)
}
