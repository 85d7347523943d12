// Package promote implements the atomic staging-dir to cached-dir
// transition that publishes a prepared package tree into the shared
// cache: validate, lock, re-check, move, unlock on every exit path.
package promote

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kraklabs/scint/internal/cache"
	"github.com/kraklabs/scint/internal/errs"
	"github.com/kraklabs/scint/internal/fswatch"
	"github.com/kraklabs/scint/internal/fsutil"
	"github.com/kraklabs/scint/internal/metrics"
)

// Outcome is the result of a Promote call.
type Outcome int

const (
	Promoted Outcome = iota
	AlreadyExists
)

func (o Outcome) String() string {
	if o == Promoted {
		return "promoted"
	}
	return "already_exists"
}

// Promoter moves staging trees into a cache Layout's cached subtree
// under a named file lock.
type Promoter struct {
	layout       *cache.Layout
	watchStaging bool
	log          *logrus.Entry
}

func New(layout *cache.Layout) *Promoter {
	return &Promoter{layout: layout, log: logrus.NewEntry(logrus.StandardLogger())}
}

// WithStagingWatch enables the opt-in fswatch diagnostic on every
// staging directory this Promoter opens, logging through log.
func (p *Promoter) WithStagingWatch(log *logrus.Entry) *Promoter {
	p.watchStaging = true
	p.log = log
	return p
}

// Promote moves stagingPath to targetPath under the exclusive lock
// named by lockKey. Both paths must lie within the Promoter's cache
// root; this is re-checked here rather than trusted from the caller,
// since a path escape is exactly the kind of bug a cache-invariant
// violation (errs.KindCache) exists to catch.
func (p *Promoter) Promote(stagingPath, targetPath, lockKey string) (Outcome, error) {
	if err := p.requireWithinRoot(stagingPath); err != nil {
		return 0, err
	}
	if err := p.requireWithinRoot(targetPath); err != nil {
		return 0, err
	}

	lockPath := p.layout.PromotionLock(lockKey)
	if err := p.layout.EnsureDir(filepath.Dir(lockPath)); err != nil {
		return 0, errs.New(errs.KindCache, "promote.Promote", lockKey, err)
	}

	lock, err := acquireFileLock(lockPath)
	if err != nil {
		return 0, errs.New(errs.KindCache, "promote.Promote", lockKey, err)
	}
	defer lock.release()

	if _, statErr := os.Stat(targetPath); statErr == nil {
		os.RemoveAll(stagingPath)
		metrics.PromotionsLost.Inc()
		return AlreadyExists, nil
	}

	if err := p.layout.EnsureDir(filepath.Dir(targetPath)); err != nil {
		return 0, errs.New(errs.KindCache, "promote.Promote", lockKey, err)
	}

	if err := fsutil.AtomicMove(stagingPath, targetPath); err != nil {
		if os.IsExist(err) {
			os.RemoveAll(stagingPath)
			metrics.PromotionsLost.Inc()
			return AlreadyExists, nil
		}
		return 0, errs.New(errs.KindCache, "promote.Promote", lockKey, err)
	}

	metrics.PromotionsWon.Inc()
	return Promoted, nil
}

func (p *Promoter) requireWithinRoot(path string) error {
	rel, err := filepath.Rel(p.layout.Root(), path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return errs.New(errs.KindCache, "promote.requireWithinRoot", path, os.ErrPermission)
	}
	return nil
}

// WithStagingDir produces a unique staging directory under the layout's
// staging root, invokes fn with its path, and removes the directory on
// every exit path: success, error, or (via the deferred RemoveAll)
// panic.
func (p *Promoter) WithStagingDir(prefix string, fn func(path string) error) error {
	if err := p.layout.EnsureDir(p.layout.Staging()); err != nil {
		return errs.New(errs.KindCache, "promote.WithStagingDir", prefix, err)
	}

	dir := filepath.Join(p.layout.Staging(), prefix+"."+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.New(errs.KindCache, "promote.WithStagingDir", prefix, err)
	}
	defer os.RemoveAll(dir)

	if p.watchStaging {
		if w, err := fswatch.Start(dir, p.log); err == nil {
			defer w.Close()
		}
	}

	return fn(dir)
}
